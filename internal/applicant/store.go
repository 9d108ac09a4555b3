package applicant

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Store persists one applicant record as a JSON document. Every Persist call
// rewrites the whole file, so repeated calls are safe and the on-disk state
// always mirrors a single in-memory record.
type Store struct {
	path   string
	logger *zap.Logger
}

func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Load reads the persisted record. A missing file is not an error: the
// session simply starts with an empty record.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("no prior applicant data found, starting empty", zap.String("path", s.path))
		return NewRecord(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading applicant data: %w", err)
	}

	record := NewRecord()
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("parsing applicant data %q: %w", s.path, err)
	}

	return record, nil
}

// Persist overwrites the sink with the full record.
func (s *Store) Persist(r *Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding applicant data: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing applicant data %q: %w", s.path, err)
	}

	return nil
}

// Path returns the sink location.
func (s *Store) Path() string { return s.path }
