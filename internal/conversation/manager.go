// Package conversation drives the applicant interview: it walks the field
// schema, delegates understanding of each answer to an extraction
// collaborator and hands the completed record to the eligibility engine.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veslav/loan-counselor/internal/ai"
	"github.com/veslav/loan-counselor/internal/applicant"
	"github.com/veslav/loan-counselor/internal/eligibility"
	"github.com/veslav/loan-counselor/internal/logger"
)

// ErrCancelled reports that the applicant ended the session before the
// record was complete. The partial record is persisted.
var ErrCancelled = errors.New("session cancelled")

// fallbackClarification is asked when the extraction collaborator fails
// without suggesting its own wording.
const fallbackClarification = "I didn't catch that. Could you rephrase your answer?"

// cancelWords end the interview early.
var cancelWords = map[string]struct{}{
	"exit":   {},
	"quit":   {},
	"cancel": {},
	"stop":   {},
}

// UserIO is the terminal boundary of the interview.
type UserIO interface {
	ReadAnswer(question string) (string, error)
	Say(text string)
}

// Deps carries everything a Manager needs. Extractor and Advisor may be nil:
// the interview then assigns raw answers to fields directly and asks
// deterministic questions.
type Deps struct {
	Schema    *applicant.Schema
	Store     *applicant.Store
	Engine    *eligibility.Engine
	Extractor ai.Extractor
	Advisor   ai.Advisor
	IO        UserIO
	Logger    *zap.Logger
	Now       func() time.Time
}

// Manager owns one interview session and the applicant record threaded
// through it. A session runs a single logical thread of control: one turn
// completes, including persistence, before the next begins.
type Manager struct {
	deps          Deps
	sessionID     string
	record        *applicant.Record
	history       []ai.Turn
	clarification string
}

func NewManager(deps Deps) (*Manager, error) {
	if deps.Schema == nil || deps.Store == nil || deps.Engine == nil || deps.IO == nil {
		return nil, errors.New("schema, store, engine and io are required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	sessionID := uuid.NewString()
	deps.Logger = logger.WithFields(deps.Logger, zap.String(logger.FieldSession, sessionID))

	return &Manager{deps: deps, sessionID: sessionID}, nil
}

// SessionID returns the identifier carried on all session log entries.
func (m *Manager) SessionID() string { return m.sessionID }

// History returns the transcript collected so far.
func (m *Manager) History() []ai.Turn {
	out := make([]ai.Turn, len(m.history))
	copy(out, m.history)
	return out
}

// Run executes the interview until the record is complete or the applicant
// cancels, then produces the eligibility report.
func (m *Manager) Run(ctx context.Context) (*Report, error) {
	record, err := m.deps.Store.Load()
	if err != nil {
		// A broken data file must not kill the session; start over.
		m.deps.Logger.Warn("could not load prior applicant data, starting empty", zap.Error(err))
		record = applicant.NewRecord()
	}
	m.record = record

	if err := m.collect(ctx); err != nil {
		return nil, err
	}

	return m.assess(ctx)
}

func (m *Manager) collect(ctx context.Context) error {
	for !m.deps.Schema.IsComplete(m.record) {
		field := m.deps.Schema.Missing(m.record)[0]

		answer, err := m.deps.IO.ReadAnswer(m.question(ctx, field))
		if err != nil {
			return fmt.Errorf("reading answer: %w", err)
		}

		if isCancel(answer) {
			m.persist()
			m.deps.Logger.Info("session cancelled by applicant", zap.String("field", field.String()))
			return ErrCancelled
		}

		m.history = append(m.history, ai.Turn{
			Field:     field.String(),
			Response:  answer,
			Timestamp: m.deps.Now(),
		})

		m.apply(ctx, field, answer)
		m.persist()
	}

	m.deps.IO.Say("All required information has been collected.")
	return nil
}

// question picks the wording of the next prompt. A pending clarification
// takes precedence; otherwise the advisor may suggest phrasing, with a
// deterministic fallback built from the field name.
func (m *Manager) question(ctx context.Context, field applicant.Path) string {
	if m.clarification != "" {
		q := m.clarification
		m.clarification = ""
		return q
	}

	if m.deps.Advisor != nil {
		q, err := m.deps.Advisor.NextPrompt(ctx, m.record, m.history)
		if err != nil {
			m.deps.Logger.Warn("next question suggestion failed", zap.Error(err))
		} else if q = strings.TrimSpace(q); q != "" {
			return q
		}
	}

	return fmt.Sprintf("Please provide your %s:", field.FieldName())
}

// apply merges whatever the extractor understood from the answer. With no
// extractor, or when extraction yields no updates at all, the raw answer is
// assigned to the asked field directly.
func (m *Manager) apply(ctx context.Context, field applicant.Path, answer string) {
	answer = strings.TrimSpace(answer)

	if m.deps.Extractor == nil {
		m.record.Set(field, answer)
		return
	}

	result, err := m.deps.Extractor.Extract(ctx, m.record, m.history, answer)
	if err != nil {
		// Collaborator failures degrade to a clarification round.
		m.deps.Logger.Warn("extraction failed", zap.Error(err))
		m.clarification = fallbackClarification
		return
	}

	if result.NeedsClarification {
		m.clarification = strings.TrimSpace(result.ClarificationPrompt)
		if m.clarification == "" {
			m.clarification = fallbackClarification
		}
		return
	}

	if len(result.Updates) == 0 {
		m.record.Set(field, answer)
		return
	}

	m.record.Merge(result.Updates)
}

// persist writes the record, downgrading failures to a warning: the
// in-memory record stays authoritative for the rest of the session.
func (m *Manager) persist() {
	if err := m.deps.Store.Persist(m.record); err != nil {
		m.deps.Logger.Warn("persisting applicant data", zap.Error(err))
	}
}

func (m *Manager) assess(ctx context.Context) (*Report, error) {
	result := m.deps.Engine.Evaluate(m.record)

	m.deps.Logger.Info("eligibility evaluated",
		zap.String("status", string(result.Status)),
		zap.Int("factors", len(result.Factors)),
	)

	if m.deps.Advisor != nil {
		narrative, err := m.deps.Advisor.Narrate(ctx, m.record)
		if err != nil {
			// Advisory only; the deterministic verdict stands.
			m.deps.Logger.Warn("narrative generation failed", zap.Error(err))
		} else if narrative = strings.TrimSpace(narrative); narrative != "" {
			m.deps.IO.Say(narrative)
		}
	}

	report := NewReport(m.record.Clone(), result, m.deps.Now())
	m.deps.IO.Say(report.Summary())

	return report, nil
}

func isCancel(answer string) bool {
	_, ok := cancelWords[strings.ToLower(strings.TrimSpace(answer))]
	return ok
}
