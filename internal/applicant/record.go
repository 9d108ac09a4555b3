// Package applicant holds the structured record collected during a loan
// interview, the schema of fields required for a decision and the JSON file
// store the record is persisted to.
package applicant

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The five fixed top-level categories of an applicant record.
const (
	CategoryPersonalInformation = "personal_information"
	CategoryIdentification      = "identification"
	CategoryEmployment          = "employment"
	CategoryFinancial           = "financial"
	CategoryLoanRequest         = "loan_request"
)

// Categories lists the record sections in their canonical order.
var Categories = []string{
	CategoryPersonalInformation,
	CategoryIdentification,
	CategoryEmployment,
	CategoryFinancial,
	CategoryLoanRequest,
}

// Path addresses a single leaf inside a record, e.g. financial.credit_score.
// Records are nested exactly two levels deep, so a path is always a category
// and a field.
type Path struct {
	Category string
	Field    string
}

// ParsePath splits a dotted path into its two levels.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Path{}, fmt.Errorf("invalid field path %q: want category.field", s)
	}

	return Path{Category: parts[0], Field: parts[1]}, nil
}

// MustPath is ParsePath for statically known paths.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	return p.Category + "." + p.Field
}

// FieldName returns the leaf field in human-readable form, e.g.
// "net monthly salary" for employment.net_monthly_salary.
func (p Path) FieldName() string {
	return strings.ReplaceAll(p.Field, "_", " ")
}

// Updates is a batch of leaf assignments grouped by category, the shape an
// extraction collaborator proposes after each user turn.
type Updates map[string]map[string]any

// Record holds one applicant's structured data: fixed categories of scalar
// leaves. A value set to a leaf stays there until an explicit update
// overwrites it.
type Record struct {
	data map[string]map[string]any
}

// NewRecord returns an empty record with all categories present.
func NewRecord() *Record {
	r := &Record{data: make(map[string]map[string]any, len(Categories))}
	for _, category := range Categories {
		r.data[category] = make(map[string]any)
	}
	return r
}

// Get resolves the path. It reports false when the category or the leaf is
// absent, or the leaf is nil; resolution never fails otherwise.
func (r *Record) Get(p Path) (any, bool) {
	category, ok := r.data[p.Category]
	if !ok {
		return nil, false
	}

	value, ok := category[p.Field]
	if !ok || value == nil {
		return nil, false
	}

	return value, true
}

// Set writes the leaf, creating the category when missing. Prior values are
// overwritten.
func (r *Record) Set(p Path, value any) {
	if r.data == nil {
		r.data = make(map[string]map[string]any)
	}

	category, ok := r.data[p.Category]
	if !ok {
		category = make(map[string]any)
		r.data[p.Category] = category
	}

	category[p.Field] = value
}

// Merge applies every leaf of the proposed updates unconditionally.
func (r *Record) Merge(updates Updates) {
	for categoryName, fields := range updates {
		for field, value := range fields {
			r.Set(Path{Category: categoryName, Field: field}, value)
		}
	}
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	clone := NewRecord()
	for categoryName, fields := range r.data {
		for field, value := range fields {
			clone.Set(Path{Category: categoryName, Field: field}, value)
		}
	}
	return clone
}

func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.data)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	raw := make(map[string]map[string]any)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for _, category := range Categories {
		if raw[category] == nil {
			raw[category] = make(map[string]any)
		}
	}

	r.data = raw
	return nil
}
