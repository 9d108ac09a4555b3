package applicant

import "strings"

// Schema is the ordered list of fields an eligibility decision requires.
// Immutable after construction; the order fixes the questioning sequence.
type Schema struct {
	required []Path
}

// DefaultSchema lists the fields the loan interview must collect.
func DefaultSchema() *Schema {
	return NewSchema(
		MustPath("personal_information.full_name"),
		MustPath("personal_information.date_of_birth"),
		MustPath("personal_information.gender"),
		MustPath("identification.national_id"),
		MustPath("employment.employer_name"),
		MustPath("employment.net_monthly_salary"),
		MustPath("employment.work_experience"),
		MustPath("financial.credit_score"),
		MustPath("financial.monthly_expenses"),
		MustPath("loan_request.loan_amount"),
		MustPath("loan_request.loan_term"),
		MustPath("loan_request.interest_rate"),
		MustPath("loan_request.property_value"),
	)
}

func NewSchema(paths ...Path) *Schema {
	required := make([]Path, len(paths))
	copy(required, paths)
	return &Schema{required: required}
}

// Required returns the schema paths in questioning order.
func (s *Schema) Required() []Path {
	out := make([]Path, len(s.required))
	copy(out, s.required)
	return out
}

// IsComplete reports whether every required path resolves to an answered leaf.
func (s *Schema) IsComplete(r *Record) bool {
	return len(s.Missing(r)) == 0
}

// Missing returns the required paths that do not resolve, in schema order.
func (s *Schema) Missing(r *Record) []Path {
	missing := make([]Path, 0)
	for _, p := range s.required {
		if !answered(r, p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// answered treats absent leaves, nil values and blank strings as unanswered.
func answered(r *Record, p Path) bool {
	value, ok := r.Get(p)
	if !ok {
		return false
	}

	if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
		return false
	}

	return true
}
