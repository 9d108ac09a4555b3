// Package eligibility implements the deterministic loan decision rules.
// Given a completed applicant record the engine computes debt ratios and the
// monthly installment, applies every rule independently and grades the
// outcome by the number of violations.
package eligibility

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/veslav/loan-counselor/internal/applicant"
)

// Status is the categorical verdict of an evaluation.
type Status string

const (
	StatusApproved               Status = "APPROVED"
	StatusConditionallyApproved  Status = "CONDITIONALLY_APPROVED"
	StatusRejectedWithConditions Status = "REJECTED_WITH_CONDITIONS"
	StatusRejected               Status = "REJECTED"
)

// InvalidDataFactor is the single factor reported when the record's numeric
// fields cannot be interpreted.
const InvalidDataFactor = "Missing or invalid financial information"

// Criteria are the thresholds an application is checked against. Immutable
// once handed to an Engine.
type Criteria struct {
	MinimumCreditScore      float64 `json:"minimum_credit_score" mapstructure:"minimum-credit-score"`
	MinimumIncome           float64 `json:"minimum_income" mapstructure:"minimum-income"`
	MaximumDTIRatio         float64 `json:"maximum_dti_ratio" mapstructure:"maximum-dti-ratio"`
	MinimumEmploymentYears  float64 `json:"minimum_employment_years" mapstructure:"minimum-employment-years"`
	MaximumLoanToValueRatio float64 `json:"maximum_loan_to_value_ratio" mapstructure:"maximum-loan-to-value-ratio"`
}

// DefaultCriteria returns the bank's standard thresholds.
func DefaultCriteria() Criteria {
	return Criteria{
		MinimumCreditScore:      700,
		MinimumIncome:           50000,
		MaximumDTIRatio:         0.5,
		MinimumEmploymentYears:  2,
		MaximumLoanToValueRatio: 0.8,
	}
}

// Result is the outcome of one evaluation. Factors and recommendations keep
// rule order; a fresh Result is produced on every evaluation.
type Result struct {
	Status          Status   `json:"status"`
	Factors         []string `json:"factors"`
	Recommendations []string `json:"recommendations"`
}

// Engine evaluates applicant records against a fixed set of criteria.
type Engine struct {
	criteria Criteria
}

func NewEngine(criteria Criteria) *Engine {
	return &Engine{criteria: criteria}
}

// Criteria returns the thresholds the engine was built with.
func (e *Engine) Criteria() Criteria { return e.criteria }

// figures are the numeric inputs a decision needs, coerced from the record.
type figures struct {
	creditScore     float64
	monthlyIncome   float64
	monthlyExpenses float64
	workExperience  float64
	loanAmount      float64
	loanTerm        float64
	interestRate    float64
	propertyValue   float64
}

type rule struct {
	violated  func(f figures, c Criteria) bool
	factor    func(f figures, c Criteria) string
	recommend string
}

// All rules are evaluated independently; none short-circuits another.
var rules = []rule{
	{
		violated: func(f figures, c Criteria) bool { return f.creditScore < c.MinimumCreditScore },
		factor: func(f figures, c Criteria) string {
			return fmt.Sprintf("Credit score (%.0f) below minimum requirement (%.0f)", f.creditScore, c.MinimumCreditScore)
		},
		recommend: "Work on improving your credit score",
	},
	{
		violated:  func(f figures, c Criteria) bool { return f.monthlyIncome < c.MinimumIncome },
		factor:    func(figures, Criteria) string { return "Monthly income below minimum requirement" },
		recommend: "Consider applying for a smaller loan amount",
	},
	{
		violated: func(f figures, c Criteria) bool {
			return DTIRatio(f.monthlyIncome, f.monthlyExpenses) > c.MaximumDTIRatio
		},
		factor:    func(figures, Criteria) string { return "Debt-to-income ratio too high" },
		recommend: "Reduce your monthly expenses or debt obligations",
	},
	{
		violated:  func(f figures, c Criteria) bool { return f.workExperience < c.MinimumEmploymentYears },
		factor:    func(figures, Criteria) string { return "Work experience below minimum requirement" },
		recommend: "Consider providing additional employment stability proof",
	},
	{
		violated: func(f figures, c Criteria) bool {
			return LoanToValue(f.loanAmount, f.propertyValue) > c.MaximumLoanToValueRatio
		},
		factor:    func(figures, Criteria) string { return "Loan amount too high relative to property value" },
		recommend: "Consider a smaller loan amount or providing additional collateral",
	},
	{
		violated: func(f figures, c Criteria) bool {
			return MonthlyInstallment(f.loanAmount, f.interestRate, f.loanTerm) > 0.5*f.monthlyIncome
		},
		factor:    func(figures, Criteria) string { return "EMI would be too high relative to income" },
		recommend: "Consider a longer loan term or smaller loan amount",
	},
}

// Evaluate applies every rule to the record and grades the outcome by the
// number of violations. Unreadable numeric data fails closed to REJECTED
// with a single explanatory factor; no error is surfaced to the caller.
func (e *Engine) Evaluate(record *applicant.Record) *Result {
	result := &Result{
		Factors:         []string{},
		Recommendations: []string{},
	}

	f, err := readFigures(record)
	if err != nil {
		result.Status = StatusRejected
		result.Factors = append(result.Factors, InvalidDataFactor)
		return result
	}

	for _, r := range rules {
		if r.violated(f, e.criteria) {
			result.Factors = append(result.Factors, r.factor(f, e.criteria))
			result.Recommendations = append(result.Recommendations, r.recommend)
		}
	}

	switch n := len(result.Factors); {
	case n == 0:
		result.Status = StatusApproved
	case n == 1:
		result.Status = StatusConditionallyApproved
	case n == 2:
		result.Status = StatusRejectedWithConditions
	default:
		result.Status = StatusRejected
	}

	return result
}

// DTIRatio is monthly expenses over monthly income. Non-positive income is
// reported as the worst case rather than a division fault.
func DTIRatio(monthlyIncome, monthlyExpenses float64) float64 {
	if monthlyIncome <= 0 {
		return 1.0
	}
	return monthlyExpenses / monthlyIncome
}

// MonthlyInstallment computes the EMI for an amortized loan. The annual rate
// is given in percent. A zero rate degenerates to straight division over the
// term; a non-positive term counts the whole amount as due at once.
func MonthlyInstallment(loanAmount, annualRatePercent, termYears float64) float64 {
	months := termYears * 12
	if months <= 0 {
		return loanAmount
	}

	monthlyRate := annualRatePercent / 1200
	if monthlyRate == 0 {
		return loanAmount / months
	}

	growth := math.Pow(1+monthlyRate, months)
	return loanAmount * monthlyRate * growth / (growth - 1)
}

// LoanToValue is the loan amount over the collateral value. A non-positive
// collateral value counts as maximal risk.
func LoanToValue(loanAmount, propertyValue float64) float64 {
	if propertyValue <= 0 {
		return 1.0
	}
	return loanAmount / propertyValue
}

func readFigures(record *applicant.Record) (figures, error) {
	var f figures

	for _, item := range []struct {
		path applicant.Path
		dst  *float64
	}{
		{applicant.MustPath("financial.credit_score"), &f.creditScore},
		{applicant.MustPath("employment.net_monthly_salary"), &f.monthlyIncome},
		{applicant.MustPath("financial.monthly_expenses"), &f.monthlyExpenses},
		{applicant.MustPath("employment.work_experience"), &f.workExperience},
		{applicant.MustPath("loan_request.loan_amount"), &f.loanAmount},
		{applicant.MustPath("loan_request.loan_term"), &f.loanTerm},
		{applicant.MustPath("loan_request.interest_rate"), &f.interestRate},
		{applicant.MustPath("loan_request.property_value"), &f.propertyValue},
	} {
		value, ok := record.Get(item.path)
		if !ok {
			return figures{}, fmt.Errorf("missing %s", item.path)
		}

		number, err := toNumber(value)
		if err != nil {
			return figures{}, fmt.Errorf("%s: %w", item.path, err)
		}

		*item.dst = number
	}

	return f, nil
}

// toNumber coerces a record leaf to float64. Values arrive as raw interview
// answers or JSON scalars, so strings with grouping commas are accepted.
func toNumber(value any) (float64, error) {
	if s, ok := value.(string); ok {
		value = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	}
	return cast.ToFloat64E(value)
}
