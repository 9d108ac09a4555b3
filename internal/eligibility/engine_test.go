package eligibility

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veslav/loan-counselor/internal/applicant"
)

// healthyRecord satisfies every default criterion.
func healthyRecord(t *testing.T) *applicant.Record {
	t.Helper()

	record := applicant.NewRecord()
	for path, value := range map[string]any{
		"financial.credit_score":        750,
		"employment.net_monthly_salary": 60000,
		"financial.monthly_expenses":    20000,
		"employment.work_experience":    5,
		"loan_request.loan_amount":      200000,
		"loan_request.loan_term":        5,
		"loan_request.interest_rate":    10,
		"loan_request.property_value":   300000,
	} {
		record.Set(applicant.MustPath(path), value)
	}
	return record
}

func TestEvaluateApproved(t *testing.T) {
	t.Parallel()

	engine := NewEngine(DefaultCriteria())
	result := engine.Evaluate(healthyRecord(t))

	assert.Equal(t, StatusApproved, result.Status)
	assert.Empty(t, result.Factors)
	assert.Empty(t, result.Recommendations)
}

func TestEvaluateSingleFactorIsConditional(t *testing.T) {
	t.Parallel()

	record := healthyRecord(t)
	record.Set(applicant.MustPath("financial.credit_score"), 600)

	result := NewEngine(DefaultCriteria()).Evaluate(record)

	assert.Equal(t, StatusConditionallyApproved, result.Status)
	require.Len(t, result.Factors, 1)
	assert.Contains(t, result.Factors[0], "Credit score (600)")
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "Work on improving your credit score", result.Recommendations[0])
}

func TestEvaluateTwoFactorsRejectWithConditions(t *testing.T) {
	t.Parallel()

	record := healthyRecord(t)
	record.Set(applicant.MustPath("financial.credit_score"), 600)
	record.Set(applicant.MustPath("employment.work_experience"), 1)

	result := NewEngine(DefaultCriteria()).Evaluate(record)

	assert.Equal(t, StatusRejectedWithConditions, result.Status)
	assert.Len(t, result.Factors, 2)
}

func TestEvaluateThreeFactorsReject(t *testing.T) {
	t.Parallel()

	record := healthyRecord(t)
	record.Set(applicant.MustPath("financial.credit_score"), 600)
	record.Set(applicant.MustPath("employment.work_experience"), 1)
	record.Set(applicant.MustPath("financial.monthly_expenses"), 45000)

	result := NewEngine(DefaultCriteria()).Evaluate(record)

	assert.Equal(t, StatusRejected, result.Status)
	assert.GreaterOrEqual(t, len(result.Factors), 3)
}

func TestEvaluateMissingFieldFailsClosed(t *testing.T) {
	t.Parallel()

	record := healthyRecord(t)
	record.Set(applicant.MustPath("financial.credit_score"), nil)

	result := NewEngine(DefaultCriteria()).Evaluate(record)

	assert.Equal(t, StatusRejected, result.Status)
	assert.Equal(t, []string{InvalidDataFactor}, result.Factors)
	assert.Empty(t, result.Recommendations)
}

func TestEvaluateNonNumericFieldFailsClosed(t *testing.T) {
	t.Parallel()

	record := healthyRecord(t)
	record.Set(applicant.MustPath("financial.credit_score"), "seven hundred")

	result := NewEngine(DefaultCriteria()).Evaluate(record)

	assert.Equal(t, StatusRejected, result.Status)
	assert.Equal(t, []string{InvalidDataFactor}, result.Factors)
	assert.Empty(t, result.Recommendations)
}

func TestEvaluateCoercesInterviewAnswers(t *testing.T) {
	t.Parallel()

	// Direct interview answers arrive as strings, sometimes with commas.
	record := applicant.NewRecord()
	for path, value := range map[string]any{
		"financial.credit_score":        "750",
		"employment.net_monthly_salary": "60,000",
		"financial.monthly_expenses":    "20000",
		"employment.work_experience":    "5",
		"loan_request.loan_amount":      "200,000",
		"loan_request.loan_term":        "5",
		"loan_request.interest_rate":    "10",
		"loan_request.property_value":   "300000",
	} {
		record.Set(applicant.MustPath(path), value)
	}

	result := NewEngine(DefaultCriteria()).Evaluate(record)
	assert.Equal(t, StatusApproved, result.Status)
}

func TestEvaluateIsPure(t *testing.T) {
	t.Parallel()

	record := healthyRecord(t)
	before, err := json.Marshal(record)
	require.NoError(t, err)

	engine := NewEngine(DefaultCriteria())
	first := engine.Evaluate(record)
	second := engine.Evaluate(record)

	assert.Equal(t, first, second)

	after, err := json.Marshal(record)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestMonthlyInstallment(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 8884.88, MonthlyInstallment(100000, 12, 1), 0.01)
	assert.Equal(t, 10000.0, MonthlyInstallment(120000, 0, 1))
	assert.Equal(t, 120000.0, MonthlyInstallment(120000, 10, 0))
}

func TestDTIRatio(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, DTIRatio(0, 20000))
	assert.Equal(t, 1.0, DTIRatio(-1, 0))
	assert.InDelta(t, 0.5, DTIRatio(40000, 20000), 1e-9)
}

func TestLoanToValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, LoanToValue(200000, 0))
	assert.InDelta(t, 0.8, LoanToValue(240000, 300000), 1e-9)
}

func TestEvaluateUnaffordableInstallment(t *testing.T) {
	t.Parallel()

	record := healthyRecord(t)
	// Push the EMI above half the income while keeping LTV acceptable.
	record.Set(applicant.MustPath("loan_request.loan_amount"), 2000000)
	record.Set(applicant.MustPath("loan_request.property_value"), 3000000)

	result := NewEngine(DefaultCriteria()).Evaluate(record)

	assert.Equal(t, StatusConditionallyApproved, result.Status)
	require.Len(t, result.Factors, 1)
	assert.Equal(t, "EMI would be too high relative to income", result.Factors[0])
}
