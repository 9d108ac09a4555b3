package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/veslav/loan-counselor/internal/applicant"
	"github.com/veslav/loan-counselor/internal/eligibility"
)

// reportDateLayout renders the human-readable date carried by persisted
// reports.
const reportDateLayout = "January 2, 2006, 3:04 PM MST"

// Report combines the collected record with the deterministic assessment.
type Report struct {
	ApplicantData         *applicant.Record   `json:"applicant_data"`
	EligibilityAssessment *eligibility.Result `json:"eligibility_assessment"`
	ReportDate            string              `json:"report_date"`
}

func NewReport(record *applicant.Record, result *eligibility.Result, at time.Time) *Report {
	return &Report{
		ApplicantData:         record,
		EligibilityAssessment: result,
		ReportDate:            at.Format(reportDateLayout),
	}
}

// WriteFile overwrites path with the JSON report.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %q: %w", path, err)
	}

	return nil
}

// Summary renders the verdict for the terminal.
func (r *Report) Summary() string {
	var b strings.Builder
	b.WriteString("Loan Eligibility Report")

	assessment := r.EligibilityAssessment
	switch assessment.Status {
	case eligibility.StatusApproved:
		b.WriteString("\n\nCongratulations! Your loan application has been approved.")
	case eligibility.StatusConditionallyApproved:
		b.WriteString("\n\nYour loan application has been conditionally approved. Here are some recommendations:")
		for _, rec := range assessment.Recommendations {
			b.WriteString("\n- " + rec)
		}
	case eligibility.StatusRejectedWithConditions:
		b.WriteString("\n\nYour loan application cannot be approved as submitted. The following factors need attention:")
		for _, factor := range assessment.Factors {
			b.WriteString("\n- " + factor)
		}
	default:
		b.WriteString("\n\nUnfortunately, your loan application has been rejected due to the following reasons:")
		for _, factor := range assessment.Factors {
			b.WriteString("\n- " + factor)
		}
	}

	return b.String()
}
