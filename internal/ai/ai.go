// Package ai defines the contracts the conversation core expects from its
// language-model collaborators.
package ai

import (
	"context"
	"time"

	"github.com/veslav/loan-counselor/internal/applicant"
)

// Turn is one question/answer exchange from the running interview.
type Turn struct {
	Field     string    `json:"field"`
	Response  string    `json:"user_response"`
	Timestamp time.Time `json:"timestamp"`
}

// ExtractionResult is the structured update proposal produced from a raw
// user utterance.
type ExtractionResult struct {
	Updates             applicant.Updates
	NeedsClarification  bool
	ClarificationPrompt string
	Raw                 string
}

// Extractor turns free-form user answers into record updates. Unparseable
// model output is reported as a clarification request, not an error; errors
// are reserved for transport-level failures.
type Extractor interface {
	Extract(ctx context.Context, record *applicant.Record, history []Turn, utterance string) (*ExtractionResult, error)
}

// Advisor suggests wording for the interview. Its output is advisory only:
// the orchestrator remains the source of truth for which fields are missing
// and the deterministic engine for the verdict.
type Advisor interface {
	NextPrompt(ctx context.Context, record *applicant.Record, history []Turn) (string, error)
	Narrate(ctx context.Context, record *applicant.Record) (string, error)
}
