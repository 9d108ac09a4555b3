package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/veslav/loan-counselor/internal/ai"
	"github.com/veslav/loan-counselor/internal/applicant"
)

type stubGenerator struct {
	response   string
	err        error
	lastSystem string
	lastPrompt string
	calls      int
}

func (s *stubGenerator) GenerateContent(_ context.Context, system, message string) (string, error) {
	s.calls++
	s.lastSystem = system
	s.lastPrompt = message
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string { return "stub-model" }

func TestExtractParsesFencedJSON(t *testing.T) {
	gen := &stubGenerator{response: "```json\n" + `{
  "data_updates": {
    "financial": {"credit_score": 750}
  },
  "needs_clarification": false,
  "clarification_question": ""
}` + "\n```"}

	assistant := NewAssistant(gen, applicant.DefaultSchema(), nil, 0)

	result, err := assistant.Extract(context.Background(), applicant.NewRecord(), nil, "my score is 750")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.NeedsClarification {
		t.Fatal("expected no clarification")
	}
	if got := result.Updates["financial"]["credit_score"]; got != float64(750) {
		t.Fatalf("unexpected update: %v", got)
	}
	if gen.lastSystem != systemPrompt {
		t.Fatal("expected the system prompt to be sent")
	}
	if !strings.Contains(gen.lastPrompt, "my score is 750") {
		t.Fatal("expected the utterance to be embedded in the prompt")
	}
}

func TestExtractWeaklyTypedClarificationFlag(t *testing.T) {
	gen := &stubGenerator{response: `{
  "data_updates": {},
  "needs_clarification": "true",
  "clarification_question": "Is that your gross or net salary?"
}`}

	assistant := NewAssistant(gen, applicant.DefaultSchema(), nil, 0)

	result, err := assistant.Extract(context.Background(), applicant.NewRecord(), nil, "around 60k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.NeedsClarification {
		t.Fatal("expected a clarification request")
	}
	if result.ClarificationPrompt != "Is that your gross or net salary?" {
		t.Fatalf("unexpected clarification: %q", result.ClarificationPrompt)
	}
}

func TestExtractUnparseableResponseAsksForClarification(t *testing.T) {
	gen := &stubGenerator{response: "I could not produce JSON, sorry."}

	assistant := NewAssistant(gen, applicant.DefaultSchema(), nil, 0)

	result, err := assistant.Extract(context.Background(), applicant.NewRecord(), nil, "hmm")
	if err != nil {
		t.Fatalf("a malformed model reply must not be an error: %v", err)
	}

	if !result.NeedsClarification {
		t.Fatal("expected a clarification request")
	}
	if result.ClarificationPrompt != fallbackClarification {
		t.Fatalf("unexpected clarification: %q", result.ClarificationPrompt)
	}
	if result.Raw != gen.response {
		t.Fatal("expected the raw reply to be retained")
	}
}

func TestExtractGeneratorErrorPropagates(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}

	assistant := NewAssistant(gen, applicant.DefaultSchema(), nil, 0)

	if _, err := assistant.Extract(context.Background(), applicant.NewRecord(), nil, "750"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestExtractDropsNonScalarValues(t *testing.T) {
	gen := &stubGenerator{response: `{
  "data_updates": {
    "financial": {
      "credit_score": 750,
      "monthly_expenses": {"min": 10000, "max": 20000}
    }
  },
  "needs_clarification": false
}`}

	assistant := NewAssistant(gen, applicant.DefaultSchema(), nil, 0)

	result, err := assistant.Extract(context.Background(), applicant.NewRecord(), nil, "750")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := result.Updates["financial"]["monthly_expenses"]; ok {
		t.Fatal("expected the nested value to be dropped")
	}
	if got := result.Updates["financial"]["credit_score"]; got != float64(750) {
		t.Fatalf("unexpected update: %v", got)
	}
}

func TestExtractSendsOnlyRecentHistory(t *testing.T) {
	gen := &stubGenerator{response: `{"data_updates": {}, "needs_clarification": false}`}

	assistant := NewAssistant(gen, applicant.DefaultSchema(), nil, 0)

	history := make([]ai.Turn, 0, historyTail+3)
	for i := 0; i < historyTail+3; i++ {
		history = append(history, ai.Turn{
			Field:     "financial.credit_score",
			Response:  strings.Repeat("x", i+1),
			Timestamp: time.Date(2025, 3, 1, 12, i, 0, 0, time.UTC),
		})
	}

	if _, err := assistant.Extract(context.Background(), applicant.NewRecord(), history, "750"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The earliest turns fall outside the tail.
	if strings.Contains(gen.lastPrompt, `"`+strings.Repeat("x", 1)+`"`) {
		t.Fatal("expected the oldest turn to be trimmed from the prompt")
	}
	if !strings.Contains(gen.lastPrompt, strings.Repeat("x", historyTail+3)) {
		t.Fatal("expected the newest turn to be present in the prompt")
	}
}

func TestNextPromptCompleteRecordShortCircuits(t *testing.T) {
	gen := &stubGenerator{response: "should never be used"}
	schema := applicant.NewSchema(applicant.MustPath("financial.credit_score"))

	record := applicant.NewRecord()
	record.Set(applicant.MustPath("financial.credit_score"), 750)

	assistant := NewAssistant(gen, schema, nil, 0)

	prompt, err := assistant.NextPrompt(context.Background(), record, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt != completeMessage {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
	if gen.calls != 0 {
		t.Fatalf("expected no model call, got %d", gen.calls)
	}
}

func TestNextPromptNamesMissingFields(t *testing.T) {
	gen := &stubGenerator{response: "  What is your current credit score?\n"}
	schema := applicant.NewSchema(
		applicant.MustPath("financial.credit_score"),
		applicant.MustPath("loan_request.loan_amount"),
	)

	assistant := NewAssistant(gen, schema, nil, 0)

	prompt, err := assistant.NextPrompt(context.Background(), applicant.NewRecord(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if prompt != "What is your current credit score?" {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
	if !strings.Contains(gen.lastPrompt, "credit score, loan amount") {
		t.Fatalf("expected the missing fields in the prompt, got %q", gen.lastPrompt)
	}
}

func TestNarrateTrimsResponse(t *testing.T) {
	gen := &stubGenerator{response: "\nYour application looks strong overall.\n"}

	assistant := NewAssistant(gen, applicant.DefaultSchema(), nil, 0)

	narrative, err := assistant.Narrate(context.Background(), applicant.NewRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if narrative != "Your application looks strong overall." {
		t.Fatalf("unexpected narrative: %q", narrative)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"inline backticks", "`{\"a\": 1}`", `{"a": 1}`},
		{"prose wrapped", "Here you go: {\"a\": 1} as requested.", `{"a": 1}`},
		{"leading whitespace", "  \n{\"a\": 1}\n", `{"a": 1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractJSON(tc.in); got != tc.want {
				t.Fatalf("extractJSON(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
