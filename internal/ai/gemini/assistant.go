// Package gemini implements the extraction and advisory collaborators on
// top of the Google GenAI API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/veslav/loan-counselor/internal/ai"
	"github.com/veslav/loan-counselor/internal/applicant"
	"github.com/veslav/loan-counselor/internal/utils"
)

//go:embed prompts/system.md
var systemPrompt string

//go:embed prompts/extract.md
var extractTemplate string

//go:embed prompts/question.md
var questionTemplate string

//go:embed prompts/narrative.md
var narrativeTemplate string

const (
	defaultMaxLogLength = 200

	// historyTail bounds how many recent turns are sent with each prompt.
	historyTail = 6

	// fallbackClarification is used when the model's reply cannot be parsed.
	fallbackClarification = "I'm sorry, I had trouble understanding your last response clearly. Could you please rephrase?"

	completeMessage = "All information is complete. I can now proceed with your loan assessment."
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Assistant implements the ai.Extractor and ai.Advisor contracts on top of a
// Gemini content generator.
type Assistant struct {
	generator contentGenerator
	schema    *applicant.Schema
	logger    *zap.Logger
	maxLogLen int
}

func NewAssistant(generator contentGenerator, schema *applicant.Schema, logger *zap.Logger, maxLogLength int) *Assistant {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Assistant{
		generator: generator,
		schema:    schema,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Extract asks the model to turn the raw utterance into record updates. A
// response that cannot be parsed is reported as a clarification request so
// the interview re-prompts instead of failing.
func (a *Assistant) Extract(ctx context.Context, record *applicant.Record, history []ai.Turn, utterance string) (*ai.ExtractionResult, error) {
	prompt, err := a.render(extractTemplate, record, history, map[string]string{
		"UTTERANCE": strings.TrimSpace(utterance),
	})
	if err != nil {
		return nil, err
	}

	raw, err := a.generate(ctx, "extract", prompt)
	if err != nil {
		return nil, fmt.Errorf("extract field updates: %w", err)
	}

	result, err := parseExtraction(raw)
	if err != nil {
		a.logger.Debug("unparseable extraction response", zap.Error(err))
		return &ai.ExtractionResult{
			NeedsClarification:  true,
			ClarificationPrompt: fallbackClarification,
			Raw:                 raw,
		}, nil
	}

	result.Raw = raw
	return result, nil
}

// NextPrompt suggests the next question to surface to the user. The schema
// decides what is actually missing; the model only provides the wording.
func (a *Assistant) NextPrompt(ctx context.Context, record *applicant.Record, history []ai.Turn) (string, error) {
	missing := a.schema.Missing(record)
	if len(missing) == 0 {
		return completeMessage, nil
	}

	names := make([]string, 0, len(missing))
	for _, p := range missing {
		names = append(names, p.FieldName())
	}

	prompt, err := a.render(questionTemplate, record, history, map[string]string{
		"MISSING_FIELDS": strings.Join(names, ", "),
	})
	if err != nil {
		return "", err
	}

	raw, err := a.generate(ctx, "next question", prompt)
	if err != nil {
		return "", fmt.Errorf("suggest next question: %w", err)
	}

	return strings.TrimSpace(raw), nil
}

// Narrate produces the conversational eligibility assessment attached to the
// final report. Advisory only.
func (a *Assistant) Narrate(ctx context.Context, record *applicant.Record) (string, error) {
	prompt, err := a.render(narrativeTemplate, record, nil, nil)
	if err != nil {
		return "", err
	}

	raw, err := a.generate(ctx, "narrative", prompt)
	if err != nil {
		return "", fmt.Errorf("generate narrative: %w", err)
	}

	return strings.TrimSpace(raw), nil
}

func (a *Assistant) generate(ctx context.Context, step, prompt string) (string, error) {
	a.logger.Debug("gemini request",
		zap.String("step", step),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, systemPrompt, prompt)
	if err != nil {
		return "", err
	}

	a.logger.Debug("gemini response",
		zap.String("step", step),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	return raw, nil
}

func (a *Assistant) render(template string, record *applicant.Record, history []ai.Turn, extra map[string]string) (string, error) {
	recordJSON, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal applicant record: %w", err)
	}

	if len(history) > historyTail {
		history = history[len(history)-historyTail:]
	}
	historyJSON, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal conversation history: %w", err)
	}

	out := strings.ReplaceAll(template, "{{APPLICANT_JSON}}", string(recordJSON))
	out = strings.ReplaceAll(out, "{{HISTORY_JSON}}", string(historyJSON))
	for key, value := range extra {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}

	return out, nil
}

type extractionPayload struct {
	DataUpdates           map[string]map[string]any `json:"data_updates"`
	NeedsClarification    bool                      `json:"needs_clarification"`
	ClarificationQuestion string                    `json:"clarification_question"`
}

func parseExtraction(raw string) (*ai.ExtractionResult, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}

	// Models occasionally emit booleans as strings; decode weakly.
	var payload extractionPayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &payload,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode extraction payload: %w", err)
	}

	updates := make(applicant.Updates)
	for categoryName, fields := range payload.DataUpdates {
		for field, value := range fields {
			if !scalar(value) {
				continue
			}
			if updates[categoryName] == nil {
				updates[categoryName] = make(map[string]any)
			}
			updates[categoryName][field] = value
		}
	}

	prompt := strings.TrimSpace(payload.ClarificationQuestion)
	if payload.NeedsClarification && prompt == "" {
		prompt = fallbackClarification
	}

	return &ai.ExtractionResult{
		Updates:             updates,
		NeedsClarification:  payload.NeedsClarification,
		ClarificationPrompt: prompt,
	}, nil
}

func scalar(value any) bool {
	switch value.(type) {
	case string, float64, bool, int, int64, json.Number:
		return true
	default:
		return false
	}
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Some responses wrap the object in prose despite the instructions.
	if !strings.HasPrefix(raw, "{") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start != -1 && end > start {
			raw = raw[start : end+1]
		}
	}

	return strings.TrimSpace(raw)
}
