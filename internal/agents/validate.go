package agents

import (
	"context"
	"fmt"

	"github.com/danshapiro/meridian/internal/flow"
	"github.com/danshapiro/meridian/internal/llm"
)

// runValidate reviews the findings against the query, records the verdict,
// appends the critique to history so a retried gather sees it, and counts the
// attempt.
func (p *Pipeline) runValidate(ctx context.Context, st *flow.ThreadState) (flow.StageResult, error) {
	findings := st.Findings
	if findings == "" {
		findings = "<<missing>>"
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: validatePrompt}}
	messages = append(messages, historyMessages(st)...)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("User query: %s\n\nResearch findings:\n%s", st.Query, findings),
	})

	resp, err := p.client.Complete(ctx, llm.Request{
		Model:       p.fastModel,
		Messages:    messages,
		Temperature: ptr(validateTemperature),
		ResponseFormat: &llm.ResponseFormat{
			Type:       "json",
			JSONSchema: schemaMap(validationAssessmentSchema),
		},
	})
	if err != nil {
		return flow.StageResult{}, fmt.Errorf("validation: %w", err)
	}
	var assessment validationAssessment
	if err := decodeStructured(validationSchema, resp.Text, &assessment); err != nil {
		return flow.StageResult{}, fmt.Errorf("validation: %w", err)
	}
	verdict, err := flow.ParseValidationResult(assessment.ValidationResult)
	if err != nil {
		return flow.StageResult{}, fmt.Errorf("validation: %w", err)
	}

	critique := fmt.Sprintf("Critique: %s\n\nSuggestions: %s", assessment.Critique, assessment.Suggestions)
	update := flow.Update{
		flow.FieldValidation: verdict,
		flow.FieldAttempts:   st.Attempts + 1,
	}.AppendMessage(flow.AssistantMessage(critique))
	return flow.Proceed(update), nil
}
