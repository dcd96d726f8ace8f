package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/danshapiro/meridian/internal/flow"
	"github.com/danshapiro/meridian/internal/llm"
)

// runGather performs the research step: a grounded search call to collect
// findings, then a structured assessment call to score how well they answer
// the query.
func (p *Pipeline) runGather(ctx context.Context, st *flow.ThreadState) (flow.StageResult, error) {
	var parts []string
	if subject := strings.TrimSpace(st.Subject); subject != "" {
		parts = append(parts, "Company of interest: "+subject+".")
	}
	if strings.TrimSpace(st.Query) != "" {
		parts = append(parts, "User query: "+st.Query)
	}
	parts = append(parts, gatherPrompt)

	research, err := p.client.Complete(ctx, llm.Request{
		Model:     p.searchModel,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: strings.Join(parts, "\n\n")}},
		WebSearch: true,
	})
	if err != nil {
		return flow.StageResult{}, fmt.Errorf("research: %w", err)
	}
	findings := strings.TrimSpace(research.Text)
	if findings == "" {
		return flow.StageResult{}, fmt.Errorf("research: %w", llm.ErrEmptyResponse)
	}

	assessmentResp, err := p.client.Complete(ctx, llm.Request{
		Model: p.fastModel,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: confidencePrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("User query: %s\n\nResearch findings:\n%s", st.Query, findings)},
		},
		Temperature: ptr(confidenceTemperature),
		ResponseFormat: &llm.ResponseFormat{
			Type:       "json",
			JSONSchema: schemaMap(confidenceAssessmentSchema),
		},
	})
	if err != nil {
		return flow.StageResult{}, fmt.Errorf("confidence assessment: %w", err)
	}
	var assessment confidenceAssessment
	if err := decodeStructured(confidenceSchema, assessmentResp.Text, &assessment); err != nil {
		return flow.StageResult{}, fmt.Errorf("confidence assessment: %w", err)
	}

	update := flow.Update{
		flow.FieldFindings:   findings,
		flow.FieldConfidence: assessment.ConfidenceScore,
	}.AppendMessage(flow.AssistantMessage(findings))
	return flow.Proceed(update), nil
}
