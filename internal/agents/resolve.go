package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/danshapiro/meridian/internal/flow"
	"github.com/danshapiro/meridian/internal/llm"
)

// runResolve assesses whether the latest query identifies a researchable
// company, using the whole conversation plus the sticky subject from earlier
// turns to resolve pronouns and generic references.
func (p *Pipeline) runResolve(ctx context.Context, st *flow.ThreadState) (flow.StageResult, error) {
	system := resolvePrompt
	if subject := strings.TrimSpace(st.LastResolvedSubject); subject != "" {
		system += "\n\n" + fmt.Sprintf(resolveLastSubjectContext, subject)
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	messages = append(messages, historyMessages(st)...)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: "Latest user query: " + st.Query,
	})

	resp, err := p.client.Complete(ctx, llm.Request{
		Model:       p.fastModel,
		Messages:    messages,
		Temperature: ptr(resolveTemperature),
		ResponseFormat: &llm.ResponseFormat{
			Type:       "json",
			JSONSchema: schemaMap(clarityResultSchema),
		},
	})
	if err != nil {
		return flow.StageResult{}, fmt.Errorf("clarity assessment: %w", err)
	}

	var result clarityResult
	if err := decodeStructured(claritySchema, resp.Text, &result); err != nil {
		return flow.StageResult{}, fmt.Errorf("clarity assessment: %w", err)
	}
	status, err := flow.ParseClarityStatus(result.ClarityStatus)
	if err != nil {
		return flow.StageResult{}, fmt.Errorf("clarity assessment: %w", err)
	}

	update := flow.Update{
		flow.FieldQuery:                 st.Query,
		flow.FieldSubject:               strings.TrimSpace(result.CompanyName),
		flow.FieldClarityStatus:         status,
		flow.FieldClarificationQuestion: strings.TrimSpace(result.ClarificationQuestion),
	}
	if status == flow.ClarityClear && strings.TrimSpace(result.CompanyName) != "" {
		// Sticky subject: survives turn resets so later turns can say "they".
		update[flow.FieldLastResolvedSubject] = strings.TrimSpace(result.CompanyName)
	}
	return flow.Proceed(update), nil
}
