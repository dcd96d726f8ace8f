package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/danshapiro/meridian/internal/flow"
	"github.com/danshapiro/meridian/internal/llm"
)

// runCompose turns the findings and the conversation into the user-facing
// answer for this turn.
func (p *Pipeline) runCompose(ctx context.Context, st *flow.ThreadState) (flow.StageResult, error) {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: composePrompt}}
	messages = append(messages, historyMessages(st)...)
	messages = append(messages, llm.Message{
		Role: llm.RoleUser,
		Content: fmt.Sprintf(
			"Latest user query: %s\n\nResearch findings to base your answer on:\n%s",
			st.Query, st.Findings,
		),
	})

	resp, err := p.client.Complete(ctx, llm.Request{
		Model:       p.fastModel,
		Messages:    messages,
		Temperature: ptr(composeTemperature),
	})
	if err != nil {
		return flow.StageResult{}, fmt.Errorf("synthesis: %w", err)
	}
	final := strings.TrimSpace(resp.Text)
	if final == "" {
		return flow.StageResult{}, fmt.Errorf("synthesis: %w", llm.ErrEmptyResponse)
	}

	update := flow.Update{
		flow.FieldFinalResponse: final,
	}.AppendMessage(flow.AssistantMessage(final))
	return flow.Proceed(update), nil
}
