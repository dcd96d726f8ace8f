package agents

import (
	"context"
	"strings"

	"github.com/danshapiro/meridian/internal/flow"
)

// runAwaitInput is the human-in-the-loop pause. It always suspends the thread,
// surfacing the resolver's clarification question (or a default) and declaring
// that the clarified reply re-enters at the resolver for re-assessment.
func (p *Pipeline) runAwaitInput(_ context.Context, st *flow.ThreadState) (flow.StageResult, error) {
	question := strings.TrimSpace(st.ClarificationQuestion)
	if question == "" {
		question = defaultClarificationQuestion
	}
	return flow.Suspend(question, StageResolve), nil
}
