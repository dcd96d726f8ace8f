package agents

import (
	"github.com/danshapiro/meridian/internal/flow"
)

// BuildGraph wires the pipeline stages into the research topology:
//
//	resolve -> await-input (needs clarification, suspends, resumes at resolve)
//	resolve -> gather -> validate -> gather ... (bounded retry loop)
//	gather | validate -> compose -> terminal
func (p *Pipeline) BuildGraph() *flow.Graph {
	return flow.NewGraph(StageResolve).
		AddStage(StageResolve, flow.StageFunc(p.runResolve)).
		AddStage(StageAwaitInput, flow.StageFunc(p.runAwaitInput)).
		AddStage(StageGather, flow.StageFunc(p.runGather)).
		AddStage(StageValidate, flow.StageFunc(p.runValidate)).
		AddStage(StageCompose, flow.StageFunc(p.runCompose)).
		AddRoute(StageResolve, routeAfterResolve).
		AddRoute(StageGather, routeAfterGather).
		AddRoute(StageValidate, routeAfterValidate).
		AddRoute(StageCompose, routeTerminal)
}

func routeAfterResolve(st *flow.ThreadState) string {
	if st.ClarityStatus == flow.ClarityNeedsClarification {
		return StageAwaitInput
	}
	return StageGather
}

func routeAfterGather(st *flow.ThreadState) string {
	if st.Confidence == nil || *st.Confidence < ConfidenceThreshold {
		return StageValidate
	}
	return StageCompose
}

func routeAfterValidate(st *flow.ThreadState) string {
	if st.Validation == flow.ValidationInsufficient && st.Attempts < MaxAttempts {
		return StageGather
	}
	return StageCompose
}

func routeTerminal(*flow.ThreadState) string {
	return flow.Terminal
}
