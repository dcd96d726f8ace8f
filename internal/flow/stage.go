package flow

import "context"

// Stage is a pluggable unit: given the full current state it produces either
// a partial update to merge or a suspension handed back to the caller. A
// returned error is a terminal stage failure for the invocation.
type Stage interface {
	Run(ctx context.Context, state *ThreadState) (StageResult, error)
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc func(ctx context.Context, state *ThreadState) (StageResult, error)

func (f StageFunc) Run(ctx context.Context, state *ThreadState) (StageResult, error) {
	return f(ctx, state)
}

// Suspension pauses the thread. Payload surfaces to the caller unmodified;
// ResumeTarget names the stage control re-enters when Resume is called.
type Suspension struct {
	Payload      any
	ResumeTarget string
}

// StageResult is the tagged outcome of one stage execution: exactly one of
// Update (proceed) or Suspension is meaningful. Suspension is an ordinary
// return value the executor inspects, not hidden control flow.
type StageResult struct {
	Update     Update
	Suspension *Suspension
}

func Proceed(u Update) StageResult {
	return StageResult{Update: u}
}

func Suspend(payload any, resumeTarget string) StageResult {
	return StageResult{Suspension: &Suspension{Payload: payload, ResumeTarget: resumeTarget}}
}
