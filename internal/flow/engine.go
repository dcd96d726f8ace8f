package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Options configures an Engine. Zero values get defaults: an in-memory
// checkpoint store and no progress sink.
type Options struct {
	Store    CheckpointStore
	Progress ProgressFunc
}

func (o *Options) applyDefaults() {
	if o.Store == nil {
		o.Store = NewMemoryStore()
	}
}

// Engine executes the stage graph one thread at a time. Within a thread,
// stage execution, merge, routing, and persistence form one atomic step;
// distinct threads run independently.
type Engine struct {
	graph *Graph
	store CheckpointStore

	progress ProgressFunc

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

func NewEngine(g *Graph, opts Options) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	return &Engine{
		graph:    g,
		store:    opts.Store,
		progress: opts.Progress,
		threads:  map[string]*sync.Mutex{},
	}, nil
}

func (e *Engine) Store() CheckpointStore {
	return e.store
}

// Interrupt is a surfaced suspension: the stage that paused and its payload.
type Interrupt struct {
	Stage   string `json:"stage"`
	Payload any    `json:"payload"`
}

// Result is the outcome of one Invoke or Resume: either a settled final
// state (Interrupt nil) or a suspension awaiting Resume.
type Result struct {
	ThreadID  string
	State     *ThreadState
	Interrupt *Interrupt
}

func (r *Result) Suspended() bool {
	return r != nil && r.Interrupt != nil
}

// Invoke starts a new turn on a settled (or nonexistent) thread: it merges
// the input delta and runs the graph from the entry stage until termination
// or suspension.
func (e *Engine) Invoke(ctx context.Context, threadID string, delta Update) (*Result, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}
	mu := e.threadMu(threadID)
	mu.Lock()
	defer mu.Unlock()

	st, err := e.store.Load(ctx, threadID)
	if errors.Is(err, ErrThreadNotFound) {
		st = NewThreadState(threadID)
	} else if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if st.Suspended() {
		return nil, fmt.Errorf("invoke thread %s: %w", threadID, ErrThreadSuspended)
	}
	if err := Apply(st, delta); err != nil {
		return nil, fmt.Errorf("merge input delta: %w", err)
	}

	turnID := ulid.Make().String()
	e.emit(map[string]any{
		"event":     "turn_started",
		"thread_id": threadID,
		"turn_id":   turnID,
		"entry":     e.graph.Entry(),
	})
	return e.runLoop(ctx, st, e.graph.Entry(), turnID)
}

// Resume continues a suspended thread. The resume value is folded into state
// as a new user message and the active query, the suspension marker is
// cleared, and control re-enters the suspension's declared target stage.
func (e *Engine) Resume(ctx context.Context, threadID string, resumeValue any) (*Result, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}
	mu := e.threadMu(threadID)
	mu.Lock()
	defer mu.Unlock()

	st, err := e.store.Load(ctx, threadID)
	if errors.Is(err, ErrThreadNotFound) {
		return nil, fmt.Errorf("resume thread %s: %w", threadID, ErrThreadNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if !st.Suspended() {
		return nil, fmt.Errorf("resume thread %s: %w", threadID, ErrThreadNotSuspended)
	}

	pending := st.Pending
	text := strings.TrimSpace(fmt.Sprint(resumeValue))
	if err := Apply(st, UserTurn(text)); err != nil {
		return nil, fmt.Errorf("merge resume delta: %w", err)
	}
	// The suspended stage completes now, when its continuation is consumed.
	st.Visited = append(st.Visited, pending.Stage)
	st.Pending = nil

	turnID := ulid.Make().String()
	e.emit(map[string]any{
		"event":     "thread_resumed",
		"thread_id": threadID,
		"turn_id":   turnID,
		"from":      pending.Stage,
		"target":    pending.TargetStage,
	})
	return e.runLoop(ctx, st, pending.TargetStage, turnID)
}

func (e *Engine) runLoop(ctx context.Context, st *ThreadState, current string, turnID string) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stage, ok := e.graph.stage(current)
		if !ok {
			return nil, fmt.Errorf("missing stage: %s", current)
		}

		e.emit(map[string]any{
			"event":     "stage_started",
			"thread_id": st.ThreadID,
			"turn_id":   turnID,
			"stage":     current,
		})
		res, err := stage.Run(ctx, st.Clone())
		if err != nil {
			// Terminal for this invocation; the last persisted checkpoint
			// remains the durable state.
			e.emit(map[string]any{
				"event":     "stage_failed",
				"thread_id": st.ThreadID,
				"turn_id":   turnID,
				"stage":     current,
				"error":     err.Error(),
			})
			return nil, &StageError{Stage: current, Err: err}
		}

		if res.Suspension != nil {
			target := strings.TrimSpace(res.Suspension.ResumeTarget)
			if _, ok := e.graph.stage(target); !ok {
				return nil, fmt.Errorf("stage %q declared unknown resume target %q", current, target)
			}
			st.Pending = &PendingResume{
				Stage:       current,
				TargetStage: target,
				Payload:     res.Suspension.Payload,
			}
			if err := e.save(ctx, st); err != nil {
				return nil, err
			}
			e.emit(map[string]any{
				"event":     "thread_suspended",
				"thread_id": st.ThreadID,
				"turn_id":   turnID,
				"stage":     current,
				"target":    target,
			})
			return &Result{
				ThreadID:  st.ThreadID,
				State:     st,
				Interrupt: &Interrupt{Stage: current, Payload: res.Suspension.Payload},
			}, nil
		}

		if current == e.graph.Entry() {
			// New turn: clear the downstream pipeline before the entry
			// stage's own output lands.
			ResetTurn(st)
		}
		if err := Apply(st, res.Update); err != nil {
			return nil, fmt.Errorf("merge update from stage %s: %w", current, err)
		}
		st.Visited = append(st.Visited, current)
		if err := e.save(ctx, st); err != nil {
			return nil, err
		}

		route, ok := e.graph.route(current)
		if !ok {
			return nil, fmt.Errorf("no route registered for stage %s", current)
		}
		next := route(st)
		e.emit(map[string]any{
			"event":     "stage_completed",
			"thread_id": st.ThreadID,
			"turn_id":   turnID,
			"stage":     current,
			"next":      next,
		})
		if next == Terminal {
			e.emit(map[string]any{
				"event":     "turn_completed",
				"thread_id": st.ThreadID,
				"turn_id":   turnID,
				"stage":     current,
			})
			return &Result{ThreadID: st.ThreadID, State: st}, nil
		}
		current = next
	}
}

func (e *Engine) save(ctx context.Context, st *ThreadState) error {
	st.UpdatedAt = time.Now().UTC()
	if err := e.store.Save(ctx, st.ThreadID, st); err != nil {
		return fmt.Errorf("save thread %s: %w", st.ThreadID, err)
	}
	e.emit(map[string]any{
		"event":     "checkpoint_saved",
		"thread_id": st.ThreadID,
		"suspended": st.Suspended(),
	})
	return nil
}

// threadMu returns the serialization lock for a thread. Locks are retained
// for the engine's lifetime, one per thread id ever touched; an embedding
// service that churns through unbounded thread ids should recycle the engine
// or scope one engine per tenant.
func (e *Engine) threadMu(threadID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.threads[threadID]
	if !ok {
		mu = &sync.Mutex{}
		e.threads[threadID] = mu
	}
	return mu
}

func (e *Engine) emit(event map[string]any) {
	if e.progress != nil {
		e.progress(event)
	}
}
