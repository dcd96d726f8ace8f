// Package agents implements the company-research pipeline stages and wires
// them into an executable stage graph.
package agents

import (
	"fmt"

	"github.com/danshapiro/meridian/internal/flow"
	"github.com/danshapiro/meridian/internal/llm"
)

// Stage names as they appear in graphs, visited traces, and checkpoints.
const (
	StageResolve    = "resolve"
	StageAwaitInput = "await-input"
	StageGather     = "gather"
	StageValidate   = "validate"
	StageCompose    = "compose"
)

const (
	// ConfidenceThreshold gates the path out of gathering: scores strictly
	// below it (or absent) go to validation.
	ConfidenceThreshold = 6.0

	// MaxAttempts bounds the gather/validate loop per turn.
	MaxAttempts = 3
)

// Per-stage sampling temperatures. Assessment calls run cold; composition
// gets some room.
const (
	resolveTemperature    = 0.0
	confidenceTemperature = 0.0
	validateTemperature   = 0.1
	composeTemperature    = 0.3
)

const (
	defaultFastModel   = "gemini-2.0-flash"
	defaultSearchModel = "gemini-2.5-flash"
)

// Options configures a Pipeline. Client is required; model ids default to the
// standard fast/search pair when empty.
type Options struct {
	Client *llm.Client

	// FastModel serves the structured assessment calls (resolve, confidence,
	// validate) and composition.
	FastModel string

	// SearchModel serves the grounded research call.
	SearchModel string
}

// Pipeline holds the stage implementations. Stages are stateless between
// calls; all durable data lives in thread state.
type Pipeline struct {
	client      *llm.Client
	fastModel   string
	searchModel string
}

func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	p := &Pipeline{
		client:      opts.Client,
		fastModel:   opts.FastModel,
		searchModel: opts.SearchModel,
	}
	if p.fastModel == "" {
		p.fastModel = defaultFastModel
	}
	if p.searchModel == "" {
		p.searchModel = defaultSearchModel
	}
	return p, nil
}

// historyMessages converts the thread history for a prompt, keeping order.
func historyMessages(st *flow.ThreadState) []llm.Message {
	out := make([]llm.Message, 0, len(st.Messages))
	for _, m := range st.Messages {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
