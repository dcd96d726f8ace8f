package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedAdapter replays canned responses in order and records every request
// it sees. Tests use it in place of a live provider.
type ScriptedAdapter struct {
	ProviderName string

	mu        sync.Mutex
	responses []ScriptedResponse
	requests  []Request
}

type ScriptedResponse struct {
	Text string
	Err  error
}

func NewScriptedAdapter(name string, responses ...ScriptedResponse) *ScriptedAdapter {
	return &ScriptedAdapter{ProviderName: name, responses: responses}
}

func (s *ScriptedAdapter) Enqueue(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, ScriptedResponse{Text: text})
}

func (s *ScriptedAdapter) EnqueueError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, ScriptedResponse{Err: err})
}

func (s *ScriptedAdapter) Name() string {
	if s.ProviderName == "" {
		return "scripted"
	}
	return s.ProviderName
}

func (s *ScriptedAdapter) Complete(_ context.Context, req Request) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return Response{}, fmt.Errorf("scripted adapter: no response queued for request %d", len(s.requests))
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	if next.Err != nil {
		return Response{}, next.Err
	}
	return Response{Provider: s.Name(), Model: req.Model, Text: next.Text}, nil
}

// Requests returns a copy of every request seen so far, in order.
func (s *ScriptedAdapter) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
