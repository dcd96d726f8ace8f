package flow

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// CheckpointStore persists the latest ThreadState per thread id. Save must be
// atomic: a reader never observes a partially written state. Implementations
// must be safe for concurrent access across distinct thread ids; per-thread
// write ordering is the executor's responsibility.
type CheckpointStore interface {
	Load(ctx context.Context, threadID string) (*ThreadState, error)
	Save(ctx context.Context, threadID string, state *ThreadState) error
	// List returns thread ids matching the glob pattern ("" or "*" for all),
	// sorted ascending.
	List(ctx context.Context, pattern string) ([]string, error)
	Close() error
}

// MemoryStore keeps checkpoints in process memory. States are deep-copied on
// both save and load so callers never share mutable structures with the
// store.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*ThreadState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: map[string]*ThreadState{}}
}

func (m *MemoryStore) Load(ctx context.Context, threadID string) (*ThreadState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.threads[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}
	return st.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, threadID string, state *ThreadState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = state.Clone()
	return nil
}

func (m *MemoryStore) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.threads))
	for id := range m.threads {
		ok, err := MatchThreadID(pattern, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// MatchThreadID reports whether a thread id matches a glob pattern. All
// stores use the same pattern semantics so List behaves identically across
// backends.
func MatchThreadID(pattern, threadID string) (bool, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == "*" {
		return true, nil
	}
	return doublestar.Match(pattern, threadID)
}
