package flow

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("load missing: %v", err)
	}

	st := NewThreadState("t1")
	st.Query = "q"
	st.Messages = []Message{UserMessage("q")}
	if err := store.Save(ctx, "t1", st); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the original must not affect the stored copy.
	st.Query = "mutated"
	st.Messages[0].Content = "mutated"

	got, err := store.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Query != "q" || got.Messages[0].Content != "q" {
		t.Fatalf("store shared memory with caller: %+v", got)
	}
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, id := range []string{"research-b", "research-a", "other-1"} {
		if err := store.Save(ctx, id, NewThreadState(id)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if want := []string{"other-1", "research-a", "research-b"}; !reflect.DeepEqual(all, want) {
		t.Fatalf("list = %v, want %v", all, want)
	}

	matched, err := store.List(ctx, "research-*")
	if err != nil {
		t.Fatalf("list glob: %v", err)
	}
	if want := []string{"research-a", "research-b"}; !reflect.DeepEqual(matched, want) {
		t.Fatalf("glob list = %v, want %v", matched, want)
	}
}

func TestMatchThreadID(t *testing.T) {
	cases := []struct {
		pattern string
		id      string
		want    bool
	}{
		{"", "anything", true},
		{"*", "anything", true},
		{"thread-*", "thread-01", true},
		{"thread-*", "other", false},
		{"t?", "t1", true},
	}
	for _, c := range cases {
		got, err := MatchThreadID(c.pattern, c.id)
		if err != nil {
			t.Fatalf("match(%q, %q): %v", c.pattern, c.id, err)
		}
		if got != c.want {
			t.Fatalf("match(%q, %q) = %v, want %v", c.pattern, c.id, got, c.want)
		}
	}
}
