package flow

import (
	"context"
	"testing"
)

func noopStage() Stage {
	return StageFunc(func(_ context.Context, _ *ThreadState) (StageResult, error) {
		return Proceed(Update{}), nil
	})
}

func TestGraphValidate(t *testing.T) {
	g := NewGraph("a").
		AddStage("a", noopStage()).
		AddRoute("a", func(*ThreadState) string { return Terminal })
	if err := g.Validate(); err != nil {
		t.Fatalf("valid graph rejected: %v", err)
	}
}

func TestGraphValidateMissingEntry(t *testing.T) {
	g := NewGraph("a").AddStage("b", noopStage())
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for unregistered entry")
	}
	if err := NewGraph("").Validate(); err == nil {
		t.Fatal("expected error for empty entry")
	}
}

func TestGraphValidateRouteForUnknownStage(t *testing.T) {
	g := NewGraph("a").
		AddStage("a", noopStage()).
		AddRoute("ghost", func(*ThreadState) string { return Terminal })
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for route on unknown stage")
	}
}

func TestGraphValidateNilStage(t *testing.T) {
	g := NewGraph("a").AddStage("a", nil)
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for nil stage")
	}
}
