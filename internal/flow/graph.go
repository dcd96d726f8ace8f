package flow

import (
	"fmt"
	"strings"
)

// Terminal is the route-function return value that ends a turn.
const Terminal = "__end__"

// RouteFunc decides the next stage from the merged state. It must be pure:
// no side effects, evaluated once per completed stage step.
type RouteFunc func(state *ThreadState) string

// Graph is the directed stage topology: named stages plus a routing function
// per stage. The entry stage doubles as the turn-start stage; the executor
// resets per-turn fields before merging its output.
type Graph struct {
	entry  string
	stages map[string]Stage
	routes map[string]RouteFunc
}

func NewGraph(entry string) *Graph {
	return &Graph{
		entry:  strings.TrimSpace(entry),
		stages: map[string]Stage{},
		routes: map[string]RouteFunc{},
	}
}

func (g *Graph) Entry() string {
	return g.entry
}

func (g *Graph) AddStage(name string, s Stage) *Graph {
	g.stages[strings.TrimSpace(name)] = s
	return g
}

// AddRoute registers the routing function evaluated after the named stage
// proceeds. Stages that always suspend need no route.
func (g *Graph) AddRoute(name string, r RouteFunc) *Graph {
	g.routes[strings.TrimSpace(name)] = r
	return g
}

func (g *Graph) stage(name string) (Stage, bool) {
	s, ok := g.stages[name]
	return s, ok
}

func (g *Graph) route(name string) (RouteFunc, bool) {
	r, ok := g.routes[name]
	return r, ok
}

func (g *Graph) Validate() error {
	if g.entry == "" {
		return fmt.Errorf("graph has no entry stage")
	}
	if _, ok := g.stages[g.entry]; !ok {
		return fmt.Errorf("entry stage %q is not registered", g.entry)
	}
	for name, s := range g.stages {
		if name == "" {
			return fmt.Errorf("stage with empty name")
		}
		if s == nil {
			return fmt.Errorf("stage %q is nil", name)
		}
	}
	for name, r := range g.routes {
		if _, ok := g.stages[name]; !ok {
			return fmt.Errorf("route registered for unknown stage %q", name)
		}
		if r == nil {
			return fmt.Errorf("route for stage %q is nil", name)
		}
	}
	return nil
}
