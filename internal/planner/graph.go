package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/taskmux/taskmux/internal/config"
)

// CycleError reports a dependency cycle. Cycle holds the member services
// in the order traversal entered them.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// graph holds the service dependency edges in index-based adjacency form.
// Indices follow the sorted order of service names, so traversal over the
// same configuration is deterministic.
type graph struct {
	names []string
	index map[string]int
	deps  [][]int
}

func newGraph(services map[string]config.ServiceSpec) *graph {
	g := &graph{
		names: make([]string, 0, len(services)),
		index: make(map[string]int, len(services)),
	}
	for name := range services {
		g.names = append(g.names, name)
	}
	sort.Strings(g.names)
	for i, name := range g.names {
		g.index[name] = i
	}

	g.deps = make([][]int, len(g.names))
	for i, name := range g.names {
		for _, dep := range services[name].DependsOn {
			// Dangling edges are rejected at load time, so every name
			// resolves here.
			if j, ok := g.index[dep]; ok {
				g.deps[i] = append(g.deps[i], j)
			}
		}
	}
	return g
}

// walk runs a depth-first traversal from start, calling emit for each node
// after all of its dependencies (post-order). Nodes shared between branches
// are emitted once. Re-entering a node that is still on the traversal stack
// is a cycle.
func (g *graph) walk(start int, emit func(int)) error {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make([]int, len(g.names))
	var path []string

	var visit func(int) error
	visit = func(n int) error {
		switch state[n] {
		case inProgress:
			return &CycleError{Cycle: cycleMembers(path, g.names[n])}
		case done:
			return nil
		}
		state[n] = inProgress
		path = append(path, g.names[n])
		for _, dep := range g.deps[n] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[n] = done
		emit(n)
		return nil
	}
	return visit(start)
}

// cycleMembers trims the traversal path down to the cycle itself: every
// node from the first occurrence of repeated onwards.
func cycleMembers(path []string, repeated string) []string {
	for i, name := range path {
		if name == repeated {
			return append([]string(nil), path[i:]...)
		}
	}
	return []string{repeated}
}
