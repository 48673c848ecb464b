package planner

import (
	"fmt"

	"github.com/taskmux/taskmux/internal/config"
)

// Step is one entry of a rebuild plan.
type Step struct {
	Service       string `json:"service" yaml:"service"`
	Target        bool   `json:"target" yaml:"target"`
	ForceRecreate bool   `json:"force_recreate" yaml:"force_recreate"`
}

// Plan is the ordered list of services to rebuild so the target ends up
// current. Dependencies appear before their dependents, each service at
// most once.
type Plan struct {
	Target string `json:"target" yaml:"target"`
	Steps  []Step `json:"steps" yaml:"steps"`
}

// Services returns the planned service names in step order.
func (p *Plan) Services() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Service
	}
	return names
}

// Options adjust how a plan is computed.
type Options struct {
	// SkipDeps plans only the target itself, with no traversal.
	SkipDeps bool

	// Skip names services excluded from the plan. A skipped service is
	// still traversed, so its own dependencies remain candidates.
	Skip []string

	// ForceRecreate marks additional services for recreation on top of
	// the target's configured set.
	ForceRecreate []string

	// NoRecreate suppresses every force-recreate mark, configured or not.
	NoRecreate bool
}

// Planner computes rebuild plans over the dependency graph of one
// configuration snapshot.
type Planner struct {
	services map[string]config.ServiceSpec
	graph    *graph
}

func New(services map[string]config.ServiceSpec) *Planner {
	return &Planner{services: services, graph: newGraph(services)}
}

// Plan computes the rebuild sequence for target. The target's transitive
// dependencies come first, ordered so every service follows the services
// it depends on. Only the target's own force_recreate list (plus caller
// additions) marks steps for recreation; the lists of other planned
// services do not propagate.
func (p *Planner) Plan(target string, opts Options) (*Plan, error) {
	start, ok := p.graph.index[target]
	if !ok {
		return nil, fmt.Errorf("unknown service %q", target)
	}

	recreate := p.recreateSet(target, opts)
	plan := &Plan{Target: target}

	if opts.SkipDeps {
		plan.Steps = []Step{p.step(target, target, recreate)}
		return plan, nil
	}

	skip := make(map[string]bool, len(opts.Skip))
	for _, name := range opts.Skip {
		skip[name] = true
	}

	err := p.graph.walk(start, func(n int) {
		name := p.graph.names[n]
		if skip[name] {
			return
		}
		plan.Steps = append(plan.Steps, p.step(name, target, recreate))
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (p *Planner) step(name, target string, recreate map[string]bool) Step {
	return Step{
		Service:       name,
		Target:        name == target,
		ForceRecreate: recreate[name],
	}
}

func (p *Planner) recreateSet(target string, opts Options) map[string]bool {
	if opts.NoRecreate {
		return nil
	}
	set := make(map[string]bool, len(opts.ForceRecreate))
	for _, name := range p.services[target].ForceRecreate {
		set[name] = true
	}
	for _, name := range opts.ForceRecreate {
		set[name] = true
	}
	return set
}
