package tool

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/taskmux/taskmux/internal/config"
	"github.com/taskmux/taskmux/internal/detect"
	"github.com/taskmux/taskmux/internal/registry"
	"github.com/taskmux/taskmux/internal/runner"
)

// Engine is the operation surface: it resolves projects and runners
// against a configuration snapshot and drives task execution. Every
// operation takes one snapshot up front, so a concurrent reload never
// changes the rules mid-operation.
type Engine struct {
	reg   *registry.Registry
	probe detect.Probe
	inv   *runner.Invoker
	log   *slog.Logger
}

// Options configure an Engine. Zero values select production defaults.
type Options struct {
	Probe   detect.Probe
	Invoker *runner.Invoker
	Logger  *slog.Logger
}

func New(reg *registry.Registry, opts Options) *Engine {
	e := &Engine{reg: reg, probe: opts.Probe, inv: opts.Invoker, log: opts.Logger}
	if e.probe == nil {
		e.probe = detect.FSProbe{}
	}
	if e.inv == nil {
		e.inv = &runner.Invoker{}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Reload swaps in a freshly loaded configuration snapshot. Operations
// already in flight keep the snapshot they started with.
func (e *Engine) Reload() error {
	return e.reg.Reload()
}

// serviceFor returns the resolved spec when project names a configured
// service, nil when it is a path or empty. Expansion failures surface.
func serviceFor(snap *registry.Snapshot, project string) (*config.ServiceSpec, error) {
	if project == "" {
		return nil, nil
	}
	if _, ok := snap.Config().Services[project]; !ok {
		return nil, nil
	}
	spec, err := snap.Service(project)
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

// resolveRunner picks the runner for dir. An explicit override wins, then
// the service's configured runner or script, then signature detection in
// priority order.
func (e *Engine) resolveRunner(snap *registry.Snapshot, dir, override string, svc *config.ServiceSpec) (detect.Selection, error) {
	cfg := snap.Config()
	if override == "" && svc != nil {
		switch {
		case svc.Runner != "":
			override = svc.Runner
		case svc.Script != "":
			override = "script:" + svc.Script
		}
	}
	return detect.NewResolver(cfg, e.probe).Resolve(dir, override, cfg.Defaults.RunnerPriority)
}

// adapter instantiates the family adapter for a selection.
func (e *Engine) adapter(snap *registry.Snapshot, sel detect.Selection, svc *config.ServiceSpec) runner.Runner {
	cfg := snap.Config()
	switch sel.Runner {
	case detect.FamilyJust:
		return runner.NewJust(cfg.Runners[detect.FamilyJust], e.inv)
	case detect.FamilyScript:
		path := sel.Script
		if path == "" {
			path = cfg.Defaults.DefaultScript
		}
		spec := cfg.Runners[detect.FamilyScript]
		return runner.NewScript(path, spec.ListMode, declaredTasks(svc), e.inv)
	default:
		return runner.NewMake(cfg.Runners[detect.FamilyMake], e.inv)
	}
}

// declaredTasks lists the runner-side task names a service's task map
// points at. They seed the script adapter's last-resort listing.
func declaredTasks(svc *config.ServiceSpec) []string {
	if svc == nil || len(svc.Tasks) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(svc.Tasks))
	names := make([]string, 0, len(svc.Tasks))
	for _, target := range svc.Tasks {
		if !seen[target] {
			seen[target] = true
			names = append(names, target)
		}
	}
	sort.Strings(names)
	return names
}

// resolveTask maps a logical task name onto what the runner accepts: the
// service task map wins, then the literal name when the runner lists it,
// then configured alias candidates in order. When listing is unavailable
// the literal name passes through unchanged.
func (e *Engine) resolveTask(ctx context.Context, snap *registry.Snapshot, rn runner.Runner, dir, task string, svc *config.ServiceSpec) string {
	if svc != nil {
		if mapped, ok := svc.Tasks[task]; ok {
			return mapped
		}
	}
	candidates := snap.Config().Defaults.TaskAliases[task]
	if len(candidates) == 0 {
		return task
	}

	tasks, err := rn.ListTasks(ctx, dir)
	if err != nil {
		return task
	}
	have := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		have[t.Name] = true
	}
	if have[task] {
		return task
	}
	for _, name := range candidates {
		if have[name] {
			return name
		}
	}
	return task
}

// timeoutFor returns the effective timeout: the explicit request wins,
// then the service's own setting, then the global default.
func timeoutFor(snap *registry.Snapshot, svc *config.ServiceSpec, requested int) time.Duration {
	secs := snap.Config().Defaults.Timeout
	if svc != nil && svc.Timeout > 0 {
		secs = svc.Timeout
	}
	if requested > 0 {
		secs = requested
	}
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// mergeEnv overlays extra on the service environment.
func mergeEnv(svc *config.ServiceSpec, extra map[string]string) map[string]string {
	if svc == nil && len(extra) == 0 {
		return nil
	}
	env := make(map[string]string)
	if svc != nil {
		for k, v := range svc.Env {
			env[k] = v
		}
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

func selectionFile(sel detect.Selection) string {
	if sel.Signature != "" {
		return sel.Signature
	}
	return sel.Script
}
