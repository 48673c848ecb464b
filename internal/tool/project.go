package tool

import (
	"context"

	"github.com/taskmux/taskmux/internal/config"
	"github.com/taskmux/taskmux/internal/detect"
	"github.com/taskmux/taskmux/internal/runner"
)

// DetectParams select a project to probe.
type DetectParams struct {
	Project string `json:"project,omitempty" yaml:"project,omitempty"`
}

// DetectResult reports every runner family whose signature matched, with
// the winner first by priority.
type DetectResult struct {
	Dir           string `json:"dir" yaml:"dir"`
	detect.Report `yaml:",inline"`
}

// DetectRunner probes the project directory for runner signatures without
// executing anything.
func (e *Engine) DetectRunner(p DetectParams) (*DetectResult, error) {
	snap := e.reg.Snapshot()

	dir, err := snap.ResolveProjectDir(p.Project)
	if err != nil {
		return nil, err
	}
	cfg := snap.Config()
	report := detect.NewResolver(cfg, e.probe).Detect(dir, cfg.Defaults.RunnerPriority)
	return &DetectResult{Dir: dir, Report: report}, nil
}

// ProjectConfigParams name the service or path to describe.
type ProjectConfigParams struct {
	Project string `json:"project" yaml:"project"`
}

// ProjectConfigResult describes how the engine sees one project: its
// resolved directory, the post-interpolation service spec when the
// project is a configured service, and a best-effort runner and task
// inventory.
type ProjectConfigResult struct {
	Project string              `json:"project" yaml:"project"`
	Dir     string              `json:"dir" yaml:"dir"`
	Service *config.ServiceSpec `json:"service,omitempty" yaml:"service,omitempty"`
	Runner  string              `json:"runner,omitempty" yaml:"runner,omitempty"`
	Tasks   []runner.TaskInfo   `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

// ProjectConfig resolves a project reference and reports its effective
// configuration. Runner detection and task listing are best-effort; a
// project without a detectable runner still resolves.
func (e *Engine) ProjectConfig(ctx context.Context, p ProjectConfigParams) (*ProjectConfigResult, error) {
	snap := e.reg.Snapshot()

	svc, err := serviceFor(snap, p.Project)
	if err != nil {
		return nil, err
	}
	dir, err := snap.ResolveProjectDir(p.Project)
	if err != nil {
		return nil, err
	}

	out := &ProjectConfigResult{Project: p.Project, Dir: dir, Service: svc}
	sel, err := e.resolveRunner(snap, dir, "", svc)
	if err != nil {
		return out, nil
	}
	rn := e.adapter(snap, sel, svc)
	out.Runner = rn.Name()
	if tasks, err := rn.ListTasks(ctx, dir); err == nil {
		out.Tasks = tasks
	}
	return out, nil
}
