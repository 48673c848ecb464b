package tool

import (
	"context"
	"time"

	"github.com/taskmux/taskmux/internal/config"
	"github.com/taskmux/taskmux/internal/planner"
	"github.com/taskmux/taskmux/internal/registry"
	"github.com/taskmux/taskmux/internal/runner"
)

// RebuildParams select a service and adjust the plan around it.
type RebuildParams struct {
	Service       string   `json:"service" yaml:"service"`
	Skip          []string `json:"skip,omitempty" yaml:"skip,omitempty"`
	SkipDeps      bool     `json:"skip_deps,omitempty" yaml:"skip_deps,omitempty"`
	SkipRecreate  bool     `json:"skip_recreate,omitempty" yaml:"skip_recreate,omitempty"`
	ForceRecreate []string `json:"force_recreate,omitempty" yaml:"force_recreate,omitempty"`
	Timeout       int      `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// OnStepStart and OnStepDone observe execution as it happens, for
	// progress output. Either may be nil.
	OnStepStart func(planner.Step) `json:"-" yaml:"-"`
	OnStepDone  func(StepOutcome)  `json:"-" yaml:"-"`
}

// StepOutcome records how one plan step went.
type StepOutcome struct {
	Service       string `json:"service" yaml:"service"`
	Target        bool   `json:"target" yaml:"target"`
	ForceRecreate bool   `json:"force_recreate" yaml:"force_recreate"`
	Task          string `json:"task,omitempty" yaml:"task,omitempty"`
	Command       string `json:"command,omitempty" yaml:"command,omitempty"`
	ExitCode      int    `json:"exit_code" yaml:"exit_code"`
	DurationMS    int64  `json:"duration_ms" yaml:"duration_ms"`
	Failed        bool   `json:"failed" yaml:"failed"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
	Suggestion    string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

func (o *StepOutcome) fail(err error) {
	o.Failed = true
	o.Error = err.Error()
}

// RebuildResult is the realized plan: what was planned, what actually
// ran, and how it ended.
type RebuildResult struct {
	Service    string         `json:"service" yaml:"service"`
	Planned    []planner.Step `json:"planned" yaml:"planned"`
	Steps      []StepOutcome  `json:"steps" yaml:"steps"`
	Success    bool           `json:"success" yaml:"success"`
	DurationMS int64          `json:"duration_ms" yaml:"duration_ms"`
}

// RebuildService plans the rebuild of a service and executes the plan
// step by step. On a step failure the returned result still carries every
// outcome so far, and the error is the planner's partial failure.
func (e *Engine) RebuildService(ctx context.Context, p RebuildParams) (*RebuildResult, error) {
	snap := e.reg.Snapshot()

	// Surface unknown services as such before planning.
	if _, err := snap.Service(p.Service); err != nil {
		return nil, err
	}

	plan, err := planner.New(snap.Config().Services).Plan(p.Service, planner.Options{
		SkipDeps:      p.SkipDeps,
		Skip:          p.Skip,
		ForceRecreate: p.ForceRecreate,
		NoRecreate:    p.SkipRecreate,
	})
	if err != nil {
		return nil, err
	}

	result := &RebuildResult{Service: p.Service, Planned: plan.Steps}
	start := time.Now()
	err = planner.Execute(ctx, plan, func(ctx context.Context, step planner.Step) error {
		if p.OnStepStart != nil {
			p.OnStepStart(step)
		}
		outcome, stepErr := e.runStep(ctx, snap, step, p.Timeout)
		result.Steps = append(result.Steps, outcome)
		if p.OnStepDone != nil {
			p.OnStepDone(outcome)
		}
		return stepErr
	})
	result.DurationMS = time.Since(start).Milliseconds()
	result.Success = err == nil
	return result, err
}

func (e *Engine) runStep(ctx context.Context, snap *registry.Snapshot, step planner.Step, timeout int) (StepOutcome, error) {
	outcome := StepOutcome{
		Service:       step.Service,
		Target:        step.Target,
		ForceRecreate: step.ForceRecreate,
	}

	svc, err := snap.Service(step.Service)
	if err != nil {
		outcome.fail(err)
		return outcome, err
	}

	dir := svc.ProjectDir
	if dir == "" {
		if dir, err = snap.ResolveProjectDir(step.Service); err != nil {
			outcome.fail(err)
			return outcome, err
		}
	}

	sel, err := e.resolveRunner(snap, dir, "", &svc)
	if err != nil {
		outcome.fail(err)
		return outcome, err
	}
	rn := e.adapter(snap, sel, &svc)

	task := rebuildTask(svc, step.ForceRecreate)
	outcome.Task = task

	e.log.Debug("rebuilding service", "service", step.Service, "task", task, "dir", dir)
	res, err := rn.Run(ctx, dir, task, runner.RunOptions{
		Env:     svc.Env,
		Timeout: timeoutFor(snap, &svc, timeout),
	})
	if err != nil {
		outcome.fail(err)
		return outcome, err
	}

	outcome.Command = res.Command
	outcome.ExitCode = res.ExitCode
	outcome.DurationMS = res.DurationMS
	if !res.Success() {
		execErr := &runner.ExecError{
			Command:    res.Command,
			ExitCode:   res.ExitCode,
			Stderr:     res.Stderr,
			Suggestion: runner.Suggest(res.Command, res.Stderr),
		}
		outcome.fail(execErr)
		outcome.Suggestion = execErr.Suggestion
		return outcome, execErr
	}
	return outcome, nil
}

// rebuildTask picks what a rebuild step runs: the recreate mapping when
// the step is marked for recreation, else the rebuild or build mapping,
// else the literal "build".
func rebuildTask(svc config.ServiceSpec, recreate bool) string {
	if recreate {
		if task, ok := svc.Tasks["recreate"]; ok {
			return task
		}
	}
	for _, key := range []string{"rebuild", "build"} {
		if task, ok := svc.Tasks[key]; ok {
			return task
		}
	}
	return "build"
}
