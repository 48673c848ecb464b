package tool

import (
	"context"

	"github.com/taskmux/taskmux/internal/runner"
)

// RunTaskParams select a task and how to run it. Project may be a path, a
// configured service name, or empty for the current directory.
type RunTaskParams struct {
	Task       string            `json:"task" yaml:"task"`
	Project    string            `json:"project,omitempty" yaml:"project,omitempty"`
	Runner     string            `json:"runner,omitempty" yaml:"runner,omitempty"`
	Args       map[string]string `json:"args,omitempty" yaml:"args,omitempty"`
	Positional []string          `json:"positional,omitempty" yaml:"positional,omitempty"`
	Env        map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Timeout    int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// RunTaskResult is the captured outcome of one task run. A nonzero
// ExitCode is reported here, not as an error.
type RunTaskResult struct {
	Task       string `json:"task" yaml:"task"`
	Runner     string `json:"runner" yaml:"runner"`
	Dir        string `json:"dir" yaml:"dir"`
	Command    string `json:"command" yaml:"command"`
	ExitCode   int    `json:"exit_code" yaml:"exit_code"`
	Stdout     string `json:"stdout" yaml:"stdout"`
	Stderr     string `json:"stderr" yaml:"stderr"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
	Suggestion string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// RunTask resolves the project, runner and task name, then executes the
// task and captures its output.
func (e *Engine) RunTask(ctx context.Context, p RunTaskParams) (*RunTaskResult, error) {
	snap := e.reg.Snapshot()

	svc, err := serviceFor(snap, p.Project)
	if err != nil {
		return nil, err
	}
	dir, err := snap.ResolveProjectDir(p.Project)
	if err != nil {
		return nil, err
	}
	sel, err := e.resolveRunner(snap, dir, p.Runner, svc)
	if err != nil {
		return nil, err
	}
	rn := e.adapter(snap, sel, svc)

	task := e.resolveTask(ctx, snap, rn, dir, p.Task, svc)
	opts := runner.RunOptions{
		Args:       p.Args,
		Positional: p.Positional,
		Env:        mergeEnv(svc, p.Env),
		Timeout:    timeoutFor(snap, svc, p.Timeout),
	}

	e.log.Debug("running task", "task", task, "runner", rn.Name(), "dir", dir)
	res, err := rn.Run(ctx, dir, task, opts)
	if err != nil {
		return nil, err
	}

	out := &RunTaskResult{
		Task:       task,
		Runner:     rn.Name(),
		Dir:        dir,
		Command:    res.Command,
		ExitCode:   res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		DurationMS: res.DurationMS,
	}
	if !res.Success() {
		out.Suggestion = runner.Suggest(res.Command, res.Stderr)
	}
	return out, nil
}

// ListTasksParams select a project whose tasks to enumerate.
type ListTasksParams struct {
	Project string `json:"project,omitempty" yaml:"project,omitempty"`
	Runner  string `json:"runner,omitempty" yaml:"runner,omitempty"`
}

// ListTasksResult holds the runner that answered and its task inventory,
// sorted by name.
type ListTasksResult struct {
	Runner string            `json:"runner" yaml:"runner"`
	Dir    string            `json:"dir" yaml:"dir"`
	File   string            `json:"file,omitempty" yaml:"file,omitempty"`
	Tasks  []runner.TaskInfo `json:"tasks" yaml:"tasks"`
}

// ListTasks enumerates the tasks the project's runner offers.
func (e *Engine) ListTasks(ctx context.Context, p ListTasksParams) (*ListTasksResult, error) {
	snap := e.reg.Snapshot()

	svc, err := serviceFor(snap, p.Project)
	if err != nil {
		return nil, err
	}
	dir, err := snap.ResolveProjectDir(p.Project)
	if err != nil {
		return nil, err
	}
	sel, err := e.resolveRunner(snap, dir, p.Runner, svc)
	if err != nil {
		return nil, err
	}
	rn := e.adapter(snap, sel, svc)

	tasks, err := rn.ListTasks(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &ListTasksResult{
		Runner: rn.Name(),
		Dir:    dir,
		File:   selectionFile(sel),
		Tasks:  tasks,
	}, nil
}
