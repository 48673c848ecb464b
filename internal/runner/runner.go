package runner

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TaskInfo describes one task a runner can execute.
type TaskInfo struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description,omitempty"`
	Arguments   []TaskArg `yaml:"arguments" json:"arguments,omitempty"`
}

// TaskArg describes one argument a task accepts.
type TaskArg struct {
	Name     string `yaml:"name" json:"name"`
	Required bool   `yaml:"required" json:"required"`
	Default  string `yaml:"default" json:"default,omitempty"`
}

// RunOptions carry everything a single task invocation needs beyond the
// task name.
type RunOptions struct {
	// Args are named arguments. Each family maps them onto its own
	// convention: make uses VAR=value, just sets recipe variables,
	// scripts receive --key=value flags.
	Args map[string]string

	// Positional arguments appended after the task name.
	Positional []string

	// Env is merged over the parent environment for the invocation.
	Env map[string]string

	// Timeout bounds the invocation. Zero means unbounded. On expiry the
	// process is killed and the run fails.
	Timeout time.Duration
}

// RunResult is the captured outcome of one task invocation.
type RunResult struct {
	Command    string `yaml:"command" json:"command"`
	ExitCode   int    `yaml:"exit_code" json:"exit_code"`
	Stdout     string `yaml:"stdout" json:"stdout"`
	Stderr     string `yaml:"stderr" json:"stderr"`
	DurationMS int64  `yaml:"duration_ms" json:"duration_ms"`
}

func (r *RunResult) Success() bool { return r.ExitCode == 0 }

// Runner lists and executes tasks for one build-tool family.
type Runner interface {
	Name() string

	// ListTasks returns the tasks available in dir, sorted by name.
	ListTasks(ctx context.Context, dir string) ([]TaskInfo, error)

	// BuildCommand renders the command line an invocation would run.
	BuildCommand(task string, opts RunOptions) string

	// Run executes the task. A nonzero exit is reported through the
	// result, not the error; the error covers spawn failures and
	// timeouts.
	Run(ctx context.Context, dir, task string, opts RunOptions) (*RunResult, error)
}

// TaskExists reports whether the named task appears in the runner's
// listing for dir.
func TaskExists(ctx context.Context, r Runner, dir, task string) bool {
	tasks, err := r.ListTasks(ctx, dir)
	if err != nil {
		return false
	}
	for _, t := range tasks {
		if t.Name == task {
			return true
		}
	}
	return false
}

// ExecError reports an external command that failed: nonzero exit,
// timeout, or a spawn problem.
type ExecError struct {
	Command    string
	ExitCode   int
	Stderr     string
	Suggestion string
	Err        error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("command failed: %s", e.Command)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	} else if e.ExitCode != 0 {
		msg += fmt.Sprintf(": exit status %d", e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + firstLine(s)
	}
	if e.Suggestion != "" {
		msg += " (" + e.Suggestion + ")"
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
