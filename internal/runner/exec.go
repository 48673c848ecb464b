package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

const (
	defaultShell     = "sh"
	defaultMaxOutput = 100000

	truncationMarker = "\n... [output truncated] ...\n"
)

// Invoker executes command lines through a shell, capturing output. The
// zero value is usable.
type Invoker struct {
	// Shell is the interpreter, "sh" by default.
	Shell string

	// MaxOutput caps each captured stream in bytes. Longer output is cut
	// and marked. Defaults to 100000.
	MaxOutput int
}

// RunShell runs command in dir and captures its output. A nonzero exit is
// reported through the result; the error covers spawn failures and
// timeouts. On timeout the process is killed.
func (inv *Invoker) RunShell(ctx context.Context, dir, command string, opts RunOptions) (*RunResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.shell(), "-c", command)
	cmd.Dir = dir
	if len(opts.Env) > 0 {
		env := os.Environ()
		for k, v := range opts.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &RunResult{
		Command:    command,
		Stdout:     inv.truncate(stdout.String()),
		Stderr:     inv.truncate(stderr.String()),
		DurationMS: time.Since(start).Milliseconds(),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &ExecError{
				Command: command,
				Stderr:  result.Stderr,
				Err:     fmt.Errorf("timed out after %s", opts.Timeout),
			}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, &ExecError{Command: command, Stderr: result.Stderr, Err: err}
	}
	return result, nil
}

func (inv *Invoker) shell() string {
	if inv.Shell != "" {
		return inv.Shell
	}
	return defaultShell
}

func (inv *Invoker) truncate(s string) string {
	max := inv.MaxOutput
	if max <= 0 {
		max = defaultMaxOutput
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + truncationMarker
}
