package planner

import (
	"context"
	"fmt"
	"strings"
)

// StepFunc realizes one plan step. A returned error aborts the plan.
type StepFunc func(ctx context.Context, step Step) error

// PartialFailure reports a plan that stopped partway through: the steps
// that finished, the step that failed, and why. Steps after the failed one
// were never attempted.
type PartialFailure struct {
	Completed []Step
	Failed    Step
	Cause     error
}

func (e *PartialFailure) Error() string {
	msg := fmt.Sprintf("rebuild of %s failed", e.Failed.Service)
	if len(e.Completed) > 0 {
		done := make([]string, len(e.Completed))
		for i, s := range e.Completed {
			done[i] = s.Service
		}
		msg += fmt.Sprintf(" after completing %s", strings.Join(done, ", "))
	}
	return fmt.Sprintf("%s: %v", msg, e.Cause)
}

func (e *PartialFailure) Unwrap() error { return e.Cause }

// Execute realizes plan strictly in step order through run. The first
// failing step stops execution; nothing is rolled back or retried.
func Execute(ctx context.Context, plan *Plan, run StepFunc) error {
	completed := make([]Step, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		if err := run(ctx, step); err != nil {
			return &PartialFailure{Completed: completed, Failed: step, Cause: err}
		}
		completed = append(completed, step)
	}
	return nil
}
