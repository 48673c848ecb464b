package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmux/taskmux/internal/config"
)

func chain() map[string]config.ServiceSpec {
	// api depends on auth depends on db
	return map[string]config.ServiceSpec{
		"api":  {Name: "api", DependsOn: []string{"auth"}},
		"auth": {Name: "auth", DependsOn: []string{"db"}},
		"db":   {Name: "db"},
	}
}

func TestPlanDependenciesFirst(t *testing.T) {
	p := New(chain())

	plan, err := p.Plan("api", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "auth", "api"}, plan.Services())
	assert.Equal(t, "api", plan.Target)

	for _, step := range plan.Steps {
		assert.Equal(t, step.Service == "api", step.Target)
	}
}

func TestPlanSkipDeps(t *testing.T) {
	p := New(chain())

	plan, err := p.Plan("api", Options{SkipDeps: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, plan.Services())
	assert.True(t, plan.Steps[0].Target)
}

func TestPlanSkipStillTraversesBeyond(t *testing.T) {
	p := New(chain())

	// Skipping auth removes it from the plan but db, reachable only
	// through auth, is still planned.
	plan, err := p.Plan("api", Options{Skip: []string{"auth"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "api"}, plan.Services())
}

func TestPlanSharedDependencyOnce(t *testing.T) {
	p := New(map[string]config.ServiceSpec{
		"app":    {Name: "app", DependsOn: []string{"api", "worker"}},
		"api":    {Name: "api", DependsOn: []string{"db"}},
		"worker": {Name: "worker", DependsOn: []string{"db"}},
		"db":     {Name: "db"},
	})

	plan, err := p.Plan("app", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "api", "worker", "app"}, plan.Services())
}

func TestPlanCycleDetected(t *testing.T) {
	p := New(map[string]config.ServiceSpec{
		"a": {Name: "a", DependsOn: []string{"b"}},
		"b": {Name: "b", DependsOn: []string{"a"}},
	})

	_, err := p.Plan("a", Options{})
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b"}, cycleErr.Cycle)
	assert.Contains(t, cycleErr.Error(), "a -> b")
}

func TestPlanCycleBelowTarget(t *testing.T) {
	p := New(map[string]config.ServiceSpec{
		"top": {Name: "top", DependsOn: []string{"a"}},
		"a":   {Name: "a", DependsOn: []string{"b"}},
		"b":   {Name: "b", DependsOn: []string{"a"}},
	})

	_, err := p.Plan("top", Options{})
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b"}, cycleErr.Cycle)
}

func TestPlanUnknownTarget(t *testing.T) {
	p := New(chain())

	_, err := p.Plan("ghost", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestPlanForceRecreateFromTargetOnly(t *testing.T) {
	// api's own list marks db; auth's list marks cache. Planning api must
	// honor api's list and ignore auth's.
	p := New(map[string]config.ServiceSpec{
		"api":   {Name: "api", DependsOn: []string{"auth"}, ForceRecreate: []string{"db"}},
		"auth":  {Name: "auth", DependsOn: []string{"db", "cache"}, ForceRecreate: []string{"cache"}},
		"db":    {Name: "db"},
		"cache": {Name: "cache"},
	})

	plan, err := p.Plan("api", Options{})
	require.NoError(t, err)

	marks := map[string]bool{}
	for _, step := range plan.Steps {
		marks[step.Service] = step.ForceRecreate
	}
	assert.True(t, marks["db"])
	assert.False(t, marks["cache"])
	assert.False(t, marks["auth"])
}

func TestPlanForceRecreateOverride(t *testing.T) {
	p := New(chain())

	plan, err := p.Plan("api", Options{ForceRecreate: []string{"auth"}})
	require.NoError(t, err)
	for _, step := range plan.Steps {
		assert.Equal(t, step.Service == "auth", step.ForceRecreate)
	}
}

func TestPlanNoRecreateSuppressesAll(t *testing.T) {
	p := New(map[string]config.ServiceSpec{
		"api": {Name: "api", DependsOn: []string{"db"}, ForceRecreate: []string{"db"}},
		"db":  {Name: "db"},
	})

	plan, err := p.Plan("api", Options{NoRecreate: true, ForceRecreate: []string{"db"}})
	require.NoError(t, err)
	for _, step := range plan.Steps {
		assert.False(t, step.ForceRecreate)
	}
}

func TestExecuteRunsInOrder(t *testing.T) {
	p := New(chain())
	plan, err := p.Plan("api", Options{})
	require.NoError(t, err)

	var ran []string
	err = Execute(context.Background(), plan, func(ctx context.Context, step Step) error {
		ran = append(ran, step.Service)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "auth", "api"}, ran)
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	p := New(chain())
	plan, err := p.Plan("api", Options{})
	require.NoError(t, err)

	boom := errors.New("build exploded")
	var ran []string
	err = Execute(context.Background(), plan, func(ctx context.Context, step Step) error {
		ran = append(ran, step.Service)
		if step.Service == "auth" {
			return boom
		}
		return nil
	})

	var partial *PartialFailure
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"db", "auth"}, ran)
	assert.Equal(t, "auth", partial.Failed.Service)
	assert.Equal(t, []string{"db"}, servicesOf(partial.Completed))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, partial.Error(), "rebuild of auth failed after completing db")
}

func servicesOf(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Service
	}
	return names
}
