package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmux/taskmux/internal/config"
)

func loaderFor(t *testing.T, toml string) LoadFunc {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskmux.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))
	return func() (*config.Config, error) {
		return config.Load(config.LoadOptions{Layers: []string{path}, Environ: []string{}})
	}
}

func TestServiceExpandsAndCaches(t *testing.T) {
	load := loaderFor(t, `
[services.api]
project_dir = "$ROOT/api"

[services.api.env]
MODE = "$MODE"
`)

	lookups := map[string]int{}
	reg, err := New(Options{
		Load: load,
		Env: func(name string) string {
			lookups[name]++
			return map[string]string{"ROOT": "/srv", "MODE": "dev"}[name]
		},
	})
	require.NoError(t, err)

	snap := reg.Snapshot()
	spec, err := snap.Service("api")
	require.NoError(t, err)
	assert.Equal(t, "/srv/api", spec.ProjectDir)
	assert.Equal(t, "dev", spec.Env["MODE"])

	again, err := snap.Service("api")
	require.NoError(t, err)
	assert.Equal(t, spec, again)
	assert.Equal(t, 1, lookups["ROOT"], "expansion must run once per snapshot")
}

func TestServiceNotFound(t *testing.T) {
	reg, err := New(Options{Load: loaderFor(t, `
[services.api]
project_dir = "/srv/api"
`)})
	require.NoError(t, err)

	_, err = reg.Snapshot().Service("ghost")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.Name)
	assert.Contains(t, notFound.Error(), "api")
}

func TestReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskmux.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[defaults]
timeout = 10
`), 0o644))

	reg, err := New(Options{Load: func() (*config.Config, error) {
		return config.Load(config.LoadOptions{Layers: []string{path}, Environ: []string{}})
	}})
	require.NoError(t, err)

	old := reg.Snapshot()
	assert.Equal(t, 10, old.Config().Defaults.Timeout)

	require.NoError(t, os.WriteFile(path, []byte(`
[defaults]
timeout = 42
`), 0o644))
	require.NoError(t, reg.Reload())

	assert.Equal(t, 42, reg.Snapshot().Config().Defaults.Timeout)
	// the old snapshot still answers with its own view
	assert.Equal(t, 10, old.Config().Defaults.Timeout)
}

func TestReloadKeepsServingOnLoadFailure(t *testing.T) {
	calls := 0
	load := loaderFor(t, `
[defaults]
timeout = 7
`)
	reg, err := New(Options{Load: func() (*config.Config, error) {
		calls++
		if calls > 1 {
			return nil, os.ErrNotExist
		}
		return load()
	}})
	require.NoError(t, err)

	require.Error(t, reg.Reload())
	assert.Equal(t, 7, reg.Snapshot().Config().Defaults.Timeout)
}

func TestResolveProjectDirEmptyMeansCwd(t *testing.T) {
	reg, err := New(Options{Load: loaderFor(t, ``)})
	require.NoError(t, err)

	dir, err := reg.Snapshot().ResolveProjectDir("")
	require.NoError(t, err)
	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, cwd, dir)
}

func TestResolveProjectDirExistingPath(t *testing.T) {
	dir := t.TempDir()
	reg, err := New(Options{Load: loaderFor(t, ``)})
	require.NoError(t, err)

	got, err := reg.Snapshot().ResolveProjectDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolveProjectDirServiceName(t *testing.T) {
	reg, err := New(Options{
		Load: loaderFor(t, `
[services.api]
project_dir = "/srv/api"
`),
		DirExists: func(path string) bool { return path == "/srv/api" },
	})
	require.NoError(t, err)

	got, err := reg.Snapshot().ResolveProjectDir("api")
	require.NoError(t, err)
	assert.Equal(t, "/srv/api", got)
}

func TestResolveProjectDirServiceDirMissing(t *testing.T) {
	reg, err := New(Options{
		Load: loaderFor(t, `
[services.api]
project_dir = "/srv/api"
`),
		DirExists: func(string) bool { return false },
	})
	require.NoError(t, err)

	_, err = reg.Snapshot().ResolveProjectDir("api")
	var notFound *ProjectNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, notFound.Tried, "/srv/api")
}

func TestResolveProjectDirPattern(t *testing.T) {
	reg, err := New(Options{
		Load: loaderFor(t, `
[projects]
patterns = ["$HOME/projects/{name}", "/opt/{name}"]
`),
		Env:       func(name string) string { return map[string]string{"HOME": "/home/dev"}[name] },
		DirExists: func(path string) bool { return path == "/opt/billing" },
	})
	require.NoError(t, err)

	got, err := reg.Snapshot().ResolveProjectDir("billing")
	require.NoError(t, err)
	assert.Equal(t, "/opt/billing", got)
}

func TestResolveProjectDirNotFoundListsTried(t *testing.T) {
	reg, err := New(Options{
		Load: loaderFor(t, `
[projects]
patterns = ["/opt/{name}"]
`),
		DirExists: func(string) bool { return false },
	})
	require.NoError(t, err)

	_, err = reg.Snapshot().ResolveProjectDir("billing")
	var notFound *ProjectNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "billing", notFound.Name)
	assert.Equal(t, []string{"billing", "/opt/billing"}, notFound.Tried)
}
