package tool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmux/taskmux/internal/config"
	"github.com/taskmux/taskmux/internal/registry"
)

func newTestEngine(t *testing.T, toml string) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskmux.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	reg, err := registry.New(registry.Options{
		Load: func() (*config.Config, error) {
			return config.Load(config.LoadOptions{Layers: []string{path}, Environ: []string{}})
		},
	})
	require.NoError(t, err)
	return New(reg, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func scriptProject(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0o755))
	return dir
}

func TestListTasksParsesMakefile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Makefile"), []byte(`
## Build it
build:
	go build ./...

test:
	go test ./...
`), 0o644))

	e := newTestEngine(t, ``)
	res, err := e.ListTasks(context.Background(), ListTasksParams{Project: dir})
	require.NoError(t, err)

	assert.Equal(t, "make", res.Runner)
	assert.Equal(t, "Makefile", res.File)
	assert.Equal(t, dir, res.Dir)
	require.Len(t, res.Tasks, 2)
	assert.Equal(t, "build", res.Tasks[0].Name)
	assert.Equal(t, "Build it", res.Tasks[0].Description)
}

func TestRunTaskUsesServiceTaskMap(t *testing.T) {
	dir := scriptProject(t, "#!/bin/sh\necho \"ran:$1\"\n")

	e := newTestEngine(t, fmt.Sprintf(`
[services.web]
project_dir = %q

[services.web.tasks]
build = "compile"
`, dir))

	res, err := e.RunTask(context.Background(), RunTaskParams{Task: "build", Project: "web"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "compile", res.Task)
	assert.Equal(t, "script", res.Runner)
	assert.Equal(t, "./run.sh compile", res.Command)
	assert.Equal(t, "ran:compile\n", res.Stdout)
}

func TestRunTaskAliasFallback(t *testing.T) {
	dir := scriptProject(t, `#!/bin/sh
case "$1" in
  compile)
    echo done
    ;;
esac
`)

	e := newTestEngine(t, `
[defaults.task_aliases]
build = ["build", "compile"]
`)

	res, err := e.RunTask(context.Background(), RunTaskParams{Task: "build", Project: dir})
	require.NoError(t, err)
	assert.Equal(t, "compile", res.Task)
	assert.Equal(t, "done\n", res.Stdout)
}

func TestRunTaskMergesServiceEnv(t *testing.T) {
	dir := scriptProject(t, "#!/bin/sh\necho \"$MODE/$EXTRA\"\n")

	e := newTestEngine(t, fmt.Sprintf(`
[services.web]
project_dir = %q

[services.web.env]
MODE = "prod"
`, dir))

	res, err := e.RunTask(context.Background(), RunTaskParams{
		Task:    "build",
		Project: "web",
		Env:     map[string]string{"EXTRA": "on"},
	})
	require.NoError(t, err)
	assert.Equal(t, "prod/on\n", res.Stdout)
}

func TestRunTaskReportsFailureWithSuggestion(t *testing.T) {
	dir := scriptProject(t, "#!/bin/sh\necho 'error: Permission denied' >&2\nexit 1\n")

	e := newTestEngine(t, ``)
	res, err := e.RunTask(context.Background(), RunTaskParams{Task: "build", Project: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Suggestion, "Permission denied")
}

func TestRunTaskProjectNotFound(t *testing.T) {
	e := newTestEngine(t, ``)

	_, err := e.RunTask(context.Background(), RunTaskParams{Task: "build", Project: "no-such-project-1a9"})
	var notFound *registry.ProjectNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestDetectRunnerReportsAllFamilies(t *testing.T) {
	dir := scriptProject(t, "#!/bin/sh\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Makefile"), []byte("build:\n\ttrue\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "justfile"), []byte("build:\n\ttrue\n"), 0o644))

	e := newTestEngine(t, ``)
	res, err := e.DetectRunner(DetectParams{Project: dir})
	require.NoError(t, err)

	assert.Equal(t, "make", res.Detected)
	assert.Equal(t, "Makefile", res.Signature)
	assert.Equal(t, []string{"make", "just", "script"}, res.Available)
	assert.Equal(t, dir, res.Dir)
}

func TestProjectConfigDescribesService(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Makefile"), []byte("build:\n\ttrue\n"), 0o644))

	e := newTestEngine(t, fmt.Sprintf(`
[services.web]
project_dir = %q

[services.web.tasks]
build = "build"
`, dir))

	res, err := e.ProjectConfig(context.Background(), ProjectConfigParams{Project: "web"})
	require.NoError(t, err)

	require.NotNil(t, res.Service)
	assert.Equal(t, dir, res.Service.ProjectDir)
	assert.Equal(t, dir, res.Dir)
	assert.Equal(t, "make", res.Runner)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "build", res.Tasks[0].Name)
}

func TestProjectConfigPathWithoutRunner(t *testing.T) {
	dir := t.TempDir()

	e := newTestEngine(t, ``)
	res, err := e.ProjectConfig(context.Background(), ProjectConfigParams{Project: dir})
	require.NoError(t, err)

	assert.Nil(t, res.Service)
	assert.Empty(t, res.Runner)
	assert.Empty(t, res.Tasks)
}
