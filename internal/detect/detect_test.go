package detect

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmux/taskmux/internal/config"
)

// fakeProbe records which paths were asked about and answers from a fixed
// set of present files.
type fakeProbe struct {
	files      map[string]bool
	executable map[string]bool
	calls      int
}

func (p *fakeProbe) FileExists(path string) bool {
	p.calls++
	return p.files[path]
}

func (p *fakeProbe) IsExecutable(path string) bool {
	p.calls++
	return p.executable[path]
}

func testConfig() *config.Config {
	cfg, err := config.Load(config.LoadOptions{Layers: []string{}, Environ: []string{}})
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestResolvePriorityOrder(t *testing.T) {
	probe := &fakeProbe{
		files: map[string]bool{
			filepath.Join("proj", "Makefile"): true,
			filepath.Join("proj", "justfile"): true,
		},
	}
	r := NewResolver(testConfig(), probe)

	sel, err := r.Resolve("proj", "", []string{"just", "make"})
	require.NoError(t, err)
	assert.Equal(t, "just", sel.Runner)
	assert.Equal(t, "justfile", sel.Signature)

	sel, err = r.Resolve("proj", "", []string{"make", "just"})
	require.NoError(t, err)
	assert.Equal(t, "make", sel.Runner)
	assert.Equal(t, "Makefile", sel.Signature)
}

func TestResolveIsDeterministic(t *testing.T) {
	probe := &fakeProbe{
		files: map[string]bool{filepath.Join("proj", "makefile"): true},
	}
	r := NewResolver(testConfig(), probe)

	first, err := r.Resolve("proj", "", []string{"make", "just", "script"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Resolve("proj", "", []string{"make", "just", "script"})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolveScriptRequiresExecutable(t *testing.T) {
	probe := &fakeProbe{
		files:      map[string]bool{filepath.Join("proj", "run.sh"): true},
		executable: map[string]bool{filepath.Join("proj", "build.sh"): true},
	}
	r := NewResolver(testConfig(), probe)

	sel, err := r.Resolve("proj", "", []string{"script"})
	require.NoError(t, err)
	assert.Equal(t, "script", sel.Runner)
	assert.Equal(t, "./build.sh", sel.Script)
}

func TestResolveNoRunnerDetected(t *testing.T) {
	probe := &fakeProbe{}
	r := NewResolver(testConfig(), probe)

	_, err := r.Resolve("empty", "", []string{"make", "just", "script"})
	require.Error(t, err)

	var nre *NoRunnerError
	require.True(t, errors.As(err, &nre))
	assert.Equal(t, "empty", nre.Dir)
	assert.Equal(t, []string{
		"Makefile", "makefile", "GNUmakefile",
		"justfile", "Justfile", ".justfile",
		"./run.sh", "./build.sh", "./task.sh",
	}, nre.Checked)
}

func TestResolveOverrideSkipsProbing(t *testing.T) {
	probe := &fakeProbe{}
	r := NewResolver(testConfig(), probe)

	tests := []struct {
		override string
		runner   string
		script   string
	}{
		{"make", "make", ""},
		{"makefile", "make", ""},
		{"just", "just", ""},
		{"justfile", "just", ""},
		{"script", "script", "./run.sh"},
		{"script:deploy.sh", "script", "./deploy.sh"},
		{"./tools/build.sh", "script", "./tools/build.sh"},
		{"build.sh", "script", "./build.sh"},
	}
	for _, tt := range tests {
		t.Run(tt.override, func(t *testing.T) {
			sel, err := r.Resolve("anywhere", tt.override, []string{"make"})
			require.NoError(t, err)
			assert.Equal(t, tt.runner, sel.Runner)
			assert.Equal(t, tt.script, sel.Script)
		})
	}
	assert.Zero(t, probe.calls, "override must not probe the filesystem")
}

func TestResolveUnknownOverride(t *testing.T) {
	r := NewResolver(testConfig(), &fakeProbe{})

	_, err := r.Resolve("proj", "gradle", []string{"make"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gradle")
}

func TestDetectReportsAllFamilies(t *testing.T) {
	probe := &fakeProbe{
		files: map[string]bool{
			filepath.Join("proj", "Makefile"):    true,
			filepath.Join("proj", "GNUmakefile"): true,
			filepath.Join("proj", ".justfile"):   true,
		},
		executable: map[string]bool{filepath.Join("proj", "task.sh"): true},
	}
	r := NewResolver(testConfig(), probe)

	report := r.Detect("proj", []string{"make", "just", "script"})
	assert.Equal(t, "make", report.Detected)
	assert.Equal(t, "Makefile", report.Signature)
	assert.Equal(t, []string{"make", "just", "script"}, report.Available)
	assert.Equal(t, []string{"Makefile", "GNUmakefile"}, report.Files["make"])
	assert.Equal(t, []string{".justfile"}, report.Files["just"])
	assert.Equal(t, []string{"./task.sh"}, report.Files["script"])
}
