package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/taskmux/taskmux/internal/config"
)

// makefileNames are the files that mark a make project, checked in order.
var makefileNames = []string{"Makefile", "makefile", "GNUmakefile"}

var (
	makeTargetRE = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_-]*)\s*:`)

	// Two description forms: "## text" or "# target: text" on the line
	// directly above the target.
	makeDocRE      = regexp.MustCompile(`^##\s*(.+)$`)
	makeNamedDocRE = regexp.MustCompile(`^#\s*([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*(.+)$`)

	makeVarRE = regexp.MustCompile(`\$[({]([A-Z_][A-Z0-9_]*)[)}]`)
)

// builtinMakeVars are variables make or the environment defines. A recipe
// referencing one of these is not declaring a task argument.
var builtinMakeVars = map[string]bool{
	"MAKE": true, "MAKEFLAGS": true, "MAKEFILES": true, "MAKELEVEL": true,
	"MAKECMDGOALS": true, "CURDIR": true, "SHELL": true, "PATH": true,
	"HOME": true, "USER": true, "CC": true, "CXX": true, "CFLAGS": true,
	"CXXFLAGS": true, "LDFLAGS": true, "AR": true, "RM": true, "ARFLAGS": true,
}

// Make runs targets through make. Listing parses the makefile directly,
// which preserves comment descriptions, and falls back to querying make's
// target database when the parse finds nothing.
type Make struct {
	command     string
	listCommand string
	inv         *Invoker
}

func NewMake(spec config.RunnerSpec, inv *Invoker) *Make {
	m := &Make{command: spec.Command, listCommand: spec.ListCommand, inv: inv}
	if m.command == "" {
		m.command = "make"
	}
	return m
}

func (m *Make) Name() string { return "make" }

func (m *Make) ListTasks(ctx context.Context, dir string) ([]TaskInfo, error) {
	name, ok := findFile(dir, makefileNames)
	if !ok {
		return nil, fmt.Errorf("no makefile in %s", dir)
	}

	tasks, err := parseMakefile(filepath.Join(dir, name))
	if err == nil && len(tasks) > 0 {
		return tasks, nil
	}
	if m.listCommand == "" {
		return tasks, err
	}
	return m.listFromDatabase(ctx, dir)
}

// BuildCommand renders "make TASK VAR=value ... [-- positional ...]".
func (m *Make) BuildCommand(task string, opts RunOptions) string {
	parts := []string{m.command, task}
	for _, k := range sortedKeys(opts.Args) {
		parts = append(parts, k+"="+opts.Args[k])
	}
	if len(opts.Positional) > 0 {
		parts = append(parts, "--")
		parts = append(parts, opts.Positional...)
	}
	return joinCommand(parts)
}

func (m *Make) Run(ctx context.Context, dir, task string, opts RunOptions) (*RunResult, error) {
	if _, ok := findFile(dir, makefileNames); !ok {
		return nil, fmt.Errorf("no makefile in %s", dir)
	}
	return m.inv.RunShell(ctx, dir, m.BuildCommand(task, opts), opts)
}

// listFromDatabase asks make itself for targets. The configured list
// command already filters the database dump down to target names.
func (m *Make) listFromDatabase(ctx context.Context, dir string) ([]TaskInfo, error) {
	res, err := m.inv.RunShell(ctx, dir, m.listCommand, RunOptions{})
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, &ExecError{Command: m.listCommand, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	seen := make(map[string]bool)
	var tasks []TaskInfo
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ":"))
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ".") {
			continue
		}
		if !makeTargetRE.MatchString(line + ":") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		tasks = append(tasks, TaskInfo{Name: line})
	}
	sortTasks(tasks)
	return tasks, nil
}

// parseMakefile extracts targets from the file itself. Variable
// assignments, dot-prefixed special targets, and repeated names are
// skipped. Descriptions come from the comment line directly above a
// target; arguments are the non-builtin $(VAR) references in its recipe.
func parseMakefile(path string) ([]TaskInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	seen := make(map[string]bool)
	var tasks []TaskInfo

	for i, line := range lines {
		caps := makeTargetRE.FindStringSubmatch(line)
		if caps == nil {
			continue
		}
		if strings.Contains(line, ":=") || strings.Contains(line, "?=") || strings.Contains(line, "+=") {
			continue
		}
		name := caps[1]
		if seen[name] {
			continue
		}
		seen[name] = true

		task := TaskInfo{Name: name}
		if i > 0 {
			task.Description = targetDescription(lines[i-1], name)
		}
		task.Arguments = recipeArgs(lines[i+1:])
		tasks = append(tasks, task)
	}

	sortTasks(tasks)
	return tasks, nil
}

func targetDescription(prev, target string) string {
	if caps := makeDocRE.FindStringSubmatch(prev); caps != nil {
		return strings.TrimSpace(caps[1])
	}
	if caps := makeNamedDocRE.FindStringSubmatch(prev); caps != nil && caps[1] == target {
		return strings.TrimSpace(caps[2])
	}
	return ""
}

// recipeArgs collects variable references from the recipe lines that
// follow a target. Recipe lines start with a tab; the first other
// non-empty line ends the recipe.
func recipeArgs(lines []string) []TaskArg {
	names := make(map[string]bool)
	for _, line := range lines {
		if line != "" && !strings.HasPrefix(line, "\t") {
			break
		}
		for _, caps := range makeVarRE.FindAllStringSubmatch(line, -1) {
			if !builtinMakeVars[caps[1]] {
				names[caps[1]] = true
			}
		}
	}
	if len(names) == 0 {
		return nil
	}

	args := make([]TaskArg, 0, len(names))
	for name := range names {
		args = append(args, TaskArg{Name: name})
	}
	sort.Slice(args, func(i, j int) bool { return args[i].Name < args[j].Name })
	return args
}
