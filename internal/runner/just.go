package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/taskmux/taskmux/internal/config"
)

// justfileNames are the files that mark a just project, checked in order.
var justfileNames = []string{"justfile", "Justfile", ".justfile"}

var (
	// Recipe lines in --list output: "    name args # description".
	justListRecipeRE = regexp.MustCompile(`^\s{4}([a-zA-Z_][a-zA-Z0-9_-]*)\s*([^#]*?)(?:\s*#\s*(.*))?$`)

	// Recipe definitions in a justfile: "name args:" or "@name args:".
	justRecipeRE = regexp.MustCompile(`^@?([a-zA-Z_][a-zA-Z0-9_-]*)\s*([^:]*?):\s*.*$`)

	justDocRE = regexp.MustCompile(`^#\s*(.*)$`)

	// Parameter specs: "name", "name='default'", "+variadic", "*variadic".
	justArgRE = regexp.MustCompile(`([+*]?)([a-zA-Z_][a-zA-Z0-9_-]*)(?:=['"]?([^'"]*)['"]?)?`)
)

// Just runs recipes through just. Listing asks just to dump its AST as
// JSON, which carries docs and parameters; when that fails it falls back
// to --list output, and finally to parsing the justfile itself so a
// missing just binary still yields a task inventory.
type Just struct {
	command     string
	listCommand string
	inv         *Invoker
}

func NewJust(spec config.RunnerSpec, inv *Invoker) *Just {
	j := &Just{command: spec.Command, listCommand: spec.ListCommand, inv: inv}
	if j.command == "" {
		j.command = "just"
	}
	if j.listCommand == "" {
		j.listCommand = j.command + " --list --unsorted"
	}
	return j
}

func (j *Just) Name() string { return "just" }

func (j *Just) ListTasks(ctx context.Context, dir string) ([]TaskInfo, error) {
	name, ok := findFile(dir, justfileNames)
	if !ok {
		return nil, fmt.Errorf("no justfile in %s", dir)
	}

	if tasks, err := j.listViaDump(ctx, dir); err == nil && len(tasks) > 0 {
		return tasks, nil
	}
	if tasks, err := j.listViaList(ctx, dir); err == nil && len(tasks) > 0 {
		return tasks, nil
	}
	return parseJustfile(filepath.Join(dir, name))
}

// BuildCommand renders "just TASK key=value ... positional ...". Named
// arguments travel as variable overrides, which just accepts anywhere on
// the command line.
func (j *Just) BuildCommand(task string, opts RunOptions) string {
	parts := []string{j.command, task}
	for _, k := range sortedKeys(opts.Args) {
		parts = append(parts, k+"="+opts.Args[k])
	}
	parts = append(parts, opts.Positional...)
	return joinCommand(parts)
}

func (j *Just) Run(ctx context.Context, dir, task string, opts RunOptions) (*RunResult, error) {
	if _, ok := findFile(dir, justfileNames); !ok {
		return nil, fmt.Errorf("no justfile in %s", dir)
	}
	return j.inv.RunShell(ctx, dir, j.BuildCommand(task, opts), opts)
}

func (j *Just) listViaDump(ctx context.Context, dir string) ([]TaskInfo, error) {
	command := j.command + " --dump --format json"
	res, err := j.inv.RunShell(ctx, dir, command, RunOptions{})
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, &ExecError{Command: command, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return parseJustDump([]byte(res.Stdout))
}

func (j *Just) listViaList(ctx context.Context, dir string) ([]TaskInfo, error) {
	res, err := j.inv.RunShell(ctx, dir, j.listCommand, RunOptions{})
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, &ExecError{Command: j.listCommand, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return parseJustList(res.Stdout), nil
}

func parseJustDump(data []byte) ([]TaskInfo, error) {
	var dump struct {
		Recipes map[string]struct {
			Doc        string `json:"doc"`
			Parameters []struct {
				Name    string          `json:"name"`
				Default json.RawMessage `json:"default"`
				Kind    string          `json:"kind"`
			} `json:"parameters"`
		} `json:"recipes"`
	}
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("failed to parse just dump output: %w", err)
	}

	var tasks []TaskInfo
	for name, recipe := range dump.Recipes {
		task := TaskInfo{Name: name, Description: recipe.Doc}
		for _, p := range recipe.Parameters {
			arg := TaskArg{Name: p.Name}
			hasDefault := len(p.Default) > 0 && string(p.Default) != "null"
			if hasDefault {
				var s string
				if err := json.Unmarshal(p.Default, &s); err == nil {
					arg.Default = s
				} else {
					arg.Default = string(p.Default)
				}
			}
			kind := strings.ToLower(p.Kind)
			arg.Required = !hasDefault && kind != "plus" && kind != "star"
			task.Arguments = append(task.Arguments, arg)
		}
		tasks = append(tasks, task)
	}
	sortTasks(tasks)
	return tasks, nil
}

func parseJustList(output string) []TaskInfo {
	var tasks []TaskInfo
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "Available") || strings.TrimSpace(line) == "" {
			continue
		}
		caps := justListRecipeRE.FindStringSubmatch(line)
		if caps == nil {
			continue
		}
		tasks = append(tasks, TaskInfo{
			Name:        caps[1],
			Description: strings.TrimSpace(caps[3]),
			Arguments:   parseJustArgs(strings.TrimSpace(caps[2])),
		})
	}
	sortTasks(tasks)
	return tasks
}

// parseJustArgs reads a parameter list like "target env='dev' +extra".
// A + or * prefix marks a variadic parameter, which is never required.
func parseJustArgs(spec string) []TaskArg {
	if spec == "" {
		return nil
	}
	var args []TaskArg
	for _, caps := range justArgRE.FindAllStringSubmatch(spec, -1) {
		variadic := caps[1] != ""
		def := caps[3]
		args = append(args, TaskArg{
			Name:     caps[2],
			Required: !variadic && def == "" && !strings.Contains(caps[0], "="),
			Default:  def,
		})
	}
	return args
}

// parseJustfile extracts recipes from the file itself, for when the just
// binary is unavailable. Doc comments come from the line directly above a
// recipe.
func parseJustfile(path string) ([]TaskInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	seen := make(map[string]bool)
	var tasks []TaskInfo

	for i, line := range lines {
		if strings.Contains(line, ":=") {
			continue
		}
		caps := justRecipeRE.FindStringSubmatch(line)
		if caps == nil {
			continue
		}
		name := caps[1]
		if seen[name] {
			continue
		}
		seen[name] = true

		task := TaskInfo{Name: name, Arguments: parseJustArgs(strings.TrimSpace(caps[2]))}
		if i > 0 {
			if doc := justDocRE.FindStringSubmatch(lines[i-1]); doc != nil {
				task.Description = strings.TrimSpace(doc[1])
			}
		}
		tasks = append(tasks, task)
	}

	sortTasks(tasks)
	return tasks, nil
}
