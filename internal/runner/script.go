package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	scriptCmdSectionRE = regexp.MustCompile(`(?i)commands?:`)
	scriptCmdLineRE    = regexp.MustCompile(`^\s{2,4}([a-zA-Z_][a-zA-Z0-9_-]*)\s+(.*)$`)
	scriptAltCmdRE     = regexp.MustCompile(`^\s{2,4}([a-zA-Z_][a-zA-Z0-9_-]*)\s+[-:]?\s*(.*)$`)

	scriptCaseRE    = regexp.MustCompile(`^\s*["']?([a-zA-Z_][a-zA-Z0-9_-]*)["']?\s*\)`)
	scriptFuncRE    = regexp.MustCompile(`^(?:function\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*\(\s*\)`)
	scriptCommentRE = regexp.MustCompile(`^\s*#\s*(.*)$`)
)

// List modes for script projects.
const (
	ScriptListHelp     = "help"
	ScriptListParse    = "parse"
	ScriptListDeclared = "declared"
)

// helpFillerWords appear in help prose at command-like indentation; they
// are never commands themselves.
var helpFillerWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"into": true, "usage": true, "options": true, "arguments": true,
	"description": true, "example": true, "examples": true, "note": true,
	"notes": true, "see": true, "also": true, "more": true, "info": true,
}

// internalFuncNames are shell functions scripts define for their own
// plumbing rather than as commands.
var internalFuncNames = map[string]bool{
	"main": true, "usage": true, "help": true, "error": true, "log": true,
	"debug": true, "info": true, "warn": true, "die": true, "abort": true,
	"exit": true, "cleanup": true, "setup": true, "init": true, "check": true,
}

// Script runs tasks through a project-local executable like ./run.sh.
// Listing asks the script for --help and parses a Commands: section; when
// that yields nothing it scans the script text for case patterns and
// function definitions, and finally falls back to task names declared in
// configuration.
type Script struct {
	path     string
	mode     string
	declared []string
	inv      *Invoker
}

// NewScript builds an adapter for the script at path (relative to the
// project directory). declared seeds the last-resort task list.
func NewScript(path, mode string, declared []string, inv *Invoker) *Script {
	if path == "" {
		path = "./run.sh"
	}
	if mode == "" {
		mode = ScriptListHelp
	}
	return &Script{path: path, mode: mode, declared: declared, inv: inv}
}

func (s *Script) Name() string { return "script" }

// ScriptPath returns the script's path relative to the project directory.
func (s *Script) ScriptPath() string { return s.path }

func (s *Script) ListTasks(ctx context.Context, dir string) ([]TaskInfo, error) {
	full, err := s.find(dir)
	if err != nil {
		return nil, err
	}

	if s.mode == ScriptListDeclared {
		return s.declaredTasks(), nil
	}
	if s.mode != ScriptListParse {
		if tasks, err := s.listViaHelp(ctx, dir); err == nil && len(tasks) > 0 {
			return tasks, nil
		}
	}
	if tasks, err := parseScript(full); err == nil && len(tasks) > 0 {
		return tasks, nil
	}
	return s.declaredTasks(), nil
}

// BuildCommand renders "./script TASK positional ... --key=value ...".
// A named argument with an empty value becomes a bare --key flag.
func (s *Script) BuildCommand(task string, opts RunOptions) string {
	parts := []string{s.path, task}
	parts = append(parts, opts.Positional...)
	for _, k := range sortedKeys(opts.Args) {
		if v := opts.Args[k]; v == "" {
			parts = append(parts, "--"+k)
		} else {
			parts = append(parts, "--"+k+"="+v)
		}
	}
	return joinCommand(parts)
}

func (s *Script) Run(ctx context.Context, dir, task string, opts RunOptions) (*RunResult, error) {
	if _, err := s.find(dir); err != nil {
		return nil, err
	}
	return s.inv.RunShell(ctx, dir, s.BuildCommand(task, opts), opts)
}

// find locates the script under dir and requires it to be executable.
func (s *Script) find(dir string) (string, error) {
	name := strings.TrimPrefix(s.path, "./")
	full := filepath.Join(dir, name)
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("no script %s in %s", s.path, dir)
	}
	if info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("script %s in %s is not executable", s.path, dir)
	}
	return full, nil
}

func (s *Script) declaredTasks() []TaskInfo {
	tasks := make([]TaskInfo, 0, len(s.declared))
	for _, name := range s.declared {
		tasks = append(tasks, TaskInfo{Name: name})
	}
	sortTasks(tasks)
	return tasks
}

func (s *Script) listViaHelp(ctx context.Context, dir string) ([]TaskInfo, error) {
	res, err := s.inv.RunShell(ctx, dir, shellQuote(s.path)+" --help", RunOptions{})
	if err != nil {
		return nil, err
	}
	// Help often goes to stderr, and nonzero exits are common for it.
	return parseScriptHelp(res.Stdout + "\n" + res.Stderr), nil
}

// parseScriptHelp extracts commands from help text. A Commands: section
// wins; without one, indented "name  description" lines are taken as
// commands, skipping option lines and filler words.
func parseScriptHelp(output string) []TaskInfo {
	var tasks []TaskInfo
	seen := make(map[string]bool)

	inSection := false
	for _, line := range strings.Split(output, "\n") {
		if scriptCmdSectionRE.MatchString(line) {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		if strings.TrimSpace(line) == "" && len(tasks) > 0 {
			inSection = false
			continue
		}
		if caps := scriptCmdLineRE.FindStringSubmatch(line); caps != nil && !seen[caps[1]] {
			seen[caps[1]] = true
			tasks = append(tasks, TaskInfo{Name: caps[1], Description: strings.TrimSpace(caps[2])})
		}
	}

	if len(tasks) == 0 {
		for _, line := range strings.Split(output, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "-") {
				continue
			}
			caps := scriptAltCmdRE.FindStringSubmatch(line)
			if caps == nil || helpFillerWords[strings.ToLower(caps[1])] || seen[caps[1]] {
				continue
			}
			seen[caps[1]] = true
			tasks = append(tasks, TaskInfo{Name: caps[1], Description: strings.TrimSpace(caps[2])})
		}
	}

	sortTasks(tasks)
	return tasks
}

// parseScript scans the script text for case patterns and function
// definitions. Internal-looking functions and the catch-all case arm are
// skipped; descriptions come from a comment on the preceding line.
func parseScript(path string) ([]TaskInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	seen := make(map[string]bool)
	var tasks []TaskInfo

	add := func(name, desc string) {
		if seen[name] {
			return
		}
		seen[name] = true
		tasks = append(tasks, TaskInfo{Name: name, Description: desc})
	}

	for i, line := range lines {
		if caps := scriptCaseRE.FindStringSubmatch(line); caps != nil {
			if !(caps[1] == "help" && len(tasks) > 0) {
				add(caps[1], precedingComment(lines, i))
			}
		}
		if caps := scriptFuncRE.FindStringSubmatch(line); caps != nil {
			if !internalFuncNames[caps[1]] && !strings.HasPrefix(caps[1], "_") {
				add(caps[1], precedingComment(lines, i))
			}
		}
	}

	sortTasks(tasks)
	return tasks, nil
}

func precedingComment(lines []string, i int) string {
	if i == 0 {
		return ""
	}
	if caps := scriptCommentRE.FindStringSubmatch(lines[i-1]); caps != nil {
		return strings.TrimSpace(caps[1])
	}
	return ""
}
