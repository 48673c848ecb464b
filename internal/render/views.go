package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/taskmux/taskmux/internal/runner"
	"github.com/taskmux/taskmux/internal/tool"
)

// TasksView returns a human-readable listing of a project's tasks.
func TasksView(res *tool.ListTasksResult) string {
	var sb strings.Builder

	source := res.Runner
	if res.File != "" {
		source += ", " + res.File
	}
	sb.WriteString(fmt.Sprintf("Tasks in %s (%s)\n", res.Dir, source))
	sb.WriteString("═══════════════════════════════════════════════════════════\n")

	if len(res.Tasks) == 0 {
		sb.WriteString("No tasks found\n")
		return sb.String()
	}

	writeTaskTree(&sb, res.Tasks)
	sb.WriteString(fmt.Sprintf("\nSummary: %d tasks\n", len(res.Tasks)))
	return sb.String()
}

// writeTaskTree renders tasks with their arguments nested underneath.
func writeTaskTree(sb *strings.Builder, tasks []runner.TaskInfo) {
	width := 0
	for _, t := range tasks {
		if len(t.Name) > width {
			width = len(t.Name)
		}
	}

	for i, t := range tasks {
		isLast := i == len(tasks)-1

		prefix := "├─ "
		connector := "│  "
		if isLast {
			prefix = "└─ "
			connector = "   "
		}

		line := fmt.Sprintf("%s%-*s", prefix, width, t.Name)
		if t.Description != "" {
			line += "  " + t.Description
		}
		sb.WriteString(strings.TrimRight(line, " ") + "\n")

		for j, arg := range t.Arguments {
			argPrefix := connector + "  ├─ "
			if j == len(t.Arguments)-1 {
				argPrefix = connector + "  └─ "
			}
			argLine := argPrefix + arg.Name
			if arg.Required {
				argLine += " (required)"
			} else if arg.Default != "" {
				argLine += fmt.Sprintf(" [default: %s]", arg.Default)
			}
			sb.WriteString(argLine + "\n")
		}
	}
}

// DetectView returns a human-readable runner detection report.
func DetectView(res *tool.DetectResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Runner detection in %s\n", res.Dir))
	sb.WriteString("═══════════════════════════════════════════════════════════\n")

	if len(res.Available) == 0 {
		sb.WriteString("No build runner detected\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Detected: %s (%s)\n\n", res.Detected, res.Signature))
	for i, family := range res.Available {
		prefix := "├─ "
		if i == len(res.Available)-1 {
			prefix = "└─ "
		}
		sb.WriteString(fmt.Sprintf("%s%s [%s]\n", prefix, family, strings.Join(res.Files[family], ", ")))
	}
	return sb.String()
}

// ConfigView returns a human-readable description of one project's
// effective configuration.
func ConfigView(res *tool.ProjectConfigResult) string {
	title := res.Project
	if title == "" {
		title = res.Dir
	}

	var sb strings.Builder
	sb.WriteString(title + "\n")
	sb.WriteString("═══════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("Directory: %s\n", res.Dir))
	if res.Runner != "" {
		sb.WriteString(fmt.Sprintf("Runner:    %s\n", res.Runner))
	} else {
		sb.WriteString("Runner:    (none detected)\n")
	}

	if svc := res.Service; svc != nil {
		if svc.Script != "" {
			sb.WriteString(fmt.Sprintf("Script:    %s\n", svc.Script))
		}
		if svc.Timeout > 0 {
			sb.WriteString(fmt.Sprintf("Timeout:   %ds\n", svc.Timeout))
		}
		if len(svc.DependsOn) > 0 {
			sb.WriteString(fmt.Sprintf("Depends on: %s\n", strings.Join(svc.DependsOn, ", ")))
		}
		if len(svc.ForceRecreate) > 0 {
			sb.WriteString(fmt.Sprintf("Force recreate: %s\n", strings.Join(svc.ForceRecreate, ", ")))
		}
		if len(svc.Tasks) > 0 {
			sb.WriteString("Task mappings:\n")
			keys := make([]string, 0, len(svc.Tasks))
			for k := range svc.Tasks {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				sb.WriteString(fmt.Sprintf("  %s -> %s\n", k, svc.Tasks[k]))
			}
		}
		if len(svc.Env) > 0 {
			sb.WriteString("Environment:\n")
			keys := make([]string, 0, len(svc.Env))
			for k := range svc.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				sb.WriteString(fmt.Sprintf("  %s=%s\n", k, svc.Env[k]))
			}
		}
	}

	if len(res.Tasks) > 0 {
		sb.WriteString("\n")
		writeTaskTree(&sb, res.Tasks)
	}
	return sb.String()
}

// RebuildView returns a recap of an executed rebuild plan: one line per
// step, planned-but-never-started steps included, and a summary.
func RebuildView(res *tool.RebuildResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Rebuild %s\n", res.Service))
	sb.WriteString("═══════════════════════════════════════════════════════════\n")

	for i, planned := range res.Planned {
		suffix := ""
		if planned.ForceRecreate {
			suffix = " [recreate]"
		}
		if i >= len(res.Steps) {
			sb.WriteString(fmt.Sprintf("□ %s%s (not started)\n", planned.Service, suffix))
			continue
		}

		step := res.Steps[i]
		if step.Failed {
			// the error string already carries the suggestion, if any
			sb.WriteString(fmt.Sprintf("✗ %s (%s)%s: %s\n", step.Service, step.Task, suffix, step.Error))
			continue
		}
		sb.WriteString(fmt.Sprintf("✓ %s (%s)%s %dms\n", step.Service, step.Task, suffix, step.DurationMS))
	}

	succeeded := 0
	for _, step := range res.Steps {
		if !step.Failed {
			succeeded++
		}
	}
	sb.WriteString("═══════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("Summary: %d/%d steps succeeded in %dms\n",
		succeeded, len(res.Planned), res.DurationMS))
	return sb.String()
}
