package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmux/taskmux/internal/tool"
)

var (
	runEnv     []string
	runTimeout int
)

var runCmd = &cobra.Command{
	Use:   "run <task> [KEY=VALUE ...] [-- positional ...]",
	Short: "Run a task in a project",
	Long:  "Run a task through the project's build runner. KEY=VALUE arguments become runner arguments (make variables, just variables, --key=value script flags); everything after -- is passed through positionally.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTask(cmd, args)
	},
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)

	runCmd.Flags().StringArrayVarP(&runEnv, "env", "e", nil, "Extra environment as KEY=VALUE (repeatable)")
	runCmd.Flags().IntVarP(&runTimeout, "timeout", "t", 0, "Timeout in seconds (0 uses the configured default)")
}

func runTask(cmd *cobra.Command, args []string) error {
	named, positional := splitTaskArgs(args[1:], cmd.ArgsLenAtDash())

	env, err := parsePairs(runEnv)
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	res, err := eng.RunTask(cmd.Context(), tool.RunTaskParams{
		Task:       args[0],
		Project:    project,
		Runner:     runnerName,
		Args:       named,
		Positional: positional,
		Env:        env,
		Timeout:    runTimeout,
	})
	if err != nil {
		return err
	}

	if res.Stdout != "" {
		fmt.Print(res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprint(os.Stderr, res.Stderr)
	}
	if res.ExitCode != 0 {
		if res.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", res.Suggestion)
		}
		return fmt.Errorf("%s exited with status %d", res.Command, res.ExitCode)
	}
	return nil
}

// splitTaskArgs separates KEY=VALUE runner arguments from positional ones.
// dashAt is the index of -- in the original argument list; everything after
// it stays positional even when it looks like an assignment.
func splitTaskArgs(rest []string, dashAt int) (map[string]string, []string) {
	named := make(map[string]string)
	var positional []string

	// dashAt counts the task name, rest does not; zero means the dash
	// came before the task and everything is positional
	if dashAt > 0 {
		dashAt--
	}
	for i, arg := range rest {
		if dashAt < 0 || i < dashAt {
			if key, value, ok := strings.Cut(arg, "="); ok && key != "" {
				named[key] = value
				continue
			}
		}
		positional = append(positional, arg)
	}
	if len(named) == 0 {
		named = nil
	}
	return named, positional
}

func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid environment entry %q (expected KEY=VALUE)", kv)
		}
		env[key] = value
	}
	return env, nil
}
