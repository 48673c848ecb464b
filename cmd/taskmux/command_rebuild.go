package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmux/taskmux/internal/planner"
	"github.com/taskmux/taskmux/internal/render"
	"github.com/taskmux/taskmux/internal/tool"
)

var (
	rebuildSkip         []string
	rebuildSkipDeps     bool
	rebuildSkipRecreate bool
	rebuildForce        []string
	rebuildTimeout      int
	rebuildFormat       string
	rebuildOutput       string
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild <service>",
	Short: "Rebuild a service and its dependencies in order",
	Long:  "Plan the dependency closure of a configured service and run each step's rebuild task, dependencies first. Execution stops at the first failing step.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rebuildService(cmd, args[0])
	},
}

func registerRebuildCommand(root *cobra.Command) {
	root.AddCommand(rebuildCmd)

	rebuildCmd.Flags().StringArrayVar(&rebuildSkip, "skip", nil, "Service to leave out of the plan (repeatable)")
	rebuildCmd.Flags().BoolVar(&rebuildSkipDeps, "skip-deps", false, "Rebuild only the service itself")
	rebuildCmd.Flags().BoolVar(&rebuildSkipRecreate, "skip-recreate", false, "Ignore all force-recreate markings")
	rebuildCmd.Flags().StringArrayVar(&rebuildForce, "force-recreate", nil, "Service to mark for recreation (repeatable)")
	rebuildCmd.Flags().IntVarP(&rebuildTimeout, "timeout", "t", 0, "Per-step timeout in seconds (0 uses the configured default)")
	rebuildCmd.Flags().StringVarP(&rebuildFormat, "format", "f", "table", "Output format (table/json/yaml)")
	rebuildCmd.Flags().StringVarP(&rebuildOutput, "output", "o", "", "Write the result document to a file (json or yaml by extension)")
}

func rebuildService(cmd *cobra.Command, service string) error {
	format, err := render.ParseFormat(rebuildFormat)
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	params := tool.RebuildParams{
		Service:       service,
		Skip:          rebuildSkip,
		SkipDeps:      rebuildSkipDeps,
		SkipRecreate:  rebuildSkipRecreate,
		ForceRecreate: rebuildForce,
		Timeout:       rebuildTimeout,
	}
	if format == render.FormatTable {
		params.OnStepStart = func(s planner.Step) {
			fmt.Printf("□ rebuilding %s...\n", s.Service)
		}
	}

	res, runErr := eng.RebuildService(cmd.Context(), params)
	if res == nil {
		return runErr
	}

	if rebuildOutput != "" {
		if err := render.WriteFile(rebuildOutput, res); err != nil {
			return err
		}
	}

	if format == render.FormatTable {
		fmt.Print(render.RebuildView(res))
	} else {
		data, err := render.Marshal(format, res)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	}
	return runErr
}
