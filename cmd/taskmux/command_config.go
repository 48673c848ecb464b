package main

import (
	"github.com/spf13/cobra"

	"github.com/taskmux/taskmux/internal/render"
	"github.com/taskmux/taskmux/internal/tool"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config [project]",
	Short: "Show the effective configuration of a project",
	Long:  "Show how the engine sees a project: its resolved directory, the post-interpolation service settings when it is a configured service, and the detected runner with its tasks.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showProjectConfig(cmd, args)
	},
}

func registerConfigCommand(root *cobra.Command) {
	root.AddCommand(configCmd)

	configCmd.Flags().StringVarP(&configFormat, "format", "f", "table", "Output format (table/json/yaml)")
}

func showProjectConfig(cmd *cobra.Command, args []string) error {
	name := project
	if len(args) > 0 {
		name = args[0]
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	res, err := eng.ProjectConfig(cmd.Context(), tool.ProjectConfigParams{Project: name})
	if err != nil {
		return err
	}
	return emit(configFormat, res, func() string { return render.ConfigView(res) })
}
