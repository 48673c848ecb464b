package main

import (
	"github.com/spf13/cobra"

	"github.com/taskmux/taskmux/internal/render"
	"github.com/taskmux/taskmux/internal/tool"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"tasks"},
	Short:   "List the tasks a project's runner offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listTasks(cmd)
	},
}

func registerListCommand(root *cobra.Command) {
	root.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format (table/json/yaml)")
}

func listTasks(cmd *cobra.Command) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	res, err := eng.ListTasks(cmd.Context(), tool.ListTasksParams{
		Project: project,
		Runner:  runnerName,
	})
	if err != nil {
		return err
	}
	return emit(listFormat, res, func() string { return render.TasksView(res) })
}
