package main

import (
	"github.com/spf13/cobra"

	"github.com/taskmux/taskmux/internal/render"
	"github.com/taskmux/taskmux/internal/tool"
)

var detectFormat string

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect which build runners a project offers",
	Long:  "Probe the project directory for runner signatures (Makefile, justfile, executable scripts) without executing anything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return detectRunner()
	},
}

func registerDetectCommand(root *cobra.Command) {
	root.AddCommand(detectCmd)

	detectCmd.Flags().StringVarP(&detectFormat, "format", "f", "table", "Output format (table/json/yaml)")
}

func detectRunner() error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	res, err := eng.DetectRunner(tool.DetectParams{Project: project})
	if err != nil {
		return err
	}
	return emit(detectFormat, res, func() string { return render.DetectView(res) })
}
