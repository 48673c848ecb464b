package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmux/taskmux/internal/config"
	"github.com/taskmux/taskmux/internal/logging"
	"github.com/taskmux/taskmux/internal/registry"
	"github.com/taskmux/taskmux/internal/render"
	"github.com/taskmux/taskmux/internal/tool"
)

var (
	configFile string
	project    string
	runnerName string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "taskmux",
	Short: "Task runner multiplexer: make, just and scripts behind one interface",
	Long:  "taskmux detects which build tool governs a project, lists and runs its tasks, and rebuilds configured services in dependency order.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.New(os.Stderr, verbose))
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Extra configuration file merged over the standard layers")
	rootCmd.PersistentFlags().StringVarP(&project, "project", "p", "", "Project path or configured service name (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&runnerName, "runner", "r", "", "Runner override: make, just, script or script:<path>")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	registerRunCommand(rootCmd)
	registerListCommand(rootCmd)
	registerDetectCommand(rootCmd)
	registerConfigCommand(rootCmd)
	registerRebuildCommand(rootCmd)
}

// newEngine loads the layered configuration and builds the engine every
// command runs through.
func newEngine() (*tool.Engine, error) {
	reg, err := registry.New(registry.Options{
		Load: func() (*config.Config, error) {
			return config.Load(config.LoadOptions{Override: configFile})
		},
	})
	if err != nil {
		return nil, err
	}
	return tool.New(reg, tool.Options{}), nil
}

// emit prints v in the requested format: the table view for humans, a
// marshaled document otherwise.
func emit(format string, v any, table func() string) error {
	f, err := render.ParseFormat(format)
	if err != nil {
		return err
	}
	if f == render.FormatTable {
		fmt.Print(table())
		return nil
	}
	data, err := render.Marshal(f, v)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
