package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"artbatch/internal/config"
	"artbatch/internal/task"
)

var parseFlags struct {
	backend string
	kind    string
}

var parseCmd = &cobra.Command{
	Use:   "parse <tasks-file>",
	Short: "Parse a task document and list what would run, without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		tasks, err := task.ParseFile(args[0], task.Options{DefaultBackend: cfg.Run.DefaultBackend})
		if err != nil {
			return err
		}
		tasks = applyFilters(tasks, parseFlags.backend, parseFlags.kind)

		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d task(s)", len(tasks))))
		for _, t := range tasks {
			fmt.Fprintf(out, "  %-30s %-6s %-8s %s\n",
				t.Name, t.Kind, t.Backend, faintStyle.Render(t.OutputName+"."+t.Extension))
		}
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseFlags.backend, "backend", "", "only list tasks for this backend")
	parseCmd.Flags().StringVar(&parseFlags.kind, "kind", "", "only list tasks of this kind")

	rootCmd.AddCommand(parseCmd)
}
