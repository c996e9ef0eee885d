package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"artbatch/internal/config"
	"artbatch/internal/store"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List the contents of the artifact store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		st, err := store.New(cfg.Paths.StagingDir, cfg.Paths.ArtifactsDir, nil)
		if err != nil {
			return err
		}

		names, err := st.List()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "Store is empty.")
			return nil
		}

		for _, name := range names {
			fmt.Fprintf(out, "  %s\n", name)
		}

		stats, err := st.Stats()
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, faintStyle.Render(fmt.Sprintf("%d artifact(s), %d bytes", stats.TotalCount, stats.TotalBytes)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(artifactsCmd)
}
