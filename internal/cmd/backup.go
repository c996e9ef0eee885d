package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"artbatch/internal/config"
	"artbatch/internal/store"
)

var backupCmd = &cobra.Command{
	Use:   "backup <name.ext>",
	Short: "Copy a stored artifact into the timestamped backup area",
	Long: `Backups are always explicit. Running a task never overwrites an existing
artifact (collisions get a numeric suffix instead), so back up an artifact
only when you want a timestamped copy before reorganizing the store by hand.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, ext, err := splitArtifactKey(args[0])
		if err != nil {
			return err
		}

		cfg := config.Get()
		st, err := store.New(cfg.Paths.StagingDir, cfg.Paths.ArtifactsDir, nil)
		if err != nil {
			return err
		}

		path, err := st.Backup(name, ext)
		if err != nil {
			return err
		}
		if path == "" {
			return fmt.Errorf("no artifact named %s in the store", args[0])
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Backed up to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

// splitArtifactKey splits "name.ext" into its store key parts.
func splitArtifactKey(key string) (name, ext string, err error) {
	i := strings.LastIndexByte(key, '.')
	if i <= 0 || i == len(key)-1 {
		return "", "", fmt.Errorf("artifact must be given as name.ext, got %q", key)
	}
	return key[:i], key[i+1:], nil
}
