// Package cmd implements the artbatch command line interface.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"artbatch/internal/config"
	"artbatch/internal/errors"
)

const version = "0.3.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "artbatch",
	Short: "Batch-drive browser AI chat backends from a markdown task list",
	Long: `artbatch reads a markdown document of generation tasks and drives
browser-based AI chat backends (Gemini, ChatGPT, Claude) through them one at
a time: selecting the generation mode, submitting the prompt, waiting for
completion and collecting the output into a collision-safe artifact store.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default "+config.ConfigFile()+")")
}

// initConfig wires viper: explicit config file, then the user config
// directory and the working directory, then ARTBATCH_* environment
// variables. A missing or malformed config file is not fatal; defaults
// apply.
func initConfig() {
	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("ARTBATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	reportConfigError(os.Stderr, viper.ReadInConfig())
}

// reportConfigError warns about a config file that exists but does not
// parse. An absent config file is the normal no-config case and stays
// silent; either way defaults apply.
func reportConfigError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return
	}
	fmt.Fprintf(w, "Warning: ignoring malformed config file: %v\n", err)
}
