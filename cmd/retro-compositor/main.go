// CLI for composing retro music videos from a song and a folder of clips.
package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/retro-compositor/config"
	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "retro-compositor",
	Short:         "Beat-synced music videos with retro effects",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "JSON configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(stylesCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads --config when set, applies --verbose and installs the
// global logger at the configured level
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, &config.InvalidValueError{Key: "log_level", Value: cfg.LogLevel, Err: err}
	}
	logger := logging.NewDefaultLogger()
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)
	return cfg, nil
}
