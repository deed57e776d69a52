// Package cmd wires configuration, GitHub access and the usage engine into
// the serve, report and whoami commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "copilot-stats",
	Short: "Measures AI-assistant usage across a GitHub organization's pull requests.",
	Long: `copilot-stats scans recently closed pull requests of the configured
repositories, counts the AI usage their authors declared in the PR description
and finds the pull requests reviewed by the AI assistant.
It runs as an HTTP service streaming the results or as a one-shot report.
Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

// Execute runs the command line and exits non-zero when a command fails.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")
}
