package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Prints the GitHub login the configured token authenticates as",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		login, err := a.gateway.Viewer(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to resolve GitHub login: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), login)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
