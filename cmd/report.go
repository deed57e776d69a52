package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/spf13/cobra"

	"github.com/incubyte/copilot-stats/internal/config"
	"github.com/incubyte/copilot-stats/internal/domain"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregates AI usage once and outputs it as JSON",
	Long: `Runs one aggregation over the configured repositories and prints the report
as pretty-printed JSON. With --stream every progress snapshot is printed as one
JSON line as soon as it is known.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// --repos is applied before validation so it can stand in for GITHUB_REPOS.
		repos, _ := cmd.Flags().GetString("repos")
		a, err := newApp(cmd, config.WithRepos(repos))
		if err != nil {
			return err
		}

		run := domain.RunConfig{Repos: a.cfg.Repos, WindowDays: a.cfg.DaysRange}
		if cmd.Flags().Changed("days") {
			run.WindowDays, _ = cmd.Flags().GetInt("days")
			if run.WindowDays <= 0 {
				return fmt.Errorf("--days must be positive, got %d", run.WindowDays)
			}
		}

		ctx := cmd.Context()
		login, err := a.gateway.Viewer(ctx)
		if err != nil {
			return fmt.Errorf("failed to verify GitHub credential: %w", err)
		}
		a.logger.WithField("login", login).Debug("Authenticated against GitHub")

		if stream, _ := cmd.Flags().GetBool("stream"); stream {
			return writeStream(cmd.OutOrStdout(), a.aggregator.Stream(ctx, run))
		}

		report, err := a.aggregator.Aggregate(ctx, run)
		if err != nil {
			return fmt.Errorf("failed to aggregate usage: %w", err)
		}

		// Marshal the report into a pretty-printed JSON string.
		jsonData, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
		return nil
	},
}

// streamLine is one line of the --stream output.
type streamLine struct {
	Type   domain.EventType `json:"type"`
	Repo   string           `json:"repo,omitempty"`
	Number int              `json:"number,omitempty"`
	Report *domain.Report   `json:"report"`
}

// writeStream prints every event as a JSON line and returns the run's error.
func writeStream(out io.Writer, events iter.Seq2[domain.Event, error]) error {
	enc := json.NewEncoder(out)
	for ev, err := range events {
		if err != nil {
			return fmt.Errorf("failed to aggregate usage: %w", err)
		}
		if err := enc.Encode(streamLine{Type: ev.Type, Repo: ev.Repo, Number: ev.Number, Report: ev.Report}); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().IntP("days", "d", 0, "Window in days (overrides DAYS_RANGE)")
	reportCmd.Flags().StringP("repos", "r", "", "Comma-separated repositories (overrides GITHUB_REPOS)")
	reportCmd.Flags().Bool("stream", false, "Print every progress snapshot as a JSON line")
}
