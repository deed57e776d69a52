package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/incubyte/copilot-stats/internal/handler"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the usage stream over HTTP",
	Long: `Starts the HTTP service. GET /github/copilot/usage streams the aggregation
as Server-Sent Events; GET /github/copilot/usage/report answers with the
finished report. Both accept an optional daysRange query parameter.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			a.cfg.Port = port
		}
		if cmd.Flags().Changed("days") {
			days, _ := cmd.Flags().GetInt("days")
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			a.cfg.DaysRange = days
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Fail fast on a rejected credential instead of on the first request.
		login, err := a.gateway.Viewer(ctx)
		if err != nil {
			return fmt.Errorf("failed to verify GitHub credential: %w", err)
		}
		a.logger.WithField("login", login).Info("Authenticated against GitHub")

		h := handler.New(a.aggregator, a.gateway, handler.Options{
			Repos:       a.cfg.Repos,
			DefaultDays: a.cfg.DaysRange,
			AllowOrigin: a.cfg.AllowOrigin,
		}, a.logger)

		srv := &http.Server{
			Addr:              ":" + a.cfg.Port,
			Handler:           h.Router(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a.logger.WithField("port", a.cfg.Port).Info("Server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.logger.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			a.logger.Info("Server exited")
			return nil
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides PORT)")
	serveCmd.Flags().IntP("days", "d", 0, "Default window in days (overrides DAYS_RANGE)")
}
