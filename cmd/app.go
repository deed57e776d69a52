package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/incubyte/copilot-stats/internal/config"
	"github.com/incubyte/copilot-stats/internal/gateway"
	"github.com/incubyte/copilot-stats/internal/usecase"
)

// app holds the dependencies every command wires from the configuration.
type app struct {
	cfg        config.Config
	logger     *logrus.Logger
	gateway    *gateway.GitHubGateway
	aggregator *usecase.Aggregator
}

// newLogger builds the JSON logger. --verbose forces debug level.
func newLogger(out io.Writer, level string, verbose bool) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if verbose {
		lvl = logrus.DebugLevel
	}
	logger.SetLevel(lvl)
	return logger, nil
}

// newApp loads the configuration and injects the dependencies.
func newApp(cmd *cobra.Command, opts ...config.Option) (*app, error) {
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, verbose)
	if err != nil {
		return nil, err
	}

	policy, err := usecase.ParseReviewErrorPolicy(cfg.ReviewErrorPolicy)
	if err != nil {
		return nil, fmt.Errorf("invalid REVIEW_ERROR_POLICY: %w", err)
	}

	githubGateway, err := gateway.NewGitHubGateway(gateway.Options{
		Token:  cfg.GitHubToken,
		Org:    cfg.GitHubOrg,
		APIURL: cfg.GitHubAPIURL,
	}, logger)
	if err != nil {
		return nil, err
	}

	window := usecase.NewWindowFetcher(githubGateway, cfg.PageSize, logger)
	classifier := usecase.NewReviewClassifier(cfg.AssistantLogin)
	aggregator := usecase.NewAggregator(githubGateway, window, classifier, policy, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		gateway:    githubGateway,
		aggregator: aggregator,
	}, nil
}
