// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultPort              = "3000"
	defaultDaysRange         = 1
	defaultPageSize          = 100
	defaultAssistantLogin    = "copilot"
	defaultReviewErrorPolicy = "fail"
	defaultLogLevel          = "info"
	defaultAllowOrigin       = "*"
)

type Config struct {
	GitHubToken       string
	GitHubOrg         string
	Repos             []string
	GitHubAPIURL      string
	DaysRange         int
	PageSize          int
	AssistantLogin    string
	ReviewErrorPolicy string
	Port              string
	LogLevel          string
	AllowOrigin       string
}

// Option overrides a value after the environment has been read.
type Option func(*Config)

// WithRepos replaces GITHUB_REPOS with a comma-separated list. An empty list
// leaves the environment value in place.
func WithRepos(list string) Option {
	return func(cfg *Config) {
		if repos := SplitRepos(list); len(repos) > 0 {
			cfg.Repos = repos
		}
	}
}

// Load reads an optional .env file and then the environment, then applies
// opts. The returned error names every required variable that is missing or
// malformed.
func Load(opts ...Option) (Config, error) {
	// A missing .env file is fine; the environment alone may be enough.
	_ = godotenv.Load()

	cfg := Config{
		GitHubToken:       os.Getenv("GITHUB_TOKEN"),
		GitHubOrg:         os.Getenv("GITHUB_ORG"),
		Repos:             SplitRepos(os.Getenv("GITHUB_REPOS")),
		GitHubAPIURL:      os.Getenv("GITHUB_API_URL"),
		AssistantLogin:    getEnv("ASSISTANT_LOGIN", defaultAssistantLogin),
		ReviewErrorPolicy: getEnv("REVIEW_ERROR_POLICY", defaultReviewErrorPolicy),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          getEnv("LOG_LEVEL", defaultLogLevel),
		AllowOrigin:       getEnv("CORS_ORIGIN", defaultAllowOrigin),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var errs []error
	if cfg.GitHubToken == "" {
		errs = append(errs, errors.New("GITHUB_TOKEN is required"))
	}
	if cfg.GitHubOrg == "" {
		errs = append(errs, errors.New("GITHUB_ORG is required"))
	}
	if len(cfg.Repos) == 0 {
		errs = append(errs, errors.New("GITHUB_REPOS is required"))
	}

	var err error
	if cfg.DaysRange, err = getEnvInt("DAYS_RANGE", defaultDaysRange); err != nil {
		errs = append(errs, err)
	} else if cfg.DaysRange <= 0 {
		errs = append(errs, fmt.Errorf("DAYS_RANGE must be positive, got %d", cfg.DaysRange))
	}
	if cfg.PageSize, err = getEnvInt("PAGE_SIZE", defaultPageSize); err != nil {
		errs = append(errs, err)
	} else if cfg.PageSize < 1 || cfg.PageSize > 100 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be between 1 and 100, got %d", cfg.PageSize))
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// SplitRepos parses a comma-separated repository list, dropping blanks.
func SplitRepos(s string) []string {
	var repos []string
	for _, repo := range strings.Split(s, ",") {
		if repo = strings.TrimSpace(repo); repo != "" {
			repos = append(repos, repo)
		}
	}
	return repos
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return i, nil
}
