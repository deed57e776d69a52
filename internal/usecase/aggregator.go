// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/incubyte/copilot-stats/internal/domain"
	"github.com/incubyte/copilot-stats/internal/gateway"
)

// ReviewErrorPolicy decides what a failed review fetch does to a run.
type ReviewErrorPolicy string

const (
	// PolicyFail aborts the whole run.
	PolicyFail ReviewErrorPolicy = "fail"
	// PolicyMark keeps going and records the pull request as unclassified.
	PolicyMark ReviewErrorPolicy = "mark"
)

// ParseReviewErrorPolicy parses a policy name; empty means PolicyFail.
func ParseReviewErrorPolicy(s string) (ReviewErrorPolicy, error) {
	switch ReviewErrorPolicy(s) {
	case "", PolicyFail:
		return PolicyFail, nil
	case PolicyMark:
		return PolicyMark, nil
	default:
		return "", fmt.Errorf("unknown review error policy %q", s)
	}
}

// Aggregator is the use case for aggregating assistant usage.
// It walks the configured repositories one after another and folds every
// pull request into a report owned by that run.
type Aggregator struct {
	fetcher    gateway.Fetcher
	window     *WindowFetcher
	classifier *ReviewClassifier
	policy     ReviewErrorPolicy
	logger     *logrus.Logger
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, window *WindowFetcher, classifier *ReviewClassifier, policy ReviewErrorPolicy, logger *logrus.Logger) *Aggregator {
	if policy == "" {
		policy = PolicyFail
	}
	return &Aggregator{
		fetcher:    fetcher,
		window:     window,
		classifier: classifier,
		policy:     policy,
		logger:     logger,
	}
}

// Aggregate performs a full run and returns the completed report.
// Any upstream failure fails the run; no partial report is returned.
func (a *Aggregator) Aggregate(ctx context.Context, cfg domain.RunConfig) (*domain.Report, error) {
	report, _, err := a.walk(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Stream performs a run lazily. It yields one progress event per classified
// pull request, each carrying a snapshot of the aggregate so far, and then a
// single complete event with the finished report. A failed run yields one
// error instead of the complete event. When the consumer stops iterating no
// further upstream calls are made.
func (a *Aggregator) Stream(ctx context.Context, cfg domain.RunConfig) iter.Seq2[domain.Event, error] {
	return func(yield func(domain.Event, error) bool) {
		report, stopped, err := a.walk(ctx, cfg, func(repo string, number int, r *domain.Report) bool {
			return yield(domain.Event{Type: domain.EventProgress, Repo: repo, Number: number, Report: r.Clone()}, nil)
		})
		if stopped {
			a.logger.Info("Usecase: Consumer stopped reading, aggregation abandoned.")
			return
		}
		if err != nil {
			yield(domain.Event{}, err)
			return
		}
		yield(domain.Event{Type: domain.EventComplete, Report: report}, nil)
	}
}

// aggregation is the state of exactly one run.
type aggregation struct {
	report *domain.Report
	seen   map[string]map[int]struct{}
}

// walk runs the aggregation. progress, if set, is called after every
// classified pull request; returning false stops the walk and reports
// stopped = true.
func (a *Aggregator) walk(ctx context.Context, cfg domain.RunConfig, progress func(repo string, number int, r *domain.Report) bool) (*domain.Report, bool, error) {
	a.logger.WithFields(logrus.Fields{"repos": len(cfg.Repos), "days": cfg.WindowDays}).Info("Usecase: Starting usage aggregation...")

	run := &aggregation{
		report: domain.NewReport(),
		seen:   make(map[string]map[int]struct{}),
	}

	for _, repo := range cfg.Repos {
		prs, err := a.window.Fetch(ctx, repo, cfg.WindowDays)
		if err != nil {
			return nil, false, err
		}
		if _, ok := run.report.ReviewedByRepo[repo]; !ok {
			run.report.ReviewedByRepo[repo] = []domain.PullRequest{}
		}
		if run.seen[repo] == nil {
			run.seen[repo] = make(map[int]struct{})
		}

		for _, pr := range prs {
			if _, dup := run.seen[repo][pr.Number]; dup {
				a.logger.WithFields(logrus.Fields{"repo": repo, "number": pr.Number}).Debug("Skipping pull request seen on an earlier page.")
				continue
			}
			run.seen[repo][pr.Number] = struct{}{}

			if err := a.classify(ctx, run, repo, pr); err != nil {
				return nil, false, err
			}
			if progress != nil && !progress(repo, pr.Number, run.report) {
				return nil, true, nil
			}
		}
		a.logger.WithFields(logrus.Fields{
			"repo":     repo,
			"scanned":  len(prs),
			"reviewed": len(run.report.ReviewedByRepo[repo]),
		}).Info("Usecase: Repository aggregated.")
	}

	run.report.Summary = Summarize(run.report)
	a.logger.Info("Usecase: Aggregation complete.")
	return run.report, false, nil
}

// classify folds one pull request into the run.
func (a *Aggregator) classify(ctx context.Context, run *aggregation, repo string, pr domain.PullRequest) error {
	pr.Usage = ParseUsage(pr.Body)
	run.report.Totals = run.report.Totals.Add(pr.Usage)
	run.report.Scanned++

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("aggregation cancelled: %w", err)
	}
	reviews, err := a.fetcher.ListReviews(ctx, repo, pr.Number)
	if err != nil {
		fetchErr := &domain.FetchError{Repo: repo, Operation: domain.OpListReviews, Number: pr.Number, Err: err}
		if a.policy != PolicyMark || errors.Is(err, domain.ErrUnauthorized) || ctx.Err() != nil {
			return fetchErr
		}
		a.logger.WithError(fetchErr).Warn("Usecase: Review fetch failed, marking pull request unclassified.")
		if run.report.Unclassified == nil {
			run.report.Unclassified = make(map[string][]int)
		}
		run.report.Unclassified[repo] = append(run.report.Unclassified[repo], pr.Number)
		return nil
	}

	review := a.classifier.Classify(reviews)
	if review == nil {
		return nil
	}
	pr.AssistantReview = review
	run.report.Totals.Review++
	run.report.ReviewedByRepo[repo] = append(run.report.ReviewedByRepo[repo], pr)
	return nil
}
