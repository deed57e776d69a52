// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/incubyte/copilot-stats/internal/domain"
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	// ListClosedPullRequests returns one page of closed pull requests, newest first.
	ListClosedPullRequests(ctx context.Context, repo string, page, perPage int) ([]domain.PullRequest, error)
	// ListReviews returns every review of a pull request in submission order.
	ListReviews(ctx context.Context, repo string, number int) ([]domain.Review, error)
	// Viewer returns the login the credential authenticates as.
	Viewer(ctx context.Context) (string, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	org           string
	logger        *logrus.Logger
}

// viewerQuery resolves the authenticated login.
type viewerQuery struct {
	Viewer struct {
		Login githubv4.String
	}
}

// Options configures NewGitHubGateway.
type Options struct {
	Token string
	Org   string
	// APIURL is the REST base URL of a GitHub Enterprise Server; empty means github.com.
	APIURL string
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opts Options, logger *logrus.Logger) (*GitHubGateway, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", domain.ErrUnauthorized)
	}
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if opts.APIURL != "" {
		restClient, err = restClient.WithEnterpriseURLs(opts.APIURL, opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise URL: %w", err)
		}
		graphqlClient = githubv4.NewEnterpriseClient(graphqlURL(opts.APIURL), httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		org:           opts.Org,
		logger:        logger,
	}, nil
}

// graphqlURL derives the GraphQL endpoint from an enterprise REST base URL
// (https://host/api/v3 -> https://host/api/graphql).
func graphqlURL(apiURL string) string {
	base := strings.TrimSuffix(apiURL, "/")
	base = strings.TrimSuffix(base, "/v3")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	return base + "/graphql"
}

func (g *GitHubGateway) ListClosedPullRequests(ctx context.Context, repo string, page, perPage int) ([]domain.PullRequest, error) {
	g.logger.WithFields(logrus.Fields{"repo": repo, "page": page}).Debug("Fetching closed pull requests...")
	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}
	pulls, _, err := g.restClient.PullRequests.List(ctx, g.org, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests with REST API: %w", markUnauthorized(err))
	}

	prs := make([]domain.PullRequest, 0, len(pulls))
	for _, pull := range pulls {
		prs = append(prs, domain.PullRequest{
			Number:   pull.GetNumber(),
			Title:    pull.GetTitle(),
			Author:   pull.GetUser().GetLogin(),
			ClosedAt: pull.GetClosedAt().Time,
			Repo:     repo,
			Body:     pull.GetBody(),
		})
	}
	return prs, nil
}

func (g *GitHubGateway) ListReviews(ctx context.Context, repo string, number int) ([]domain.Review, error) {
	g.logger.WithFields(logrus.Fields{"repo": repo, "number": number}).Debug("Fetching reviews...")
	opts := &github.ListOptions{PerPage: 100}
	var reviews []domain.Review
	for {
		result, resp, err := g.restClient.PullRequests.ListReviews(ctx, g.org, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list reviews with REST API: %w", markUnauthorized(err))
		}
		for _, review := range result {
			reviews = append(reviews, domain.Review{
				Login: review.GetUser().GetLogin(),
				Type:  review.GetUser().GetType(),
				Body:  review.GetBody(),
				URL:   review.GetHTMLURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.WithField("repo", repo).Debug("  Fetching next page of reviews...")
	}
	return reviews, nil
}

// Viewer resolves the login of the credential with a GraphQL viewer query.
// The GraphQL client reports HTTP failures as plain text, so when the query
// fails the REST user endpoint decides whether the credential was rejected.
func (g *GitHubGateway) Viewer(ctx context.Context) (string, error) {
	var q viewerQuery
	if err := g.graphqlClient.Query(ctx, &q, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("failed to execute GraphQL viewer query: %w", ctxErr)
		}
		g.logger.WithError(err).Debug("Viewer query failed, checking credential with REST API...")
		if _, _, restErr := g.restClient.Users.Get(ctx, ""); restErr != nil {
			if marked := markUnauthorized(restErr); errors.Is(marked, domain.ErrUnauthorized) {
				err = marked
			}
		}
		return "", &domain.FetchError{Operation: domain.OpViewer, Err: fmt.Errorf("failed to execute GraphQL viewer query: %w", err)}
	}
	login := string(q.Viewer.Login)
	if login == "" {
		return "", fmt.Errorf("failed to resolve viewer login: %w", domain.ErrUnauthorized)
	}
	return login, nil
}

// markUnauthorized marks 401 responses as ErrUnauthorized so callers can tell a bad
// credential apart from other upstream failures.
func markUnauthorized(err error) error {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return err
}
