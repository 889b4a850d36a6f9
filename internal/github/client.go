package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v57/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"pr-review-digest/internal/config"
	"pr-review-digest/pkg/models"
)

const perPage = 100

var (
	// ErrUnauthorized is returned when GitHub rejects the token
	ErrUnauthorized = errors.New("github: bad credentials")
	// ErrRateLimited is returned when the API rate limit is exhausted
	ErrRateLimited = errors.New("github: rate limit exceeded")
)

// Client reads pull requests and reviews from the GitHub REST API
type Client struct {
	gh *gogithub.Client
}

// NewClient creates a GitHub client authenticated with the configured token
func NewClient(ctx context.Context, cfg config.GitHubConfig) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second

	gh := gogithub.NewClient(tc)
	if cfg.APIURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(cfg.APIURL, cfg.APIURL)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid GitHub API URL %q", cfg.APIURL)
		}
	}
	return &Client{gh: gh}, nil
}

// NewClientFromHTTP wraps an existing HTTP client and talks to baseURL as-is
func NewClientFromHTTP(hc *http.Client, baseURL string) (*Client, error) {
	gh := gogithub.NewClient(hc)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid GitHub API URL %q", baseURL)
		}
		gh.BaseURL = u
	}
	return &Client{gh: gh}, nil
}

// TestConnection checks that the API is reachable and the token is valid.
// It returns the login of the authenticated user.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", wrapAPIError(err, "testing GitHub connection")
	}
	return user.GetLogin(), nil
}

// ListOpenPullRequests fetches the open pull requests of repo, most recently
// updated first, each with all of its reviews.
func (c *Client) ListOpenPullRequests(ctx context.Context, repo models.Repository) ([]models.PullRequest, error) {
	opts := &gogithub.PullRequestListOptions{
		State:       "open",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gogithub.ListOptions{PerPage: perPage},
	}

	var prs []models.PullRequest
	for {
		page, resp, err := c.gh.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, wrapAPIError(err, "listing pull requests for "+repo.FullName())
		}
		for _, ghPR := range page {
			pr := convertPullRequest(ghPR, repo)
			slog.Debug("Fetching reviews for PR", "repo", repo.FullName(), "pr", pr.Number)
			pr.Reviews, err = c.listReviews(ctx, repo, pr.Number)
			if err != nil {
				return nil, err
			}
			prs = append(prs, pr)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return prs, nil
}

func (c *Client) listReviews(ctx context.Context, repo models.Repository, number int) ([]models.Review, error) {
	opts := &gogithub.ListOptions{PerPage: perPage}

	var reviews []models.Review
	for {
		page, resp, err := c.gh.PullRequests.ListReviews(ctx, repo.Owner, repo.Name, number, opts)
		if err != nil {
			return nil, wrapAPIError(err, fmt.Sprintf("listing reviews for %s#%d", repo.FullName(), number))
		}
		for _, r := range page {
			reviews = append(reviews, models.Review{
				Reviewer:    r.GetUser().GetLogin(),
				State:       models.ParseReviewState(r.GetState()),
				SubmittedAt: r.GetSubmittedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return reviews, nil
}

func convertPullRequest(ghPR *gogithub.PullRequest, repo models.Repository) models.PullRequest {
	pr := models.PullRequest{
		Number:     ghPR.GetNumber(),
		Title:      ghPR.GetTitle(),
		Author:     ghPR.GetUser().GetLogin(),
		URL:        ghPR.GetHTMLURL(),
		Repository: repo,
		Draft:      ghPR.GetDraft(),
		CreatedAt:  ghPR.GetCreatedAt().Time,
		UpdatedAt:  ghPR.GetUpdatedAt().Time,
	}
	for _, label := range ghPR.Labels {
		pr.Labels = append(pr.Labels, label.GetName())
	}
	for _, user := range ghPR.RequestedReviewers {
		pr.RequestedReviewers = append(pr.RequestedReviewers, user.GetLogin())
	}
	return pr
}

func wrapAPIError(err error, op string) error {
	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return errors.Wrapf(ErrRateLimited, "%s: resets at %s", op, rateErr.Rate.Reset.Time.Format(time.RFC3339))
	}
	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return errors.Wrapf(ErrRateLimited, "%s: secondary rate limit: %v", op, abuseErr.Message)
	}
	var respErr *gogithub.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusUnauthorized {
		return errors.Wrapf(ErrUnauthorized, "%s: %s", op, respErr.Message)
	}
	return errors.Wrap(err, op)
}

// FilterPullRequests drops pull requests whose title contains one of the
// ignore keywords (case-insensitive) and, when skipDrafts is set, drafts.
func FilterPullRequests(prs []models.PullRequest, ignoreKeywords []string, skipDrafts bool) []models.PullRequest {
	var filtered []models.PullRequest
	for _, pr := range prs {
		if skipDrafts && pr.Draft {
			continue
		}
		if containsIgnoreKeyword(pr.Title, ignoreKeywords) {
			continue
		}
		filtered = append(filtered, pr)
	}
	return filtered
}

func containsIgnoreKeyword(title string, keywords []string) bool {
	titleLower := strings.ToLower(title)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(titleLower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
