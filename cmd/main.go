package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"pr-review-digest/internal/config"
	"pr-review-digest/internal/digest"
	"pr-review-digest/internal/github"
	"pr-review-digest/internal/logger"
	"pr-review-digest/internal/notifier"
	"pr-review-digest/pkg/models"
)

// pullRequestSource lists the open pull requests of a repository
type pullRequestSource interface {
	ListOpenPullRequests(ctx context.Context, repo models.Repository) ([]models.PullRequest, error)
}

func main() {
	// Load configuration
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Log, "run_id", uuid.NewString())

	repoNames := make([]string, 0, len(cfg.GitHub.Repositories))
	for _, repo := range cfg.GitHub.Repositories {
		repoNames = append(repoNames, repo.FullName())
	}
	slog.Info("PR review digest started",
		"repositories", repoNames,
		"required_approvals", cfg.Review.RequiredApprovals,
		"log_level", cfg.Log.Level)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		slog.Info("Interrupted, cancelling run...")
		cancel()
	}()

	githubClient, err := github.NewClient(ctx, cfg.GitHub)
	if err != nil {
		slog.Error("Failed to create GitHub client", "error", err)
		os.Exit(1)
	}

	login, err := githubClient.TestConnection(ctx)
	if err != nil {
		slog.Error("GitHub connection test failed", "error", err)
		os.Exit(1)
	}
	slog.Info("GitHub connection test succeeded", "login", login)

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		slog.Error("Failed to configure notifiers", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, githubClient, notifiers, time.Now()); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}

	slog.Info("Digest run complete.")
}

// buildNotifiers returns Slack plus any optional channel that is configured
func buildNotifiers(cfg *config.Config) ([]notifier.Notifier, error) {
	httpClient := &http.Client{Timeout: time.Duration(cfg.GitHub.TimeoutSeconds) * time.Second}

	slackNotifier, err := notifier.NewSlackNotifier(cfg.Notifiers.Slack, httpClient)
	if err != nil {
		return nil, err
	}
	notifiers := []notifier.Notifier{slackNotifier}

	if cfg.Notifiers.Teams.Enabled() {
		notifiers = append(notifiers, notifier.NewTeamsNotifier(cfg.Notifiers.Teams, httpClient))
	}
	if cfg.Notifiers.SMTP.Enabled() {
		notifiers = append(notifiers, notifier.NewEmailNotifier(cfg.Notifiers.SMTP))
	}
	return notifiers, nil
}

// run fetches, classifies and publishes one digest. The first fetch or
// delivery error aborts the run.
func run(ctx context.Context, cfg *config.Config, source pullRequestSource, notifiers []notifier.Notifier, now time.Time) error {
	var repos []models.RepositoryPullRequests

	for _, repo := range cfg.GitHub.Repositories {
		slog.Info("Fetching open PRs for repository", "repo", repo.FullName())
		prs, err := source.ListOpenPullRequests(ctx, repo)
		if err != nil {
			return errors.Wrapf(err, "fetching pull requests for %s", repo.FullName())
		}
		slog.Info("Total open PRs", "repo", repo.FullName(), "total", len(prs))

		filtered := github.FilterPullRequests(prs, cfg.Review.IgnoreKeywords, cfg.Review.SkipDrafts)
		slog.Info("PRs after filter", "repo", repo.FullName(), "filtered_total", len(filtered))

		repos = append(repos, models.RepositoryPullRequests{Repository: repo, PullRequests: filtered})
	}

	d := digest.Build(repos, cfg.Review.RequiredApprovals, now)
	if d.Empty() && !cfg.Notifiers.Slack.NotifyWhenEmpty {
		slog.Info("No open PRs found, skipping notification")
		return nil
	}

	slog.Info("Sending digest", "open_prs", d.Total, "repositories", len(d.Groups), "notifiers", len(notifiers))
	for _, n := range notifiers {
		if err := n.Notify(ctx, d); err != nil {
			return errors.Wrapf(err, "notifying via %s", n.Name())
		}
		slog.Info("Digest delivered", "notifier", n.Name())
	}
	return nil
}
