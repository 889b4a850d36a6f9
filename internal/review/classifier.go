package review

import (
	"sort"
	"strings"

	"pr-review-digest/pkg/models"
)

// DefaultRequiredApprovals is the number of approvals that makes a PR ready for merge
const DefaultRequiredApprovals = 2

var stateEmoji = map[models.ReviewState]string{
	models.ReviewStateApproved:         "✔️",
	models.ReviewStateChangesRequested: "❌",
	models.ReviewStateCommented:        "🗨️",
	models.ReviewStatePending:          "⏳",
	models.ReviewStateDismissed:        "🚫",
}

// ReviewerStatus is the effective review state of one reviewer on a PR
type ReviewerStatus struct {
	Login     string
	State     models.ReviewState
	Requested bool
}

// Classification is the summarized review state of a pull request
type Classification struct {
	Status    models.Status
	Approvals int
	Reviewers []ReviewerStatus
}

// EmojiLine concatenates the reviewer emojis in reviewer order
func (c Classification) EmojiLine() string {
	var b strings.Builder
	for _, r := range c.Reviewers {
		b.WriteString(Emoji(r.State))
	}
	return b.String()
}

// Emoji maps a review state to its emoji
func Emoji(state models.ReviewState) string {
	if e, ok := stateEmoji[state]; ok {
		return e
	}
	return "⚪"
}

// StatusEmoji maps a merge readiness bucket to its emoji
func StatusEmoji(status models.Status) string {
	if status == models.StatusReadyForMerge {
		return "✅"
	}
	return "🕐"
}

// EffectiveReviews keeps only the latest review of each reviewer. On equal
// timestamps the review that comes later in the input wins. The result is
// ordered by reviewer login.
func EffectiveReviews(reviews []models.Review) []models.Review {
	latest := make(map[string]models.Review, len(reviews))
	for _, r := range reviews {
		if r.Reviewer == "" {
			continue
		}
		prev, seen := latest[r.Reviewer]
		if !seen || !r.SubmittedAt.Before(prev.SubmittedAt) {
			latest[r.Reviewer] = r
		}
	}

	effective := make([]models.Review, 0, len(latest))
	for _, r := range latest {
		effective = append(effective, r)
	}
	sort.Slice(effective, func(i, j int) bool {
		return effective[i].Reviewer < effective[j].Reviewer
	})
	return effective
}

// Classify computes the status bucket and per-reviewer states of a PR.
// A requiredApprovals value below 1 falls back to DefaultRequiredApprovals.
func Classify(pr models.PullRequest, requiredApprovals int) Classification {
	if requiredApprovals < 1 {
		requiredApprovals = DefaultRequiredApprovals
	}

	requested := make(map[string]bool, len(pr.RequestedReviewers))
	for _, login := range pr.RequestedReviewers {
		requested[login] = true
	}

	var c Classification
	states := make(map[string]models.ReviewState)
	for _, r := range EffectiveReviews(pr.Reviews) {
		states[r.Reviewer] = r.State
		if r.State == models.ReviewStateApproved {
			c.Approvals++
		}
	}
	for login := range requested {
		if _, ok := states[login]; !ok {
			states[login] = models.ReviewStatePending
		}
	}

	for login, state := range states {
		c.Reviewers = append(c.Reviewers, ReviewerStatus{
			Login:     login,
			State:     state,
			Requested: requested[login],
		})
	}
	sort.Slice(c.Reviewers, func(i, j int) bool {
		a, b := c.Reviewers[i], c.Reviewers[j]
		if a.Requested != b.Requested {
			return a.Requested
		}
		return a.Login < b.Login
	})

	c.Status = models.StatusPendingReview
	if c.Approvals >= requiredApprovals {
		c.Status = models.StatusReadyForMerge
	}
	return c
}
