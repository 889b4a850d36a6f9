package models

import (
	"strings"
	"time"
)

// Repository identifies a GitHub repository to watch
type Repository struct {
	Owner string `yaml:"owner" validate:"required"`
	Name  string `yaml:"repo" validate:"required"`
	Icon  string `yaml:"icon"` // Slack emoji code shown next to the heading
}

// FullName returns "owner/name"
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// ReviewState is the state of a single pull request review
type ReviewState string

const (
	ReviewStateApproved         ReviewState = "approved"
	ReviewStateChangesRequested ReviewState = "changes_requested"
	ReviewStateCommented        ReviewState = "commented"
	ReviewStatePending          ReviewState = "pending"
	ReviewStateDismissed        ReviewState = "dismissed"
	ReviewStateUnknown          ReviewState = "unknown"
)

// ParseReviewState converts a GitHub API review state (e.g. "CHANGES_REQUESTED")
// into a ReviewState.
func ParseReviewState(s string) ReviewState {
	switch state := ReviewState(strings.ToLower(strings.TrimSpace(s))); state {
	case ReviewStateApproved, ReviewStateChangesRequested, ReviewStateCommented,
		ReviewStatePending, ReviewStateDismissed:
		return state
	default:
		return ReviewStateUnknown
	}
}

// Status is the merge readiness bucket of a pull request
type Status string

const (
	StatusReadyForMerge Status = "ready_for_merge"
	StatusPendingReview Status = "pending_review"
)

// Review represents one review submitted on a pull request
type Review struct {
	Reviewer    string
	State       ReviewState
	SubmittedAt time.Time // zero for pending reviews
}

// PullRequest represents an open GitHub pull request with its reviews
type PullRequest struct {
	Number             int
	Title              string
	Author             string
	URL                string
	Repository         Repository
	Draft              bool
	Labels             []string
	RequestedReviewers []string
	Reviews            []Review
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RepositoryPullRequests groups the open pull requests of one repository
type RepositoryPullRequests struct {
	Repository   Repository
	PullRequests []PullRequest
}
