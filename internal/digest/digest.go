// Package digest groups classified pull requests by repository and renders
// them as Slack mrkdwn text.
package digest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"pr-review-digest/internal/review"
	"pr-review-digest/pkg/models"
)

// Entry is a pull request together with its classification
type Entry struct {
	PullRequest    models.PullRequest
	Classification review.Classification
}

// Group holds the entries of one repository split by status
type Group struct {
	Repository models.Repository
	Ready      []Entry
	Pending    []Entry
}

// Digest is the report sent to the notifiers
type Digest struct {
	GeneratedAt time.Time
	Total       int
	Groups      []Group
}

// Empty reports whether the digest has no pull requests
func (d *Digest) Empty() bool {
	return d.Total == 0
}

// Title is the report headline, e.g. "📊 PR Status Report (2026-10-19) - 3 open PRs"
func (d *Digest) Title() string {
	return fmt.Sprintf("📊 PR Status Report (%s) - %d open PRs", d.GeneratedAt.Format("2006-01-02"), d.Total)
}

// Build classifies every pull request and groups them per repository.
// Repositories without pull requests are left out and groups are sorted by
// full name; pull request order inside a group is preserved.
func Build(repos []models.RepositoryPullRequests, requiredApprovals int, now time.Time) *Digest {
	d := &Digest{GeneratedAt: now}
	for _, repo := range repos {
		if len(repo.PullRequests) == 0 {
			continue
		}
		g := Group{Repository: repo.Repository}
		for _, pr := range repo.PullRequests {
			e := Entry{PullRequest: pr, Classification: review.Classify(pr, requiredApprovals)}
			if e.Classification.Status == models.StatusReadyForMerge {
				g.Ready = append(g.Ready, e)
			} else {
				g.Pending = append(g.Pending, e)
			}
			d.Total++
		}
		d.Groups = append(d.Groups, g)
	}
	sort.SliceStable(d.Groups, func(i, j int) bool {
		return d.Groups[i].Repository.FullName() < d.Groups[j].Repository.FullName()
	})
	return d
}

const (
	EmptyText          = "*No open PRs found in any repository*"
	ReadyHeading       = "*✅ Ready for Merge*"
	PendingHeading     = "*🕐 Pending Reviews*"
	NoneText           = "_None_"
	noReviewersText    = "No reviewers assigned"
	noLabelsText       = "No labels"
	reviewerLinePrefix = "• "
)

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape escapes the characters Slack treats as control sequences
func Escape(s string) string {
	return escaper.Replace(s)
}

// Heading renders the repository heading line
func Heading(repo models.Repository) string {
	heading := "*" + Escape(repo.FullName()) + "*"
	if repo.Icon != "" {
		heading = repo.Icon + " " + heading
	}
	return heading
}

// Line renders one pull request as a single line:
// "• <url|#12: title> by author ✅ ✔️✔️🗨️"
func Line(e Entry) string {
	pr := e.PullRequest
	link := fmt.Sprintf("#%d: %s", pr.Number, Escape(pr.Title))
	if pr.URL != "" {
		link = fmt.Sprintf("<%s|%s>", pr.URL, link)
	}

	var b strings.Builder
	b.WriteString(reviewerLinePrefix)
	b.WriteString(link)
	if pr.Author != "" {
		b.WriteString(" by ")
		b.WriteString(Escape(pr.Author))
	}
	b.WriteString(" ")
	b.WriteString(review.StatusEmoji(e.Classification.Status))
	if emojis := e.Classification.EmojiLine(); emojis != "" {
		b.WriteString(" ")
		b.WriteString(emojis)
	}
	return b.String()
}

// ReviewerLines lists every reviewer with the emoji of their effective state
func ReviewerLines(e Entry) []string {
	if len(e.Classification.Reviewers) == 0 {
		return []string{noReviewersText}
	}
	lines := make([]string, 0, len(e.Classification.Reviewers))
	for _, r := range e.Classification.Reviewers {
		lines = append(lines, reviewerLinePrefix+Escape(r.Login)+" "+review.Emoji(r.State))
	}
	return lines
}

// Labels renders the label list of a pull request
func Labels(pr models.PullRequest) string {
	if len(pr.Labels) == 0 {
		return noLabelsText
	}
	return Escape(strings.Join(pr.Labels, ", "))
}

// Render produces the whole digest as Slack mrkdwn text
func Render(d *Digest) string {
	if d.Empty() {
		return EmptyText
	}

	var b strings.Builder
	b.WriteString(d.Title())
	b.WriteString("\n")
	for _, g := range d.Groups {
		b.WriteString("\n")
		b.WriteString(Heading(g.Repository))
		b.WriteString("\n")
		writeSection(&b, ReadyHeading, g.Ready)
		writeSection(&b, PendingHeading, g.Pending)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, heading string, entries []Entry) {
	b.WriteString(heading)
	b.WriteString("\n")
	if len(entries) == 0 {
		b.WriteString(NoneText)
		b.WriteString("\n")
		return
	}
	for _, e := range entries {
		b.WriteString(Line(e))
		b.WriteString("\n")
	}
}
