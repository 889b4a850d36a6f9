package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"

	"pr-review-digest/internal/config"
	"pr-review-digest/internal/digest"
	"pr-review-digest/internal/review"
)

// TeamsNotifier posts the digest as a MessageCard to a Microsoft Teams webhook
type TeamsNotifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(cfg config.TeamsConfig, httpClient *http.Client) *TeamsNotifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TeamsNotifier{webhookURL: cfg.WebhookURL, httpClient: httpClient}
}

func (t *TeamsNotifier) Name() string {
	return "teams"
}

// Notify sends the digest to Teams
func (t *TeamsNotifier) Notify(ctx context.Context, d *digest.Digest) error {
	payload, err := generateTeamsPayload(d)
	if err != nil {
		return errors.Wrap(err, "generating Teams payload")
	}
	return t.send(ctx, payload)
}

func generateTeamsPayload(d *digest.Digest) ([]byte, error) {
	themeColor := "2EB67D"
	sections := []map[string]any{
		{
			"activityTitle":    d.Title(),
			"activitySubtitle": "Open pull requests grouped by review status",
		},
	}
	if d.Empty() {
		sections[0]["activitySubtitle"] = "No open pull requests found in any repository"
	}

	for _, g := range d.Groups {
		var facts []map[string]any
		for _, e := range g.Ready {
			facts = append(facts, teamsFact(e))
		}
		for _, e := range g.Pending {
			facts = append(facts, teamsFact(e))
			themeColor = "ECB22E"
		}
		sections = append(sections, map[string]any{
			"activityTitle": fmt.Sprintf("Repository: %s", g.Repository.FullName()),
			"text":          fmt.Sprintf("%d ready for merge, %d pending reviews", len(g.Ready), len(g.Pending)),
			"facts":         facts,
		})
	}

	payload := map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": themeColor,
		"summary":    d.Title(),
		"sections":   sections,
	}
	return json.Marshal(payload)
}

func teamsFact(e digest.Entry) map[string]any {
	pr := e.PullRequest
	c := e.Classification
	return map[string]any{
		"name": fmt.Sprintf("PR #%d %s", pr.Number, review.StatusEmoji(c.Status)),
		"value": fmt.Sprintf("[%s](%s) by %s %s (%d approvals)",
			pr.Title, pr.URL, pr.Author, c.EmojiLine(), c.Approvals),
	}
}

func (t *TeamsNotifier) send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "creating Teams request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending Teams notification")
	}
	defer resp.Body.Close()

	// classic connectors answer 200, workflow webhooks 202
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("Teams notification failed with status: %d", resp.StatusCode)
	}

	slog.Info("Teams notification sent successfully")
	return nil
}
