package notifier

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"

	"pr-review-digest/internal/config"
	"pr-review-digest/internal/digest"
)

// maxBlocks is the Slack limit of blocks per message
const maxBlocks = 50

// ErrNoSlackDestination is returned when neither a webhook nor a bot token is configured
var ErrNoSlackDestination = errors.New("slack: no webhook URL or bot token configured")

// SlackNotifier posts the digest to Slack through an incoming webhook or,
// when no webhook is configured, through chat.postMessage.
type SlackNotifier struct {
	config     config.SlackConfig
	httpClient *http.Client
	api        *slack.Client
}

// NewSlackNotifier creates a Slack notifier. apiOptions are passed to the
// Slack Web API client and are ignored in webhook mode.
func NewSlackNotifier(cfg config.SlackConfig, httpClient *http.Client, apiOptions ...slack.Option) (*SlackNotifier, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	n := &SlackNotifier{config: cfg, httpClient: httpClient}
	switch {
	case cfg.WebhookURL != "":
	case cfg.BotToken != "":
		opts := append([]slack.Option{slack.OptionHTTPClient(httpClient)}, apiOptions...)
		n.api = slack.New(cfg.BotToken, opts...)
	default:
		return nil, ErrNoSlackDestination
	}
	return n, nil
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

// Notify sends the digest as one Slack message
func (s *SlackNotifier) Notify(ctx context.Context, d *digest.Digest) error {
	text := digest.Render(d)
	blocks := buildBlocks(d)
	if len(blocks) > maxBlocks {
		slog.Warn("Digest exceeds Slack block limit, sending plain text", "blocks", len(blocks), "limit", maxBlocks)
		blocks = nil
	}

	if s.api != nil {
		return s.postMessage(ctx, text, blocks)
	}
	return s.postWebhook(ctx, text, blocks)
}

func (s *SlackNotifier) postWebhook(ctx context.Context, text string, blocks []slack.Block) error {
	msg := &slack.WebhookMessage{
		Username:  s.config.Username,
		IconEmoji: s.config.IconEmoji,
		Text:      text,
	}
	if len(blocks) > 0 {
		msg.Blocks = &slack.Blocks{BlockSet: blocks}
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, s.config.WebhookURL, s.httpClient, msg); err != nil {
		return errors.Wrap(err, "posting Slack webhook")
	}
	slog.Info("Slack webhook notification sent")
	return nil
}

func (s *SlackNotifier) postMessage(ctx context.Context, text string, blocks []slack.Block) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	if s.config.Username != "" {
		opts = append(opts, slack.MsgOptionUsername(s.config.Username))
	}
	if s.config.IconEmoji != "" {
		opts = append(opts, slack.MsgOptionIconEmoji(s.config.IconEmoji))
	}

	channel, ts, err := s.api.PostMessageContext(ctx, s.config.Channel, opts...)
	if err != nil {
		return errors.Wrapf(err, "posting Slack message to %s", s.config.Channel)
	}
	slog.Info("Slack message posted", "channel", channel, "ts", ts)
	return nil
}

func buildBlocks(d *digest.Digest) []slack.Block {
	if d.Empty() {
		return []slack.Block{mrkdwnSection(digest.EmptyText)}
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, d.Title(), true, false)),
		slack.NewDividerBlock(),
	}
	for _, g := range d.Groups {
		blocks = append(blocks, mrkdwnSection(digest.Heading(g.Repository)))

		blocks = append(blocks, mrkdwnSection(digest.ReadyHeading))
		if len(g.Ready) == 0 {
			blocks = append(blocks, mrkdwnSection(digest.NoneText))
		}
		for _, e := range g.Ready {
			blocks = append(blocks, mrkdwnSection(digest.Line(e)))
		}

		blocks = append(blocks, mrkdwnSection(digest.PendingHeading))
		if len(g.Pending) == 0 {
			blocks = append(blocks, mrkdwnSection(digest.NoneText))
		}
		for _, e := range g.Pending {
			blocks = append(blocks, mrkdwnSection(pendingText(e)))
		}

		blocks = append(blocks, slack.NewDividerBlock())
	}
	return blocks
}

// pendingText adds the quoted reviewer list and labels under the PR line
func pendingText(e digest.Entry) string {
	var b strings.Builder
	b.WriteString(digest.Line(e))
	b.WriteString("\n> *Reviewers:*")
	for _, line := range digest.ReviewerLines(e) {
		b.WriteString("\n> ")
		b.WriteString(line)
	}
	b.WriteString("\n> *Labels:* ")
	b.WriteString(digest.Labels(e.PullRequest))
	return b.String()
}

func mrkdwnSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}
