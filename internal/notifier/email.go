package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"pr-review-digest/internal/config"
	"pr-review-digest/internal/digest"
)

const emailTemplate = `{{.Title}}
{{if .Empty}}
No open pull requests found in any repository.
{{end}}{{range .Groups}}
Repository: {{.Repository.FullName}}

Ready for merge:
{{range .Ready}}  - PR #{{.PullRequest.Number}}: {{.PullRequest.Title}}
    Author: {{.PullRequest.Author}}
    Link: {{.PullRequest.URL}}
    Approvals: {{.Classification.Approvals}} {{.Classification.EmojiLine}}
{{else}}  none
{{end}}
Pending reviews:
{{range .Pending}}  - PR #{{.PullRequest.Number}}: {{.PullRequest.Title}}
    Author: {{.PullRequest.Author}}
    Link: {{.PullRequest.URL}}
    Approvals: {{.Classification.Approvals}} {{.Classification.EmojiLine}}
{{else}}  none
{{end}}{{end}}
This is an automated notification from the PR review digest.
`

var emailBody = template.Must(template.New("email").Parse(emailTemplate))

// EmailNotifier sends the digest over SMTP
type EmailNotifier struct {
	config config.SMTPConfig
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg}
}

func (e *EmailNotifier) Name() string {
	return "email"
}

// Notify emails the digest to the configured recipients
func (e *EmailNotifier) Notify(ctx context.Context, d *digest.Digest) error {
	body, err := generateEmailBody(d)
	if err != nil {
		return errors.Wrap(err, "generating email body")
	}
	return e.sendEmail(ctx, d.Title(), body)
}

func generateEmailBody(d *digest.Digest) (string, error) {
	data := struct {
		Title  string
		Empty  bool
		Groups []digest.Group
	}{
		Title:  d.Title(),
		Empty:  d.Empty(),
		Groups: d.Groups,
	}

	var body strings.Builder
	if err := emailBody.Execute(&body, data); err != nil {
		return "", err
	}
	return body.String(), nil
}

func (e *EmailNotifier) message(subject, body string) []byte {
	msg := fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		strings.Join(e.config.To, ","), e.config.From, subject, body)
	return []byte(msg)
}

func (e *EmailNotifier) sendEmail(ctx context.Context, subject, body string) error {
	addr := net.JoinHostPort(e.config.Host, fmt.Sprint(e.config.Port))

	var auth smtp.Auth
	if e.config.User != "" && e.config.Password != "" {
		auth = smtp.PlainAuth("", e.config.User, e.config.Password, e.config.Host)
	}

	var conn net.Conn
	var err error
	if e.config.Port == 465 {
		// implicit TLS
		dialer := &tls.Dialer{Config: &tls.Config{ServerName: e.config.Host}}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		var dialer net.Dialer
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		slog.Error("Failed to connect to SMTP server", "addr", addr, "error", err)
		return errors.Wrapf(err, "connecting to SMTP server %s", addr)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := e.deliver(conn, auth, e.message(subject, body)); err != nil {
		slog.Error("Failed to send email", "error", err)
		return errors.Wrap(err, "sending email")
	}

	slog.Info("Email notification sent successfully", "recipients", e.config.To)
	return nil
}

// deliver runs the SMTP conversation on an established connection,
// upgrading with STARTTLS when the server offers it.
func (e *EmailNotifier) deliver(conn net.Conn, auth smtp.Auth, msg []byte) error {
	client, err := smtp.NewClient(conn, e.config.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, isTLS := conn.(*tls.Conn); !isTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err = client.StartTLS(&tls.Config{ServerName: e.config.Host}); err != nil {
				return err
			}
		}
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return err
		}
	}

	if err = client.Mail(e.config.From); err != nil {
		return err
	}
	for _, recipient := range e.config.To {
		if err = client.Rcpt(recipient); err != nil {
			return err
		}
	}

	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err = writer.Write(msg); err != nil {
		return err
	}
	if err = writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}
