// Package email notifies recipients about newly produced clips over SMTP.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomail "gopkg.in/gomail.v2"

	"github.com/wallyrebel/sportshorts/internal/domain"
	"github.com/wallyrebel/sportshorts/internal/ports"
)

// Delivery modes.
const (
	ModeDigest  = "digest"
	ModePerClip = "per_clip"
)

// Config wires SMTP transport and delivery behavior.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	To          string
	Mode        string
	AlwaysEmail bool
}

type sendFunc func(subject, body string) error

// Notifier implements ports.Notifier with digest or per-clip messages.
type Notifier struct {
	cfg    Config
	logger *slog.Logger
	send   sendFunc
	now    func() time.Time
}

var _ ports.Notifier = (*Notifier)(nil)

// Option customizes the notifier.
type Option func(*Notifier)

// WithSendFunc replaces the SMTP dialer (tests).
func WithSendFunc(send sendFunc) Option {
	return func(n *Notifier) {
		if send != nil {
			n.send = send
		}
	}
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

// NewNotifier builds a notifier delivering through the configured SMTP host.
func NewNotifier(cfg Config, logger *slog.Logger, opts ...Option) *Notifier {
	if cfg.Mode == "" {
		cfg.Mode = ModeDigest
	}
	n := &Notifier{cfg: cfg, logger: logger, now: time.Now}
	n.send = n.sendSMTP
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Send dispatches notifications for the run and returns the number of
// emails that went out. With no results and AlwaysEmail off, nothing is
// sent.
func (n *Notifier) Send(ctx context.Context, results []domain.VideoResult) (int, error) {
	if len(results) == 0 && !n.cfg.AlwaysEmail {
		n.logger.Info("no clips created, email suppressed")
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if n.cfg.Mode == ModePerClip {
		return n.sendPerClip(results)
	}
	return n.sendDigest(results)
}

func (n *Notifier) sendDigest(results []domain.VideoResult) (int, error) {
	now := n.now().UTC().Format("2006-01-02 15:04 UTC")
	subject := fmt.Sprintf("sportshorts digest - %d new clip(s) - %s", len(results), now)

	var lines []string
	lines = append(lines, fmt.Sprintf("sportshorts run at %s", now), "")
	if len(results) > 0 {
		for i, result := range results {
			lines = append(lines,
				fmt.Sprintf("%d. %s", i+1, result.Title),
				fmt.Sprintf("   Feed: %s", result.FeedName),
				fmt.Sprintf("   Published: %s", orDefault(result.Published, "unknown")),
				fmt.Sprintf("   Source: %s", orDefault(result.SourceLink, "N/A")),
				fmt.Sprintf("   Presigned URL: %s", result.PresignedURL),
				"",
			)
		}
	} else {
		lines = append(lines, "No new clips were created in this run.", "")
		if n.cfg.AlwaysEmail {
			lines = append(lines, "Forced notification: always-email is enabled.", "")
		}
	}

	if err := n.send(subject, strings.Join(lines, "\n")); err != nil {
		return 0, fmt.Errorf("send digest: %w", err)
	}
	return 1, nil
}

func (n *Notifier) sendPerClip(results []domain.VideoResult) (int, error) {
	if len(results) == 0 {
		if !n.cfg.AlwaysEmail {
			return 0, nil
		}
		if err := n.send("sportshorts - no new clips", "No new clips were created in this run."); err != nil {
			return 0, fmt.Errorf("send empty-run notice: %w", err)
		}
		return 1, nil
	}

	sent := 0
	for _, result := range results {
		body := strings.Join([]string{
			fmt.Sprintf("Title: %s", result.Title),
			fmt.Sprintf("Feed: %s", result.FeedName),
			fmt.Sprintf("Published: %s", orDefault(result.Published, "unknown")),
			fmt.Sprintf("Source: %s", orDefault(result.SourceLink, "N/A")),
			fmt.Sprintf("Presigned URL: %s", result.PresignedURL),
		}, "\n")
		subject := "sportshorts clip: " + truncate(result.Title, 90)
		if err := n.send(subject, body); err != nil {
			return sent, fmt.Errorf("send clip notice: %w", err)
		}
		sent++
	}
	return sent, nil
}

func (n *Notifier) sendSMTP(subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", n.cfg.User)
	msg.SetHeader("To", n.cfg.To)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.User, n.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return err
	}
	n.logger.Info("email sent", "to", n.cfg.To, "subject", subject)
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
