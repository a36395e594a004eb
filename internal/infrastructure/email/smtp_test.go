package email

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/wallyrebel/sportshorts/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMail struct {
	subject string
	body    string
}

func capturingNotifier(t *testing.T, cfg Config, sent *[]sentMail) *Notifier {
	t.Helper()
	return NewNotifier(cfg, discardLogger(),
		WithSendFunc(func(subject, body string) error {
			*sent = append(*sent, sentMail{subject: subject, body: body})
			return nil
		}),
		WithClock(func() time.Time {
			return time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)
		}),
	)
}

func sampleResults() []domain.VideoResult {
	return []domain.VideoResult{
		{
			Title:        "Late winner seals derby",
			FeedName:     "club-news",
			Published:    "Fri, 02 Jan 2026 10:00:00 +0000",
			SourceLink:   "https://example.com/derby",
			PresignedURL: "https://r2.example.com/videos/derby.mp4?sig=x",
		},
		{
			Title:        "Keeper signs new deal",
			FeedName:     "transfers",
			PresignedURL: "https://r2.example.com/videos/keeper.mp4?sig=y",
		},
	}
}

func TestSendDigestSingleEmail(t *testing.T) {
	t.Parallel()

	var sent []sentMail
	notifier := capturingNotifier(t, Config{Mode: ModeDigest}, &sent)

	count, err := notifier.Send(context.Background(), sampleResults())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if len(sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(sent))
	}
	if want := "sportshorts digest - 2 new clip(s) - 2026-01-02 15:04 UTC"; sent[0].subject != want {
		t.Errorf("subject = %q, want %q", sent[0].subject, want)
	}
	if !strings.Contains(sent[0].body, "1. Late winner seals derby") {
		t.Errorf("body missing first clip:\n%s", sent[0].body)
	}
	if !strings.Contains(sent[0].body, "   Published: unknown") {
		t.Errorf("body missing unknown-published fallback:\n%s", sent[0].body)
	}
}

func TestSendPerClipOneEmailEach(t *testing.T) {
	t.Parallel()

	var sent []sentMail
	notifier := capturingNotifier(t, Config{Mode: ModePerClip}, &sent)

	count, err := notifier.Send(context.Background(), sampleResults())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if count != 2 || len(sent) != 2 {
		t.Fatalf("count = %d, sent = %d, want 2 each", count, len(sent))
	}
	if want := "sportshorts clip: Late winner seals derby"; sent[0].subject != want {
		t.Errorf("subject = %q, want %q", sent[0].subject, want)
	}
	if !strings.Contains(sent[1].body, "Source: N/A") {
		t.Errorf("body missing source fallback:\n%s", sent[1].body)
	}
}

func TestSendSuppressedWhenEmpty(t *testing.T) {
	t.Parallel()

	var sent []sentMail
	notifier := capturingNotifier(t, Config{Mode: ModeDigest}, &sent)

	count, err := notifier.Send(context.Background(), nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if count != 0 || len(sent) != 0 {
		t.Errorf("count = %d, sent = %d, want 0 each", count, len(sent))
	}
}

func TestSendEmptyRunWithAlwaysEmail(t *testing.T) {
	t.Parallel()

	var sent []sentMail
	notifier := capturingNotifier(t, Config{Mode: ModeDigest, AlwaysEmail: true}, &sent)

	count, err := notifier.Send(context.Background(), nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if count != 1 || len(sent) != 1 {
		t.Fatalf("count = %d, sent = %d, want 1 each", count, len(sent))
	}
	if !strings.Contains(sent[0].body, "No new clips were created in this run.") {
		t.Errorf("body missing empty-run notice:\n%s", sent[0].body)
	}
}
