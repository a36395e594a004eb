package ports

import (
	"context"
	"time"

	"github.com/wallyrebel/sportshorts/internal/domain"
)

// FeedSource pulls candidate items from one upstream feed.
type FeedSource interface {
	Fetch(ctx context.Context, feed domain.FeedSpec) ([]domain.Item, error)
}

// ScriptGenerator produces narration text for an item.
type ScriptGenerator interface {
	Generate(ctx context.Context, item domain.Item) (domain.Script, error)
}

// SpeechSynthesizer turns narration text into an audio artifact on disk.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, outputPath string) error
}

// ImageFetcher downloads item images best-effort; a single failing URL is
// dropped silently, never surfaced as an error.
type ImageFetcher interface {
	Download(ctx context.Context, urls []string, outputDir string, maxImages int) ([]string, error)
}

// RenderRequest carries everything the renderer needs for one clip.
type RenderRequest struct {
	ImagePaths  []string
	AudioPath   string
	CaptionPath string
	OutputPath  string
	Style       domain.Style
}

// Renderer composes images, audio, and captions into a video file.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) error
	ProbeAudioDuration(ctx context.Context, audioPath string) (float64, error)
}

// ObjectInfo describes one stored object for retention decisions.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// ObjectStore persists video artifacts and the ledger document.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	UploadFile(ctx context.Context, localPath, key, contentType string) error
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	ListByPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, keys []string) (int, error)

	// GetJSON reports false when the key does not exist, leaving v untouched.
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	PutJSON(ctx context.Context, key string, v any) error
}

// Notifier dispatches one notification pass for the run's produced artifacts
// and reports how many messages went out.
type Notifier interface {
	Send(ctx context.Context, results []domain.VideoResult) (int, error)
}
