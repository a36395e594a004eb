package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/wallyrebel/sportshorts/internal/config"
	"github.com/wallyrebel/sportshorts/internal/domain"
	"github.com/wallyrebel/sportshorts/internal/infrastructure/email"
	"github.com/wallyrebel/sportshorts/internal/infrastructure/feed"
	"github.com/wallyrebel/sportshorts/internal/infrastructure/llm"
	"github.com/wallyrebel/sportshorts/internal/infrastructure/media"
	"github.com/wallyrebel/sportshorts/internal/infrastructure/render"
	"github.com/wallyrebel/sportshorts/internal/infrastructure/storage"
	"github.com/wallyrebel/sportshorts/internal/infrastructure/tts"
	"github.com/wallyrebel/sportshorts/internal/logging"
	"github.com/wallyrebel/sportshorts/internal/usecase"
)

// Application wires configuration into adapters and the run pipeline.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
}

// Options select per-invocation behavior for Run.
type Options struct {
	DryRun   bool
	MaxItems int
}

// New builds a runnable application instance. In dry-run mode only the
// feed source is constructed; no credentialed adapter is touched.
func New(cfg config.Config, dryRun bool, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	var feedClient *http.Client
	if cfg.Ingest.TimeoutSec > 0 {
		feedClient = &http.Client{Timeout: time.Duration(cfg.Ingest.TimeoutSec) * time.Second}
	}
	deps := usecase.PipelineDeps{
		Source: feed.NewSource(feedClient, cfg.Ingest.UserAgent, baseLogger.With("component", "feed")),
		Logger: baseLogger.With("component", "pipeline"),
	}

	if !dryRun {
		deps.Scripts = llm.NewScriptGenerator(cfg.OpenAI.APIKey, llm.Config{
			PrimaryModel:       cfg.OpenAI.PrimaryModel,
			FallbackModel:      cfg.OpenAI.FallbackModel,
			PrimaryTimeoutSec:  cfg.OpenAI.PrimaryTimeoutSec,
			FallbackTimeoutSec: cfg.OpenAI.FallbackTimeoutSec,
			MaxRetries:         cfg.OpenAI.MaxRetries,
		}, baseLogger.With("component", "llm"))
		deps.Speech = tts.NewSynthesizer(tts.Config{
			APIKey:     cfg.TTS.APIKey,
			VoiceID:    cfg.TTS.VoiceID,
			Model:      cfg.TTS.Model,
			Stability:  cfg.TTS.Stability,
			Similarity: cfg.TTS.Similarity,
			MaxRetries: cfg.TTS.MaxRetries,
			TimeoutSec: cfg.TTS.TimeoutSec,
		}, baseLogger.With("component", "tts"))
		deps.Images = media.NewFetcher(baseLogger.With("component", "media"))
		deps.Renderer = render.NewRenderer(cfg.Renderer.FFmpegBin, cfg.Renderer.FFprobeBin, baseLogger.With("component", "render"))
		deps.Store = storage.NewR2Store(
			cfg.Storage.EndpointURL(),
			cfg.Storage.AccessKeyID,
			cfg.Storage.SecretAccessKey,
			cfg.Storage.Bucket,
			baseLogger.With("component", "storage"),
		)
		deps.Notifier = email.NewNotifier(email.Config{
			Host:        cfg.Email.Host,
			Port:        cfg.Email.Port,
			User:        cfg.Email.User,
			Password:    cfg.Email.Password,
			To:          cfg.Email.To,
			Mode:        cfg.Email.Mode,
			AlwaysEmail: cfg.Email.AlwaysEmail,
		}, baseLogger.With("component", "email"))
	}

	pipeline := usecase.NewPipeline(deps, usecase.Settings{
		Feeds:            cfg.Feeds,
		Style:            cfg.Style,
		MaxRecentPerFeed: cfg.Ingest.MaxRecentPerFeed,
		RetentionDays:    cfg.Storage.RetentionDays,
		PresignExpires:   time.Duration(cfg.Storage.PresignExpiresSec) * time.Second,
		RunSummaryPath:   cfg.RunSummaryPath,
	})
	return &Application{cfg: cfg, pipeline: pipeline}
}

// Run executes a single pipeline pass and returns its summary.
func (a *Application) Run(ctx context.Context, opts Options) (domain.RunSummary, error) {
	return a.pipeline.Run(ctx, usecase.RunOptions{
		DryRun:   opts.DryRun,
		MaxItems: opts.MaxItems,
	})
}
