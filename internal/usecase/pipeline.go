package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wallyrebel/sportshorts/internal/domain"
	"github.com/wallyrebel/sportshorts/internal/infrastructure/render"
	"github.com/wallyrebel/sportshorts/internal/ledger"
	"github.com/wallyrebel/sportshorts/internal/ports"
	"github.com/wallyrebel/sportshorts/internal/selection"
	"github.com/wallyrebel/sportshorts/internal/videokey"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// In dry-run mode every adapter except Source may be nil.
type PipelineDeps struct {
	Source   ports.FeedSource
	Scripts  ports.ScriptGenerator
	Speech   ports.SpeechSynthesizer
	Images   ports.ImageFetcher
	Renderer ports.Renderer
	Store    ports.ObjectStore
	Notifier ports.Notifier
	Logger   *slog.Logger
}

// Settings carries the run-level knobs the orchestrator needs.
type Settings struct {
	Feeds            []domain.FeedSpec
	Style            domain.Style
	MaxRecentPerFeed int
	RetentionDays    int
	PresignExpires   time.Duration
	RunSummaryPath   string
}

// RunOptions select per-invocation behavior.
type RunOptions struct {
	// DryRun walks the worklist without rendering, uploading, emailing,
	// or mutating the ledger.
	DryRun bool
	// MaxItems bounds how many items may be processed this run; zero
	// means unlimited.
	MaxItems int
}

// Pipeline turns feed items into uploaded clips exactly once per story.
type Pipeline struct {
	source   ports.FeedSource
	scripts  ports.ScriptGenerator
	speech   ports.SpeechSynthesizer
	images   ports.ImageFetcher
	renderer ports.Renderer
	store    ports.ObjectStore
	notifier ports.Notifier
	logger   *slog.Logger

	settings Settings

	now      func() time.Time
	newRunID func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, settings Settings) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:   deps.Source,
		scripts:  deps.Scripts,
		speech:   deps.Speech,
		images:   deps.Images,
		renderer: deps.Renderer,
		store:    deps.Store,
		notifier: deps.Notifier,
		logger:   logger,
		settings: settings,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// Run executes one full pass: ingest, select, process, housekeeping,
// notify, summarize. Per-item failures are contained; only run-level
// failures (ledger load/save, summary write) surface as errors.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (domain.RunSummary, error) {
	stats := domain.RunStats{Feeds: len(p.settings.Feeds)}
	var created []domain.VideoResult

	led := ledger.New()
	if !opts.DryRun {
		loaded, err := ledger.Load(ctx, p.store)
		if err != nil {
			return domain.RunSummary{}, err
		}
		led = loaded
	} else {
		p.logger.Info("dry run enabled, no render/upload/email side effects")
	}

	worklist := p.buildWorklist(ctx, &stats)

	processedCount := 0
	seenInRun := map[string]bool{}
	for _, item := range worklist {
		if opts.MaxItems > 0 && processedCount >= opts.MaxItems {
			p.logger.Info("item budget reached, stopping early", "max_items", opts.MaxItems)
			break
		}

		if seenInRun[item.ItemID] {
			stats.SkippedDuplicateInRun++
			p.logger.Info("item skipped", "item_id", item.ItemID, "reason", "duplicate_in_run", "title", item.Title)
			continue
		}
		seenInRun[item.ItemID] = true

		if len(item.ImageURLs) == 0 {
			stats.SkippedNoImage++
			p.logger.Info("item skipped", "item_id", item.ItemID, "reason", "no_image", "title", item.Title)
			continue
		}

		if led.IsProcessed(item.ItemID) {
			stats.SkippedAlreadyProcessed++
			p.logger.Info("item skipped", "item_id", item.ItemID, "reason", "already_processed", "title", item.Title)
			continue
		}

		key := videokey.Build(item.Title, item.ItemID, item.Published)

		if !opts.DryRun {
			exists, err := p.store.Exists(ctx, key)
			if err != nil {
				stats.Errors++
				p.logger.Error("object existence check failed", "item_id", item.ItemID, "key", key, "error", err)
				continue
			}
			if exists {
				stats.SkippedExistingObject++
				led.MarkProcessed(item.ItemID, p.now())
				p.logger.Info("item skipped", "item_id", item.ItemID, "reason", "existing_object", "key", key, "title", item.Title)
				continue
			}
		}

		if opts.DryRun {
			processedCount++
			stats.Processed++
			p.logger.Info("would process",
				"item_id", item.ItemID,
				"feed", item.FeedName,
				"images", len(item.ImageURLs),
				"key", key,
				"title", item.Title,
			)
			continue
		}

		result, err := p.processItem(ctx, item, key, &stats)
		if err != nil {
			stats.Errors++
			p.logger.Error("item processing failed", "item_id", item.ItemID, "title", item.Title, "error", err)
			continue
		}
		if result == nil {
			// Skipped inside processing (no downloadable image).
			continue
		}

		created = append(created, *result)
		led.MarkProcessed(item.ItemID, result.CreatedAt)
		processedCount++
		stats.Processed++
		p.logger.Info("item processed", "item_id", item.ItemID, "key", key)
	}

	if !opts.DryRun {
		p.housekeeping(ctx, led, &stats)
		if err := led.Save(ctx, p.store); err != nil {
			return domain.RunSummary{}, err
		}
		sent, err := p.notifier.Send(ctx, created)
		if err != nil {
			stats.Errors++
			p.logger.Error("notification failed", "error", err)
		}
		stats.EmailsSent = sent
	}

	summary := p.buildSummary(opts.DryRun, stats, created)
	if err := p.writeSummary(summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// buildWorklist fetches every feed, applies the per-feed recency cap,
// collapses near-duplicate stories, and orders the survivors newest
// first. Feed fetch failures are counted and skipped.
func (p *Pipeline) buildWorklist(ctx context.Context, stats *domain.RunStats) []domain.Item {
	var candidates []domain.Item
	for _, feed := range p.settings.Feeds {
		items, err := p.source.Fetch(ctx, feed)
		if err != nil {
			stats.Errors++
			p.logger.Error("feed fetch failed", "feed", feed.Name, "url", feed.URL, "error", err)
			continue
		}
		items = selection.RecentPerFeed(items, p.settings.MaxRecentPerFeed)
		candidates = append(candidates, items...)
		p.logger.Info("feed capped to most recent items", "feed", feed.Name, "kept", len(items))
	}
	stats.EntriesSeen = len(candidates)

	unique, skippedToKeeper := selection.UniqueStories(candidates)
	stats.SkippedSameStory = len(skippedToKeeper)
	for itemID, keeperID := range skippedToKeeper {
		p.logger.Info("item skipped", "item_id", itemID, "reason", "same_story", "kept", keeperID)
	}

	worklist := selection.NewestFirst(unique)
	p.logger.Info("worklist ready",
		"candidates", len(worklist),
		"skipped_same_story", stats.SkippedSameStory,
	)
	return worklist
}

// processItem runs the full media path for one item inside a scratch
// directory. A nil result with nil error means the item was skipped for
// lack of downloadable images.
func (p *Pipeline) processItem(ctx context.Context, item domain.Item, key string, stats *domain.RunStats) (*domain.VideoResult, error) {
	scratch, err := os.MkdirTemp("", "sportshorts_")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	maxImages := p.settings.Style.MaxImagesPerVideo
	if maxImages < 1 {
		maxImages = 1
	}
	downloaded, err := p.images.Download(ctx, item.ImageURLs, filepath.Join(scratch, "images"), maxImages)
	if err != nil {
		return nil, fmt.Errorf("download images: %w", err)
	}
	if len(downloaded) == 0 {
		stats.SkippedNoDownloadable++
		p.logger.Info("item skipped", "item_id", item.ItemID, "reason", "no_downloadable_image", "title", item.Title)
		return nil, nil
	}

	script, err := p.scripts.Generate(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}

	audioPath := filepath.Join(scratch, "voiceover.mp3")
	if err := p.speech.Synthesize(ctx, script.NarrationText, audioPath); err != nil {
		return nil, fmt.Errorf("synthesize narration: %w", err)
	}

	audioDuration, err := p.renderer.ProbeAudioDuration(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	duration := clamp(audioDuration, float64(p.settings.Style.MinDurationSec), float64(p.settings.Style.MaxDurationSec))

	captionPath := filepath.Join(scratch, "captions.srt")
	if err := render.BuildSRT(script.NarrationText, duration, captionPath); err != nil {
		return nil, fmt.Errorf("build captions: %w", err)
	}

	outputPath := filepath.Join(scratch, "clip.mp4")
	err = p.renderer.Render(ctx, ports.RenderRequest{
		ImagePaths:  downloaded,
		AudioPath:   audioPath,
		CaptionPath: captionPath,
		OutputPath:  outputPath,
		Style:       p.settings.Style,
	})
	if err != nil {
		return nil, err
	}

	if err := p.store.UploadFile(ctx, outputPath, key, "video/mp4"); err != nil {
		return nil, err
	}
	url, err := p.store.PresignGet(ctx, key, p.settings.PresignExpires)
	if err != nil {
		return nil, err
	}

	return &domain.VideoResult{
		ItemID:       item.ItemID,
		FeedName:     item.FeedName,
		Title:        item.Title,
		Published:    item.Published,
		SourceLink:   item.Link,
		StorageKey:   key,
		PresignedURL: url,
		ModelUsed:    script.ModelUsed,
		CreatedAt:    p.now().UTC(),
	}, nil
}

// housekeeping deletes stored videos past retention and prunes the
// ledger by the same window. Failures are logged, never fatal.
func (p *Pipeline) housekeeping(ctx context.Context, led *ledger.Ledger, stats *domain.RunStats) {
	retention := p.settings.RetentionDays
	if retention > 0 {
		cutoff := p.now().UTC().AddDate(0, 0, -retention)
		objects, err := p.store.ListByPrefix(ctx, videokey.Prefix)
		if err != nil {
			stats.Errors++
			p.logger.Error("retention listing failed", "error", err)
		} else {
			var oldKeys []string
			for _, obj := range objects {
				if !obj.LastModified.IsZero() && obj.LastModified.Before(cutoff) {
					oldKeys = append(oldKeys, obj.Key)
				}
			}
			deleted, err := p.store.Delete(ctx, oldKeys)
			stats.RetentionDeletedVideos = deleted
			if err != nil {
				stats.Errors++
				p.logger.Error("retention delete failed", "error", err)
			} else if deleted > 0 {
				p.logger.Info("deleted expired videos", "count", deleted, "retention_days", retention)
			}
		}
	}

	stats.RetentionPrunedLedger = led.PruneExpired(retention, p.now().UTC())
}

func (p *Pipeline) buildSummary(dryRun bool, stats domain.RunStats, created []domain.VideoResult) domain.RunSummary {
	records := make([]domain.CreatedRecord, 0, len(created))
	for _, result := range created {
		records = append(records, domain.CreatedRecord{
			Title:        result.Title,
			FeedName:     result.FeedName,
			Published:    result.Published,
			SourceLink:   result.SourceLink,
			StorageKey:   result.StorageKey,
			PresignedURL: result.PresignedURL,
			ModelUsed:    result.ModelUsed,
		})
	}
	return domain.RunSummary{
		RunID:        p.newRunID(),
		DryRun:       dryRun,
		TimestampUTC: ledger.FormatTimestamp(p.now()),
		Stats:        stats,
		CreatedCount: len(records),
		Created:      records,
	}
}

func (p *Pipeline) writeSummary(summary domain.RunSummary) error {
	if p.settings.RunSummaryPath == "" {
		return nil
	}
	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	if err := os.WriteFile(p.settings.RunSummaryPath, body, 0o644); err != nil {
		return fmt.Errorf("write run summary: %w", err)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
