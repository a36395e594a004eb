package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wallyrebel/sportshorts/internal/domain"
	"github.com/wallyrebel/sportshorts/internal/ledger"
	"github.com/wallyrebel/sportshorts/internal/ports"
	"github.com/wallyrebel/sportshorts/internal/videokey"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	itemsByFeed map[string][]domain.Item
	failFeeds   map[string]bool
}

func (f *fakeSource) Fetch(_ context.Context, feed domain.FeedSpec) ([]domain.Item, error) {
	if f.failFeeds[feed.Name] {
		return nil, errors.New("connection refused")
	}
	return f.itemsByFeed[feed.Name], nil
}

type fakeScripts struct {
	failIDs map[string]bool
	calls   int
}

func (f *fakeScripts) Generate(_ context.Context, item domain.Item) (domain.Script, error) {
	f.calls++
	if f.failIDs[item.ItemID] {
		return domain.Script{}, errors.New("model unavailable")
	}
	return domain.Script{
		NarrationText: "A quick update on " + item.Title + " with everything supporters need to know right now.",
		ModelUsed:     "primary-model",
	}, nil
}

type fakeSpeech struct{}

func (fakeSpeech) Synthesize(_ context.Context, _ string, outputPath string) error {
	return os.WriteFile(outputPath, []byte("audio"), 0o644)
}

type fakeImages struct{ perItem int }

func (f *fakeImages) Download(_ context.Context, urls []string, outputDir string, maxImages int) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	count := f.perItem
	if count > maxImages {
		count = maxImages
	}
	var paths []string
	for i := 0; i < count && i < len(urls); i++ {
		path := filepath.Join(outputDir, fmt.Sprintf("image_%02d.jpg", i))
		if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

type fakeRenderer struct{}

func (fakeRenderer) ProbeAudioDuration(_ context.Context, _ string) (float64, error) {
	return 12, nil
}

func (fakeRenderer) Render(_ context.Context, req ports.RenderRequest) error {
	return os.WriteFile(req.OutputPath, []byte("mp4"), 0o644)
}

type fakeStore struct {
	objects map[string]string // key -> content type
	docs    map[string][]byte
	deleted []string
	listing []ports.ObjectInfo
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]string{}, docs: map[string][]byte{}}
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) UploadFile(_ context.Context, _, key, contentType string) error {
	f.objects[key] = contentType
	return nil
}

func (f *fakeStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + key, nil
}

func (f *fakeStore) ListByPrefix(_ context.Context, _ string) ([]ports.ObjectInfo, error) {
	return f.listing, nil
}

func (f *fakeStore) Delete(_ context.Context, keys []string) (int, error) {
	f.deleted = append(f.deleted, keys...)
	return len(keys), nil
}

func (f *fakeStore) GetJSON(_ context.Context, key string, v any) (bool, error) {
	raw, ok := f.docs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (f *fakeStore) PutJSON(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.docs[key] = raw
	return nil
}

type fakeNotifier struct {
	sent []domain.VideoResult
}

func (f *fakeNotifier) Send(_ context.Context, results []domain.VideoResult) (int, error) {
	f.sent = results
	if len(results) == 0 {
		return 0, nil
	}
	return 1, nil
}

func sampleItem(id, title, published string) domain.Item {
	return domain.Item{
		FeedName:  "club-news",
		ItemID:    id,
		Title:     title,
		Summary:   "summary for " + title,
		Link:      "https://example.com/" + id,
		Published: published,
		ImageURLs: []string{"https://example.com/" + id + ".jpg"},
	}
}

func newTestPipeline(t *testing.T, source *fakeSource, store *fakeStore, notifier *fakeNotifier, scripts *fakeScripts) *Pipeline {
	t.Helper()

	var feeds []domain.FeedSpec
	for name := range source.itemsByFeed {
		feeds = append(feeds, domain.FeedSpec{Name: name, URL: "https://example.com/" + name + ".xml"})
	}
	for name := range source.failFeeds {
		feeds = append(feeds, domain.FeedSpec{Name: name, URL: "https://example.com/" + name + ".xml"})
	}

	pipeline := NewPipeline(PipelineDeps{
		Source:   source,
		Scripts:  scripts,
		Speech:   fakeSpeech{},
		Images:   &fakeImages{perItem: 2},
		Renderer: fakeRenderer{},
		Store:    store,
		Notifier: notifier,
		Logger:   discardLogger(),
	}, Settings{
		Feeds:            feeds,
		Style:            domain.DefaultStyle(),
		MaxRecentPerFeed: 5,
		RetentionDays:    30,
		PresignExpires:   time.Hour,
		RunSummaryPath:   filepath.Join(t.TempDir(), "run_summary.json"),
	})
	pipeline.now = func() time.Time { return time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC) }
	pipeline.newRunID = func() string { return "run-test" }
	return pipeline
}

func TestRunProcessesNewItem(t *testing.T) {
	t.Parallel()

	item := sampleItem("guid:1", "Late winner seals the derby", "Tue, 03 Feb 2026 09:00:00 +0000")
	source := &fakeSource{itemsByFeed: map[string][]domain.Item{"club-news": {item}}}
	store := newFakeStore()
	notifier := &fakeNotifier{}
	pipeline := newTestPipeline(t, source, store, notifier, &fakeScripts{})

	summary, err := pipeline.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Stats.Processed != 1 || summary.CreatedCount != 1 {
		t.Fatalf("processed = %d, created = %d, want 1 each", summary.Stats.Processed, summary.CreatedCount)
	}
	key := videokey.Build(item.Title, item.ItemID, item.Published)
	if ct, ok := store.objects[key]; !ok || ct != "video/mp4" {
		t.Errorf("uploaded objects = %v, want %s as video/mp4", store.objects, key)
	}
	if got := summary.Created[0].PresignedURL; got != "https://signed.example.com/"+key {
		t.Errorf("presigned URL = %q", got)
	}
	if summary.Stats.EmailsSent != 1 || len(notifier.sent) != 1 {
		t.Errorf("emails sent = %d, notifier got %d results", summary.Stats.EmailsSent, len(notifier.sent))
	}

	var led ledger.Ledger
	if err := json.Unmarshal(store.docs[ledger.DocumentKey], &led); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if _, ok := led.Processed[item.ItemID]; !ok {
		t.Errorf("ledger missing %s: %v", item.ItemID, led.Processed)
	}

	raw, err := os.ReadFile(pipeline.settings.RunSummaryPath)
	if err != nil {
		t.Fatalf("read run summary: %v", err)
	}
	var onDisk domain.RunSummary
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("decode run summary: %v", err)
	}
	if onDisk.RunID != "run-test" || onDisk.DryRun {
		t.Errorf("summary on disk = %+v", onDisk)
	}
}

func TestRunSkipsAlreadyProcessed(t *testing.T) {
	t.Parallel()

	item := sampleItem("guid:1", "Old story", "Mon, 02 Feb 2026 09:00:00 +0000")
	source := &fakeSource{itemsByFeed: map[string][]domain.Item{"club-news": {item}}}
	store := newFakeStore()
	store.docs[ledger.DocumentKey] = []byte(`{"schemaVersion":1,"processed":{"guid:1":"2026-02-01T00:00:00Z"}}`)
	scripts := &fakeScripts{}
	pipeline := newTestPipeline(t, source, store, &fakeNotifier{}, scripts)

	summary, err := pipeline.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Stats.SkippedAlreadyProcessed != 1 {
		t.Errorf("skipped_already_processed = %d, want 1", summary.Stats.SkippedAlreadyProcessed)
	}
	if summary.Stats.Processed != 0 || scripts.calls != 0 {
		t.Errorf("processed = %d, script calls = %d, want 0 each", summary.Stats.Processed, scripts.calls)
	}
}

func TestRunSkipsExistingObjectAndMarksLedger(t *testing.T) {
	t.Parallel()

	item := sampleItem("guid:1", "Already rendered", "Mon, 02 Feb 2026 09:00:00 +0000")
	source := &fakeSource{itemsByFeed: map[string][]domain.Item{"club-news": {item}}}
	store := newFakeStore()
	store.objects[videokey.Build(item.Title, item.ItemID, item.Published)] = "video/mp4"
	pipeline := newTestPipeline(t, source, store, &fakeNotifier{}, &fakeScripts{})

	summary, err := pipeline.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Stats.SkippedExistingObject != 1 {
		t.Errorf("skipped_existing_object = %d, want 1", summary.Stats.SkippedExistingObject)
	}

	var led ledger.Ledger
	if err := json.Unmarshal(store.docs[ledger.DocumentKey], &led); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if _, ok := led.Processed[item.ItemID]; !ok {
		t.Errorf("existing object should still mark the ledger: %v", led.Processed)
	}
}

func TestRunDryRunHasNoSideEffects(t *testing.T) {
	t.Parallel()

	item := sampleItem("guid:1", "Fresh story", "Tue, 03 Feb 2026 09:00:00 +0000")
	source := &fakeSource{itemsByFeed: map[string][]domain.Item{"club-news": {item}}}
	store := newFakeStore()
	scripts := &fakeScripts{}
	pipeline := newTestPipeline(t, source, store, &fakeNotifier{}, scripts)

	summary, err := pipeline.Run(context.Background(), RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.DryRun {
		t.Error("summary should carry the dry-run flag")
	}
	if summary.Stats.Processed != 1 {
		t.Errorf("processed = %d, want 1 would-be item", summary.Stats.Processed)
	}
	if summary.CreatedCount != 0 {
		t.Errorf("created = %d, want 0", summary.CreatedCount)
	}
	if len(store.objects) != 0 || len(store.docs) != 0 {
		t.Errorf("dry run touched the store: objects=%v docs=%v", store.objects, store.docs)
	}
	if scripts.calls != 0 {
		t.Errorf("dry run invoked the script generator %d times", scripts.calls)
	}
}

func TestRunStopsAtItemBudget(t *testing.T) {
	t.Parallel()

	items := []domain.Item{
		sampleItem("guid:1", "Completely different story about tennis finals", "Tue, 03 Feb 2026 09:00:00 +0000"),
		sampleItem("guid:2", "An unrelated report on stadium construction", "Tue, 03 Feb 2026 08:00:00 +0000"),
		sampleItem("guid:3", "Third topic entirely about swimming records", "Tue, 03 Feb 2026 07:00:00 +0000"),
	}
	source := &fakeSource{itemsByFeed: map[string][]domain.Item{"club-news": items}}
	pipeline := newTestPipeline(t, source, newFakeStore(), &fakeNotifier{}, &fakeScripts{})

	summary, err := pipeline.Run(context.Background(), RunOptions{MaxItems: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Stats.Processed != 1 {
		t.Errorf("processed = %d, want 1", summary.Stats.Processed)
	}
	// Newest first: the budget goes to the most recent story.
	if summary.Created[0].Title != items[0].Title {
		t.Errorf("processed %q, want newest item first", summary.Created[0].Title)
	}
}

func TestRunContainsFeedFailures(t *testing.T) {
	t.Parallel()

	item := sampleItem("guid:1", "Healthy feed story", "Tue, 03 Feb 2026 09:00:00 +0000")
	source := &fakeSource{
		itemsByFeed: map[string][]domain.Item{"club-news": {item}},
		failFeeds:   map[string]bool{"broken-feed": true},
	}
	pipeline := newTestPipeline(t, source, newFakeStore(), &fakeNotifier{}, &fakeScripts{})

	summary, err := pipeline.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Stats.Errors != 1 {
		t.Errorf("errors = %d, want 1 for the failing feed", summary.Stats.Errors)
	}
	if summary.Stats.Processed != 1 {
		t.Errorf("processed = %d, the healthy feed should still run", summary.Stats.Processed)
	}
}

func TestRunContainsItemFailures(t *testing.T) {
	t.Parallel()

	items := []domain.Item{
		sampleItem("guid:1", "Completely different story about tennis finals", "Tue, 03 Feb 2026 09:00:00 +0000"),
		sampleItem("guid:2", "An unrelated report on stadium construction", "Tue, 03 Feb 2026 08:00:00 +0000"),
	}
	source := &fakeSource{itemsByFeed: map[string][]domain.Item{"club-news": items}}
	scripts := &fakeScripts{failIDs: map[string]bool{"guid:1": true}}
	store := newFakeStore()
	pipeline := newTestPipeline(t, source, store, &fakeNotifier{}, scripts)

	summary, err := pipeline.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Stats.Errors != 1 {
		t.Errorf("errors = %d, want 1", summary.Stats.Errors)
	}
	if summary.Stats.Processed != 1 {
		t.Errorf("processed = %d, want the second item to survive", summary.Stats.Processed)
	}

	var led ledger.Ledger
	if err := json.Unmarshal(store.docs[ledger.DocumentKey], &led); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if _, ok := led.Processed["guid:1"]; ok {
		t.Error("failed item must not be marked processed")
	}
	if _, ok := led.Processed["guid:2"]; !ok {
		t.Error("successful item missing from ledger")
	}
}

func TestRunSkipsNearDuplicateStories(t *testing.T) {
	t.Parallel()

	first := sampleItem("guid:1", "Striker scores twice in cup final victory", "Tue, 03 Feb 2026 08:00:00 +0000")
	second := sampleItem("guid:2", "Striker scores twice in cup final victory!", "Tue, 03 Feb 2026 09:00:00 +0000")
	second.Summary = first.Summary
	source := &fakeSource{itemsByFeed: map[string][]domain.Item{"club-news": {first, second}}}
	pipeline := newTestPipeline(t, source, newFakeStore(), &fakeNotifier{}, &fakeScripts{})

	summary, err := pipeline.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Stats.SkippedSameStory != 1 {
		t.Errorf("skipped_same_story = %d, want 1", summary.Stats.SkippedSameStory)
	}
	if summary.Stats.Processed != 1 {
		t.Errorf("processed = %d, want 1", summary.Stats.Processed)
	}
	// The chronologically first report wins regardless of worklist order.
	if summary.Created[0].Title != first.Title {
		t.Errorf("kept %q, want the earliest report", summary.Created[0].Title)
	}
}

func TestRunRetentionHousekeeping(t *testing.T) {
	t.Parallel()

	source := &fakeSource{itemsByFeed: map[string][]domain.Item{"club-news": nil}}
	store := newFakeStore()
	store.listing = []ports.ObjectInfo{
		{Key: "videos/2025/11/01/old-clip-aaaaaaaaaa.mp4", LastModified: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "videos/2026/02/01/new-clip-bbbbbbbbbb.mp4", LastModified: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	store.docs[ledger.DocumentKey] = []byte(`{"schemaVersion":1,"processed":{"stale":"2025-11-01T00:00:00Z","fresh":"2026-02-01T00:00:00Z"}}`)
	pipeline := newTestPipeline(t, source, store, &fakeNotifier{}, &fakeScripts{})

	summary, err := pipeline.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Stats.RetentionDeletedVideos != 1 {
		t.Errorf("retention_deleted_videos = %d, want 1", summary.Stats.RetentionDeletedVideos)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "videos/2025/11/01/old-clip-aaaaaaaaaa.mp4" {
		t.Errorf("deleted = %v", store.deleted)
	}
	if summary.Stats.RetentionPrunedLedger != 1 {
		t.Errorf("retention_pruned_ledger = %d, want 1", summary.Stats.RetentionPrunedLedger)
	}

	var led ledger.Ledger
	if err := json.Unmarshal(store.docs[ledger.DocumentKey], &led); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if _, ok := led.Processed["stale"]; ok {
		t.Error("stale entry should be pruned")
	}
	if _, ok := led.Processed["fresh"]; !ok {
		t.Error("fresh entry should survive pruning")
	}
}
