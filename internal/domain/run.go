package domain

// RunStats accumulates counters for one pipeline run. Mutated only by the
// orchestrator; emitted as part of the machine-readable run summary.
type RunStats struct {
	Feeds                   int `json:"feeds"`
	EntriesSeen             int `json:"entries_seen"`
	SkippedSameStory        int `json:"skipped_same_story"`
	SkippedNoImage          int `json:"skipped_no_image"`
	SkippedDuplicateInRun   int `json:"skipped_duplicate_in_run"`
	SkippedAlreadyProcessed int `json:"skipped_already_processed"`
	SkippedExistingObject   int `json:"skipped_existing_object"`
	SkippedNoDownloadable   int `json:"skipped_no_downloadable_image"`
	Processed               int `json:"processed"`
	Errors                  int `json:"errors"`
	RetentionDeletedVideos  int `json:"retention_deleted_videos"`
	RetentionPrunedLedger   int `json:"retention_pruned_ledger"`
	EmailsSent              int `json:"emails_sent"`
}

// CreatedRecord is the summary projection of one produced artifact.
type CreatedRecord struct {
	Title        string `json:"title"`
	FeedName     string `json:"feed_name"`
	Published    string `json:"published"`
	SourceLink   string `json:"source_link"`
	StorageKey   string `json:"storage_key"`
	PresignedURL string `json:"presigned_url"`
	ModelUsed    string `json:"model_used"`
}

// RunSummary is the JSON document written at the end of every run.
type RunSummary struct {
	RunID        string          `json:"run_id"`
	DryRun       bool            `json:"dry_run"`
	TimestampUTC string          `json:"timestamp_utc"`
	Stats        RunStats        `json:"stats"`
	CreatedCount int             `json:"created_count"`
	Created      []CreatedRecord `json:"created"`
}
