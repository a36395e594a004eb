package domain

import "time"

// Item is a core entity describing one piece of content pulled from a feed.
// The publish timestamp keeps its original wire format and is parsed lazily
// by consumers; ItemID is stable across runs for the same logical entry.
type Item struct {
	FeedName  string
	FeedURL   string
	ItemID    string
	Title     string
	Summary   string
	Link      string
	Published string
	ImageURLs []string
}

// Script is the narration produced for one item.
type Script struct {
	NarrationText string
	OnScreenHook  string
	ModelUsed     string
}

// VideoResult records one artifact produced on full pipeline success.
type VideoResult struct {
	ItemID       string
	FeedName     string
	Title        string
	Published    string
	SourceLink   string
	StorageKey   string
	PresignedURL string
	ModelUsed    string
	CreatedAt    time.Time
}
