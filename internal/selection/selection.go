// Package selection bounds, orders, and deduplicates the candidate universe
// into the run's worklist.
package selection

import (
	"sort"

	"github.com/wallyrebel/sportshorts/internal/dedup"
	"github.com/wallyrebel/sportshorts/internal/domain"
	"github.com/wallyrebel/sportshorts/internal/pubdate"
)

const (
	// SameStoryThreshold is the empirically tuned similarity bar above
	// which two items are treated as the same story.
	SameStoryThreshold = 0.84

	// maxRecentHardCap bounds the per-feed recency cap no matter what the
	// configuration asks for, protecting against runaway batch sizes.
	maxRecentHardCap = 25
)

// RecentPerFeed keeps only the maxRecent most recently published items.
// Unparseable publish timestamps sort as oldest. A cap of zero or less keeps
// everything; the configured cap is clamped to a hard upper bound.
func RecentPerFeed(items []domain.Item, maxRecent int) []domain.Item {
	if maxRecent <= 0 {
		return items
	}
	if maxRecent > maxRecentHardCap {
		maxRecent = maxRecentHardCap
	}

	sorted := NewestFirst(items)
	if len(sorted) > maxRecent {
		sorted = sorted[:maxRecent]
	}
	return sorted
}

// NewestFirst returns a copy sorted by parsed publish time descending.
func NewestFirst(items []domain.Item) []domain.Item {
	return sortedByPublished(items, true)
}

// OldestFirst returns a copy sorted by parsed publish time ascending.
func OldestFirst(items []domain.Item) []domain.Item {
	return sortedByPublished(items, false)
}

func sortedByPublished(items []domain.Item, newestFirst bool) []domain.Item {
	out := make([]domain.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		ti := pubdate.ParseOrEpoch(out[i].Published)
		tj := pubdate.ParseOrEpoch(out[j].Published)
		if newestFirst {
			return ti.After(tj)
		}
		return ti.Before(tj)
	})
	return out
}

// UniqueStories drops near-duplicate reports of the same story, keeping the
// chronologically first one. It walks candidates oldest-published-first so
// the earliest report becomes canonical, and compares each item against
// every already-kept item. The second return maps each skipped item ID to
// the ID of its story's keeper.
//
// Quadratic in the number of surviving candidates, which the per-feed
// recency cap keeps small.
func UniqueStories(items []domain.Item) ([]domain.Item, map[string]string) {
	var kept []domain.Item
	skippedToKeeper := map[string]string{}

	for _, item := range OldestFirst(items) {
		keeperID := ""
		for _, existing := range kept {
			if dedup.Similarity(item, existing) >= SameStoryThreshold {
				keeperID = existing.ItemID
				break
			}
		}
		if keeperID != "" {
			skippedToKeeper[item.ItemID] = keeperID
			continue
		}
		kept = append(kept, item)
	}

	return kept, skippedToKeeper
}
