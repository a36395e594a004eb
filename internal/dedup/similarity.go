// Package dedup decides whether two candidate items describe the same
// real-world story. Two signals are computed over normalized title+summary
// text and the stronger one wins: either on its own is treated as sufficient
// evidence of duplication, trading precision for recall so the same story is
// never published twice from different feeds.
package dedup

import (
	"regexp"
	"strings"

	"github.com/wallyrebel/sportshorts/internal/domain"
)

var (
	markupExpr     = regexp.MustCompile(`<[^>]+>`)
	nonAlnumExpr   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
)

// NormalizeStoryText lowercases, strips markup tags, collapses
// non-alphanumeric runs to single spaces, and trims.
func NormalizeStoryText(text string) string {
	lowered := strings.ToLower(text)
	lowered = markupExpr.ReplaceAllString(lowered, " ")
	lowered = nonAlnumExpr.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(lowered, " "))
}

func storyText(item domain.Item) string {
	return NormalizeStoryText(item.Title + " " + item.Summary)
}

// Similarity returns a symmetric score in [0,1] for two items: the maximum
// of the character-sequence match ratio and the token-set Jaccard similarity
// of their normalized story texts. Returns 0 when either text is empty.
func Similarity(a, b domain.Item) float64 {
	aText := storyText(a)
	bText := storyText(b)
	if aText == "" || bText == "" {
		return 0
	}

	charRatio := matchRatio(aText, bText)
	tokenJaccard := jaccard(strings.Fields(aText), strings.Fields(bText))
	if tokenJaccard > charRatio {
		return tokenJaccard
	}
	return charRatio
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	aSet := make(map[string]struct{}, len(a))
	for _, tok := range a {
		aSet[tok] = struct{}{}
	}
	bSet := make(map[string]struct{}, len(b))
	for _, tok := range b {
		bSet[tok] = struct{}{}
	}
	shared := 0
	for tok := range aSet {
		if _, ok := bSet[tok]; ok {
			shared++
		}
	}
	union := len(aSet) + len(bSet) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// matchRatio computes 2*M/T over the two strings, where M is the total size
// of the longest matching blocks found by recursive longest-block search and
// T is the combined length. Normalized text is ASCII, so byte indexing is
// exact.
func matchRatio(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	return 2 * float64(totalMatching(a, b)) / float64(total)
}

func totalMatching(a, b string) int {
	b2j := make(map[byte][]int, len(b))
	for j := 0; j < len(b); j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	var matched int
	var walk func(alo, ahi, blo, bhi int)
	walk = func(alo, ahi, blo, bhi int) {
		i, j, size := longestBlock(a, b2j, alo, ahi, blo, bhi)
		if size == 0 {
			return
		}
		matched += size
		walk(alo, i, blo, j)
		walk(i+size, ahi, j+size, bhi)
	}
	walk(0, len(a), 0, len(b))
	return matched
}

func longestBlock(a string, b2j map[byte][]int, alo, ahi, blo, bhi int) (int, int, int) {
	besti, bestj, bestSize := alo, blo, 0
	runLens := map[int]int{}
	for i := alo; i < ahi; i++ {
		newRunLens := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := runLens[j-1] + 1
			newRunLens[j] = k
			if k > bestSize {
				besti, bestj, bestSize = i-k+1, j-k+1, k
			}
		}
		runLens = newRunLens
	}
	return besti, bestj, bestSize
}
