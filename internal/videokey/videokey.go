// Package videokey derives the deterministic, content-addressed storage key
// for a produced clip. The key doubles as the idempotency check against
// existing output storage, so same inputs must always produce the same key.
package videokey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/wallyrebel/sportshorts/internal/pubdate"
)

const (
	// Prefix groups all video artifacts under one retention-scannable tree.
	Prefix = "videos/"

	slugMaxLength   = 70
	slugPlaceholder = "clip"
	suffixHexLen    = 10
)

var nonSlugExpr = regexp.MustCompile(`[^a-z0-9]+`)

var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Build returns videos/YYYY/MM/DD/<slug>-<suffix>.mp4 for the item. The date
// comes from the parsed publish time (epoch date when unparseable), the slug
// from the title, and the suffix from a hash of the stable item identity.
func Build(title, itemID, published string) string {
	keyDate := pubdate.ParseOrEpoch(published)
	return fmt.Sprintf("%s%s/%s-%s.mp4",
		Prefix,
		keyDate.Format("2006/01/02"),
		Slugify(title, slugMaxLength),
		hashSuffix(itemID),
	)
}

// Slugify folds the text to filesystem-safe lowercase ASCII: combining marks
// stripped, non-alphanumeric runs collapsed to single hyphens, trimmed and
// length-capped, with a fixed placeholder when nothing survives.
func Slugify(text string, maxLength int) string {
	folded, _, err := transform.String(asciiFold, text)
	if err != nil {
		folded = text
	}

	var ascii strings.Builder
	for _, r := range folded {
		if r < 128 {
			ascii.WriteRune(r)
		}
	}

	cleaned := nonSlugExpr.ReplaceAllString(strings.ToLower(ascii.String()), "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return slugPlaceholder
	}
	if maxLength > 0 && len(cleaned) > maxLength {
		cleaned = strings.Trim(cleaned[:maxLength], "-")
	}
	return cleaned
}

func hashSuffix(itemID string) string {
	sum := sha256.Sum256([]byte(itemID))
	return hex.EncodeToString(sum[:])[:suffixHexLen]
}
