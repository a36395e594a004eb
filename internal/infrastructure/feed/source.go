package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/wallyrebel/sportshorts/internal/domain"
	"github.com/wallyrebel/sportshorts/internal/ports"
)

var (
	markupExpr     = regexp.MustCompile(`<[^>]+>`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
)

// Source implements ports.FeedSource over RSS/Atom feeds.
type Source struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
	logger    *slog.Logger
}

var _ ports.FeedSource = (*Source)(nil)

// NewSource wires an HTTP client; timeout defaults to 20s.
func NewSource(client *http.Client, userAgent string, logger *slog.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = "sportshorts/1.0"
	}
	return &Source{
		client:    client,
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch downloads and parses one feed into candidate items.
func (s *Source) Fetch(ctx context.Context, spec domain.FeedSpec) ([]domain.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", spec.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned %s", spec.URL, resp.Status)
	}

	parsed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", spec.URL, err)
	}

	items := make([]domain.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		items = append(items, buildItem(spec, entry))
	}

	s.debug("parsed feed", "feed", spec.Name, "entries", len(items))
	return items, nil
}

func buildItem(spec domain.FeedSpec, entry *gofeed.Item) domain.Item {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = "Untitled"
	}

	published := strings.TrimSpace(entry.Published)
	if published == "" {
		published = strings.TrimSpace(entry.Updated)
	}

	return domain.Item{
		FeedName:  spec.Name,
		FeedURL:   spec.URL,
		ItemID:    ComputeItemID(entry),
		Title:     title,
		Summary:   cleanSummary(entry),
		Link:      strings.TrimSpace(entry.Link),
		Published: published,
		ImageURLs: ExtractImageURLs(entry, spec.URL),
	}
}

// ComputeItemID derives the stable item identity: guid when present, else
// link, else a hash of title and publish date. The prefix records which
// field anchored the identity.
func ComputeItemID(entry *gofeed.Item) string {
	if guid := strings.TrimSpace(entry.GUID); guid != "" {
		return "guid:" + guid
	}
	if link := strings.TrimSpace(entry.Link); link != "" {
		return "link:" + link
	}
	title := strings.TrimSpace(entry.Title)
	pubDate := strings.TrimSpace(entry.Published)
	if pubDate == "" {
		pubDate = strings.TrimSpace(entry.Updated)
	}
	sum := sha256.Sum256([]byte(title + "|" + pubDate))
	return "hash:" + hex.EncodeToString(sum[:])
}

func cleanSummary(entry *gofeed.Item) string {
	summary := strings.TrimSpace(entry.Description)
	if summary == "" && entry.Content != "" {
		summary = strings.TrimSpace(entry.Content)
	}
	summary = markupExpr.ReplaceAllString(summary, " ")
	summary = whitespaceExpr.ReplaceAllString(summary, " ")
	return strings.TrimSpace(html.UnescapeString(summary))
}

// ExtractImageURLs collects candidate image URLs from enclosures, media
// extensions, and embedded HTML, in that order, deduplicated and filtered to
// the accepted extensions. Relative URLs resolve against the feed URL.
func ExtractImageURLs(entry *gofeed.Item, baseURL string) []string {
	seen := map[string]struct{}{}
	var out []string

	add := func(raw string) {
		normalized := normalizeImageURL(raw, baseURL)
		if normalized == "" || !acceptedImageExtension(normalized) {
			return
		}
		if _, ok := seen[normalized]; ok {
			return
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}

	for _, enc := range entry.Enclosures {
		if enc == nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			add(enc.URL)
		}
	}

	for _, media := range mediaExtensionURLs(entry, "content") {
		add(media)
	}
	for _, media := range mediaExtensionURLs(entry, "thumbnail") {
		add(media)
	}

	if entry.Image != nil {
		add(entry.Image.URL)
	}

	for _, blob := range []string{entry.Description, entry.Content} {
		if blob == "" {
			continue
		}
		for _, src := range imgSourcesFromHTML(blob) {
			add(src)
		}
	}

	return out
}

// mediaExtensionURLs pulls url attributes from media:content or
// media:thumbnail extension nodes.
func mediaExtensionURLs(entry *gofeed.Item, name string) []string {
	var urls []string
	for _, node := range entry.Extensions["media"][name] {
		if u := strings.TrimSpace(node.Attrs["url"]); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func imgSourcesFromHTML(blob string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(blob))
	if err != nil {
		return nil
	}
	var sources []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			if src = strings.TrimSpace(src); src != "" {
				sources = append(sources, src)
			}
		}
	})
	return sources
}

func normalizeImageURL(raw, baseURL string) string {
	raw = html.UnescapeString(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func acceptedImageExtension(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(parsed.Path)
	for _, suffix := range []string{".jpg", ".jpeg", ".png", ".webp", ".gif"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func (s *Source) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
