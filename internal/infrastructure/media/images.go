// Package media downloads feed item images to local scratch space.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wallyrebel/sportshorts/internal/ports"
)

const userAgent = "sportshorts/1.0"

var extensionByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Fetcher implements ports.ImageFetcher over plain HTTP.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.ImageFetcher = (*Fetcher)(nil)

// NewFetcher builds a downloader with a bounded request timeout.
func NewFetcher(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 20 * time.Second},
		logger: logger,
	}
}

// Download fetches up to maxImages URLs into outputDir. Individual
// failures are logged and skipped; the returned slice holds the local
// paths of the images that were saved.
func (f *Fetcher) Download(ctx context.Context, urls []string, outputDir string, maxImages int) ([]string, error) {
	if maxImages <= 0 {
		maxImages = len(urls)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	var saved []string
	for _, rawURL := range urls {
		if len(saved) >= maxImages {
			break
		}
		path, err := f.fetchOne(ctx, rawURL, outputDir, len(saved))
		if err != nil {
			f.logger.Warn("image download failed", "url", rawURL, "error", err)
			continue
		}
		saved = append(saved, path)
	}
	return saved, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, rawURL, outputDir string, index int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}

	ext := extensionFor(resp.Header.Get("Content-Type"), rawURL)
	path := filepath.Join(outputDir, fmt.Sprintf("image_%02d%s", index, ext))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

func extensionFor(contentType, rawURL string) string {
	mediaType := contentType
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if ext, ok := extensionByContentType[mediaType]; ok {
		return ext
	}

	lower := strings.ToLower(rawURL)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	switch ext := filepath.Ext(lower); ext {
	case ".jpg", ".png", ".webp", ".gif":
		return ext
	case ".jpeg":
		return ".jpg"
	}
	return ".jpg"
}
