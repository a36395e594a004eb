// Package tts synthesizes narration audio with the ElevenLabs API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wallyrebel/sportshorts/internal/ports"
	"github.com/wallyrebel/sportshorts/internal/retry"
)

const defaultBaseURL = "https://api.elevenlabs.io/v1/text-to-speech"

// Config wires voice and retry settings.
type Config struct {
	APIKey     string
	VoiceID    string
	Model      string
	Stability  float64
	Similarity float64
	MaxRetries int
	TimeoutSec int
}

// Synthesizer implements ports.SpeechSynthesizer.
type Synthesizer struct {
	cfg     Config
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	sleep   func(time.Duration)
}

var _ ports.SpeechSynthesizer = (*Synthesizer)(nil)

// Option customizes the synthesizer.
type Option func(*Synthesizer)

// WithBaseURL points the client at a different endpoint (tests).
func WithBaseURL(baseURL string) Option {
	return func(s *Synthesizer) {
		if baseURL != "" {
			s.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Synthesizer) {
		if client != nil {
			s.client = client
		}
	}
}

// WithSleeper overrides retry backoff waits.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(s *Synthesizer) {
		s.sleep = sleep
	}
}

// NewSynthesizer builds a reusable client.
func NewSynthesizer(cfg Config, logger *slog.Logger, opts ...Option) *Synthesizer {
	if cfg.Model == "" {
		cfg.Model = "eleven_multilingual_v2"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	timeout := 45 * time.Second
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	synth := &Synthesizer{
		cfg:     cfg,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(synth)
	}
	return synth
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tts request: http %d: %s", e.status, e.body)
}

// Synthesize posts the text and writes the returned MP3 to outputPath,
// retrying transient API failures with backoff.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, outputPath string) error {
	policy := retry.Policy{MaxAttempts: s.cfg.MaxRetries, BaseDelay: time.Second, Sleep: s.sleep}

	audio, err := retry.Do(ctx, policy, isRetryable, func(ctx context.Context) ([]byte, error) {
		return s.request(ctx, text)
	})
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}
	if err := os.WriteFile(outputPath, audio, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	s.logger.Debug("narration audio written", "path", outputPath, "bytes", len(audio))
	return nil
}

func (s *Synthesizer) request(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": s.cfg.Model,
		"voice_settings": map[string]float64{
			"stability":        s.cfg.Stability,
			"similarity_boost": s.cfg.Similarity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts payload: %w", err)
	}

	endpoint := s.baseURL + "/" + s.cfg.VoiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	return io.ReadAll(resp.Body)
}

func isRetryable(err error) bool {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return retry.TransientHTTPStatus(statusErr.status)
	}
	return false
}
