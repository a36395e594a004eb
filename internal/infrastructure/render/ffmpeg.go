// Package render produces vertical MP4 clips with ffmpeg.
package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/wallyrebel/sportshorts/internal/domain"
	"github.com/wallyrebel/sportshorts/internal/ports"
)

// Renderer shells out to ffmpeg/ffprobe.
type Renderer struct {
	ffmpegBin  string
	ffprobeBin string
	logger     *slog.Logger
}

var _ ports.Renderer = (*Renderer)(nil)

// NewRenderer builds a renderer around the given binaries; empty names
// fall back to "ffmpeg" and "ffprobe" on PATH.
func NewRenderer(ffmpegBin, ffprobeBin string, logger *slog.Logger) *Renderer {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &Renderer{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin, logger: logger}
}

// ProbeAudioDuration returns the audio length in seconds, never less
// than 0.1.
func (r *Renderer) ProbeAudioDuration(ctx context.Context, audioPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("probe audio duration: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	if seconds < 0.1 {
		seconds = 0.1
	}
	return seconds, nil
}

// Render assembles a 1080x1920 clip from still images and a voiceover
// track. When rendering with captions fails it retries once without
// them.
func (r *Renderer) Render(ctx context.Context, req ports.RenderRequest) error {
	if len(req.ImagePaths) == 0 {
		return fmt.Errorf("render: at least one image is required")
	}

	duration, err := r.ProbeAudioDuration(ctx, req.AudioPath)
	if err != nil {
		return err
	}
	target := duration
	if target < float64(req.Style.MinDurationSec) {
		target = float64(req.Style.MinDurationSec)
	}
	if target > float64(req.Style.MaxDurationSec) {
		target = float64(req.Style.MaxDurationSec)
	}

	err = r.runFFmpeg(ctx, req, target, req.CaptionPath)
	if err != nil && req.CaptionPath != "" {
		r.logger.Warn("render with captions failed, retrying without", "error", err)
		err = r.runFFmpeg(ctx, req, target, "")
	}
	if err != nil {
		return fmt.Errorf("ffmpeg render: %w", err)
	}
	return nil
}

func (r *Renderer) runFFmpeg(ctx context.Context, req ports.RenderRequest, targetDuration float64, captionPath string) error {
	segment := targetDuration / float64(len(req.ImagePaths))
	filterComplex, mapped := buildFilterComplex(len(req.ImagePaths), segment, req.Style.FPS, captionPath, req.Style)

	args := []string{"-y"}
	for _, image := range req.ImagePaths {
		args = append(args, "-loop", "1", "-t", fmt.Sprintf("%.3f", segment), "-i", image)
	}
	args = append(args, "-i", req.AudioPath)
	args = append(args,
		"-filter_complex", filterComplex,
		"-map", "["+mapped+"]",
		"-map", fmt.Sprintf("%d:a", len(req.ImagePaths)),
		"-t", fmt.Sprintf("%.3f", targetDuration),
		"-r", strconv.Itoa(req.Style.FPS),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-b:v", req.Style.Bitrate,
		"-c:a", "aac",
		"-b:a", "128k",
		"-af", "loudnorm=I=-16:TP=-1.5:LRA=11",
		"-movflags", "+faststart",
		"-shortest",
		req.OutputPath,
	)

	r.logger.Debug("running ffmpeg", "args", strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.ffmpegBin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, tail(stderr.String(), 2000))
	}
	return nil
}

func buildFilterComplex(imageCount int, segmentSec float64, fps int, captionPath string, style domain.Style) (filter string, stream string) {
	frames := int(math.Ceil(segmentSec * float64(fps)))
	if frames < 1 {
		frames = 1
	}

	var parts []string
	for i := 0; i < imageCount; i++ {
		parts = append(parts, fmt.Sprintf(
			"[%d:v]scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,"+
				"zoompan=z='min(zoom+0.0008,1.15)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=1080x1920:fps=%d,"+
				"trim=duration=%.3f,setpts=PTS-STARTPTS,format=yuv420p[v%d]",
			i, frames, fps, segmentSec, i,
		))
	}

	var concat strings.Builder
	for i := 0; i < imageCount; i++ {
		fmt.Fprintf(&concat, "[v%d]", i)
	}
	parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[vcat]", concat.String(), imageCount))
	stream = "vcat"

	if captionPath != "" {
		parts = append(parts, fmt.Sprintf(
			"[%s]subtitles='%s':force_style='Fontsize=%d,MarginV=%d'[vout]",
			stream, escapeSubtitlesPath(captionPath), style.CaptionFontSize, style.CaptionMarginV,
		))
		stream = "vout"
	}
	return strings.Join(parts, ";"), stream
}

// escapeSubtitlesPath quotes for the ffmpeg subtitles filter parser,
// which treats colons and quotes specially.
func escapeSubtitlesPath(path string) string {
	escaped := strings.ReplaceAll(path, "\\", "/")
	escaped = strings.ReplaceAll(escaped, ":", `\:`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return escaped
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
