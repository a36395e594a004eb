package render

import (
	"fmt"
	"os"
	"strings"
)

// BuildSRT chunks the narration into evenly timed subtitle cues over
// the audio duration and writes them as an SRT file.
func BuildSRT(text string, audioDuration float64, outputPath string) error {
	words := strings.Fields(text)
	if len(words) == 0 || audioDuration <= 0 {
		return os.WriteFile(outputPath, []byte{}, 0o644)
	}

	chunkCount := int(audioDuration / 2)
	if chunkCount < 3 {
		chunkCount = 3
	}
	if chunkCount > len(words) {
		chunkCount = len(words)
	}
	chunkSize := (len(words) + chunkCount - 1) / chunkCount
	if chunkSize < 3 {
		chunkSize = 3
	}

	var chunks []string
	for i := 0; i < len(words); i += chunkSize {
		end := i + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}

	perChunk := audioDuration / float64(len(chunks))
	var sb strings.Builder
	for i, chunk := range chunks {
		start := float64(i) * perChunk
		end := start + perChunk
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(start), srtTimestamp(end), chunk)
	}
	return os.WriteFile(outputPath, []byte(sb.String()), 0o644)
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int(seconds*1000 + 0.5)
	h := millis / 3600000
	m := millis / 60000 % 60
	s := millis / 1000 % 60
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
