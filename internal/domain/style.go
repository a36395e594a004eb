package domain

// FeedSpec identifies a single configured feed.
type FeedSpec struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Style controls the look and pacing of rendered clips.
type Style struct {
	MinDurationSec    int    `yaml:"minDurationSec"`
	MaxDurationSec    int    `yaml:"maxDurationSec"`
	CaptionFontSize   int    `yaml:"captionFontSize"`
	CaptionMarginV    int    `yaml:"captionMarginV"`
	FPS               int    `yaml:"fps"`
	Bitrate           string `yaml:"bitrate"`
	MaxImagesPerVideo int    `yaml:"maxImagesPerVideo"`
}

// DefaultStyle returns the rendering defaults applied when config omits them.
func DefaultStyle() Style {
	return Style{
		MinDurationSec:    10,
		MaxDurationSec:    45,
		CaptionFontSize:   46,
		CaptionMarginV:    96,
		FPS:               30,
		Bitrate:           "4M",
		MaxImagesPerVideo: 3,
	}
}
