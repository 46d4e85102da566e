package video

import (
	"fmt"
	"math"
)

// VideoParams are the output settings
type VideoParams struct {
	FPS    float64 `json:"fps"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Codec  string  `json:"codec"`
	// Quality is 0-100, higher is better
	Quality int `json:"quality"`
}

// DefaultVideoParams returns 1080p30 H.264 at quality 85
func DefaultVideoParams() VideoParams {
	return VideoParams{
		FPS:     30,
		Width:   1920,
		Height:  1080,
		Codec:   "h264",
		Quality: 85,
	}
}

// CRF maps Quality onto the x264 constant rate factor scale, 0 (lossless) to 51
func (p VideoParams) CRF() int {
	q := math.Max(0, math.Min(100, float64(p.Quality)))
	return int(51 - q/100*51)
}

// FFmpegCodec translates the short codec name into an ffmpeg encoder
func (p VideoParams) FFmpegCodec() string {
	switch p.Codec {
	case "h264", "":
		return "libx264"
	case "h265", "hevc":
		return "libx265"
	case "vp9":
		return "libvpx-vp9"
	default:
		return p.Codec
	}
}

// Validate rejects settings ffmpeg cannot honour
func (p VideoParams) Validate() error {
	if p.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %v", p.FPS)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("resolution must be positive, got %dx%d", p.Width, p.Height)
	}
	// yuv420p needs even dimensions
	if p.Width%2 != 0 || p.Height%2 != 0 {
		return fmt.Errorf("resolution must be even, got %dx%d", p.Width, p.Height)
	}
	if p.Quality < 0 || p.Quality > 100 {
		return fmt.Errorf("quality must be between 0 and 100, got %d", p.Quality)
	}
	return nil
}

// EncodedVideo describes a finished output file
type EncodedVideo struct {
	Path       string  `json:"path"`
	Duration   float64 `json:"duration"`
	FrameCount int     `json:"frame_count"`
	FileSize   int64   `json:"file_size"`
}
