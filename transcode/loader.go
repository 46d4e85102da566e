// Package transcode moves media in and out of the compositor: audio decoding,
// frame extraction from clips and the final ffmpeg encode.
package transcode

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/logging"
)

// Loader picks a decoder by file extension
type Loader struct {
	ffmpeg *Decoder
}

// NewLoader creates a loader; cfg configures the ffmpeg fallback and may be nil
func NewLoader(cfg *DecoderConfig) *Loader {
	return &Loader{ffmpeg: NewDecoder(cfg)}
}

// SupportedAudioFormats lists the extensions Load accepts
func SupportedAudioFormats() []string {
	return []string{".wav", ".mp3", ".flac", ".ogg", ".m4a", ".aac"}
}

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Load decodes path into a SampleBuffer. WAV and MP3 are decoded natively
// unless normalization is enabled; FLAC, Ogg and AAC, and every format when
// normalizing, go through ffmpeg. Other extensions fail with
// UnsupportedFormatError before the file is touched.
func (l *Loader) Load(ctx context.Context, path string) (*audio.SampleBuffer, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "audio_loader",
		"function":  "Load",
		"path":      path,
	})

	ext := extension(path)
	var (
		buf *audio.SampleBuffer
		err error
	)
	switch {
	case !slices.Contains(SupportedAudioFormats(), ext):
		format := strings.TrimPrefix(ext, ".")
		if format == "" {
			format = "(none)"
		}
		return nil, &audio.UnsupportedFormatError{Format: format}
	case l.ffmpeg.config.EnableNormalization:
		buf, err = l.ffmpeg.DecodeFile(ctx, path)
	case ext == ".wav":
		buf, err = DecodeWAV(path)
	case ext == ".mp3":
		buf, err = DecodeMP3(path)
	default:
		buf, err = l.ffmpeg.DecodeFile(ctx, path)
	}
	if err != nil {
		logger.Error(err, "Failed to load audio")
		return nil, err
	}

	logger.Info("Audio loaded", logging.Fields{
		"duration":    buf.Duration,
		"sample_rate": buf.SampleRate,
		"channels":    buf.Channels,
		"container":   buf.Format.Container,
	})
	return buf, nil
}
