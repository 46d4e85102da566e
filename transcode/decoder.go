package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/logging"
)

// DecoderConfig holds ffmpeg decoder configuration
type DecoderConfig struct {
	// TargetSampleRate resamples the output; 0 keeps the source rate
	TargetSampleRate int `json:"target_sample_rate"`
	// TargetChannels downmixes the output; 0 keeps the source layout
	TargetChannels  int           `json:"target_channels"`
	MaxDuration     time.Duration `json:"max_duration"`
	ResampleQuality string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath      string        `json:"ffmpeg_path"`
	FFprobePath     string        `json:"ffprobe_path"`
	Timeout         time.Duration `json:"timeout"`
	// Normalization options
	EnableNormalization bool    `json:"enable_normalization"`
	NormalizationMethod string  `json:"normalization_method"` // "loudnorm", "dynaudnorm", "compand"
	TargetLUFS          float64 `json:"target_lufs"`
	TargetPeak          float64 `json:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range"`
}

// DefaultDecoderConfig keeps the source format untouched. Normalization is off
// because it flattens the dynamics the beat tracker relies on.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate:    0,
		TargetChannels:      0,
		MaxDuration:         0, // No limit
		ResampleQuality:     "medium",
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		Timeout:             2 * time.Minute,
		EnableNormalization: false,
		NormalizationMethod: "loudnorm",
		TargetLUFS:          -16.0, // Streaming standard
		TargetPeak:          -1.0,
		LoudnessRange:       8.0,
	}
}

// Decoder decodes any container ffmpeg understands into float PCM
type Decoder struct {
	config *DecoderConfig
}

// AudioMetadata holds detected audio properties from ffprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeFile probes and decodes an audio file
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*audio.SampleBuffer, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	logger.Debug("Starting audio file decode")

	metadata, err := d.ProbeAudio(ctx, filename)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, &audio.LoadFailedError{Path: filename, Err: err}
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
		"input_bitrate":     metadata.Bitrate,
	})

	args := append([]string{"-i", filename}, d.buildFFmpegArgs(metadata)...)
	args = append(args, "pipe:1")

	output, err := runTool(ctx, d.config.Timeout, d.config.FFmpegPath, args...)
	if err != nil {
		logger.Error(err, "FFmpeg decode failed")
		return nil, &audio.LoadFailedError{Path: filename, Err: err}
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, &audio.LoadFailedError{Path: filename, Err: errors.New("no audio samples decoded")}
	}

	sampleRate, channels := d.outputFormat(metadata)
	buf := audio.NewSampleBuffer(samples, sampleRate, channels)
	buf.Format = audio.FormatInfo{Container: strings.TrimPrefix(extension(filename), "."), Codec: metadata.Codec}

	logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_samples":     len(samples),
		"output_sample_rate": sampleRate,
		"output_channels":    channels,
		"output_duration":    buf.Duration,
	})
	return buf, nil
}

// ProbeAudio uses ffprobe to read the first audio stream of a file
func (d *Decoder) ProbeAudio(ctx context.Context, filename string) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		filename,
	}

	output, err := runTool(ctx, d.config.Timeout, d.config.FFprobePath, args...)
	if err != nil {
		return nil, err
	}
	return parseFFprobeOutput(output)
}

func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, errors.New("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil {
		sampleRate = 44100
	}
	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}
	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

func (d *Decoder) outputFormat(metadata *AudioMetadata) (sampleRate, channels int) {
	sampleRate, channels = metadata.SampleRate, metadata.Channels
	if d.config.TargetSampleRate > 0 {
		sampleRate = d.config.TargetSampleRate
	}
	if d.config.TargetChannels > 0 {
		channels = d.config.TargetChannels
	}
	return sampleRate, channels
}

// buildFFmpegArgs builds the output side of the decode command
func (d *Decoder) buildFFmpegArgs(metadata *AudioMetadata) []string {
	sampleRate, channels := d.outputFormat(metadata)
	args := []string{
		"-vn",
		"-f", "f64le",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
	}

	var filters []string
	if sampleRate != metadata.SampleRate {
		switch d.config.ResampleQuality {
		case "fast":
			filters = append(filters, "aresample=resampler=soxr:precision=16")
		case "medium":
			filters = append(filters, "aresample=resampler=soxr:precision=20")
		case "high":
			filters = append(filters, "aresample=resampler=soxr:precision=28")
		}
	}
	if d.config.EnableNormalization {
		if norm := d.buildNormalizationFilter(); norm != "" {
			filters = append(filters, norm)
		}
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}

	args = append(args, "-v", "error")
	return args
}

func (d *Decoder) buildNormalizationFilter() string {
	switch d.config.NormalizationMethod {
	case "loudnorm":
		// EBU R128 loudness normalization
		return fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f",
			d.config.TargetLUFS,
			d.config.TargetPeak,
			d.config.LoudnessRange)
	case "dynaudnorm":
		return "dynaudnorm=p=0.95:m=10:s=12"
	case "compand":
		return fmt.Sprintf("compand=0.1,0.3:-90/-90,-%.1f/-%.1f,0/0:6:0:-90:0.1",
			math.Abs(d.config.TargetPeak),
			math.Abs(d.config.TargetPeak))
	default:
		return ""
	}
}

// bytesToFloat64 converts raw f64le bytes, dropping a trailing partial sample
func bytesToFloat64(data []byte) []float64 {
	count := len(data) / 8
	if count == 0 {
		return nil
	}
	samples := make([]float64, count)
	for i := range count {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
	}
	return samples
}

// Validate checks the decoder settings. It does not look for the binaries;
// use CheckFFmpeg for that.
func (c *DecoderConfig) Validate() error {
	if c.TargetSampleRate < 0 {
		return fmt.Errorf("target sample rate must not be negative: %d", c.TargetSampleRate)
	}
	if c.TargetChannels < 0 || c.TargetChannels > 8 {
		return fmt.Errorf("target channels must be between 0 and 8: %d", c.TargetChannels)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive: %v", c.Timeout)
	}
	switch c.ResampleQuality {
	case "fast", "medium", "high":
	default:
		return fmt.Errorf("unknown resample quality %q", c.ResampleQuality)
	}
	if c.EnableNormalization && !slices.Contains(NormalizationMethods(), c.NormalizationMethod) {
		return fmt.Errorf("unknown normalization method %q", c.NormalizationMethod)
	}
	return nil
}

// NormalizationMethods lists the loudness filters the decoder can apply
func NormalizationMethods() []string {
	return []string{"loudnorm", "dynaudnorm", "compand"}
}

// CheckFFmpeg verifies that both binaries can be found on PATH
func CheckFFmpeg(ffmpegPath, ffprobePath string) error {
	if _, err := exec.LookPath(ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", ffmpegPath, err)
	}
	if _, err := exec.LookPath(ffprobePath); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", ffprobePath, err)
	}
	return nil
}
