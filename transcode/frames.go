package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/RyanBlaney/retro-compositor/video"
)

// Metadata assumed for clips ffprobe cannot read
const (
	fallbackClipDuration = 30.0
	fallbackClipFPS      = 30.0
	fallbackClipWidth    = 1920
	fallbackClipHeight   = 1080
)

// FrameExtractorConfig configures ffmpeg frame extraction
type FrameExtractorConfig struct {
	FFmpegPath  string        `json:"ffmpeg_path"`
	FFprobePath string        `json:"ffprobe_path"`
	Timeout     time.Duration `json:"timeout"`
	// Workers bounds concurrent ffmpeg processes; 0 uses the CPU count
	Workers int `json:"workers"`
}

// DefaultFrameExtractorConfig returns the defaults
func DefaultFrameExtractorConfig() *FrameExtractorConfig {
	return &FrameExtractorConfig{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Timeout:     30 * time.Second,
	}
}

// FrameExtractor pulls single frames out of clips with ffmpeg. Still images
// are decoded once and cached.
type FrameExtractor struct {
	config *FrameExtractorConfig

	mu     sync.Mutex
	stills map[string]*video.Frame
}

// NewFrameExtractor creates an extractor; cfg may be nil
func NewFrameExtractor(cfg *FrameExtractorConfig) *FrameExtractor {
	if cfg == nil {
		cfg = DefaultFrameExtractorConfig()
	}
	return &FrameExtractor{config: cfg, stills: make(map[string]*video.Frame)}
}

// Clips discovers the clips of dir and probes each one. Clips that cannot be
// probed keep estimated metadata.
func (fe *FrameExtractor) Clips(ctx context.Context, dir string) ([]*video.VideoClip, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "frame_extractor",
		"function":  "Clips",
		"directory": dir,
	})

	clips, err := video.DiscoverClips(ctx, dir)
	if err != nil {
		return nil, err
	}

	for _, clip := range clips {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := fe.Probe(ctx, clip); err != nil {
			logger.Warn("Probe failed, using estimated metadata", logging.Fields{
				"clip":  clip.Path,
				"error": err.Error(),
			})
			clip.Duration = fallbackClipDuration
			clip.FPS = fallbackClipFPS
			clip.Width = fallbackClipWidth
			clip.Height = fallbackClipHeight
		}
		logger.Info("Loaded clip", logging.Fields{
			"clip":     clip.Name,
			"sequence": clip.Sequence,
			"duration": clip.Duration,
			"width":    clip.Width,
			"height":   clip.Height,
		})
	}
	return clips, nil
}

// Probe fills in the duration, frame rate and size of a clip
func (fe *FrameExtractor) Probe(ctx context.Context, clip *video.VideoClip) error {
	if clip.Kind == video.KindImage {
		still, err := fe.still(clip.Path)
		if err != nil {
			return err
		}
		clip.Duration = video.StillDuration
		clip.FPS = fallbackClipFPS
		clip.Width = still.Width()
		clip.Height = still.Height()
		return nil
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-select_streams", "v:0",
		clip.Path,
	}
	output, err := runTool(ctx, fe.config.Timeout, fe.config.FFprobePath, args...)
	if err != nil {
		return &video.LoadFailedError{Path: clip.Path, Err: err}
	}

	meta, err := parseVideoProbe(output)
	if err != nil {
		return &video.LoadFailedError{Path: clip.Path, Err: err}
	}
	clip.Duration = meta.duration
	clip.FPS = meta.fps
	clip.Width = meta.width
	clip.Height = meta.height
	return nil
}

type videoProbe struct {
	duration float64
	fps      float64
	width    int
	height   int
}

func parseVideoProbe(data []byte) (*videoProbe, error) {
	var probe struct {
		Streams []struct {
			Width        int    `json:"width"`
			Height       int    `json:"height"`
			Duration     string `json:"duration"`
			RFrameRate   string `json:"r_frame_rate"`
			AvgFrameRate string `json:"avg_frame_rate"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, errors.New("no video streams found")
	}

	s := probe.Streams[0]
	meta := &videoProbe{width: s.Width, height: s.Height}

	meta.duration, _ = strconv.ParseFloat(s.Duration, 64)
	if meta.duration <= 0 {
		meta.duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	}
	if meta.duration <= 0 {
		meta.duration = fallbackClipDuration
	}

	meta.fps = parseFrameRate(s.AvgFrameRate)
	if meta.fps <= 0 {
		meta.fps = parseFrameRate(s.RFrameRate)
	}
	if meta.fps <= 0 {
		meta.fps = fallbackClipFPS
	}
	if meta.width <= 0 || meta.height <= 0 {
		meta.width, meta.height = fallbackClipWidth, fallbackClipHeight
	}
	return meta, nil
}

// parseFrameRate reads ffprobe's "num/den" notation
func parseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	dv, err := strconv.ParseFloat(den, 64)
	if err != nil || dv == 0 {
		return 0
	}
	return n / dv
}

func (fe *FrameExtractor) still(path string) (*video.Frame, error) {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if f, ok := fe.stills[path]; ok {
		return f, nil
	}
	f, err := video.LoadImage(path)
	if err != nil {
		return nil, err
	}
	fe.stills[path] = f
	return f, nil
}

// ExtractFrameAt grabs the frame shown at timestamp seconds
func (fe *FrameExtractor) ExtractFrameAt(ctx context.Context, clip *video.VideoClip, timestamp float64) (*video.Frame, error) {
	if clip.Kind == video.KindImage {
		still, err := fe.still(clip.Path)
		if err != nil {
			return nil, err
		}
		f := still.Clone()
		f.Timestamp = timestamp
		return f, nil
	}

	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64),
		"-i", clip.Path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	}
	output, err := runTool(ctx, fe.config.Timeout, fe.config.FFmpegPath, args...)
	if err != nil {
		return nil, &video.FrameProcessingFailedError{Reason: fmt.Sprintf("extract %s at %.3fs", clip.Path, timestamp), Err: err}
	}
	if len(output) == 0 {
		return nil, &video.FrameProcessingFailedError{Reason: fmt.Sprintf("no frame in %s at %.3fs", clip.Path, timestamp)}
	}

	img, err := png.Decode(bytes.NewReader(output))
	if err != nil {
		return nil, &video.FrameProcessingFailedError{Reason: "decode extracted frame", Err: err}
	}
	return video.FromImage(img, timestamp), nil
}

// ExtractFramesAt extracts many timestamps with a bounded pool of ffmpeg
// processes. Frames that fail are replaced by black placeholders so one bad
// timestamp does not sink a render; only cancellation is an error.
func (fe *FrameExtractor) ExtractFramesAt(ctx context.Context, clip *video.VideoClip, timestamps []float64) ([]*video.Frame, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "frame_extractor",
		"function":  "ExtractFramesAt",
		"clip":      clip.Path,
	})

	frames := make([]*video.Frame, len(timestamps))
	if len(timestamps) == 0 {
		return frames, nil
	}

	workers := fe.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(timestamps))

	jobs := make(chan int, len(timestamps))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				f, err := fe.ExtractFrameAt(ctx, clip, timestamps[i])
				if err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					f = placeholder(clip, timestamps[i])
				}
				frames[i] = f
			}
		}()
	}

	for i := range timestamps {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed > 0 {
		logger.Warn("Some frames were replaced by placeholders", logging.Fields{
			"failed": failed,
			"total":  len(timestamps),
		})
	}
	return frames, nil
}

func placeholder(clip *video.VideoClip, timestamp float64) *video.Frame {
	w, h := clip.Width, clip.Height
	if w <= 0 || h <= 0 {
		w, h = fallbackClipWidth, fallbackClipHeight
	}
	return video.NewFrame(w, h, timestamp)
}

