package composition

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/RyanBlaney/retro-compositor/algorithms/common"
	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/RyanBlaney/retro-compositor/styles"
	"github.com/RyanBlaney/retro-compositor/video"
)

// Frames are extracted and styled in batches of this size so a long segment
// never holds more than one batch in memory
const renderBatchSize = 48

// FrameSource pulls frames out of a clip at the given timestamps
type FrameSource interface {
	ExtractFramesAt(ctx context.Context, clip *video.VideoClip, timestamps []float64) ([]*video.Frame, error)
}

// FrameSink receives rendered frames in presentation order
type FrameSink interface {
	WriteFrame(frame *video.Frame) error
}

// Renderer turns timeline segments into styled frames at the output size
type Renderer struct {
	frames   FrameSource
	style    styles.Style
	styleCfg *styles.StyleConfig
	params   video.VideoParams
	workers  int
	logger   logging.Logger
}

// NewRenderer creates a renderer applying style with cfg to every frame
func NewRenderer(frames FrameSource, style styles.Style, cfg *styles.StyleConfig, params video.VideoParams) *Renderer {
	if cfg == nil {
		cfg = style.DefaultConfig()
	}
	return &Renderer{
		frames:   frames,
		style:    style,
		styleCfg: cfg,
		params:   params,
		workers:  runtime.NumCPU(),
	}
}

// WithWorkers bounds the goroutines applying effects
func (r *Renderer) WithWorkers(n int) *Renderer {
	if n > 0 {
		r.workers = n
	}
	return r
}

// WithLogger replaces the global logger
func (r *Renderer) WithLogger(logger logging.Logger) *Renderer {
	r.logger = logger
	return r
}

func (r *Renderer) log() logging.Logger {
	if r.logger != nil {
		return r.logger
	}
	return logging.GetGlobalLogger()
}

// Render writes every segment of timeline to sink and returns the frame
// count. clips maps clip ids to clips; run MapTimelineToClips first.
func (r *Renderer) Render(ctx context.Context, timeline *Timeline, clips map[uint32]*video.VideoClip, total float64, sink FrameSink) (int, error) {
	logger := r.log().WithContext(ctx).WithFields(logging.Fields{
		"component": "segment_renderer",
		"function":  "Render",
		"style":     r.style.Name(),
	})

	written := 0
	segments := timeline.Segments(total)
	for i, seg := range segments {
		clip, ok := clips[seg.ClipID]
		if !ok {
			return written, &SequencingFailedError{Reason: fmt.Sprintf("segment %d uses unknown clip %d", i, seg.ClipID)}
		}

		logger.Debug("Rendering segment", logging.Fields{
			"segment": i,
			"start":   seg.Start,
			"end":     seg.End,
			"clip":    clip.Name,
		})

		n, err := r.RenderSegment(ctx, clip, seg, sink)
		written += n
		if err != nil {
			return written, err
		}
	}

	logger.Info("Rendered timeline", logging.Fields{
		"segments": len(segments),
		"frames":   written,
	})
	return written, nil
}

// RenderSegment renders round(duration*fps) frames of clip for seg
func (r *Renderer) RenderSegment(ctx context.Context, clip *video.VideoClip, seg Segment, sink FrameSink) (int, error) {
	frameCount := int(math.Round(seg.Duration() * r.params.FPS))
	if frameCount <= 0 {
		return 0, nil
	}
	timestamps := SourceTimestamps(clip.Duration, seg.Duration(), frameCount)

	written := 0
	for start := 0; start < frameCount; start += renderBatchSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		end := min(start+renderBatchSize, frameCount)

		frames, err := r.frames.ExtractFramesAt(ctx, clip, timestamps[start:end])
		if err != nil {
			return written, &SequencingFailedError{Reason: fmt.Sprintf("extract frames from %s", clip.Path), Err: err}
		}
		if len(frames) != end-start {
			return written, &SequencingFailedError{Reason: fmt.Sprintf("frame source returned %d of %d frames", len(frames), end-start)}
		}

		for j, f := range frames {
			f = f.Resize(r.params.Width, r.params.Height)
			f.Timestamp = seg.Start + float64(start+j)/r.params.FPS
			frames[j] = f
		}

		if err := r.applyEffects(ctx, frames, start, frameCount); err != nil {
			return written, err
		}

		for _, f := range frames {
			if err := sink.WriteFrame(f); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

// applyEffects styles a batch in parallel; offset is the index of the first
// frame within its segment
func (r *Renderer) applyEffects(ctx context.Context, frames []*video.Frame, offset, frameCount int) error {
	jobs := make(chan int, len(frames))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for range min(r.workers, len(frames)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				cfg := FrameStyleConfig(r.styleCfg, r.style.Name(), offset+i, frameCount)
				if err := r.style.Apply(frames[i], cfg); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = &video.FrameProcessingFailedError{Reason: "effect application failed", Err: err}
					}
					mu.Unlock()
				}
			}
		}()
	}

	for i := range frames {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return firstErr
}

// SourceTimestamps picks where in the clip each output frame comes from. A
// clip at least as long as the segment is sampled around its middle; a
// shorter one loops.
func SourceTimestamps(clipDuration, segmentDuration float64, frameCount int) []float64 {
	timestamps := make([]float64, frameCount)
	if frameCount == 0 {
		return timestamps
	}
	step := segmentDuration / float64(frameCount)

	if clipDuration >= segmentDuration {
		offset := (clipDuration - segmentDuration) / 2
		for i := range timestamps {
			timestamps[i] = offset + float64(i)*step
		}
		return timestamps
	}
	if clipDuration <= 0 {
		return timestamps
	}
	for i := range timestamps {
		timestamps[i] = math.Mod(float64(i)*step, clipDuration)
	}
	return timestamps
}

// FrameStyleConfig varies the style slowly across a segment so still shots
// do not look frozen. VHS also drifts its tracking error and noise.
func FrameStyleConfig(base *styles.StyleConfig, styleName string, index, frameCount int) *styles.StyleConfig {
	progress := float64(index) / float64(max(frameCount, 1))
	slowWave := math.Sin(progress*math.Pi*0.5) * 0.2

	cfg := base.Clone()
	cfg.Intensity = common.Clamp(base.Intensity+slowWave*0.3, 0, 1)

	if styleName == "vhs" {
		tracking := base.GetOr(styles.TrackingError, 0.5) + math.Sin(progress*math.Pi*2)*0.1
		noise := base.GetOr(styles.NoiseLevel, 0.6) + math.Sin(progress*math.Pi*3)*0.05
		cfg.Set(styles.TrackingError, tracking).Set(styles.NoiseLevel, noise)
	}
	return cfg
}
