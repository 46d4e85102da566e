// Package composition plans where the cuts of a music video fall and renders
// the planned timeline: the cut decision engine, the segment renderer and the
// pipeline tying them to analysis and encoding.
package composition

import (
	"context"
	"errors"

	"github.com/RyanBlaney/retro-compositor/analyzer"
	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/config"
	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/RyanBlaney/retro-compositor/styles"
	"github.com/RyanBlaney/retro-compositor/video"
)

// ClipSource lists the clips of a directory in sequence order
type ClipSource interface {
	Clips(ctx context.Context, dir string) ([]*video.VideoClip, error)
}

// Encoder consumes rendered frames and produces the final file
type Encoder interface {
	FrameSink
	Finish(ctx context.Context, audioPath, outputPath string) (*video.EncodedVideo, error)
	Cleanup() error
}

// EncoderFactory opens an Encoder for one render
type EncoderFactory func(params video.VideoParams) (Encoder, error)

// Dependencies are the collaborators a Compositor drives. Style may be nil,
// in which case the style named in the config is used.
type Dependencies struct {
	Loader     analyzer.Loader
	Clips      ClipSource
	Frames     FrameSource
	NewEncoder EncoderFactory
	Style      styles.Style
	Logger     logging.Logger
}

// Plan is the analysis and timeline of a composition before rendering
type Plan struct {
	Analysis *audio.AudioAnalysis `json:"analysis"`
	Clips    []*video.VideoClip   `json:"clips"`
	Timeline *Timeline            `json:"timeline"`
}

// Result describes a finished composition
type Result struct {
	Plan
	Video *video.EncodedVideo `json:"video"`
}

// Compositor runs the whole pipeline: analyze, discover clips, plan cuts,
// render with a style and encode with the original audio
type Compositor struct {
	config     *config.Config
	analyzer   *analyzer.Analyzer
	engine     *CutEngine
	clips      ClipSource
	frames     FrameSource
	newEncoder EncoderFactory
	style      styles.Style
	logger     logging.Logger
}

// New validates cfg and wires the collaborators
func New(cfg *config.Config, deps Dependencies) (*Compositor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Loader == nil || deps.Clips == nil || deps.Frames == nil || deps.NewEncoder == nil {
		return nil, errors.New("compositor needs a loader, clip source, frame source and encoder")
	}

	style := deps.Style
	if style == nil {
		var err error
		if style, err = styles.Get(cfg.Style.Name); err != nil {
			return nil, err
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Compositor{
		config:     cfg,
		analyzer:   analyzer.New(cfg.Audio, analyzer.WithLoader(deps.Loader), analyzer.WithLogger(logger)),
		engine:     NewCutEngine(cfg.Composition).WithLogger(logger),
		clips:      deps.Clips,
		frames:     deps.Frames,
		newEncoder: deps.NewEncoder,
		style:      style,
		logger:     logger,
	}, nil
}

// Style is the effect the compositor renders with
func (c *Compositor) Style() styles.Style { return c.style }

// Plan analyzes the audio, discovers the clips and generates the timeline
// without rendering anything
func (c *Compositor) Plan(ctx context.Context, audioPath, videoDir string) (*Plan, error) {
	logger := c.logger.WithContext(ctx).WithFields(logging.Fields{
		"component": "compositor",
		"function":  "Plan",
	})

	logger.Info("Analyzing audio", logging.Fields{"audio": audioPath})
	analysis, err := c.analyzer.AnalyzeFile(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Analysis complete", logging.Fields{
		"beats":          len(analysis.Beats),
		"bpm":            analysis.BPM,
		"bpm_confidence": analysis.BPMConfidence,
		"phrases":        len(analysis.Phrases),
	})

	logger.Info("Loading clips", logging.Fields{"directory": videoDir})
	clips, err := c.clips.Clips(ctx, videoDir)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NoClipsFoundError{Path: videoDir, Err: err}
	}
	if len(clips) == 0 {
		return nil, &NoClipsFoundError{Path: videoDir}
	}

	ids := make([]uint32, len(clips))
	for i, clip := range clips {
		ids[i] = clip.Sequence
	}

	timeline, err := c.engine.GenerateTimeline(analysis, ids)
	if err != nil {
		return nil, err
	}

	return &Plan{Analysis: analysis, Clips: clips, Timeline: timeline}, nil
}

// Compose renders audioPath with the clips of videoDir into outputPath
func (c *Compositor) Compose(ctx context.Context, audioPath, videoDir, outputPath string) (*Result, error) {
	logger := c.logger.WithContext(ctx).WithFields(logging.Fields{
		"component": "compositor",
		"function":  "Compose",
		"style":     c.style.Name(),
	})

	logger.Info("Starting composition", logging.Fields{
		"audio":  audioPath,
		"videos": videoDir,
		"output": outputPath,
	})

	plan, err := c.Plan(ctx, audioPath, videoDir)
	if err != nil {
		return nil, err
	}

	timeline := MapTimelineToClips(plan.Timeline, plan.Clips)
	byID := make(map[uint32]*video.VideoClip, len(plan.Clips))
	for _, clip := range plan.Clips {
		if _, dup := byID[clip.Sequence]; !dup {
			byID[clip.Sequence] = clip
		}
	}

	encoder, err := c.newEncoder(c.config.Video)
	if err != nil {
		return nil, &OutputFailedError{Reason: "open encoder", Err: err}
	}
	defer func() {
		if err := encoder.Cleanup(); err != nil {
			logger.Warn("Encoder cleanup failed", logging.Fields{"error": err.Error()})
		}
	}()

	renderer := NewRenderer(c.frames, c.style, c.config.StyleConfig(c.style), c.config.Video).WithLogger(c.logger)
	frames, err := renderer.Render(ctx, timeline, byID, plan.Analysis.Duration, encoder)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &SequencingFailedError{Reason: "video processing failed", Err: err}
	}

	encoded, err := encoder.Finish(ctx, audioPath, outputPath)
	if err != nil {
		return nil, &OutputFailedError{Reason: "video composition failed", Err: err}
	}

	logger.Info("Composition complete", logging.Fields{
		"output":       encoded.Path,
		"duration":     encoded.Duration,
		"frames":       frames,
		"file_size_mb": float64(encoded.FileSize) / 1024 / 1024,
	})
	return &Result{Plan: Plan{Analysis: plan.Analysis, Clips: plan.Clips, Timeline: timeline}, Video: encoded}, nil
}
