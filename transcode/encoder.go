package transcode

import (
	"bufio"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/RyanBlaney/retro-compositor/video"
	"github.com/google/uuid"
)

// EncoderConfig configures the final ffmpeg encode
type EncoderConfig struct {
	FFmpegPath string `json:"ffmpeg_path"`
	// WorkDir is where frame images are staged; empty uses os.TempDir
	WorkDir string        `json:"work_dir"`
	Timeout time.Duration `json:"timeout"`
	// KeepFrames leaves the staged frames behind after Cleanup
	KeepFrames bool `json:"keep_frames"`
}

// DefaultEncoderConfig returns the defaults
func DefaultEncoderConfig() *EncoderConfig {
	return &EncoderConfig{
		FFmpegPath: "ffmpeg",
		Timeout:    30 * time.Minute,
	}
}

// Encoder streams rendered frames to disk as PNG and hands them to ffmpeg
// in one pass once the timeline is complete. Frames never accumulate in
// memory.
type Encoder struct {
	config *EncoderConfig
	params video.VideoParams
	dir    string
	png    png.Encoder

	mu     sync.Mutex
	frames []string
}

// NewEncoder creates a staging directory for one render
func NewEncoder(cfg *EncoderConfig, params video.VideoParams) (*Encoder, error) {
	if cfg == nil {
		cfg = DefaultEncoderConfig()
	}
	if err := params.Validate(); err != nil {
		return nil, &video.EncodingFailedError{Reason: "invalid video parameters", Err: err}
	}

	root := cfg.WorkDir
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, "retro-compositor-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &video.EncodingFailedError{Reason: "create work directory", Err: err}
	}

	return &Encoder{
		config: cfg,
		params: params,
		dir:    dir,
		png:    png.Encoder{CompressionLevel: png.BestSpeed},
	}, nil
}

// Dir is the staging directory
func (e *Encoder) Dir() string { return e.dir }

// FrameCount is the number of frames written so far
func (e *Encoder) FrameCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.frames)
}

// WriteFrame stages the next frame of the output. Frames must arrive in
// presentation order.
func (e *Encoder) WriteFrame(frame *video.Frame) error {
	if frame.Width() != e.params.Width || frame.Height() != e.params.Height {
		frame = frame.Resize(e.params.Width, e.params.Height)
	}

	e.mu.Lock()
	index := len(e.frames)
	e.mu.Unlock()

	path := filepath.Join(e.dir, fmt.Sprintf("frame_%06d.png", index))
	f, err := os.Create(path)
	if err != nil {
		return &video.EncodingFailedError{Reason: "create frame file", Err: err}
	}
	w := bufio.NewWriter(f)
	if err := e.png.Encode(w, frame.Image); err != nil {
		f.Close()
		return &video.EncodingFailedError{Reason: fmt.Sprintf("encode frame %d", index), Err: err}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return &video.EncodingFailedError{Reason: fmt.Sprintf("write frame %d", index), Err: err}
	}
	if err := f.Close(); err != nil {
		return &video.EncodingFailedError{Reason: fmt.Sprintf("close frame %d", index), Err: err}
	}

	e.mu.Lock()
	e.frames = append(e.frames, path)
	e.mu.Unlock()
	return nil
}

// Finish encodes the staged frames and muxes audioPath into outputPath
func (e *Encoder) Finish(ctx context.Context, audioPath, outputPath string) (*video.EncodedVideo, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "video_encoder",
		"function":  "Finish",
		"output":    outputPath,
	})

	e.mu.Lock()
	frames := append([]string(nil), e.frames...)
	e.mu.Unlock()

	if len(frames) == 0 {
		return nil, &video.EncodingFailedError{Reason: "no frames to encode"}
	}

	listPath := filepath.Join(e.dir, "frames.txt")
	if err := os.WriteFile(listPath, []byte(ConcatList(frames, e.params.FPS)), 0o644); err != nil {
		return nil, &video.EncodingFailedError{Reason: "write concat list", Err: err}
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &video.EncodingFailedError{Reason: "create output directory", Err: err}
		}
	}

	silent := filepath.Join(e.dir, "video"+filepath.Ext(outputPath))
	if filepath.Ext(outputPath) == "" {
		silent += ".mp4"
	}

	logger.Info("Encoding frames", logging.Fields{
		"frames": len(frames),
		"codec":  e.params.FFmpegCodec(),
		"crf":    e.params.CRF(),
	})
	if err := e.ffmpeg(ctx, EncodeArgs(listPath, silent, e.params)); err != nil {
		return nil, &video.EncodingFailedError{Reason: "encode frames", Err: err}
	}

	logger.Info("Muxing audio", logging.Fields{"audio": audioPath})
	if err := e.ffmpeg(ctx, MuxArgs(silent, audioPath, outputPath)); err != nil {
		return nil, &video.EncodingFailedError{Reason: "mux audio", Err: err}
	}

	stat, err := os.Stat(outputPath)
	if err != nil {
		return nil, &video.EncodingFailedError{Reason: "stat output", Err: err}
	}

	return &video.EncodedVideo{
		Path:       outputPath,
		Duration:   float64(len(frames)) / e.params.FPS,
		FrameCount: len(frames),
		FileSize:   stat.Size(),
	}, nil
}

// Cleanup removes the staging directory
func (e *Encoder) Cleanup() error {
	if e.config.KeepFrames {
		return nil
	}
	return os.RemoveAll(e.dir)
}

func (e *Encoder) ffmpeg(ctx context.Context, args []string) error {
	_, err := runTool(ctx, e.config.Timeout, e.config.FFmpegPath, args...)
	return err
}

// ConcatList renders an ffmpeg concat demuxer script showing each image for
// one frame period. The last entry is repeated because the demuxer ignores
// the final duration.
func ConcatList(paths []string, fps float64) string {
	if len(paths) == 0 {
		return ""
	}
	period := strconv.FormatFloat(1/fps, 'f', 6, 64)

	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, p := range paths {
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(p))
		fmt.Fprintf(&b, "duration %s\n", period)
	}
	fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(paths[len(paths)-1]))
	return b.String()
}

func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

// EncodeArgs builds the ffmpeg arguments that turn a concat list into a
// silent video
func EncodeArgs(listPath, outputPath string, params video.VideoParams) []string {
	return []string{
		"-y",
		"-v", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", params.FFmpegCodec(),
		"-r", strconv.FormatFloat(params.FPS, 'f', -1, 64),
		"-pix_fmt", "yuv420p",
		"-crf", strconv.Itoa(params.CRF()),
		outputPath,
	}
}

// MuxArgs builds the ffmpeg arguments that add the soundtrack. The output
// stops with the shorter stream.
func MuxArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y",
		"-v", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outputPath,
	}
}
