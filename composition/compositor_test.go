package composition

import (
	"context"
	"errors"
	"image/color"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/config"
	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/RyanBlaney/retro-compositor/styles"
	"github.com/RyanBlaney/retro-compositor/transcode"
	"github.com/RyanBlaney/retro-compositor/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clickTrack builds a 220 Hz bed with 80 Hz + 2 kHz clicks every 0.5 s
func clickTrack(seconds float64) *audio.SampleBuffer {
	const sr = 44100
	n := int(seconds * sr)
	samples := make([]float64, n)
	for i := range samples {
		t := float64(i) / sr
		samples[i] = 0.3 * math.Sin(2*math.Pi*220*t)

		since := math.Mod(t, 0.5)
		if since < 0.02 {
			env := math.Exp(-since * 200)
			samples[i] += 0.4 * env * (math.Sin(2*math.Pi*80*since) + math.Sin(2*math.Pi*2000*since))
		}
	}
	return audio.NewSampleBuffer(samples, sr, 1)
}

type fakeLoader struct {
	buf *audio.SampleBuffer
	err error
}

func (f *fakeLoader) Load(context.Context, string) (*audio.SampleBuffer, error) {
	return f.buf, f.err
}

type fakeClips struct {
	clips []*video.VideoClip
	err   error
}

func (f *fakeClips) Clips(context.Context, string) ([]*video.VideoClip, error) {
	return f.clips, f.err
}

// fakeFrames serves solid frames whose red channel is the clip sequence
type fakeFrames struct {
	mu      sync.Mutex
	batches []int
	stamps  []float64
}

func (f *fakeFrames) ExtractFramesAt(_ context.Context, clip *video.VideoClip, timestamps []float64) ([]*video.Frame, error) {
	f.mu.Lock()
	f.batches = append(f.batches, len(timestamps))
	f.stamps = append(f.stamps, timestamps...)
	f.mu.Unlock()

	frames := make([]*video.Frame, len(timestamps))
	for i, ts := range timestamps {
		frames[i] = video.NewFilledFrame(64, 48, color.RGBA{uint8(clip.Sequence), 100, 100, 255}, ts)
	}
	return frames, nil
}

type fakeEncoder struct {
	frames    []*video.Frame
	finishErr error
	audio     string
	output    string
	cleaned   bool
}

func (f *fakeEncoder) WriteFrame(frame *video.Frame) error {
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeEncoder) Finish(_ context.Context, audioPath, outputPath string) (*video.EncodedVideo, error) {
	if f.finishErr != nil {
		return nil, f.finishErr
	}
	f.audio, f.output = audioPath, outputPath
	return &video.EncodedVideo{
		Path:       outputPath,
		FrameCount: len(f.frames),
		Duration:   float64(len(f.frames)) / 10,
		FileSize:   1234,
	}, nil
}

func (f *fakeEncoder) Cleanup() error {
	f.cleaned = true
	return nil
}

// recordingStyle counts applications and the intensities it saw
type recordingStyle struct {
	mu          sync.Mutex
	intensities map[float64]float64
	err         error
}

func (s *recordingStyle) Name() string                       { return "recording" }
func (s *recordingStyle) Description() string                { return "records calls" }
func (s *recordingStyle) DefaultConfig() *styles.StyleConfig { return styles.DefaultStyleConfig() }
func (s *recordingStyle) Parameters() []styles.Parameter     { return nil }

func (s *recordingStyle) Apply(f *video.Frame, cfg *styles.StyleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.intensities == nil {
		s.intensities = map[float64]float64{}
	}
	s.intensities[f.Timestamp] = cfg.Intensity
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Video = video.VideoParams{FPS: 10, Width: 32, Height: 24, Codec: "h264", Quality: 50}
	cfg.Style.Seed = 1
	return cfg
}

type harness struct {
	loader  *fakeLoader
	clips   *fakeClips
	frames  *fakeFrames
	encoder *fakeEncoder
}

func newHarness() *harness {
	return &harness{
		loader: &fakeLoader{buf: clickTrack(4)},
		clips: &fakeClips{clips: []*video.VideoClip{
			{Path: "01_intro.mp4", Sequence: 1, Name: "intro", Duration: 10},
			{Path: "02_drive.mp4", Sequence: 2, Name: "drive", Duration: 0.5},
		}},
		frames:  &fakeFrames{},
		encoder: &fakeEncoder{},
	}
}

func (h *harness) deps() Dependencies {
	return Dependencies{
		Loader:     h.loader,
		Clips:      h.clips,
		Frames:     h.frames,
		NewEncoder: func(video.VideoParams) (Encoder, error) { return h.encoder, nil },
		Logger:     &logging.NoOpLogger{},
	}
}

func TestComposeEndToEnd(t *testing.T) {
	h := newHarness()
	c, err := New(testConfig(), h.deps())
	require.NoError(t, err)
	assert.Equal(t, "vhs", c.Style().Name())

	result, err := c.Compose(context.Background(), "song.wav", "clips", "out/final.mp4")
	require.NoError(t, err)

	assert.InDelta(t, 120, result.Analysis.BPM, 5)
	tl := result.Timeline
	require.Positive(t, tl.Len())
	assert.Equal(t, 0.0, tl.Cuts[0])
	assert.Equal(t, uint32(1), tl.ClipAssignments[0])
	for _, id := range tl.ClipAssignments {
		assert.Contains(t, []uint32{1, 2}, id)
	}

	written := h.encoder.frames
	assert.Len(t, written, ExpectedFrames(tl, result.Analysis.Duration, 10))
	assert.InDelta(t, 40, len(written), float64(tl.Len()))
	for i, f := range written {
		assert.Equal(t, 32, f.Width())
		assert.Equal(t, 24, f.Height())
		if i > 0 {
			assert.Greater(t, f.Timestamp, written[i-1].Timestamp)
		}
	}

	assert.Equal(t, "song.wav", h.encoder.audio)
	assert.Equal(t, "out/final.mp4", h.encoder.output)
	assert.True(t, h.encoder.cleaned)
	assert.Equal(t, "out/final.mp4", result.Video.Path)
}

func TestComposeEmptyDirectory(t *testing.T) {
	h := newHarness()
	deps := h.deps()
	deps.Clips = transcode.NewFrameExtractor(nil)

	c, err := New(testConfig(), deps)
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = c.Compose(context.Background(), "song.wav", dir, filepath.Join(dir, "out.mp4"))
	var noClips *NoClipsFoundError
	require.ErrorAs(t, err, &noClips)
	assert.Equal(t, dir, noClips.Path)
	assert.Empty(t, h.encoder.frames)
}

func TestComposeMissingDirectory(t *testing.T) {
	h := newHarness()
	deps := h.deps()
	deps.Clips = transcode.NewFrameExtractor(nil)

	c, err := New(testConfig(), deps)
	require.NoError(t, err)

	missing := filepath.Join(t.TempDir(), "nope")
	_, err = c.Compose(context.Background(), "song.wav", missing, "out.mp4")
	var noClips *NoClipsFoundError
	require.ErrorAs(t, err, &noClips)
	var loadFailed *video.LoadFailedError
	assert.ErrorAs(t, err, &loadFailed)
}

func TestComposePropagatesLoadErrors(t *testing.T) {
	h := newHarness()
	h.loader.err = &audio.UnsupportedFormatError{Format: "xyz"}

	c, err := New(testConfig(), h.deps())
	require.NoError(t, err)

	_, err = c.Compose(context.Background(), "song.xyz", "clips", "out.mp4")
	var unsupported *audio.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "xyz", unsupported.Format)
}

func TestComposeSilenceHasNoBeats(t *testing.T) {
	h := newHarness()
	h.loader.buf = audio.NewSampleBuffer(make([]float64, 44100*2), 44100, 1)

	c, err := New(testConfig(), h.deps())
	require.NoError(t, err)

	_, err = c.Compose(context.Background(), "silence.wav", "clips", "out.mp4")
	var seqErr *SequencingFailedError
	assert.ErrorAs(t, err, &seqErr)
}

func TestComposeEncoderFailure(t *testing.T) {
	h := newHarness()
	h.encoder.finishErr = &video.EncodingFailedError{Reason: "disk full"}

	c, err := New(testConfig(), h.deps())
	require.NoError(t, err)

	_, err = c.Compose(context.Background(), "song.wav", "clips", "out.mp4")
	var outErr *OutputFailedError
	require.ErrorAs(t, err, &outErr)
	var encErr *video.EncodingFailedError
	assert.ErrorAs(t, err, &encErr)
	assert.True(t, h.encoder.cleaned, "the work directory is cleaned up on failure")
}

func TestComposeEffectFailure(t *testing.T) {
	h := newHarness()
	deps := h.deps()
	deps.Style = &recordingStyle{err: errors.New("boom")}

	c, err := New(testConfig(), deps)
	require.NoError(t, err)

	_, err = c.Compose(context.Background(), "song.wav", "clips", "out.mp4")
	var seqErr *SequencingFailedError
	require.ErrorAs(t, err, &seqErr)
	var frameErr *video.FrameProcessingFailedError
	assert.ErrorAs(t, err, &frameErr)
}

func TestComposeCancelled(t *testing.T) {
	h := newHarness()
	c, err := New(testConfig(), h.deps())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Compose(ctx, "song.wav", "clips", "out.mp4")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejects(t *testing.T) {
	h := newHarness()

	deps := h.deps()
	deps.Frames = nil
	_, err := New(testConfig(), deps)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Style.Name = "cubism"
	_, err = New(cfg, h.deps())
	var notFound *styles.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestPlan(t *testing.T) {
	h := newHarness()
	c, err := New(testConfig(), h.deps())
	require.NoError(t, err)

	plan, err := c.Plan(context.Background(), "song.wav", "clips")
	require.NoError(t, err)
	assert.Len(t, plan.Clips, 2)
	assert.NotEmpty(t, plan.Analysis.Beats)
	assert.Positive(t, plan.Timeline.Len())
	assert.Empty(t, h.frames.batches, "planning renders nothing")
}

func TestSourceTimestamps(t *testing.T) {
	assert.Equal(t, []float64{4, 4.5, 5, 5.5}, SourceTimestamps(10, 2, 4), "long clips are sampled around the middle")
	assert.Equal(t, []float64{0, 0.5, 0, 0.5, 0}, SourceTimestamps(1, 2.5, 5), "short clips loop")
	assert.Equal(t, []float64{0, 0, 0}, SourceTimestamps(0, 3, 3))
	assert.Empty(t, SourceTimestamps(5, 1, 0))
}

func TestFrameStyleConfig(t *testing.T) {
	base := styles.NewVHS().DefaultConfig()
	base.Intensity = 0.5

	first := FrameStyleConfig(base, "vhs", 0, 100)
	assert.InDelta(t, 0.5, first.Intensity, 1e-12)
	assert.InDelta(t, 0.5, first.GetOr(styles.TrackingError, 0), 1e-12)
	assert.InDelta(t, 0.6, first.GetOr(styles.NoiseLevel, 0), 1e-12)

	quarter := FrameStyleConfig(base, "vhs", 25, 100)
	assert.InDelta(t, 0.6, quarter.GetOr(styles.TrackingError, 0), 1e-12)

	late := FrameStyleConfig(base, "film", 100, 100)
	assert.InDelta(t, 0.56, late.Intensity, 1e-12)
	assert.InDelta(t, 0.5, FrameStyleConfig(base, "film", 25, 100).GetOr(styles.TrackingError, 0), 1e-12, "only vhs drifts its tracking")

	assert.InDelta(t, 0.5, base.Intensity, 1e-12, "the base config is untouched")

	base.Intensity = 1
	assert.Equal(t, 1.0, FrameStyleConfig(base, "film", 100, 100).Intensity, "intensity is clamped")
}

func TestRenderSegmentBatches(t *testing.T) {
	frames := &fakeFrames{}
	style := &recordingStyle{}
	params := video.VideoParams{FPS: 10, Width: 16, Height: 12, Codec: "h264", Quality: 50}
	r := NewRenderer(frames, style, styles.WithIntensity(0.5), params).WithWorkers(3).WithLogger(&logging.NoOpLogger{})

	sink := &fakeEncoder{}
	clip := &video.VideoClip{Path: "a.mp4", Sequence: 9, Duration: 30}
	n, err := r.RenderSegment(context.Background(), clip, Segment{Start: 5, End: 15, ClipID: 9}, sink)
	require.NoError(t, err)

	assert.Equal(t, 100, n)
	assert.Equal(t, []int{48, 48, 4}, frames.batches)
	assert.InDelta(t, 10, frames.stamps[0], 1e-9, "a 10s window in the middle of a 30s clip")
	require.Len(t, sink.frames, 100)
	assert.InDelta(t, 5.0, sink.frames[0].Timestamp, 1e-9)
	assert.InDelta(t, 14.9, sink.frames[99].Timestamp, 1e-9)
	assert.Equal(t, 16, sink.frames[0].Width())

	r0, _, _ := sink.frames[0].RGB(0, 0)
	assert.Equal(t, uint8(9), r0)

	require.Len(t, style.intensities, 100)
	assert.InDelta(t, 0.5, style.intensities[sink.frames[0].Timestamp], 1e-12)
	assert.Greater(t, style.intensities[sink.frames[99].Timestamp], style.intensities[sink.frames[50].Timestamp])
}

func TestRenderUnknownClip(t *testing.T) {
	r := NewRenderer(&fakeFrames{}, &recordingStyle{}, nil, video.VideoParams{FPS: 10, Width: 16, Height: 12})
	tl := NewTimeline()
	tl.AddCut(0, 4)

	_, err := r.Render(context.Background(), tl, map[uint32]*video.VideoClip{1: {Sequence: 1}}, 2, &fakeEncoder{})
	var seqErr *SequencingFailedError
	assert.ErrorAs(t, err, &seqErr)
}
