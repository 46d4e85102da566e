package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/RyanBlaney/retro-compositor/analyzer"
	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/composition"
	"github.com/RyanBlaney/retro-compositor/config"
	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/RyanBlaney/retro-compositor/server"
	"github.com/RyanBlaney/retro-compositor/styles"
	"github.com/RyanBlaney/retro-compositor/transcode"
	"github.com/RyanBlaney/retro-compositor/video"
	"github.com/spf13/cobra"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Cut the clips of a folder to the beat of a song and render the video",
	RunE:  runCompose,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <audio>",
	Short: "Analyze an audio file and write a JSON sidecar",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "List the available styles",
	RunE:  runStyles,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	composeCmd.Flags().StringP("audio", "a", "", "Audio file to sync to (required)")
	composeCmd.Flags().StringP("videos", "d", "", "Directory of numbered clips (required)")
	composeCmd.Flags().StringP("output", "o", "", "Output video path (required)")
	composeCmd.Flags().StringP("style", "s", "", "Style to apply (overrides the config file)")
	composeCmd.Flags().Bool("keep-frames", false, "Keep the staged frame images")
	composeCmd.Flags().String("normalize", "", "Normalize audio through ffmpeg: loudnorm, dynaudnorm or compand")
	_ = composeCmd.MarkFlagRequired("audio")
	_ = composeCmd.MarkFlagRequired("videos")
	_ = composeCmd.MarkFlagRequired("output")

	analyzeCmd.Flags().StringP("preset", "p", "", "Analysis preset: default, fast or high_quality")
	analyzeCmd.Flags().StringP("output", "o", "", "Output JSON path, - for stdout (default <audio>.analysis.json)")
	analyzeCmd.Flags().String("normalize", "", "Normalize audio through ffmpeg: loudnorm, dynaudnorm or compand")

	serveCmd.Flags().String("addr", ":8080", "Listen address")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyNormalize turns on ffmpeg normalization when --normalize is set
func applyNormalize(cmd *cobra.Command, cfg *config.Config) {
	if method, _ := cmd.Flags().GetString("normalize"); method != "" {
		cfg.Decoder.EnableNormalization = true
		cfg.Decoder.NormalizationMethod = method
	}
}

func runCompose(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if style, _ := cmd.Flags().GetString("style"); style != "" {
		cfg.Style.Name = style
	}
	applyNormalize(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	audioPath, _ := cmd.Flags().GetString("audio")
	videoDir, _ := cmd.Flags().GetString("videos")
	output, _ := cmd.Flags().GetString("output")
	keepFrames, _ := cmd.Flags().GetBool("keep-frames")

	extractorCfg := transcode.DefaultFrameExtractorConfig()
	if err := transcode.CheckFFmpeg(extractorCfg.FFmpegPath, extractorCfg.FFprobePath); err != nil {
		return err
	}
	extractor := transcode.NewFrameExtractor(extractorCfg)

	encoderCfg := transcode.DefaultEncoderConfig()
	encoderCfg.KeepFrames = keepFrames

	compositor, err := composition.New(cfg, composition.Dependencies{
		Loader: transcode.NewLoader(&cfg.Decoder),
		Clips:  extractor,
		Frames: extractor,
		NewEncoder: func(params video.VideoParams) (composition.Encoder, error) {
			enc, err := transcode.NewEncoder(encoderCfg, params)
			if err != nil {
				return nil, err
			}
			return enc, nil
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	started := time.Now()
	result, err := compositor.Compose(ctx, audioPath, videoDir, output)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", result.Video.Path)
	fmt.Printf("  style:    %s\n", compositor.Style().Name())
	fmt.Printf("  tempo:    %.1f BPM (confidence %.2f)\n", result.Analysis.BPM, result.Analysis.BPMConfidence)
	fmt.Printf("  cuts:     %d across %d clips\n", result.Timeline.Len(), len(result.Timeline.UniqueClips()))
	fmt.Printf("  frames:   %d (%.1fs)\n", result.Video.FrameCount, result.Video.Duration)
	fmt.Printf("  size:     %.1f MB\n", float64(result.Video.FileSize)/1024/1024)
	fmt.Printf("  elapsed:  %s\n", time.Since(started).Round(time.Millisecond))
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyNormalize(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	audioPath := args[0]
	analysisCfg := cfg.Audio
	if preset, _ := cmd.Flags().GetString("preset"); preset != "" {
		if analysisCfg, err = audio.AnalysisPreset(preset); err != nil {
			return err
		}
	}

	ctx, stop := signalContext()
	defer stop()

	a := analyzer.New(analysisCfg, analyzer.WithLoader(transcode.NewLoader(&cfg.Decoder)))
	analysis, err := a.AnalyzeFile(ctx, audioPath)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "-" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if output == "" {
		output = strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".analysis.json"
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write analysis: %w", err)
	}

	logging.Info("Analysis written", logging.Fields{
		"output": output,
		"bpm":    analysis.BPM,
		"beats":  len(analysis.Beats),
	})
	return nil
}

func runStyles(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, name := range styles.Names() {
		style, err := styles.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", style.Name(), style.Description())
	}
	return w.Flush()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")

	srv := server.New(cfg)

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
