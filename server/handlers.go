package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/retro-compositor/analyzer"
	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/RyanBlaney/retro-compositor/composition"
	"github.com/RyanBlaney/retro-compositor/config"
	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/RyanBlaney/retro-compositor/styles"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// StyleInfo describes one registered style
type StyleInfo struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Parameters  []styles.Parameter  `json:"parameters"`
	Defaults    *styles.StyleConfig `json:"defaults"`
}

// AnalyzeRequest names a server-side audio file and an analysis preset
type AnalyzeRequest struct {
	Path   string `json:"path"`
	Preset string `json:"preset,omitempty"`
}

// TimelineRequest plans cuts for an audio file over the given clip ids.
// A nil Composition uses the server's configuration.
type TimelineRequest struct {
	Path        string                    `json:"path"`
	Preset      string                    `json:"preset,omitempty"`
	Clips       []uint32                  `json:"clips"`
	Composition *config.CompositionConfig `json:"composition,omitempty"`
}

// TimelineResponse is the planned timeline with its segments spelled out
type TimelineResponse struct {
	*composition.Timeline
	BPM      float64               `json:"bpm"`
	Duration float64               `json:"duration"`
	Segments []composition.Segment `json:"segments"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listStyles(c echo.Context) error {
	names := styles.Names()
	infos := make([]StyleInfo, 0, len(names))
	for _, name := range names {
		style, err := styles.Get(name)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		infos = append(infos, StyleInfo{
			Name:        style.Name(),
			Description: style.Description(),
			Parameters:  style.Parameters(),
			Defaults:    style.DefaultConfig(),
		})
	}
	return c.JSON(http.StatusOK, infos)
}

// analyze accepts either a JSON body naming a file on the server or a
// multipart upload in the "file" field
func (s *Server) analyze(c echo.Context) error {
	var req AnalyzeRequest
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		path, cleanup, err := s.saveUpload(c)
		if err != nil {
			return err
		}
		defer cleanup()
		req.Path = path
		req.Preset = c.FormValue("preset")
	} else if err := c.Bind(&req); err != nil {
		return err
	}

	analysis, err := s.runAnalysis(c, req.Path, req.Preset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, analysis)
}

func (s *Server) timeline(c echo.Context) error {
	var req TimelineRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	cfg := s.config.Composition
	if req.Composition != nil {
		cfg = *req.Composition
	}
	if err := cfg.Validate(); err != nil {
		return httpError(err)
	}

	analysis, err := s.runAnalysis(c, req.Path, req.Preset)
	if err != nil {
		return err
	}

	engine := composition.NewCutEngine(cfg).WithLogger(s.logger.WithContext(c.Request().Context()))
	tl, err := engine.GenerateTimeline(analysis, req.Clips)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, TimelineResponse{
		Timeline: tl,
		BPM:      analysis.BPM,
		Duration: analysis.Duration,
		Segments: tl.Segments(analysis.Duration),
	})
}

func (s *Server) runAnalysis(c echo.Context, path, preset string) (*audio.AudioAnalysis, error) {
	if path == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "path is required")
	}

	cfg := s.config.Audio
	if preset != "" {
		var err error
		if cfg, err = audio.AnalysisPreset(preset); err != nil {
			return nil, httpError(err)
		}
	}

	ctx := c.Request().Context()
	a := analyzer.New(cfg, analyzer.WithLoader(s.loader), analyzer.WithLogger(s.logger))
	analysis, err := a.AnalyzeFile(ctx, path)
	if err != nil {
		s.logger.WithContext(ctx).Error(err, "Analysis failed", logging.Fields{"path": path})
		return nil, httpError(err)
	}
	return analysis, nil
}

// saveUpload copies the "file" form field to a uuid-named file that keeps the
// upload's extension, so the loader can pick a decoder
func (s *Server) saveUpload(c echo.Context) (string, func(), error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}

	src, err := fh.Open()
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	path := filepath.Join(s.uploadDir, "upload-"+uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	cleanup := func() { os.Remove(path) }

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		cleanup()
		return "", nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	s.logger.WithContext(c.Request().Context()).Debug("Stored upload", logging.Fields{
		"filename": fh.Filename,
		"size":     fh.Size,
		"path":     path,
	})
	return path, cleanup, nil
}

// httpError maps domain errors onto status codes
func httpError(err error) error {
	var (
		unsupported *audio.UnsupportedFormatError
		loadFailed  *audio.LoadFailedError
		invalid     *audio.InvalidParametersError
		badValue    *config.InvalidValueError
		sequencing  *composition.SequencingFailedError
	)
	switch {
	case errors.As(err, &unsupported):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &loadFailed):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &invalid), errors.As(err, &badValue):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &sequencing):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
