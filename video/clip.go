package video

import (
	"context"
	"hash/fnv"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/RyanBlaney/retro-compositor/logging"
	_ "golang.org/x/image/bmp"
)

// ClipKind separates moving footage from still images
type ClipKind int

const (
	KindVideo ClipKind = iota
	KindImage
)

func (k ClipKind) String() string {
	if k == KindImage {
		return "image"
	}
	return "video"
}

var supportedExtensions = map[string]ClipKind{
	".mp4":  KindVideo,
	".avi":  KindVideo,
	".mov":  KindVideo,
	".mkv":  KindVideo,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".bmp":  KindImage,
}

// StillDuration is the nominal length reported for still images; renderers
// loop them like any other clip
const StillDuration = 1.0 / 30.0

// VideoClip is one source clip. Sequence orders clips and doubles as the clip id.
type VideoClip struct {
	Path     string   `json:"path"`
	Sequence uint32   `json:"sequence"`
	Name     string   `json:"name"`
	Kind     ClipKind `json:"kind"`
	Duration float64  `json:"duration,omitempty"`
	FPS      float64  `json:"fps,omitempty"`
	Width    int      `json:"width,omitempty"`
	Height   int      `json:"height,omitempty"`
}

// IsSupported reports whether the extension names a clip format
func IsSupported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ParseClip reads the sequence number and name from a file named NN_name.ext,
// splitting on the first underscore. Files without a numeric prefix get a
// stable sequence in [1, 1000] derived from the file name. ok is false for
// unsupported extensions.
func ParseClip(path string) (*VideoClip, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	kind, ok := supportedExtensions[ext]
	if !ok {
		return nil, false
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	clip := &VideoClip{Path: path, Name: stem, Kind: kind}

	if prefix, name, found := strings.Cut(stem, "_"); found {
		if seq, err := strconv.ParseUint(prefix, 10, 32); err == nil {
			clip.Sequence = uint32(seq)
			clip.Name = name
			return clip, true
		}
	}

	h := fnv.New32a()
	h.Write([]byte(stem))
	clip.Sequence = h.Sum32()%1000 + 1
	return clip, true
}

// DiscoverClips lists the supported, non-hidden files of dir sorted by
// sequence. A directory with no clips yields an empty slice; a missing
// directory is a LoadFailedError.
func DiscoverClips(ctx context.Context, dir string) ([]*VideoClip, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "clip_discovery",
		"function":  "DiscoverClips",
		"directory": dir,
	})

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadFailedError{Path: dir, Err: err}
	}

	clips := []*VideoClip{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		clip, ok := ParseClip(filepath.Join(dir, name))
		if !ok {
			logger.Debug("Skipping unsupported file", logging.Fields{"file": name})
			continue
		}
		clips = append(clips, clip)
	}

	sort.SliceStable(clips, func(i, j int) bool {
		if clips[i].Sequence != clips[j].Sequence {
			return clips[i].Sequence < clips[j].Sequence
		}
		return clips[i].Path < clips[j].Path
	})

	logger.Debug("Clip discovery complete", logging.Fields{"clips": len(clips)})
	return clips, nil
}

// LoadImage decodes a still-image clip (PNG, JPEG or BMP)
func LoadImage(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadFailedError{Path: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &LoadFailedError{Path: path, Err: err}
	}
	return FromImage(img, 0), nil
}
