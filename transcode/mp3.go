package transcode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/RyanBlaney/retro-compositor/audio"
	"github.com/hajimehoshi/go-mp3"
)

const (
	// go-mp3 emits this many samples more than a reference decoder
	mp3DecoderDelay = 924
	// LAME's usual encoder delay when the header does not say
	mp3DefaultEncoderDelay = 576
)

// DecodeMP3 reads an MP3 file into interleaved stereo samples in [-1, 1).
// The encoder and decoder priming samples are trimmed so beat times line up
// with other decoders.
func DecodeMP3(path string) (*audio.SampleBuffer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &audio.LoadFailedError{Path: path, Err: err}
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return nil, &audio.LoadFailedError{Path: path, Err: err}
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, &audio.LoadFailedError{Path: path, Err: err}
	}

	// 16-bit little-endian, two channels
	frames := len(pcm) / 4
	skip := min(lameEncoderDelay(raw)+mp3DecoderDelay, frames)
	if frames-skip <= 0 {
		return nil, &audio.LoadFailedError{Path: path, Err: errors.New("no audio frames decoded")}
	}
	samples := make([]float64, 0, 2*(frames-skip))
	for i := skip; i < frames; i++ {
		off := i * 4
		left := int16(binary.LittleEndian.Uint16(pcm[off:]))
		right := int16(binary.LittleEndian.Uint16(pcm[off+2:]))
		samples = append(samples, float64(left)/32768, float64(right)/32768)
	}

	buf := audio.NewSampleBuffer(samples, decoder.SampleRate(), 2)
	buf.Format = audio.FormatInfo{Container: "mp3", Codec: "mp3", BitDepth: 16}
	return buf, nil
}

// lameEncoderDelay reads the 12-bit encoder delay of a LAME/Xing header
func lameEncoderDelay(raw []byte) int {
	head := raw[:min(len(raw), 4096)]
	idx := bytes.Index(head, []byte("LAME"))
	if idx == -1 || idx+24 > len(head) {
		return mp3DefaultEncoderDelay
	}
	b := head[idx+21 : idx+24]
	delay := int(b[0])<<4 | int(b[1])>>4
	if delay > 4096 {
		return mp3DefaultEncoderDelay
	}
	return delay
}
