package transcode

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/RyanBlaney/retro-compositor/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV reads a PCM WAV file into interleaved samples in [-1, 1)
func DecodeWAV(path string) (*audio.SampleBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &audio.LoadFailedError{Path: path, Err: err}
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, &audio.LoadFailedError{Path: path, Err: fmt.Errorf("not a valid WAV file")}
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, &audio.LoadFailedError{Path: path, Err: err}
	}
	if pcm.Format == nil || pcm.Format.SampleRate <= 0 || pcm.Format.NumChannels <= 0 {
		return nil, &audio.LoadFailedError{Path: path, Err: fmt.Errorf("missing WAV format chunk")}
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := math.Pow(2, float64(bitDepth-1))

	samples := make([]float64, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = float64(v) / scale
	}

	buf := audio.NewSampleBuffer(samples, pcm.Format.SampleRate, pcm.Format.NumChannels)
	buf.Format = audio.FormatInfo{Container: "wav", Codec: "pcm", BitDepth: bitDepth}
	return buf, nil
}

// EncodeWAV writes buf as integer PCM with the given bit depth. Samples are
// clipped to [-1, 1].
func EncodeWAV(w io.WriteSeeker, buf *audio.SampleBuffer, bitDepth int) error {
	scale := math.Pow(2, float64(bitDepth-1)) - 1
	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		data[i] = int(math.Round(math.Max(-1, math.Min(1, s)) * scale))
	}

	encoder := wav.NewEncoder(w, buf.SampleRate, bitDepth, buf.Channels, 1)
	err := encoder.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
	if err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	return encoder.Close()
}

// WriteWAVFile is EncodeWAV into a new file at path
func WriteWAVFile(path string, buf *audio.SampleBuffer, bitDepth int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(f, buf, bitDepth); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
