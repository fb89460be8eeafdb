package sink

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// LoadLoopSamples decodes the WAV at path and returns mono samples at
// sampleRate.
func LoadLoopSamples(sampleRate int, path string) ([]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	samples, err := DecodeLoopSamples(sampleRate, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return samples, nil
}

// DecodeLoopSamples decodes a WAV stream, resampling to sampleRate and
// averaging the channels.
func DecodeLoopSamples(sampleRate int, r io.ReadSeeker) ([]float32, error) {
	stream, err := wav.DecodeWithSampleRate(sampleRate, r)
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}
	decoded, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("reading decoded wav: %w", err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("wav has no audio data")
	}
	samples := decodeStereoI16ToFloat(decoded)
	if len(samples) == 0 {
		return nil, fmt.Errorf("wav has no usable samples")
	}
	return samples, nil
}

func decodeStereoI16ToFloat(pcm []byte) []float32 {
	frameCount := len(pcm) / 4
	if frameCount == 0 {
		return nil
	}
	samples := make([]float32, frameCount)
	for i := 0; i < frameCount; i++ {
		offset := i * 4
		left := int16(binary.LittleEndian.Uint16(pcm[offset : offset+2]))
		right := int16(binary.LittleEndian.Uint16(pcm[offset+2 : offset+4]))
		samples[i] = (float32(left) + float32(right)) * (0.5 / 32768.0)
	}
	return samples
}

// SawLoop synthesizes a one-second band-rich loop for demos without a WAV.
// The frequency is rounded to a whole number of cycles so the loop is seamless.
func SawLoop(sampleRate int, freq, amplitude float64) []float32 {
	if sampleRate <= 0 {
		return nil
	}
	cycles := math.Max(1, math.Round(freq))
	samples := make([]float32, sampleRate)
	for i := range samples {
		phase := math.Mod(float64(i)*cycles/float64(sampleRate), 1)
		samples[i] = float32(amplitude * (2*phase - 1))
	}
	return samples
}
