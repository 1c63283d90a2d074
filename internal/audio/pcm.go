// Package audio converts between the sample formats used on the wire:
// 16-bit little-endian PCM from clients and the synthesizer, and G.711
// μ-law for telephony-style consumers.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrOddLength is returned for PCM16 payloads that split a sample.
var ErrOddLength = errors.New("PCM16 data length must be even")

// DecodePCM16 parses little-endian 16-bit samples.
func DecodePCM16(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddLength
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}

// EncodePCM16 serializes samples as little-endian 16-bit PCM.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Resample converts between sample rates with linear interpolation.
func Resample(samples []int16, inputRate, outputRate int) []int16 {
	if inputRate == outputRate || inputRate <= 0 || outputRate <= 0 || len(samples) == 0 {
		return samples
	}

	out := make([]int16, len(samples)*outputRate/inputRate)
	step := float64(inputRate) / float64(outputRate)

	for i := range out {
		pos := float64(i) * step
		i0 := int(pos)
		i1 := i0 + 1
		if i1 >= len(samples) {
			i1 = len(samples) - 1
		}
		a, b := float64(samples[i0]), float64(samples[i1])
		out[i] = int16(a + (b-a)*(pos-float64(i0)))
	}
	return out
}

// RMS is the root mean square energy of samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
