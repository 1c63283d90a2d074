package audio

import "fmt"

// Format is an output audio encoding.
type Format string

const (
	FormatPCM16 Format = "pcm16"
	FormatMulaw Format = "mulaw"
)

// ParseFormat validates a configured format name.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatPCM16, FormatMulaw:
		return Format(name), nil
	default:
		return "", fmt.Errorf("unsupported audio format %q", name)
	}
}

// Encoder converts synthesizer PCM16 into the client's output format.
type Encoder struct {
	Format     Format
	InputRate  int
	OutputRate int
}

// Encode converts one chunk. Chunks must hold whole samples.
func (e Encoder) Encode(pcm []byte) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	if e.Format == FormatPCM16 && e.InputRate == e.OutputRate {
		if len(pcm)%2 != 0 {
			return nil, ErrOddLength
		}
		return pcm, nil
	}

	samples, err := DecodePCM16(pcm)
	if err != nil {
		return nil, err
	}
	samples = Resample(samples, e.InputRate, e.OutputRate)

	switch e.Format {
	case FormatMulaw:
		return EncodeMulaw(samples), nil
	case FormatPCM16:
		return EncodePCM16(samples), nil
	default:
		return nil, fmt.Errorf("unsupported audio format %q", e.Format)
	}
}
