package audio

const (
	mulawClip = 8158 // clip plus bias must stay inside segment 7
	mulawBias = 0x21
)

// EncodeMulaw converts linear samples to G.711 μ-law bytes.
func EncodeMulaw(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = linearToMulaw(s)
	}
	return out
}

// DecodeMulaw converts G.711 μ-law bytes to linear samples.
func DecodeMulaw(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = mulawToLinear(b)
	}
	return out
}

// linearToMulaw works on the 14-bit magnitude G.711 expects, so the 16-bit
// input is scaled down by 4 first.
func linearToMulaw(sample int16) byte {
	magnitude := int32(sample) >> 2
	var sign byte
	if magnitude < 0 {
		sign = 0x80
		magnitude = -magnitude
	}
	if magnitude > mulawClip {
		magnitude = mulawClip
	}
	magnitude += mulawBias

	var segment byte
	for seg := byte(7); seg > 0; seg-- {
		if magnitude >= 0x20<<seg {
			segment = seg
			break
		}
	}

	mantissa := byte((magnitude >> (segment + 1)) & 0x0F)
	return ^(sign | segment<<4 | mantissa)
}

func mulawToLinear(b byte) int16 {
	b = ^b
	segment := int32(b>>4) & 0x07
	mantissa := int32(b & 0x0F)

	magnitude := (mantissa<<(segment+1) + mulawBias<<segment) - mulawBias
	if b&0x80 != 0 {
		magnitude = -magnitude
	}
	return int16(magnitude << 2)
}
