package audio

// VADConfig holds configuration for energy-based voice activity detection.
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech
	SilenceFrames   int     // Consecutive silent frames that end speech
	FrameSize       int     // Samples per frame
}

// DefaultVADConfig returns 20ms frames at 16kHz with a 500ms hangover.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		EnergyThreshold: 500,
		SilenceFrames:   25,
		FrameSize:       320,
	}
}

// VADEvent is a speech boundary found in a chunk of audio.
type VADEvent int

const (
	VADNone VADEvent = iota
	VADSpeechStart
	VADSpeechEnd
)

// SpeechDetector tracks speech boundaries across arbitrarily sized PCM16
// chunks. Not safe for concurrent use.
type SpeechDetector struct {
	cfg      VADConfig
	pending  []int16
	silence  int
	speaking bool
}

// NewSpeechDetector creates a detector; zero fields fall back to defaults.
func NewSpeechDetector(cfg VADConfig) *SpeechDetector {
	def := DefaultVADConfig()
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = def.EnergyThreshold
	}
	if cfg.SilenceFrames <= 0 {
		cfg.SilenceFrames = def.SilenceFrames
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = def.FrameSize
	}
	return &SpeechDetector{cfg: cfg}
}

// Process consumes PCM16 samples and returns the boundaries crossed, in order.
// Samples that do not fill a frame are kept for the next call.
func (d *SpeechDetector) Process(samples []int16) []VADEvent {
	d.pending = append(d.pending, samples...)

	var events []VADEvent
	for len(d.pending) >= d.cfg.FrameSize {
		if ev := d.frame(d.pending[:d.cfg.FrameSize]); ev != VADNone {
			events = append(events, ev)
		}
		d.pending = d.pending[d.cfg.FrameSize:]
	}
	if len(d.pending) == 0 {
		d.pending = nil
	}
	return events
}

func (d *SpeechDetector) frame(samples []int16) VADEvent {
	if RMS(samples) > d.cfg.EnergyThreshold {
		d.silence = 0
		if !d.speaking {
			d.speaking = true
			return VADSpeechStart
		}
		return VADNone
	}

	d.silence++
	if d.speaking && d.silence >= d.cfg.SilenceFrames {
		d.speaking = false
		d.silence = 0
		return VADSpeechEnd
	}
	return VADNone
}

// Speaking reports whether the last frame was inside speech.
func (d *SpeechDetector) Speaking() bool {
	return d.speaking
}

// Reset clears all state including buffered samples.
func (d *SpeechDetector) Reset() {
	d.pending = nil
	d.silence = 0
	d.speaking = false
}
