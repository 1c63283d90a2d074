package transport

// Client message events.
const (
	EventStart       = "start"
	EventSpeechStart = "speech_start"
	EventTranscript  = "transcript"
	EventMedia       = "media"
	EventStop        = "stop"
)

// Server message events.
const (
	EventSpeak     = "speak"
	EventAudio     = "audio"
	EventInterrupt = "interrupt"
	EventMetrics   = "metrics"
)

// ClientMessage is any message sent by the client. Fields not used by the
// event are left empty.
type ClientMessage struct {
	Event   string `json:"event"`
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
	Payload string `json:"payload,omitempty"` // base64 PCM16LE, 16kHz mono
}

// SpeakMessage carries the text of one speak action.
type SpeakMessage struct {
	Event         string `json:"event"`
	Text          string `json:"text"`
	Interruptible bool   `json:"interruptible"`
	UtteranceID   string `json:"utterance_id"`
}

// AudioMessage carries one chunk of synthesized speech.
type AudioMessage struct {
	Event      string `json:"event"`
	Payload    string `json:"payload"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
}

// InterruptMessage tells the client to drop any buffered speech audio.
type InterruptMessage struct {
	Event string `json:"event"`
}

// MetricsMessage reports the latencies of one completed utterance.
type MetricsMessage struct {
	Event   string `json:"event"`
	STTMs   int64  `json:"stt_ms"`
	TTSMs   int64  `json:"tts_ms"`
	TotalMs int64  `json:"total_ms"`
	LLMMs   int64  `json:"llm_ms"`
}
