package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-interpreter/internal/audio"
	"github.com/lexiqai/live-interpreter/internal/config"
	"github.com/lexiqai/live-interpreter/internal/resilience"
	"github.com/lexiqai/live-interpreter/internal/session"
	"github.com/lexiqai/live-interpreter/internal/stt"
	"github.com/lexiqai/live-interpreter/internal/translator"
	"github.com/lexiqai/live-interpreter/internal/tts"
)

type mapTranslator struct {
	translations map[string]string

	mu        sync.Mutex
	languages map[string]bool // "source>target" pairs seen
}

func (m *mapTranslator) sawLanguages(pair string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.languages[pair]
}

func (m *mapTranslator) Name() string { return "map" }

func (m *mapTranslator) Translate(_ context.Context, req translator.Request) (*translator.Response, error) {
	m.mu.Lock()
	if m.languages == nil {
		m.languages = map[string]bool{}
	}
	m.languages[req.SourceLang+">"+req.TargetLang] = true
	m.mu.Unlock()

	out, ok := m.translations[req.CurrentSource]
	if !ok {
		return nil, &translator.BackendError{Backend: "map", Source: req.CurrentSource, StatusCode: http.StatusBadRequest, Err: errors.New("unknown text")}
	}
	return &translator.Response{Seq: req.Seq, FullTranslation: out, Latency: time.Millisecond}, nil
}

type fakeRecognizer struct {
	started chan struct{}
	events  chan stt.Event

	mu     sync.Mutex
	audio  int
	closed bool
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{started: make(chan struct{}), events: make(chan stt.Event, 10)}
}

func (f *fakeRecognizer) Start(context.Context) error {
	close(f.started)
	return nil
}

func (f *fakeRecognizer) SendAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio += len(pcm)
	return nil
}

func (f *fakeRecognizer) Events() <-chan stt.Event { return f.events }

func (f *fakeRecognizer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeRecognizer) audioBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audio
}

// blockingSynth emits one chunk and then holds the line until cancelled.
type blockingSynth struct{}

func (blockingSynth) Synthesize(ctx context.Context, _ string, emit func(tts.AudioChunk) error) error {
	if err := emit(tts.AudioChunk{Data: []byte{0, 0}, Format: audio.FormatPCM16, SampleRate: 24000}); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

type serverMessage struct {
	Event         string `json:"event"`
	Text          string `json:"text"`
	Interruptible bool   `json:"interruptible"`
	Payload       string `json:"payload"`
	TotalMs       int64  `json:"total_ms"`
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultDirection:   "ru-en",
		StabilityThreshold: 2,
		MinWordsForTTS:     0,
		BackendTimeoutMs:   2000,
		SessionQueueSize:   64,
		VADEnergyThreshold: 500,
		VADSilenceFrames:   25,
	}
}

func dial(t *testing.T, opts Options) *websocket.Conn {
	t.Helper()

	handler := NewHandler(opts)
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		handler.Close()
		server.Close()
	})

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/streams/translate?direction=ru-en"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msg.Event, err)
	}
}

// readUntil collects server messages up to and including the first one with
// the given event.
func readUntil(t *testing.T, conn *websocket.Conn, event string) []serverMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msgs []serverMessage
	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", event, err)
		}
		msgs = append(msgs, msg)
		if msg.Event == event {
			return msgs
		}
	}
}

func spokenText(msgs []serverMessage) string {
	var words []string
	for _, m := range msgs {
		if m.Event == EventSpeak {
			words = append(words, strings.Fields(m.Text)...)
		}
	}
	return strings.Join(words, " ")
}

func TestTranscriptStream(t *testing.T) {
	conn := dial(t, Options{
		Config: testConfig(),
		Translator: &mapTranslator{translations: map[string]string{
			"привет":     "hello",
			"привет мой": "hello my",
		}},
	})

	write(t, conn, ClientMessage{Event: EventStart})
	write(t, conn, ClientMessage{Event: EventSpeechStart})
	for _, text := range []string{"привет", "привет мой", "привет мой", "привет мой друг"} {
		write(t, conn, ClientMessage{Event: EventTranscript, Text: text})
	}
	write(t, conn, ClientMessage{Event: EventTranscript, Text: "hello my friend", IsFinal: true})

	msgs := readUntil(t, conn, EventMetrics)
	if got := spokenText(msgs); got != "hello my friend" {
		t.Errorf("spoken text = %q, want %q", got, "hello my friend")
	}

	last := msgs[len(msgs)-2]
	if last.Event != EventSpeak || last.Interruptible {
		t.Errorf("final speech = %+v, want a non-interruptible speak", last)
	}
}

func TestAudioStreamTranslatesRecognizedFinal(t *testing.T) {
	rec := newFakeRecognizer()
	tr := &mapTranslator{translations: map[string]string{
		"привет мой друг": "hello my friend",
	}}
	conn := dial(t, Options{
		Config:     testConfig(),
		Translator: tr,
		NewRecognizer: func(dir config.Direction, _ zerolog.Logger) stt.Recognizer {
			if dir.Source != "ru" {
				t.Errorf("recognizer language = %q, want ru", dir.Source)
			}
			return rec
		},
		Retry: &resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1},
	})

	silence := make([]byte, 640)
	write(t, conn, ClientMessage{Event: EventMedia, Payload: base64.StdEncoding.EncodeToString(silence)})

	select {
	case <-rec.started:
	case <-time.After(5 * time.Second):
		t.Fatal("recognizer not started")
	}

	rec.events <- stt.Event{Type: stt.EventTranscript, Text: "привет"}
	rec.events <- stt.Event{Type: stt.EventTranscript, Text: "привет мой друг", IsFinal: true, SpeechFinal: true}

	msgs := readUntil(t, conn, EventMetrics)
	if got := spokenText(msgs); got != "hello my friend" {
		t.Errorf("spoken text = %q, want %q", got, "hello my friend")
	}
	if !tr.sawLanguages("Russian>English") {
		t.Error("final translation did not use the direction's language names")
	}

	deadline := time.Now().Add(time.Second)
	for rec.audioBytes() != len(silence) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := rec.audioBytes(); got != len(silence) {
		t.Errorf("recognizer received %d bytes, want %d", got, len(silence))
	}
}

func TestSpeechStartInterruptsPlayback(t *testing.T) {
	conn := dial(t, Options{
		Config:     testConfig(),
		Translator: &mapTranslator{translations: map[string]string{"a b": "x y"}},
		NewSynthesizer: func(config.Direction) tts.Synthesizer {
			return blockingSynth{}
		},
	})

	write(t, conn, ClientMessage{Event: EventTranscript, Text: "a b"})
	write(t, conn, ClientMessage{Event: EventTranscript, Text: "a b"})

	msgs := readUntil(t, conn, EventAudio)
	if got := spokenText(msgs); got != "x y" {
		t.Fatalf("spoken text = %q, want %q", got, "x y")
	}
	if !msgs[0].Interruptible {
		t.Errorf("interim speech should be interruptible")
	}

	write(t, conn, ClientMessage{Event: EventSpeechStart})
	readUntil(t, conn, EventInterrupt)
}

func TestStopEndsStream(t *testing.T) {
	conn := dial(t, Options{Config: testConfig(), Translator: &mapTranslator{}})

	write(t, conn, ClientMessage{Event: EventStop})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to close after stop")
	}
}

func TestIsRetryableBackendError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"circuit open", &translator.BackendError{Err: resilience.ErrCircuitOpen}, false},
		{"bad request", &translator.BackendError{StatusCode: http.StatusBadRequest, Err: errors.New("bad")}, false},
		{"rate limited", &translator.BackendError{StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")}, true},
		{"server error", &translator.BackendError{StatusCode: http.StatusBadGateway, Err: errors.New("upstream")}, true},
		{"empty answer", &translator.BackendError{StatusCode: http.StatusOK, Err: errors.New("empty translation")}, false},
		{"empty answer without status", &translator.BackendError{Err: errors.New("empty translation")}, false},
		{"connection refused", &translator.BackendError{Err: errors.New("dial tcp: connection refused")}, true},
		{"send failure", &translator.BackendError{Err: resilience.NewRetryableError(errors.New("failed to send request: EOF"))}, true},
		{"backend timeout", &translator.BackendError{Err: context.DeadlineExceeded}, true},
		{"timeout", context.DeadlineExceeded, true},
		{"unknown failure", errors.New("model refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableBackendError(tt.err); got != tt.want {
				t.Errorf("isRetryableBackendError() = %v, want %v", got, tt.want)
			}
		})
	}
}

var _ session.Speaker = clientSpeaker{}
var _ session.RecordSink = clientMetrics{}
var _ tts.AudioOutput = (*Stream)(nil)
