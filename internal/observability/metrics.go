package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream metrics
	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_interpreter_active_streams",
		Help: "Number of connected translation streams",
	})

	totalStreams = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_interpreter_streams_total",
		Help: "Total number of translation streams accepted",
	})

	// Transcript metrics
	transcripts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_interpreter_transcripts_total",
		Help: "Transcript events received",
	}, []string{"kind"}) // interim, final

	utterances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_interpreter_utterances_total",
		Help: "Utterances reconciled against a final transcript",
	})

	// Translation backend metrics
	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_interpreter_backend_requests_total",
		Help: "Translation backend requests by outcome",
	}, []string{"backend", "status"})

	backendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "live_interpreter_backend_latency_seconds",
		Help:    "Translation backend latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 0.75, 1.0, 1.5, 2.0, 5.0},
	}, []string{"backend"})

	responsesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_interpreter_backend_responses_discarded_total",
		Help: "Backend responses that did not commit",
	}, []string{"reason"}) // stale, below_minimum

	// Speech output metrics
	speakActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_interpreter_speak_actions_total",
		Help: "Speak actions handed to the speech synthesizer",
	}, []string{"kind"}) // interim, final

	spokenWords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_interpreter_spoken_words_total",
		Help: "Words dispatched to speech output",
	}, []string{"kind"})

	timeToFirstAudio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_interpreter_time_to_first_audio_seconds",
		Help:    "Time from speech start to the first incremental speak action",
		Buckets: []float64{0.25, 0.5, 1.0, 1.5, 2.0, 3.0, 5.0, 10.0},
	})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_interpreter_tts_latency_seconds",
		Help:    "Time to synthesize and deliver a speak action",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_interpreter_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "live_interpreter_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_interpreter_audio_bytes_total",
		Help: "Audio bytes processed",
	}, []string{"direction"}) // in, out
)

// StreamStarted records a newly accepted stream
func StreamStarted() {
	activeStreams.Inc()
	totalStreams.Inc()
}

// StreamEnded records a closed stream
func StreamEnded() {
	activeStreams.Dec()
}

// RecordTranscript counts an inbound transcript event
func RecordTranscript(final bool) {
	kind := "interim"
	if final {
		kind = "final"
	}
	transcripts.WithLabelValues(kind).Inc()
}

// RecordBackendCall records one translation backend call
func RecordBackendCall(backend string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	backendRequests.WithLabelValues(backend, status).Inc()
	backendLatency.WithLabelValues(backend).Observe(latency.Seconds())
}

// RecordDiscarded counts a backend response that was dropped without committing
func RecordDiscarded(reason string) {
	responsesDiscarded.WithLabelValues(reason).Inc()
}

// RecordSpeak counts a speak action and its words
func RecordSpeak(interruptible bool, words int) {
	kind := "final"
	if interruptible {
		kind = "interim"
	}
	speakActions.WithLabelValues(kind).Inc()
	spokenWords.WithLabelValues(kind).Add(float64(words))
}

// RecordTimeToFirstAudio observes speech start to first incremental speech
func RecordTimeToFirstAudio(d time.Duration) {
	timeToFirstAudio.Observe(d.Seconds())
}

// RecordTTS observes synthesis latency of a speak action
func RecordTTS(d time.Duration) {
	ttsLatency.Observe(d.Seconds())
}

// RecordUtterance counts a reconciled utterance
func RecordUtterance() {
	utterances.Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func RecordAudioBytes(direction string, bytes int) {
	audioBytes.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
