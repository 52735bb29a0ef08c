package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gevulot_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gevulot_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ActiveSessions tracks currently active sessions
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gevulot_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// SessionDuration tracks how long sessions run
	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gevulot_session_duration_seconds",
			Help:    "Session duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"status"},
	)

	// JobsSubmitted counts jobs handed to the orchestrator by mode
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gevulot_jobs_submitted_total",
			Help: "Total number of jobs submitted to the orchestrator",
		},
		[]string{"mode"},
	)

	// JobOutcomes counts how watched jobs ended
	JobOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gevulot_job_outcomes_total",
			Help: "Total number of job outcomes by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// PollAttempts counts status fetches by the strategy that scheduled them
	PollAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gevulot_poll_attempts_total",
			Help: "Total number of poll status fetches by strategy",
		},
		[]string{"strategy"},
	)

	// StreamFrames counts decoded stream events by type
	StreamFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gevulot_stream_events_total",
			Help: "Total number of decoded stream events by type",
		},
		[]string{"type"},
	)

	// StreamMalformed counts stream lines that could not be decoded
	StreamMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gevulot_stream_malformed_lines_total",
			Help: "Total number of malformed stream lines dropped",
		},
	)

	// EventBufferDrops tracks dropped events due to buffer overflow
	EventBufferDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gevulot_event_buffer_drops_total",
			Help: "Total number of events dropped due to buffer overflow",
		},
		[]string{"session_id"},
	)

	// ToolCalls tracks MCP tool invocations
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gevulot_tool_calls_total",
			Help: "Total number of MCP tool calls",
		},
		[]string{"tool", "status"},
	)

	// ScheduleRuns tracks scheduled prompt executions
	ScheduleRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gevulot_schedule_runs_total",
			Help: "Total number of scheduled prompt executions by status",
		},
		[]string{"status"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher for SSE support
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware creates an HTTP middleware that records metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// normalizePath normalizes URL paths to avoid high cardinality
func normalizePath(path string) string {
	switch path {
	case "/health", "/ready", "/mcp", "/mcp/", "/metrics":
		return path
	default:
		if len(path) > 5 && path[:5] == "/mcp/" {
			return "/mcp"
		}
		return "other"
	}
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSessionStart increments the active session gauge
func RecordSessionStart() {
	ActiveSessions.Inc()
}

// RecordSessionEnd decrements the active session gauge and records duration
func RecordSessionEnd(status string, durationSeconds float64) {
	ActiveSessions.Dec()
	SessionDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordSubmission records a job handed to the orchestrator
func RecordSubmission(mode string) {
	JobsSubmitted.WithLabelValues(mode).Inc()
}

// RecordOutcome records how a watched job ended
func RecordOutcome(mode, outcome string) {
	JobOutcomes.WithLabelValues(mode, outcome).Inc()
}

// RecordPollAttempt records one status fetch and the strategy behind it
func RecordPollAttempt(strategy string) {
	PollAttempts.WithLabelValues(strategy).Inc()
}

// RecordStreamEvent records one decoded stream event
func RecordStreamEvent(eventType string) {
	StreamFrames.WithLabelValues(eventType).Inc()
}

// RecordMalformedLine records a dropped stream line
func RecordMalformedLine() {
	StreamMalformed.Inc()
}

// RecordToolCall records an MCP tool invocation
func RecordToolCall(tool, status string) {
	ToolCalls.WithLabelValues(tool, status).Inc()
}

// RecordEventDrop records an event buffer drop
func RecordEventDrop(sessionID string) {
	EventBufferDrops.WithLabelValues(sessionID).Inc()
}

// RecordScheduleRun records a scheduled prompt execution
func RecordScheduleRun(status string) {
	ScheduleRuns.WithLabelValues(status).Inc()
}
