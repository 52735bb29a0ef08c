package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/HyphaGroup/gevulot/internal/auth"
	"github.com/HyphaGroup/gevulot/internal/logger"
)

// Operation represents the type of auditable operation
type Operation string

const (
	OpJobSubmit       Operation = "job.submit"
	OpJobCancel       Operation = "job.cancel"
	OpSessionDestroy  Operation = "session.destroy"
	OpScheduleCreate  Operation = "schedule.create"
	OpScheduleUpdate  Operation = "schedule.update"
	OpScheduleDelete  Operation = "schedule.delete"
	OpScheduleTrigger Operation = "schedule.trigger"
	OpHistoryPrune    Operation = "history.prune"
	OpBackupCreate    Operation = "backup.create"
)

// Event represents an audit log entry
type Event struct {
	Timestamp  time.Time              `json:"timestamp"`
	Operation  Operation              `json:"operation"`
	Caller     string                 `json:"caller,omitempty"`
	SessionID  string                 `json:"session_id,omitempty"`
	JobID      string                 `json:"job_id,omitempty"`
	MessageID  string                 `json:"message_id,omitempty"`
	ScheduleID string                 `json:"schedule_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Logger handles audit logging
type Logger struct {
	logger  *slog.Logger
	enabled bool
	mu      sync.RWMutex
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Default returns the default audit logger
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(true)
	})
	return defaultLogger
}

// New creates a new audit logger
func New(enabled bool) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &Logger{
		logger:  slog.New(handler),
		enabled: enabled,
	}
}

// SetEnabled enables or disables audit logging
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// SetWriter redirects audit output. The stdio transport points audit at
// stderr before serving: stdout carries the MCP protocol there.
func (l *Logger) SetWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Log records an audit event
func (l *Logger) Log(event *Event) {
	l.mu.RLock()
	enabled := l.enabled
	sink := l.logger
	l.mu.RUnlock()

	if !enabled {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	attrs := []any{
		slog.String("audit", "true"),
		slog.String("operation", string(event.Operation)),
		slog.Bool("success", event.Success),
	}

	if event.Caller != "" {
		attrs = append(attrs, slog.String("caller", event.Caller))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.JobID != "" {
		attrs = append(attrs, slog.String("job_id", event.JobID))
	}
	if event.MessageID != "" {
		attrs = append(attrs, slog.String("message_id", event.MessageID))
	}
	if event.ScheduleID != "" {
		attrs = append(attrs, slog.String("schedule_id", event.ScheduleID))
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if event.Details != nil {
		detailsJSON, _ := json.Marshal(event.Details)
		attrs = append(attrs, slog.String("details", string(detailsJSON)))
	}

	sink.Info("AUDIT", attrs...)
}

// CallerFrom renders the acting caller recorded by the auth middleware:
// the masked token with its host when authenticated, the bare remote
// host in open mode. Empty when the transport carries no identity
// (stdio, CLI).
func CallerFrom(ctx context.Context) string {
	id := auth.FromContext(ctx)
	if id == nil {
		return ""
	}
	if id.Token != "" {
		return id.Token + "@" + id.RemoteAddr
	}
	return id.RemoteAddr
}

func requestIDFrom(ctx context.Context) string {
	rid, _ := ctx.Value(logger.ContextKeyRequestID).(string)
	return rid
}

// LogSuccess records a successful operation attributed to the caller
// carried in ctx
func (l *Logger) LogSuccess(ctx context.Context, op Operation, sessionID, jobID string) {
	l.Log(&Event{
		Operation: op,
		Caller:    CallerFrom(ctx),
		RequestID: requestIDFrom(ctx),
		SessionID: sessionID,
		JobID:     jobID,
		Success:   true,
	})
}

// LogFailure records a failed operation attributed to the caller
// carried in ctx
func (l *Logger) LogFailure(ctx context.Context, op Operation, sessionID, jobID string, err error) {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	l.Log(&Event{
		Operation: op,
		Caller:    CallerFrom(ctx),
		RequestID: requestIDFrom(ctx),
		SessionID: sessionID,
		JobID:     jobID,
		Success:   false,
		Error:     errMsg,
	})
}

// Convenience functions using default logger

func SetWriter(w io.Writer) {
	Default().SetWriter(w)
}

func Log(event *Event) {
	Default().Log(event)
}

func LogSuccess(ctx context.Context, op Operation, sessionID, jobID string) {
	Default().LogSuccess(ctx, op, sessionID, jobID)
}

func LogFailure(ctx context.Context, op Operation, sessionID, jobID string, err error) {
	Default().LogFailure(ctx, op, sessionID, jobID, err)
}
