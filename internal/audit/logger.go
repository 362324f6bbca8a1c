package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/radio-control/radiowake/internal/adapter"
	"github.com/radio-control/radiowake/internal/logging"
	"github.com/radio-control/radiowake/internal/wake"
)

// ActionWake is the action recorded for wake attempts.
const ActionWake = "wake"

// Normalized outcome codes.
const (
	CodeSuccess      = "SUCCESS"
	CodeTimeout      = "TIMEOUT"
	CodeCancelled    = "CANCELLED"
	CodeInvalidRange = "INVALID_RANGE"
	CodeDisabled     = "DISABLED"
	CodeBusy         = "BUSY"
	CodeUnavailable  = "UNAVAILABLE"
	CodeError        = "ERROR"
)

// Entry is a single audit line.
type Entry struct {
	Timestamp    time.Time      `json:"ts"`
	User         string         `json:"user"`
	RadioID      string         `json:"radioId"`
	Action       string         `json:"action"`
	AttemptID    string         `json:"attemptId,omitempty"`
	Params       map[string]any `json:"params"`
	Outcome      string         `json:"outcome"`
	Code         string         `json:"code"`
	DurationMs   int64          `json:"durationMs"`
	ActionIssued bool           `json:"actionIssued"`
	Error        string         `json:"error,omitempty"`
}

// Options configures file rotation.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger appends audit entries to a rotating JSONL file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      *lumberjack.Logger
	log      *logging.Logger
}

// NewLogger opens the audit file, creating its directory if needed.
func NewLogger(opts Options, log *logging.Logger) (*Logger, error) {
	if opts.File == "" {
		return nil, errors.New("audit file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	if log == nil {
		log = logging.NopLogger()
	}

	out := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	// Open eagerly so permission problems surface at startup.
	if _, err := out.Write(nil); err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		filePath: opts.File,
		out:      out,
		log:      log.WithComponent("audit"),
	}, nil
}

// RecordWake implements wake.Recorder.
func (l *Logger) RecordWake(ctx context.Context, a wake.Attempt) {
	entry := Entry{
		Timestamp: a.Started.UTC(),
		User:      ActorFromContext(ctx),
		RadioID:   a.RadioID,
		Action:    ActionWake,
		AttemptID: a.ID,
		Params: map[string]any{
			"timeoutMs": a.Timeout.Milliseconds(),
		},
		Outcome:      outcome(a),
		Code:         Code(a),
		DurationMs:   a.Duration.Milliseconds(),
		ActionIssued: a.ActionIssued,
	}
	if a.Shortcut {
		entry.Params["shortcut"] = true
	}
	if a.Extensions > 0 {
		entry.Params["extensions"] = a.Extensions
	}
	if a.Err != nil {
		entry.Error = a.Err.Error()
	}
	l.writeEntry(entry)
}

func (l *Logger) writeEntry(entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		l.log.Error("failed to marshal audit entry", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		return
	}
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		l.log.Error("failed to write audit entry", "error", err)
	}
}

func outcome(a wake.Attempt) string {
	if a.Err != nil && a.Result == 0 {
		return "error"
	}
	return a.Result.String()
}

// Code maps an attempt to its normalized audit code.
func Code(a wake.Attempt) string {
	switch {
	case a.Err == nil && a.Result == wake.Woken:
		return CodeSuccess
	case a.Err == nil && a.Result == wake.TimedOut:
		return CodeTimeout
	case a.Result == wake.Cancelled, errors.Is(a.Err, wake.ErrCancelled):
		return CodeCancelled
	case errors.Is(a.Err, wake.ErrInvalidTimeout):
		return CodeInvalidRange
	case errors.Is(a.Err, wake.ErrRadioDisabled):
		return CodeDisabled
	case errors.Is(a.Err, adapter.ErrBusy):
		return CodeBusy
	case errors.Is(a.Err, adapter.ErrUnavailable):
		return CodeUnavailable
	case errors.Is(a.Err, adapter.ErrInvalidRange):
		return CodeInvalidRange
	default:
		return CodeError
	}
}

// Path returns the audit file path.
func (l *Logger) Path() string {
	return l.filePath
}

// Rotate starts a new audit file, keeping the old one as a backup.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		return nil
	}
	return l.out.Rotate()
}

// Close flushes and closes the audit file. Later entries are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		return nil
	}
	err := l.out.Close()
	l.out = nil
	return err
}

var _ wake.Recorder = (*Logger)(nil)
