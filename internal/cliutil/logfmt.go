package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/thenullengine/ailab/internal/supervise"
)

// LogRecord represents a structured notification ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Service   string    `json:"service"`
	Type      string    `json:"type"`
	State     string    `json:"state,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
}

// NewLogRecord converts a controller event into a structured record.
func NewLogRecord(event supervise.Event) LogRecord {
	level := event.Level
	if level == "" {
		if inferred := inferLogLevel(event.Message); inferred != "" {
			level = inferred
		} else {
			level = "info"
		}
	}
	source := event.Source
	if source == "" {
		source = supervise.SourceSystem
	}
	message := RedactSecrets(event.Message)
	if event.Err != nil {
		message = fmt.Sprintf("%s: %v", message, event.Err)
	}
	return LogRecord{
		Timestamp: event.Timestamp,
		Service:   event.Service,
		Type:      string(event.Type),
		State:     string(event.State),
		Level:     level,
		Message:   message,
		Source:    source,
	}
}

// FormatEvent renders an event as a human-readable line.
func FormatEvent(event supervise.Event) string {
	record := NewLogRecord(event)
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("%s %-10s %-5s %s",
		ts.Format("15:04:05"), record.Service, strings.ToUpper(record.Level), record.Message)
}

// EncodeLogEvent encodes an event to JSON, reporting errors to stderr.
func EncodeLogEvent(enc *json.Encoder, stderr io.Writer, event supervise.Event) {
	if enc == nil {
		return
	}
	record := NewLogRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn(?:ing)?|info)\b`)

func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	switch strings.ToLower(matches[1]) {
	case "error":
		return "error"
	case "warn", "warning":
		return "warn"
	case "info":
		return "info"
	default:
		return ""
	}
}
