package cliutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/thenullengine/ailab/internal/supervise"
)

func TestNewLogRecordInfersLevelFromMessage(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"ERROR: torch not found", "error"},
		{"WARNING: optional step skipped", "warn"},
		{"warn: low disk space", "warn"},
		{"loading model weights", "info"},
	}
	for _, tc := range cases {
		record := NewLogRecord(supervise.Event{
			Service: "comfyui",
			Type:    supervise.EventTypeLog,
			Message: tc.message,
		})
		if record.Level != tc.want {
			t.Errorf("level for %q = %q, want %q", tc.message, record.Level, tc.want)
		}
	}
}

func TestNewLogRecordAppendsError(t *testing.T) {
	record := NewLogRecord(supervise.Event{
		Service: "comfyui",
		Type:    supervise.EventTypeAlert,
		Level:   "error",
		Message: "install failed",
		Err:     errors.New("step \"Installing PyTorch\" exited 1"),
	})
	if !strings.Contains(record.Message, "install failed:") {
		t.Fatalf("message = %q, want the error appended", record.Message)
	}
	if !strings.Contains(record.Message, "Installing PyTorch") {
		t.Fatalf("message = %q, want the cause included", record.Message)
	}
}

func TestFormatEventIsHumanReadable(t *testing.T) {
	ts := time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC)
	line := FormatEvent(supervise.Event{
		Timestamp: ts,
		Service:   "aitoolkit",
		Type:      supervise.EventTypeLog,
		Message:   "npm run build_and_start",
		Source:    supervise.SourceProcess,
	})
	if !strings.HasPrefix(line, "14:30:05") {
		t.Fatalf("line = %q, want a clock prefix", line)
	}
	if !strings.Contains(line, "aitoolkit") || !strings.Contains(line, "npm run build_and_start") {
		t.Fatalf("line = %q, want service and message", line)
	}
	if !strings.Contains(line, "INFO") {
		t.Fatalf("line = %q, want an upper-cased level", line)
	}
}

func TestEncodeLogEventEmitsJSONLines(t *testing.T) {
	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	EncodeLogEvent(enc, &bytes.Buffer{}, supervise.Event{
		Timestamp: time.Now(),
		Service:   "comfyui",
		Type:      supervise.EventTypeState,
		State:     supervise.StateRunning,
		Level:     "info",
		Message:   "service running",
	})

	var record LogRecord
	if err := json.Unmarshal(out.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record.Service != "comfyui" || record.State != "running" {
		t.Fatalf("record = %+v, want service and state carried through", record)
	}
}

func TestRedactSecretsMasksTokenAssignments(t *testing.T) {
	cases := []string{
		"HF_TOKEN=hf_abcdef123456",
		"export HUGGING_FACE_HUB_TOKEN: hf_secret",
		`CIVITAI_API_KEY="super-secret"`,
		"WANDB_API_KEY = 0123456789abcdef",
	}
	for _, in := range cases {
		got := RedactSecrets(in)
		if !strings.Contains(got, "[redacted]") {
			t.Errorf("RedactSecrets(%q) = %q, want redaction", in, got)
		}
		if strings.Contains(got, "secret") || strings.Contains(got, "hf_abcdef") {
			t.Errorf("RedactSecrets(%q) = %q, secret survived", in, got)
		}
	}
}

func TestRedactSecretsLeavesOrdinaryOutputAlone(t *testing.T) {
	in := "Total VRAM 24576 MB, loading checkpoint sd_xl_base_1.0.safetensors"
	if got := RedactSecrets(in); got != in {
		t.Fatalf("RedactSecrets(%q) = %q, want unchanged", in, got)
	}
}
