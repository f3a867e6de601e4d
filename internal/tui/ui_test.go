package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/thenullengine/ailab/internal/supervise"
)

func testRegistry() *supervise.Registry {
	reg := supervise.NewRegistry()
	for _, name := range []string{"comfyui", "aitoolkit", "onetrainer"} {
		reg.Add(supervise.NewController(supervise.Spec{
			Name:  name,
			Title: strings.ToUpper(name[:1]) + name[1:],
			Command: func() ([]string, string, error) {
				return []string{"true"}, "", nil
			},
		}, nil))
	}
	return reg
}

func newTestUI(t *testing.T, opts ...Option) *UI {
	t.Helper()
	events := make(chan supervise.Event)
	return New(testRegistry(), events, opts...)
}

func TestNewSeedsServicesInRegistryOrder(t *testing.T) {
	ui := newTestUI(t)

	want := []string{"comfyui", "aitoolkit", "onetrainer"}
	if len(ui.order) != len(want) {
		t.Fatalf("order = %v, want %v", ui.order, want)
	}
	for i := range want {
		if ui.order[i] != want[i] {
			t.Fatalf("order = %v, want %v", ui.order, want)
		}
	}
	if ui.selected != "comfyui" {
		t.Fatalf("selected = %q, want the first service", ui.selected)
	}
	for _, name := range want {
		state := ui.services[name]
		if state == nil || state.state != supervise.StateIdle {
			t.Fatalf("service %s not seeded idle", name)
		}
	}
}

func TestApplyEventTracksStateAndMessage(t *testing.T) {
	ui := newTestUI(t)

	ui.applyEvent(supervise.Event{
		Timestamp: time.Now(),
		Service:   "comfyui",
		Type:      supervise.EventTypeState,
		State:     supervise.StateRunning,
	})

	ui.mu.RLock()
	state := ui.services["comfyui"].state
	ui.mu.RUnlock()
	if state != supervise.StateRunning {
		t.Fatalf("state = %s, want running", state)
	}

	ui.applyEvent(supervise.Event{
		Timestamp: time.Now(),
		Service:   "comfyui",
		Type:      supervise.EventTypeAlert,
		Level:     "error",
		Message:   "ComfyUI exited with code 1",
	})

	ui.mu.RLock()
	message := ui.services["comfyui"].message
	ui.mu.RUnlock()
	if !strings.Contains(message, "exited with code 1") {
		t.Fatalf("message = %q, want the alert text", message)
	}
}

func TestApplyEventIgnoresUnknownService(t *testing.T) {
	ui := newTestUI(t)
	ui.applyEvent(supervise.Event{
		Service: "krita",
		Type:    supervise.EventTypeLog,
		Message: "should vanish",
	})
	ui.mu.RLock()
	defer ui.mu.RUnlock()
	if _, ok := ui.services["krita"]; ok {
		t.Fatal("unknown service materialized in the table")
	}
}

func TestLogRetentionTrimsOldestLines(t *testing.T) {
	ui := newTestUI(t, WithMaxLogs(3))

	for i := 0; i < 5; i++ {
		ui.applyEvent(supervise.Event{
			Timestamp: time.Now(),
			Service:   "comfyui",
			Type:      supervise.EventTypeLog,
			Source:    supervise.SourceProcess,
			Message:   string(rune('a' + i)),
		})
	}

	ui.mu.RLock()
	logs := append([]string(nil), ui.services["comfyui"].logs...)
	ui.mu.RUnlock()

	if len(logs) != 3 {
		t.Fatalf("retained %d lines, want 3", len(logs))
	}
	if !strings.HasSuffix(logs[0], "c") || !strings.HasSuffix(logs[2], "e") {
		t.Fatalf("logs = %v, want the newest three lines", logs)
	}
}

func TestSyncSelectionFollowsTableRows(t *testing.T) {
	ui := newTestUI(t)

	ui.syncSelection(2)
	if ui.selected != "aitoolkit" {
		t.Fatalf("selected = %q, want aitoolkit", ui.selected)
	}

	// Header row and out-of-range rows leave the selection alone.
	ui.syncSelection(0)
	ui.syncSelection(99)
	if ui.selected != "aitoolkit" {
		t.Fatalf("selected = %q, want aitoolkit preserved", ui.selected)
	}
}

func TestConfirmResolvesFalseOnceStopped(t *testing.T) {
	ui := newTestUI(t)
	ui.Stop()

	answered := make(chan bool, 1)
	go func() {
		answered <- ui.Confirm("comfyui", "Stop ComfyUI?")
	}()

	select {
	case ok := <-answered:
		if ok {
			t.Fatal("confirm approved after the UI stopped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("confirm blocked after the UI stopped")
	}
}
