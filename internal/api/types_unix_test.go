//go:build !windows

package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/thenullengine/ailab/internal/installer"
	"github.com/thenullengine/ailab/internal/supervise"
)

// An admitted install must keep running after the request that triggered it
// is torn down; net/http cancels the request context as soon as the handler
// returns the 202.
func TestRegistryControllerInstallOutlivesRequest(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "installed")
	events := make(chan supervise.Event, 64)
	reg := supervise.NewRegistry()
	reg.Add(supervise.NewController(supervise.Spec{
		Name:  "comfyui",
		Title: "ComfyUI",
		InstallSteps: func() ([]installer.Step, error) {
			return []installer.Step{
				installer.Cmd("write install marker", installer.Fatal, "",
					"sh", "-c", "sleep 0.3 && touch "+marker),
			}, nil
		},
	}, events))
	rc := NewRegistryController(context.Background(), reg)

	reqCtx, cancel := context.WithCancel(context.Background())
	if err := rc.Install(reqCtx, "comfyui"); err != nil {
		t.Fatalf("install: %v", err)
	}
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt := <-events:
			if evt.Type != supervise.EventTypeAlert {
				continue
			}
			if evt.Err != nil || evt.Level != "info" {
				t.Fatalf("install alert = %q level=%s err=%v, want success", evt.Message, evt.Level, evt.Err)
			}
			if _, err := os.Stat(marker); err != nil {
				t.Fatalf("install marker: %v", err)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for the install to finish")
		}
	}
}
