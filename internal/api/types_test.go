package api

import (
	"context"
	"errors"
	"testing"

	"github.com/thenullengine/ailab/internal/supervise"
)

func testRegistry() *supervise.Registry {
	reg := supervise.NewRegistry()
	reg.Add(supervise.NewController(supervise.Spec{
		Name:  "comfyui",
		Title: "ComfyUI",
		URL:   "http://127.0.0.1:8188",
		Command: func() ([]string, string, error) {
			return []string{"true"}, "", nil
		},
	}, nil))
	return reg
}

func TestRegistryControllerStatus(t *testing.T) {
	ctrl := NewRegistryController(context.Background(), testRegistry())
	report, err := ctrl.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(report.Services) != 1 {
		t.Fatalf("services = %d, want 1", len(report.Services))
	}
	svc := report.Services[0]
	if svc.Name != "comfyui" || svc.State != "idle" || svc.Tracked {
		t.Fatalf("service = %+v, want an idle untracked comfyui", svc)
	}
	if svc.URL != "http://127.0.0.1:8188" {
		t.Fatalf("url = %q, want the service url", svc.URL)
	}
	if svc.HasUpdate {
		t.Fatal("HasUpdate = true without update steps")
	}
}

func TestRegistryControllerUnknownService(t *testing.T) {
	ctrl := NewRegistryController(context.Background(), testRegistry())
	for _, op := range []func(context.Context, string) error{
		ctrl.Install, ctrl.Update, ctrl.Start, ctrl.Stop, ctrl.Restart,
	} {
		if err := op(context.Background(), "krita"); !errors.Is(err, supervise.ErrUnknownService) {
			t.Fatalf("err = %v, want ErrUnknownService", err)
		}
	}
}

func TestRegistryControllerStopWithoutProcess(t *testing.T) {
	ctrl := NewRegistryController(context.Background(), testRegistry())
	if err := ctrl.Stop(context.Background(), "comfyui"); !errors.Is(err, supervise.ErrNotRunning) {
		t.Fatalf("stop err = %v, want ErrNotRunning", err)
	}
}
