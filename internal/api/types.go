// Package api defines the control surface exposed to remote consumers of the
// supervisor registry.
package api

import (
	"context"
	"time"

	"github.com/thenullengine/ailab/internal/supervise"
)

// Controller is the operation surface the HTTP server drives. The registry
// adapter below is the production implementation; tests substitute fakes.
type Controller interface {
	Status(ctx context.Context) (StatusReport, error)
	Install(ctx context.Context, service string) error
	Update(ctx context.Context, service string) error
	Start(ctx context.Context, service string) error
	Stop(ctx context.Context, service string) error
	Restart(ctx context.Context, service string) error
}

// ServiceReport describes the runtime state of a single service.
type ServiceReport struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	State     string `json:"state"`
	PID       int    `json:"pid,omitempty"`
	Tracked   bool   `json:"tracked"`
	Installed bool   `json:"installed"`
	URL       string `json:"url,omitempty"`
	HasUpdate bool   `json:"has_update"`
}

// StatusReport aggregates all managed services.
type StatusReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Services    []ServiceReport `json:"services"`
}

// RegistryController adapts a supervisor registry to the Controller surface.
// Long-running operations are admitted synchronously and then left to their
// background goroutines; only admission errors surface to the caller.
//
// Operations run on the base context rather than the per-request one: the
// request context dies as soon as the response is written, which would tear
// down a pipeline that was just admitted or cut a termination grace short.
type RegistryController struct {
	registry *supervise.Registry
	base     context.Context
}

// NewRegistryController wraps the provided registry. base should span the
// server's lifetime; nil means context.Background().
func NewRegistryController(base context.Context, registry *supervise.Registry) *RegistryController {
	if base == nil {
		base = context.Background()
	}
	return &RegistryController{registry: registry, base: base}
}

func (rc *RegistryController) Status(ctx context.Context) (StatusReport, error) {
	report := StatusReport{GeneratedAt: time.Now()}
	for _, name := range rc.registry.Names() {
		ctrl, err := rc.registry.Get(name)
		if err != nil {
			return StatusReport{}, err
		}
		st := ctrl.Status()
		report.Services = append(report.Services, ServiceReport{
			Name:      st.Service,
			Title:     st.Title,
			State:     string(st.State),
			PID:       st.PID,
			Tracked:   st.Tracked,
			Installed: ctrl.Installed(),
			URL:       ctrl.URL(),
			HasUpdate: ctrl.HasUpdate(),
		})
	}
	return report, nil
}

func (rc *RegistryController) Install(_ context.Context, service string) error {
	ctrl, err := rc.registry.Get(service)
	if err != nil {
		return err
	}
	_, err = ctrl.Install(rc.base)
	return err
}

func (rc *RegistryController) Update(_ context.Context, service string) error {
	ctrl, err := rc.registry.Get(service)
	if err != nil {
		return err
	}
	_, err = ctrl.Update(rc.base)
	return err
}

func (rc *RegistryController) Start(_ context.Context, service string) error {
	ctrl, err := rc.registry.Get(service)
	if err != nil {
		return err
	}
	_, err = ctrl.Start(rc.base)
	return err
}

func (rc *RegistryController) Stop(_ context.Context, service string) error {
	ctrl, err := rc.registry.Get(service)
	if err != nil {
		return err
	}
	return ctrl.Stop(rc.base)
}

func (rc *RegistryController) Restart(_ context.Context, service string) error {
	ctrl, err := rc.registry.Get(service)
	if err != nil {
		return err
	}
	_, err = ctrl.Restart(rc.base)
	return err
}
