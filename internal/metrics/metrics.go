package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	serviceState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ailab",
		Name:      "service_state",
		Help:      "Current lifecycle state per service (1 for the active state, 0 otherwise).",
	}, []string{"service", "state"})

	serviceRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ailab",
		Name:      "service_restarts_total",
		Help:      "Total number of restarts requested per service.",
	}, []string{"service"})

	pipelineFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ailab",
		Name:      "pipeline_failures_total",
		Help:      "Total number of failed install/update pipelines per service.",
	}, []string{"service", "pipeline"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ailab",
		Name:      "build_info",
		Help:      "Build metadata for the running ailab binary.",
	}, []string{"go_version", "vcs_revision", "vcs_modified"})

	buildInfoOnce sync.Once
)

var knownStates = []string{"idle", "installing", "starting", "running", "stopping", "restarting"}

func init() {
	registry.MustRegister(serviceState, serviceRestarts, pipelineFailures, buildInfo)
}

// Registry returns the Prometheus registry containing all ailab metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetServiceState records the current lifecycle state for a service.
func SetServiceState(service, state string) {
	if service == "" || state == "" {
		return
	}
	for _, known := range knownStates {
		value := 0.0
		if known == state {
			value = 1.0
		}
		serviceState.WithLabelValues(service, known).Set(value)
	}
}

// IncrementRestart counts a restart request for a service.
func IncrementRestart(service string) {
	if service == "" {
		return
	}
	serviceRestarts.WithLabelValues(service).Inc()
}

// IncrementPipelineFailure counts a failed install or update pipeline.
func IncrementPipelineFailure(service, pipeline string) {
	if service == "" {
		return
	}
	if pipeline == "" {
		pipeline = "install"
	}
	pipelineFailures.WithLabelValues(service, pipeline).Inc()
}

// EmitBuildInfo publishes build metadata gathered from the binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		revision := "unknown"
		modified := "unknown"
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					revision = setting.Value
				case "vcs.modified":
					modified = setting.Value
				}
			}
		}
		buildInfo.WithLabelValues(runtime.Version(), revision, modified).Set(1)
	})
}
