package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Phase metrics
	PhaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeup_phase_transitions_total",
			Help: "Total number of provisioning phase transitions by target phase",
		},
		[]string{"phase"},
	)

	// Installer metrics
	InstallerJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeup_installer_jobs_total",
			Help: "Total number of installer jobs by result",
		},
		[]string{"result"},
	)

	InstallerJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nodeup_installer_job_duration_seconds",
			Help:    "Installer job duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"job"},
	)

	// Readiness gate metrics
	ProbeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodeup_readiness_probe_attempts_total",
			Help: "Total number of readiness probe attempts by gate and outcome",
		},
		[]string{"gate", "outcome"},
	)

	// Service lifecycle metrics
	ServicesStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodeup_services_started_total",
			Help: "Total number of agent services started",
		},
	)
)

func init() {
	prometheus.MustRegister(PhaseTransitions)
	prometheus.MustRegister(InstallerJobs)
	prometheus.MustRegister(InstallerJobDuration)
	prometheus.MustRegister(ProbeAttempts)
	prometheus.MustRegister(ServicesStarted)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
