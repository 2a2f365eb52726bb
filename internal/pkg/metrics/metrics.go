package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// jobsFinished terminal jobs by status (SUCCEEDED, FAILED)
	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repo_scan",
		Subsystem: "jobs",
		Name:      "finished_total",
		Help:      "Analysis jobs that reached a terminal state",
	}, []string{"status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "repo_scan",
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Wall time of analysis jobs from start to terminal state",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
	}, []string{"status"})

	// jobsRejected jobs that could not be dispatched
	jobsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repo_scan",
		Subsystem: "jobs",
		Name:      "rejected_total",
		Help:      "Analysis jobs failed at submission because no worker slot was free",
	})

	findings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repo_scan",
		Subsystem: "risk",
		Name:      "findings_total",
		Help:      "Sensitive data findings by match type",
	}, []string{"type"})

	cloneFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repo_scan",
		Subsystem: "git",
		Name:      "clone_failures_total",
		Help:      "Failed clone attempts by cause",
	}, []string{"kind"})

	workspacesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repo_scan",
		Subsystem: "cleanup",
		Name:      "workspaces_swept_total",
		Help:      "Stale workspaces removed by the sweeper",
	})
)

func JobFinished(status string, elapsed time.Duration) {
	jobsFinished.WithLabelValues(status).Inc()
	jobDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func JobRejected() {
	jobsRejected.Inc()
}

// Findings counts findings per match type.
func Findings(byType map[string]int) {
	for typ, n := range byType {
		findings.WithLabelValues(typ).Add(float64(n))
	}
}

func CloneFailed(kind string) {
	cloneFailures.WithLabelValues(kind).Inc()
}

func WorkspacesSwept(n int) {
	if n > 0 {
		workspacesSwept.Add(float64(n))
	}
}
