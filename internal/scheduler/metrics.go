package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lariatlabs/dirsync/internal/reconcile"
)

// syncTotal counts reconciliation outcomes per binding, mirroring the
// shape of internal/logger.NewPrometheusHook's level counter but scoped to
// directory sync instead of log statements. Registered once per process;
// the scheduler never constructs more than one ReconcileWorker per daemon.
var syncTotal = promauto.NewCounterVec( //nolint:gochecknoglobals
	prometheus.CounterOpts{
		Name: "directory_sync_total",
		Help: "Count of directory reconciliation mutations, by binding and outcome.",
	},
	[]string{"binding", "outcome"},
)

func observeReport(bindingID string, report *reconcile.SyncReport) {
	syncTotal.WithLabelValues(bindingID, "created").Add(float64(report.Created))
	syncTotal.WithLabelValues(bindingID, "updated").Add(float64(report.Updated))
	syncTotal.WithLabelValues(bindingID, "suspended").Add(float64(report.Suspended))
	syncTotal.WithLabelValues(bindingID, "reactivated").Add(float64(report.Reactivated))
	syncTotal.WithLabelValues(bindingID, "unchanged").Add(float64(report.Unchanged))
	syncTotal.WithLabelValues(bindingID, "addedToGroup").Add(float64(report.AddedToGroup))
	syncTotal.WithLabelValues(bindingID, "error").Add(float64(len(report.Errors)))
}
