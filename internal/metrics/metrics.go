// Package metrics provides Prometheus metrics for browsersync.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registries
	requirementConsumers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "browsersync_requirement_consumers",
			Help: "Number of consumers with registered file requirements",
		},
	)

	recordsRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "browsersync_records_registered",
			Help: "Number of file records with at least one dependent consumer",
		},
	)

	recordUnloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browsersync_record_unloads_total",
			Help: "Total number of file record unloads",
		},
		[]string{"status"},
	)

	// Pollers
	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browsersync_polls_total",
			Help: "Total number of browser list polls",
		},
		[]string{"status"},
	)

	pollsShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "browsersync_polls_shared_total",
			Help: "Poll requests served by an already running poll",
		},
	)

	browsersOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "browsersync_browsers_open",
			Help: "Number of open browser sessions",
		},
	)

	// Recall
	recallWatchersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "browsersync_recall_watchers_active",
			Help: "Number of shared recall state watchers",
		},
	)

	recallWatcherStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browsersync_recall_watcher_stops_total",
			Help: "Recall watcher stops by reason",
		},
		[]string{"reason"},
	)
)

func SetRequirementConsumers(n int) {
	requirementConsumers.Set(float64(n))
}

func SetRecordsRegistered(n int) {
	recordsRegistered.Set(float64(n))
}

func RecordUnload(err error) {
	recordUnloadsTotal.WithLabelValues(status(err)).Inc()
}

func RecordPoll(err error) {
	pollsTotal.WithLabelValues(status(err)).Inc()
}

func RecordSharedPoll() {
	pollsShared.Inc()
}

func SetBrowsersOpen(n int) {
	browsersOpen.Set(float64(n))
}

func SetRecallWatchersActive(n int) {
	recallWatchersActive.Set(float64(n))
}

func RecordRecallWatcherStop(reason string) {
	recallWatcherStops.WithLabelValues(reason).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}
