// Package metrics exposes the entropy peer's counters and gauges via
// github.com/prometheus/client_golang, the metrics library used elsewhere in
// the example pack's services.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every counter/gauge an entropy peer updates during PUT,
// GET, and persist-worker activity.
type Metrics struct {
	PutsStarted      prometheus.Counter
	PutsCompleted    prometheus.Counter
	GetsStarted      prometheus.Counter
	GetsCompleted    prometheus.Counter
	FragmentsStored  prometheus.Counter
	FragmentsLoaded  prometheus.Counter
	InvitesReceived  prometheus.Counter
	PendingUploads   prometheus.Gauge
	PendingDownloads prometheus.Gauge
	PendingPersists  prometheus.Gauge
}

// New registers and returns a fresh set of metrics on registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		PutsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "entropy", Name: "puts_started_total", Help: "Put calls accepted.",
		}),
		PutsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "entropy", Name: "puts_completed_total", Help: "Puts that reached PutOk.",
		}),
		GetsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "entropy", Name: "gets_started_total", Help: "Get calls accepted.",
		}),
		GetsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "entropy", Name: "gets_completed_total", Help: "Gets that reached GetOk.",
		}),
		FragmentsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "entropy", Name: "fragments_stored_total", Help: "Fragments written to the local fragment filesystem.",
		}),
		FragmentsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "entropy", Name: "fragments_loaded_total", Help: "Fragments read to service a Pull.",
		}),
		InvitesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "entropy", Name: "invites_received_total", Help: "Invite messages accepted as a persist worker.",
		}),
		PendingUploads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "entropy", Name: "pending_uploads", Help: "Uploads currently in flight.",
		}),
		PendingDownloads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "entropy", Name: "pending_downloads", Help: "Downloads currently in flight.",
		}),
		PendingPersists: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "entropy", Name: "pending_persists", Help: "Chunks this peer is persisting.",
		}),
	}
	registry.MustRegister(
		m.PutsStarted, m.PutsCompleted, m.GetsStarted, m.GetsCompleted,
		m.FragmentsStored, m.FragmentsLoaded, m.InvitesReceived,
		m.PendingUploads, m.PendingDownloads, m.PendingPersists,
	)
	return m
}
