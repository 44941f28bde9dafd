package entropy

import "time"

// metricsTickInterval governs how often a peer refreshes its pending-table
// gauges. Table sizes change only as fast as chunk lifecycles turn over, so
// this does not need to track individual handler calls.
const metricsTickInterval = 5 * time.Second

type metricsTickEvent struct{}

// onMetricsTick is the "rereplicate timer" original_source's persist-worker
// StoreOk handler names in a TODO but never implements; it's repurposed here
// for a narrower, fully-specified job — refreshing the gauges Hooks.Metrics
// exposes from this peer's own table sizes — rather than inventing an
// unspecified re-replication policy.
func onMetricsTick(p *Peer, _ metricsTickEvent) error {
	p.metrics.PendingUploads.Set(float64(len(p.uploads)))
	p.metrics.PendingDownloads.Set(float64(len(p.downloads)))
	p.metrics.PendingPersists.Set(float64(len(p.persists)))
	return nil
}
