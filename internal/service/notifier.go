package service

import (
	"github.com/listenupapp/mediaqc-server/internal/metrics"
	"github.com/listenupapp/mediaqc-server/internal/qc"
	"github.com/listenupapp/mediaqc-server/internal/sse"
)

// RecomputeNotifier forwards ledger recompute lifecycle to the event
// stream and metrics. It is handed to the ledger at construction.
type RecomputeNotifier struct {
	events  *sse.Manager
	metrics *metrics.Metrics
}

// NewRecomputeNotifier creates a new notifier.
func NewRecomputeNotifier(events *sse.Manager, m *metrics.Metrics) *RecomputeNotifier {
	return &RecomputeNotifier{events: events, metrics: m}
}

// RecomputeStarted implements qc.RecomputeObserver.
func (n *RecomputeNotifier) RecomputeStarted(info qc.RecomputeInfo) {
	n.metrics.RecomputeStarted()
	n.events.Emit(sse.NewQCRecomputeStartedEvent(info))
}

// RecomputeProgress implements qc.RecomputeObserver.
func (n *RecomputeNotifier) RecomputeProgress(info qc.RecomputeInfo, processed int) {
	n.events.Emit(sse.NewQCRecomputeProgressEvent(info, processed))
}

// RecomputeFinished implements qc.RecomputeObserver.
func (n *RecomputeNotifier) RecomputeFinished(info qc.RecomputeInfo, stats qc.RecomputeStats) {
	n.metrics.RecomputeFinished(info.Reason, stats.Duration)
	n.events.Emit(sse.NewQCRecomputeCompletedEvent(info, stats))
}
