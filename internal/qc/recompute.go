package qc

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reasons attached to a recompute run.
const (
	ReasonImport           = "import"
	ReasonVariableSet      = "variable_set"
	ReasonVariableRemoved  = "variable_removed"
	ReasonVariablesReplace = "variables_replaced"
	ReasonEnabled          = "enabled"
)

// RecomputeInfo identifies one recompute run.
type RecomputeInfo struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	// Total is the number of row visits the run will make
	// (active variables times rows).
	Total int `json:"total"`
}

// RecomputeStats summarizes a finished run.
type RecomputeStats struct {
	Variables   int           `json:"variables"`
	Rows        int           `json:"rows"`
	Written     int           `json:"written"`
	SkippedRows int           `json:"skipped_rows"`
	Duration    time.Duration `json:"duration"`
}

// RecomputeObserver is told about the lifecycle of every run.
// Calls happen on the run's goroutine without the ledger lock held, and
// RecomputeFinished returns before the run's Done channel closes.
type RecomputeObserver interface {
	RecomputeStarted(info RecomputeInfo)
	RecomputeProgress(info RecomputeInfo, processed int)
	RecomputeFinished(info RecomputeInfo, stats RecomputeStats)
}

type noopObserver struct{}

func (noopObserver) RecomputeStarted(RecomputeInfo) {}

func (noopObserver) RecomputeProgress(RecomputeInfo, int) {}

func (noopObserver) RecomputeFinished(RecomputeInfo, RecomputeStats) {}

// Recompute is a handle on an in-flight or finished entry recompute.
//
// A nil *Recompute stands for "nothing was started" and behaves like a run
// that already finished with zero stats.
type Recompute struct {
	info  RecomputeInfo
	done  chan struct{}
	stats RecomputeStats
}

func newRecompute(reason string, total int) *Recompute {
	return &Recompute{
		info: RecomputeInfo{
			ID:     uuid.NewString(),
			Reason: reason,
			Total:  total,
		},
		done: make(chan struct{}),
	}
}

// ID returns the run ID, or "" for a nil handle.
func (r *Recompute) ID() string {
	if r == nil {
		return ""
	}
	return r.info.ID
}

// Done is closed once the run has written its last row.
func (r *Recompute) Done() <-chan struct{} {
	if r == nil {
		return closedChan
	}
	return r.done
}

// Stats returns the run's stats. Only meaningful after Done is closed.
func (r *Recompute) Stats() RecomputeStats {
	if r == nil {
		return RecomputeStats{}
	}
	select {
	case <-r.done:
		return r.stats
	default:
		return RecomputeStats{}
	}
}

// Wait blocks until the run finishes or ctx is done.
// The run itself keeps going when ctx is cancelled; there is no abort.
func (r *Recompute) Wait(ctx context.Context) (RecomputeStats, error) {
	select {
	case <-r.Done():
		return r.Stats(), nil
	case <-ctx.Done():
		return RecomputeStats{}, ctx.Err()
	}
}

//nolint:gochecknoglobals // Shared closed channel for nil handles
var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()
