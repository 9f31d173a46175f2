// Package qc holds the quality-control annotation ledger: CSV rows imported
// from a study sheet, the variables a reviewer tracks, and the per-group
// entries derived from both.
package qc

import (
	"context"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/listenupapp/mediaqc-server/internal/domain"
	"github.com/listenupapp/mediaqc-server/internal/normalize"
)

// DefaultProgressEvery is the number of row visits between progress reports.
const DefaultProgressEvery = 250

// Options configure a Ledger.
type Options struct {
	ProgressEvery int
	Observer      RecomputeObserver
}

// Ledger tracks QC rows, variables and entries for one review session.
//
// Bulk recomputes run on their own goroutine and take the lock once per
// row, yielding between rows. They are not atomic: an edit made while a
// run is in flight can be overwritten when the run reaches that row, and
// two overlapping runs interleave their writes. Callers that need a settled
// state wait on the returned *Recompute before mutating again.
type Ledger struct {
	logger        *slog.Logger
	observer      RecomputeObserver
	progressEvery int

	mu        sync.Mutex
	enabled   bool
	headers   []string
	rows      []domain.QCRow
	variables []domain.QCVariable
	entries   map[domain.GroupKey]map[string]string
	inflight  map[*Recompute]struct{}
}

// NewLedger creates an empty, disabled ledger with no variables.
func NewLedger(logger *slog.Logger, opts Options) *Ledger {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	return &Ledger{
		logger:        logger,
		observer:      opts.Observer,
		progressEvery: opts.ProgressEvery,
		headers:       []string{},
		rows:          []domain.QCRow{},
		variables:     []domain.QCVariable{},
		entries:       make(map[domain.GroupKey]map[string]string),
		inflight:      make(map[*Recompute]struct{}),
	}
}

// ImportCSV replaces headers and rows with the parsed text and recomputes
// every entry. See parseCSV for the accepted format.
func (l *Ledger) ImportCSV(text string) *Recompute {
	headers, rows := parseCSV(text)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.headers = headers
	l.rows = rows
	l.logger.Info("qc csv imported", "headers", len(headers), "rows", len(rows))

	return l.startLocked(ReasonImport)
}

// ToggleQualityControl flips the enabled flag. Entries are recomputed only
// when switching on; the returned handle is nil when switching off.
func (l *Ledger) ToggleQualityControl() (bool, *Recompute) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.enabled = !l.enabled
	if !l.enabled {
		return false, nil
	}
	return true, l.startLocked(ReasonEnabled)
}

// SetVariable stores v at index, appending when index is at or past the
// end. A negative index leaves the list as it is. Entries are recomputed
// either way.
func (l *Ledger) SetVariable(index int, v domain.QCVariable) *Recompute {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case index < 0:
	case index >= len(l.variables):
		l.variables = append(l.variables, v)
	default:
		l.variables[index] = v
	}
	return l.startLocked(ReasonVariableSet)
}

// AddVariable appends v.
func (l *Ledger) AddVariable(v domain.QCVariable) *Recompute {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.variables = append(l.variables, v)
	return l.startLocked(ReasonVariableSet)
}

// ReplaceVariables swaps in a whole new variable list.
func (l *Ledger) ReplaceVariables(vars []domain.QCVariable) *Recompute {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.variables = slices.Clone(vars)
	if l.variables == nil {
		l.variables = []domain.QCVariable{}
	}
	return l.startLocked(ReasonVariablesReplace)
}

// RemoveVariable drops the variable at index and deletes its name from
// every group's entries before recomputing. An index out of range removes
// nothing but still recomputes.
func (l *Ledger) RemoveVariable(index int) *Recompute {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index >= 0 && index < len(l.variables) {
		removed := l.variables[index]
		l.variables = slices.Delete(l.variables, index, index+1)
		if removed.Name != "" {
			for _, group := range l.entries {
				delete(group, removed.Name)
			}
		}
	}
	return l.startLocked(ReasonVariableRemoved)
}

// SetEntry writes a single cell. The value is normalized when the first
// variable registered under that name is pass-fail, and stored verbatim
// otherwise. The group is created when missing.
func (l *Ledger) SetEntry(key domain.GroupKey, variable, value string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, v := range l.variables {
		if v.Name == variable {
			value = normalize.Value(v.Type, value)
			break
		}
	}
	l.groupLocked(key)[variable] = value
	return value
}

// EntriesFor returns a copy of one group's entries. It never returns nil.
func (l *Ledger) EntriesFor(key domain.GroupKey) map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	group, ok := l.entries[key]
	if !ok {
		return map[string]string{}
	}
	return maps.Clone(group)
}

// Snapshot returns a deep copy of every group's entries.
func (l *Ledger) Snapshot() map[domain.GroupKey]map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[domain.GroupKey]map[string]string, len(l.entries))
	for k, group := range l.entries {
		out[k] = maps.Clone(group)
	}
	return out
}

// ExportCSV rebuilds the imported sheet with ledger values merged in.
//
// Header order and row order follow the import. For each registered
// variable whose name is one of the headers, a row's cell becomes the
// ledger value for that row's group, falling back to the imported cell.
// Every other cell is emitted as imported.
func (l *Ledger) ExportCSV() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	headerSet := make(map[string]struct{}, len(l.headers))
	for _, h := range l.headers {
		headerSet[h] = struct{}{}
	}

	var overrides []string
	for _, v := range l.variables {
		if _, ok := headerSet[v.Name]; ok && v.Name != "" {
			overrides = append(overrides, v.Name)
		}
	}

	out := make([][]string, 0, len(l.rows))
	for _, row := range l.rows {
		key, _ := row.GroupKey()
		entry := l.entries[key]

		merged := maps.Clone(row)
		for _, name := range overrides {
			if v := entry[name]; v != "" {
				merged[name] = v
			}
		}

		cells := make([]string, len(l.headers))
		for i, h := range l.headers {
			cells[i] = merged.Get(h)
		}
		out = append(out, cells)
	}

	return formatCSV(l.headers, out)
}

// Enabled reports whether quality control is switched on.
func (l *Ledger) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Headers returns the imported header line.
func (l *Ledger) Headers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.headers)
}

// Rows returns copies of the imported rows.
func (l *Ledger) Rows() []domain.QCRow {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.QCRow, len(l.rows))
	for i, r := range l.rows {
		out[i] = maps.Clone(r)
	}
	return out
}

// Variables returns the registered variables in order.
func (l *Ledger) Variables() []domain.QCVariable {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.variables)
}

// Running returns the number of recomputes still in flight.
func (l *Ledger) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}

// Idle blocks until no recompute is running or ctx is done.
func (l *Ledger) Idle(ctx context.Context) error {
	for {
		l.mu.Lock()
		runs := slices.Collect(maps.Keys(l.inflight))
		l.mu.Unlock()

		if len(runs) == 0 {
			return nil
		}
		for _, r := range runs {
			if _, err := r.Wait(ctx); err != nil {
				return err
			}
		}
	}
}

func (l *Ledger) groupLocked(key domain.GroupKey) map[string]string {
	group, ok := l.entries[key]
	if !ok {
		group = make(map[string]string)
		l.entries[key] = group
	}
	return group
}

// startLocked resets the entry table and launches a run over a snapshot of
// the active variables and the current rows. Caller holds l.mu.
func (l *Ledger) startLocked(reason string) *Recompute {
	vars := make([]domain.QCVariable, 0, len(l.variables))
	for _, v := range l.variables {
		if v.Active() {
			vars = append(vars, v)
		}
	}
	rows := l.rows

	run := newRecompute(reason, len(vars)*len(rows))
	l.entries = make(map[domain.GroupKey]map[string]string)
	l.inflight[run] = struct{}{}

	go l.recompute(run, vars, rows)
	return run
}

func (l *Ledger) recompute(run *Recompute, vars []domain.QCVariable, rows []domain.QCRow) {
	start := time.Now()
	l.observer.RecomputeStarted(run.info)
	l.logger.Debug("qc recompute started",
		"run_id", run.info.ID,
		"reason", run.info.Reason,
		"variables", len(vars),
		"rows", len(rows),
	)

	stats := RecomputeStats{Variables: len(vars), Rows: len(rows)}
	processed := 0

	for _, v := range vars {
		for _, row := range rows {
			key, ok := row.GroupKey()

			l.mu.Lock()
			if ok {
				l.groupLocked(key)[v.Name] = normalize.Value(v.Type, row.Get(v.Name))
				stats.Written++
			} else {
				stats.SkippedRows++
			}
			l.mu.Unlock()

			processed++
			if processed%l.progressEvery == 0 {
				l.observer.RecomputeProgress(run.info, processed)
			}
			runtime.Gosched()
		}
	}

	stats.Duration = time.Since(start)
	run.stats = stats

	l.logger.Info("qc recompute finished",
		"run_id", run.info.ID,
		"reason", run.info.Reason,
		"written", stats.Written,
		"skipped_rows", stats.SkippedRows,
		"duration", stats.Duration,
	)
	l.observer.RecomputeFinished(run.info, stats)

	l.mu.Lock()
	delete(l.inflight, run)
	l.mu.Unlock()
	close(run.done)
}
