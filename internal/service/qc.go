package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/listenupapp/mediaqc-server/internal/domain"
	domainerrors "github.com/listenupapp/mediaqc-server/internal/errors"
	"github.com/listenupapp/mediaqc-server/internal/metrics"
	"github.com/listenupapp/mediaqc-server/internal/qc"
	"github.com/listenupapp/mediaqc-server/internal/sse"
	"github.com/listenupapp/mediaqc-server/internal/validation"
)

// DefaultWaitTimeout bounds how long a request waits for its recompute.
const DefaultWaitTimeout = 30 * time.Second

// VariableInput is a variable as submitted by a client. Blank names and
// types are accepted; the ledger keeps such variables but ignores them.
type VariableInput struct {
	Name string `json:"name" yaml:"name" validate:"max=256"`
	Type string `json:"type" yaml:"type" validate:"max=64"`
}

func (v VariableInput) toDomain() domain.QCVariable {
	return domain.QCVariable{Name: v.Name, Type: v.Type}
}

type variablesRequest struct {
	Variables []VariableInput `json:"variables" validate:"max=500,dive"`
}

type indexRequest struct {
	Index int `json:"index" validate:"gte=0"`
}

// EntryRequest edits one QC cell.
type EntryRequest struct {
	Group    string `json:"group" validate:"required,groupkey"`
	Variable string `json:"variable" validate:"required"`
	Value    string `json:"value"`
}

// Preset is the YAML file format for QC variable presets:
//
//	variables:
//	  - name: Pain
//	    type: pass-fail
type Preset struct {
	Variables []VariableInput `yaml:"variables" validate:"max=500,dive"`
}

// RecomputeResult is returned by every operation that recomputes entries.
type RecomputeResult struct {
	RunID string            `json:"run_id,omitempty"`
	Stats qc.RecomputeStats `json:"stats"`
}

// ImportResult describes an imported sheet.
type ImportResult struct {
	RecomputeResult
	Headers []string `json:"headers"`
	Rows    int      `json:"rows"`
}

// VariablesResult carries the variable list after a change.
type VariablesResult struct {
	RecomputeResult
	Variables []domain.QCVariable `json:"variables"`
}

// ToggleResult carries the new enabled flag.
type ToggleResult struct {
	RecomputeResult
	Enabled bool `json:"enabled"`
}

// QCState summarizes the ledger.
type QCState struct {
	Enabled   bool                `json:"enabled"`
	Headers   []string            `json:"headers"`
	Variables []domain.QCVariable `json:"variables"`
	Rows      int                 `json:"rows"`
	Groups    int                 `json:"groups"`
}

// QCService fronts the QC ledger. Mutations wait for the recompute they
// trigger, so a caller sees settled entries when the call returns.
type QCService struct {
	ledger      *qc.Ledger
	events      *sse.Manager
	metrics     *metrics.Metrics
	validator   *validation.Validator
	logger      *slog.Logger
	waitTimeout time.Duration
}

// NewQCService creates a new QC service.
func NewQCService(
	ledger *qc.Ledger,
	events *sse.Manager,
	m *metrics.Metrics,
	validator *validation.Validator,
	logger *slog.Logger,
	waitTimeout time.Duration,
) *QCService {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	return &QCService{
		ledger:      ledger,
		events:      events,
		metrics:     m,
		validator:   validator,
		logger:      logger,
		waitTimeout: waitTimeout,
	}
}

// ImportCSV replaces the sheet.
func (s *QCService) ImportCSV(ctx context.Context, text string) (ImportResult, error) {
	run := s.ledger.ImportCSV(text)
	headers := s.ledger.Headers()
	rows := len(s.ledger.Rows())

	s.metrics.SetQCRows(rows)
	s.events.Emit(sse.NewQCImportedEvent(headers, rows, run.ID()))

	res, err := s.wait(ctx, run)
	return ImportResult{RecomputeResult: res, Headers: headers, Rows: rows}, err
}

// Toggle flips the enabled flag.
func (s *QCService) Toggle(ctx context.Context) (ToggleResult, error) {
	enabled, run := s.ledger.ToggleQualityControl()
	s.events.Emit(sse.NewQCToggledEvent(enabled, run.ID()))

	res, err := s.wait(ctx, run)
	return ToggleResult{RecomputeResult: res, Enabled: enabled}, err
}

// ReplaceVariables swaps in a whole variable list.
func (s *QCService) ReplaceVariables(ctx context.Context, vars []VariableInput) (VariablesResult, error) {
	if err := s.validator.Validate(variablesRequest{Variables: vars}); err != nil {
		return VariablesResult{}, err
	}

	list := make([]domain.QCVariable, len(vars))
	for i, v := range vars {
		list[i] = v.toDomain()
	}
	return s.variablesChanged(ctx, s.ledger.ReplaceVariables(list))
}

// AddVariable appends a variable.
func (s *QCService) AddVariable(ctx context.Context, v VariableInput) (VariablesResult, error) {
	if err := s.validator.Validate(v); err != nil {
		return VariablesResult{}, err
	}
	return s.variablesChanged(ctx, s.ledger.AddVariable(v.toDomain()))
}

// SetVariable overwrites the variable at index, or appends when index is
// past the end.
func (s *QCService) SetVariable(ctx context.Context, index int, v VariableInput) (VariablesResult, error) {
	if err := s.validator.Validate(indexRequest{Index: index}); err != nil {
		return VariablesResult{}, err
	}
	if err := s.validator.Validate(v); err != nil {
		return VariablesResult{}, err
	}
	return s.variablesChanged(ctx, s.ledger.SetVariable(index, v.toDomain()))
}

// RemoveVariable drops the variable at index. An index past the end
// removes nothing.
func (s *QCService) RemoveVariable(ctx context.Context, index int) (VariablesResult, error) {
	if err := s.validator.Validate(indexRequest{Index: index}); err != nil {
		return VariablesResult{}, err
	}
	return s.variablesChanged(ctx, s.ledger.RemoveVariable(index))
}

func (s *QCService) variablesChanged(ctx context.Context, run *qc.Recompute) (VariablesResult, error) {
	vars := s.ledger.Variables()
	s.events.Emit(sse.NewQCVariablesUpdatedEvent(vars, run.ID()))

	res, err := s.wait(ctx, run)
	return VariablesResult{RecomputeResult: res, Variables: vars}, err
}

// SetEntry edits one cell and returns the stored value.
//
// The edit is not protected from a recompute that is still running; the
// run may overwrite it when it reaches the group's row.
func (s *QCService) SetEntry(_ context.Context, req EntryRequest) (string, error) {
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}

	key := domain.GroupKey(req.Group)
	stored := s.ledger.SetEntry(key, req.Variable, req.Value)

	s.metrics.EntryEdited()
	s.events.Emit(sse.NewQCEntryUpdatedEvent(key, req.Variable, stored))
	return stored, nil
}

// Entries returns one group's entries, empty when the group has none.
// Any key is accepted, including ones no row produces.
func (s *QCService) Entries(group string) map[string]string {
	return s.ledger.EntriesFor(domain.GroupKey(group))
}

// AllEntries returns every group's entries.
func (s *QCService) AllEntries() map[domain.GroupKey]map[string]string {
	return s.ledger.Snapshot()
}

// ExportCSV returns the merged sheet.
func (s *QCService) ExportCSV() string {
	return s.ledger.ExportCSV()
}

// State summarizes the ledger.
func (s *QCService) State() QCState {
	return QCState{
		Enabled:   s.ledger.Enabled(),
		Headers:   s.ledger.Headers(),
		Variables: s.ledger.Variables(),
		Rows:      len(s.ledger.Rows()),
		Groups:    len(s.ledger.Snapshot()),
	}
}

// LoadPreset reads a YAML preset and replaces the variable list with it.
func (s *QCService) LoadPreset(ctx context.Context, path string) (VariablesResult, error) {
	if path == "" {
		return VariablesResult{}, domainerrors.Validation("preset path is empty")
	}

	data, err := os.ReadFile(path) //#nosec G304 -- Preset path comes from operator config
	if err != nil {
		return VariablesResult{}, domainerrors.Wrapf(err, domainerrors.CodeNotFound, "read preset %s", path)
	}

	preset, err := ParsePreset(data)
	if err != nil {
		return VariablesResult{}, err
	}

	res, err := s.ReplaceVariables(ctx, preset.Variables)
	if err == nil {
		s.logger.Info("qc variable preset loaded", "path", path, "variables", len(preset.Variables))
	}
	return res, err
}

// ParsePreset decodes a preset document.
func ParsePreset(data []byte) (Preset, error) {
	var preset Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return Preset{}, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid preset yaml")
	}
	return preset, nil
}

// Running returns the number of recomputes still in flight.
func (s *QCService) Running() int {
	return s.ledger.Running()
}

// Idle waits for every running recompute.
func (s *QCService) Idle(ctx context.Context) error {
	if err := s.ledger.Idle(ctx); err != nil {
		return domainerrors.FromContext(err, "recompute still running")
	}
	return nil
}

func (s *QCService) wait(ctx context.Context, run *qc.Recompute) (RecomputeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.waitTimeout)
	defer cancel()

	stats, err := run.Wait(ctx)
	if err != nil {
		return RecomputeResult{RunID: run.ID()},
			domainerrors.FromContext(err, fmt.Sprintf("recompute %s still running", run.ID()))
	}
	return RecomputeResult{RunID: run.ID(), Stats: stats}, nil
}
