package service

import (
	"context"
	"log/slog"

	"github.com/listenupapp/mediaqc-server/internal/domain"
	domainerrors "github.com/listenupapp/mediaqc-server/internal/errors"
	"github.com/listenupapp/mediaqc-server/internal/grouping"
	"github.com/listenupapp/mediaqc-server/internal/metrics"
	"github.com/listenupapp/mediaqc-server/internal/sse"
	"github.com/listenupapp/mediaqc-server/internal/validation"
)

// Ingest sources reported in files.ingested events.
const (
	SourceUpload = "upload"
	SourceScan   = "scan"
)

// IngestFile is one client-supplied file.
type IngestFile struct {
	RelativePath string `json:"relative_path" validate:"required"`
	// Handle is stored and returned untouched, typically a blob URL.
	Handle string `json:"handle"`
}

// IngestRequest replaces the grouping with a new file list.
type IngestRequest struct {
	Files []IngestFile `json:"files" validate:"dive"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required,groupmode"`
}

type selectionRequest struct {
	FileNames []string `json:"file_names" validate:"dive,required"`
}

// GroupingService fronts the grouping engine for the API and the media
// library: it validates requests, records metrics and announces changes.
type GroupingService struct {
	engine    *grouping.Engine
	events    *sse.Manager
	metrics   *metrics.Metrics
	validator *validation.Validator
	logger    *slog.Logger
}

// NewGroupingService creates a new grouping service.
func NewGroupingService(
	engine *grouping.Engine,
	events *sse.Manager,
	m *metrics.Metrics,
	validator *validation.Validator,
	logger *slog.Logger,
) *GroupingService {
	return &GroupingService{
		engine:    engine,
		events:    events,
		metrics:   m,
		validator: validator,
		logger:    logger,
	}
}

// Ingest replaces the grouping with client-supplied files.
func (s *GroupingService) Ingest(_ context.Context, req IngestRequest) (grouping.IngestStats, error) {
	if err := s.validator.Validate(req); err != nil {
		return grouping.IngestStats{}, err
	}

	files := make([]grouping.RawFile, len(req.Files))
	for i, f := range req.Files {
		files[i] = grouping.File{Path: f.RelativePath, Ref: f.Handle}
	}
	return s.ingest(SourceUpload, files), nil
}

// IngestFiles replaces the grouping with scanned files.
func (s *GroupingService) IngestFiles(files []grouping.RawFile) grouping.IngestStats {
	return s.ingest(SourceScan, files)
}

func (s *GroupingService) ingest(source string, files []grouping.RawFile) grouping.IngestStats {
	stats := s.engine.Ingest(files)

	s.metrics.ObserveIngest(stats)
	s.events.Emit(sse.NewFilesIngestedEvent(source, stats))
	s.announce()
	return stats
}

// SetMode switches the grouping mode.
func (s *GroupingService) SetMode(_ context.Context, mode string) error {
	if err := s.validator.Validate(modeRequest{Mode: mode}); err != nil {
		return err
	}
	s.engine.SetGroupMode(domain.GroupMode(mode))
	s.announce()
	return nil
}

// Mode returns the current grouping mode.
func (s *GroupingService) Mode() domain.GroupMode {
	return s.engine.GroupMode()
}

// SetSelection replaces the selected file names.
func (s *GroupingService) SetSelection(_ context.Context, fileNames []string) error {
	if err := s.validator.Validate(selectionRequest{FileNames: fileNames}); err != nil {
		return err
	}
	s.engine.SetSelection(fileNames)
	s.announce()
	return nil
}

// Selection returns the selected file names, sorted.
func (s *GroupingService) Selection() []string {
	return s.engine.Selection()
}

// Subjects returns the sorted subject/session listing.
func (s *GroupingService) Subjects() []domain.SubjectSessions {
	return s.engine.SortedView()
}

// FileNames returns every distinct file name, sorted.
func (s *GroupingService) FileNames() []string {
	return s.engine.UniqueFileNames()
}

// Groups returns the current projection.
func (s *GroupingService) Groups() []domain.VideoGroup {
	return s.engine.GroupedVideos()
}

// Group returns one entry of the projection.
func (s *GroupingService) Group(key string) ([]domain.GroupedFile, error) {
	files, ok := s.engine.Group(key)
	if !ok {
		return nil, domainerrors.NotFoundf("group %q is not in the current view", key)
	}
	return files, nil
}

// GroupKeys lists every ingested subject/session key.
func (s *GroupingService) GroupKeys() []domain.GroupKey {
	return s.engine.GroupKeys()
}

func (s *GroupingService) announce() {
	groups := s.engine.GroupedVideos()
	selected := len(s.engine.Selection())

	s.metrics.SetSelected(selected)
	s.events.Emit(sse.NewGroupingUpdatedEvent(s.engine.GroupMode(), groups, selected))
	s.logger.Debug("grouping updated", "mode", s.engine.GroupMode(), "groups", len(groups))
}
