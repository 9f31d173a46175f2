package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/mediaqc-server/internal/domain"
	"github.com/listenupapp/mediaqc-server/internal/grouping"
	"github.com/listenupapp/mediaqc-server/internal/media"
	"github.com/listenupapp/mediaqc-server/internal/service"
)

func (s *Server) registerFileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "ingestFiles",
		Method:      http.MethodPost,
		Path:        "/api/v1/files",
		Summary:     "Ingest files",
		Description: "Replaces the ingested file set with a client-supplied list. Files with fewer than three path segments or an unsupported extension are skipped.",
		Tags:        []string{"Files"},
	}, s.handleIngestFiles)

	huma.Register(s.api, huma.Operation{
		OperationID: "rescanFiles",
		Method:      http.MethodPost,
		Path:        "/api/v1/files/rescan",
		Summary:     "Rescan media root",
		Description: "Walks the configured media root and replaces the ingested file set with what it finds",
		Tags:        []string{"Files"},
	}, s.handleRescanFiles)

	huma.Register(s.api, huma.Operation{
		OperationID: "listFileNames",
		Method:      http.MethodGet,
		Path:        "/api/v1/files/names",
		Summary:     "List file names",
		Description: "Returns every distinct file name across all groups, sorted",
		Tags:        []string{"Files"},
	}, s.handleListFileNames)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSubjects",
		Method:      http.MethodGet,
		Path:        "/api/v1/subjects",
		Summary:     "List subjects",
		Description: "Returns subjects with their sessions, both sorted",
		Tags:        []string{"Files"},
	}, s.handleListSubjects)
}

// === DTOs ===

// IngestFileRequest is one file in an ingest request.
type IngestFileRequest struct {
	RelativePath string `json:"relative_path" doc:"Path relative to the chosen directory, / separated"`
	Handle       string `json:"handle,omitempty" doc:"Opaque playable reference, returned untouched"`
}

// IngestFilesRequest is the request body for ingesting files.
type IngestFilesRequest struct {
	Files []IngestFileRequest `json:"files" doc:"Files to ingest"`
}

// IngestFilesInput wraps the ingest request for Huma.
type IngestFilesInput struct {
	Body IngestFilesRequest
}

// IngestStatsOutput wraps ingest counters for Huma.
type IngestStatsOutput struct {
	Body grouping.IngestStats
}

// RescanOutput wraps a rescan result for Huma.
type RescanOutput struct {
	Body media.RescanResult
}

// FileNamesResponse lists distinct file names.
type FileNamesResponse struct {
	FileNames []string `json:"file_names" doc:"Distinct file names in collation order"`
}

// FileNamesOutput wraps the file name list for Huma.
type FileNamesOutput struct {
	Body FileNamesResponse
}

// SubjectsResponse lists subjects and sessions.
type SubjectsResponse struct {
	Subjects []domain.SubjectSessions `json:"subjects" doc:"Subjects with sorted sessions"`
}

// SubjectsOutput wraps the subject listing for Huma.
type SubjectsOutput struct {
	Body SubjectsResponse
}

// === Handlers ===

func (s *Server) handleIngestFiles(ctx context.Context, input *IngestFilesInput) (*IngestStatsOutput, error) {
	req := service.IngestRequest{Files: make([]service.IngestFile, len(input.Body.Files))}
	for i, f := range input.Body.Files {
		req.Files[i] = service.IngestFile{RelativePath: f.RelativePath, Handle: f.Handle}
	}

	stats, err := s.services.Grouping.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}
	return &IngestStatsOutput{Body: stats}, nil
}

func (s *Server) handleRescanFiles(ctx context.Context, _ *struct{}) (*RescanOutput, error) {
	result, err := s.services.Library.Rescan(ctx)
	s.services.Metrics.ObserveRescan(err)
	if err != nil {
		return nil, err
	}
	return &RescanOutput{Body: result}, nil
}

func (s *Server) handleListFileNames(_ context.Context, _ *struct{}) (*FileNamesOutput, error) {
	return &FileNamesOutput{Body: FileNamesResponse{FileNames: s.services.Grouping.FileNames()}}, nil
}

func (s *Server) handleListSubjects(_ context.Context, _ *struct{}) (*SubjectsOutput, error) {
	return &SubjectsOutput{Body: SubjectsResponse{Subjects: s.services.Grouping.Subjects()}}, nil
}
