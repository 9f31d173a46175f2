package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"media": s.checkMedia(),
		"qc":    s.checkQC(),
		"sse":   s.checkSSE(),
	}
	if s.limiter != nil {
		components["ratelimit"] = ComponentHealth{
			Status:  "healthy",
			Message: fmt.Sprintf("%d client(s) tracked", s.limiter.Len()),
		}
	}

	overall := "healthy"
	for _, c := range components {
		if c.Status == "unhealthy" {
			overall = "unhealthy"
			break
		}
		if c.Status == "degraded" {
			overall = "degraded"
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkMedia reports whether a media root is configured. Without one the
// server still works from client-supplied file lists.
func (s *Server) checkMedia() ComponentHealth {
	if s.services.Library == nil || s.services.Library.Root() == "" {
		return ComponentHealth{Status: "healthy", Message: "no media root, ingest only"}
	}
	root := s.services.Library.Root()
	return ComponentHealth{
		Status:  "healthy",
		Message: fmt.Sprintf("%s (%d media handle(s))", root, s.services.Library.Registry().Len()),
	}
}

// checkQC reports degraded while a recompute is still running.
func (s *Server) checkQC() ComponentHealth {
	if n := s.services.QC.Running(); n > 0 {
		return ComponentHealth{Status: "degraded", Message: fmt.Sprintf("%d recompute(s) in progress", n)}
	}
	return ComponentHealth{Status: "healthy"}
}

func (s *Server) checkSSE() ComponentHealth {
	if s.services.Events == nil {
		return ComponentHealth{Status: "unhealthy", Message: "event stream not initialized"}
	}
	return ComponentHealth{Status: "healthy"}
}
