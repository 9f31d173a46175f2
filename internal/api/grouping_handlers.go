package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/mediaqc-server/internal/domain"
)

func (s *Server) registerGroupingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getGroupMode",
		Method:      http.MethodGet,
		Path:        "/api/v1/grouping/mode",
		Summary:     "Get grouping mode",
		Tags:        []string{"Grouping"},
	}, s.handleGetGroupMode)

	huma.Register(s.api, huma.Operation{
		OperationID: "setGroupMode",
		Method:      http.MethodPut,
		Path:        "/api/v1/grouping/mode",
		Summary:     "Set grouping mode",
		Description: "Switches between subject and subject-session grouping",
		Tags:        []string{"Grouping"},
	}, s.handleSetGroupMode)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSelection",
		Method:      http.MethodGet,
		Path:        "/api/v1/grouping/selection",
		Summary:     "Get selected file names",
		Tags:        []string{"Grouping"},
	}, s.handleGetSelection)

	huma.Register(s.api, huma.Operation{
		OperationID: "setSelection",
		Method:      http.MethodPut,
		Path:        "/api/v1/grouping/selection",
		Summary:     "Set selected file names",
		Description: "Replaces the set of file names shown in each group",
		Tags:        []string{"Grouping"},
	}, s.handleSetSelection)

	huma.Register(s.api, huma.Operation{
		OperationID: "listGroups",
		Method:      http.MethodGet,
		Path:        "/api/v1/grouping/groups",
		Summary:     "List groups",
		Description: "Returns the grouped view: selected files bucketed by the current mode, in collation order",
		Tags:        []string{"Grouping"},
	}, s.handleListGroups)
}

// === DTOs ===

// GroupModeBody carries a grouping mode.
type GroupModeBody struct {
	Mode string `json:"mode" enum:"subject,subject-session" doc:"Grouping mode"`
}

// GroupModeInput wraps a mode change for Huma.
type GroupModeInput struct {
	Body GroupModeBody
}

// GroupModeOutput wraps the mode for Huma.
type GroupModeOutput struct {
	Body GroupModeBody
}

// SelectionBody carries selected file names.
type SelectionBody struct {
	FileNames []string `json:"file_names" doc:"Selected file names"`
}

// SelectionInput wraps a selection change for Huma.
type SelectionInput struct {
	Body SelectionBody
}

// SelectionOutput wraps the selection for Huma.
type SelectionOutput struct {
	Body SelectionBody
}

// GroupsResponse is the grouped view.
type GroupsResponse struct {
	Mode   domain.GroupMode    `json:"mode" doc:"Mode the groups were built with"`
	Groups []domain.VideoGroup `json:"groups" doc:"Non-empty groups in display order"`
}

// GroupsOutput wraps the grouped view for Huma.
type GroupsOutput struct {
	Body GroupsResponse
}

// === Handlers ===

func (s *Server) handleGetGroupMode(_ context.Context, _ *struct{}) (*GroupModeOutput, error) {
	return &GroupModeOutput{Body: GroupModeBody{Mode: string(s.services.Grouping.Mode())}}, nil
}

func (s *Server) handleSetGroupMode(ctx context.Context, input *GroupModeInput) (*GroupModeOutput, error) {
	if err := s.services.Grouping.SetMode(ctx, input.Body.Mode); err != nil {
		return nil, err
	}
	return &GroupModeOutput{Body: GroupModeBody{Mode: string(s.services.Grouping.Mode())}}, nil
}

func (s *Server) handleGetSelection(_ context.Context, _ *struct{}) (*SelectionOutput, error) {
	return &SelectionOutput{Body: SelectionBody{FileNames: s.services.Grouping.Selection()}}, nil
}

func (s *Server) handleSetSelection(ctx context.Context, input *SelectionInput) (*SelectionOutput, error) {
	if err := s.services.Grouping.SetSelection(ctx, input.Body.FileNames); err != nil {
		return nil, err
	}
	return &SelectionOutput{Body: SelectionBody{FileNames: s.services.Grouping.Selection()}}, nil
}

func (s *Server) handleListGroups(_ context.Context, _ *struct{}) (*GroupsOutput, error) {
	return &GroupsOutput{Body: GroupsResponse{
		Mode:   s.services.Grouping.Mode(),
		Groups: s.services.Grouping.Groups(),
	}}, nil
}
