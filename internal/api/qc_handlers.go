package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/mediaqc-server/internal/service"
)

func (s *Server) registerQCRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getQCState",
		Method:      http.MethodGet,
		Path:        "/api/v1/qc",
		Summary:     "Get QC state",
		Description: "Returns the enabled flag, imported headers, variables and row count",
		Tags:        []string{"QC"},
	}, s.handleGetQCState)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleQC",
		Method:      http.MethodPost,
		Path:        "/api/v1/qc/toggle",
		Summary:     "Toggle QC",
		Description: "Flips quality control on or off. Switching on recomputes every entry from the sheet.",
		Tags:        []string{"QC"},
	}, s.handleToggleQC)

	huma.Register(s.api, huma.Operation{
		OperationID:  "importQCSheet",
		Method:       http.MethodPut,
		Path:         "/api/v1/qc/csv",
		Summary:      "Import QC sheet",
		Description:  "Replaces the sheet with a comma separated text body. The first line is the header row.",
		Tags:         []string{"QC"},
		MaxBodyBytes: MaxCSVSize,
	}, s.handleImportQCSheet)

	huma.Register(s.api, huma.Operation{
		OperationID: "exportQCSheet",
		Method:      http.MethodGet,
		Path:        "/api/v1/qc/csv",
		Summary:     "Export QC sheet",
		Description: "Returns the imported sheet with edited entries merged in",
		Tags:        []string{"QC"},
	}, s.handleExportQCSheet)

	huma.Register(s.api, huma.Operation{
		OperationID: "replaceQCVariables",
		Method:      http.MethodPut,
		Path:        "/api/v1/qc/variables",
		Summary:     "Replace QC variables",
		Tags:        []string{"QC"},
	}, s.handleReplaceQCVariables)

	huma.Register(s.api, huma.Operation{
		OperationID: "addQCVariable",
		Method:      http.MethodPost,
		Path:        "/api/v1/qc/variables",
		Summary:     "Add QC variable",
		Tags:        []string{"QC"},
	}, s.handleAddQCVariable)

	huma.Register(s.api, huma.Operation{
		OperationID: "setQCVariable",
		Method:      http.MethodPut,
		Path:        "/api/v1/qc/variables/{index}",
		Summary:     "Set QC variable",
		Description: "Overwrites the variable at index. An index past the end appends.",
		Tags:        []string{"QC"},
	}, s.handleSetQCVariable)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeQCVariable",
		Method:      http.MethodDelete,
		Path:        "/api/v1/qc/variables/{index}",
		Summary:     "Remove QC variable",
		Description: "Removes the variable at index and its entries. An index past the end removes nothing.",
		Tags:        []string{"QC"},
	}, s.handleRemoveQCVariable)

	huma.Register(s.api, huma.Operation{
		OperationID: "getQCEntries",
		Method:      http.MethodGet,
		Path:        "/api/v1/qc/entries",
		Summary:     "Get QC entries",
		Description: "Returns the entries of one group, or of every group when no group is given",
		Tags:        []string{"QC"},
	}, s.handleGetQCEntries)

	huma.Register(s.api, huma.Operation{
		OperationID: "setQCEntry",
		Method:      http.MethodPut,
		Path:        "/api/v1/qc/entries",
		Summary:     "Set QC entry",
		Description: "Edits one cell. Pass-fail values are normalized to pass, fail or empty.",
		Tags:        []string{"QC"},
	}, s.handleSetQCEntry)
}

// === DTOs ===

// QCStateOutput wraps the ledger summary for Huma.
type QCStateOutput struct {
	Body service.QCState
}

// ToggleOutput wraps a toggle result for Huma.
type ToggleOutput struct {
	Body service.ToggleResult
}

// ImportSheetInput carries a raw CSV body.
type ImportSheetInput struct {
	RawBody []byte `contentType:"text/csv"`
}

// ImportSheetOutput wraps an import result for Huma.
type ImportSheetOutput struct {
	Body service.ImportResult
}

// ExportSheetOutput is the merged sheet as a file download.
type ExportSheetOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	CacheControl       string `header:"Cache-Control"`
	Body               []byte
}

// VariableBody is one QC variable.
type VariableBody struct {
	Name string `json:"name" maxLength:"256" doc:"Column name in the sheet; blank leaves the variable inactive"`
	Type string `json:"type" maxLength:"64" doc:"Variable type, e.g. pass-fail"`
}

func (v VariableBody) toInput() service.VariableInput {
	return service.VariableInput{Name: v.Name, Type: v.Type}
}

// ReplaceVariablesBody carries a whole variable list.
type ReplaceVariablesBody struct {
	Variables []VariableBody `json:"variables" doc:"Variables in display order"`
}

// ReplaceVariablesInput wraps a variable list for Huma.
type ReplaceVariablesInput struct {
	Body ReplaceVariablesBody
}

// AddVariableInput wraps a new variable for Huma.
type AddVariableInput struct {
	Body VariableBody
}

// SetVariableInput addresses one variable slot.
type SetVariableInput struct {
	Index int `path:"index" doc:"Zero-based variable position"`
	Body  VariableBody
}

// RemoveVariableInput addresses one variable slot.
type RemoveVariableInput struct {
	Index int `path:"index" doc:"Zero-based variable position"`
}

// VariablesOutput wraps the variable list after a change.
type VariablesOutput struct {
	Body service.VariablesResult
}

// GetEntriesInput selects a group.
type GetEntriesInput struct {
	Group string `query:"group" doc:"Group key \"<subject> / <session>\"; empty returns every group"`
}

// EntriesResponse carries QC entries.
type EntriesResponse struct {
	Group   string                       `json:"group,omitempty" doc:"Requested group"`
	Entries map[string]string            `json:"entries,omitempty" doc:"Variable name to value for the group"`
	Groups  map[string]map[string]string `json:"groups,omitempty" doc:"Entries of every group"`
}

// EntriesOutput wraps entries for Huma.
type EntriesOutput struct {
	Body EntriesResponse
}

// SetEntryBody edits one cell.
type SetEntryBody struct {
	Group    string `json:"group" doc:"Group key \"<subject> / <session>\""`
	Variable string `json:"variable" doc:"Variable name"`
	Value    string `json:"value" doc:"Raw value; pass-fail variables are normalized"`
}

// SetEntryInput wraps a cell edit for Huma.
type SetEntryInput struct {
	Body SetEntryBody
}

// SetEntryOutput returns the stored cell.
type SetEntryOutput struct {
	Body SetEntryBody
}

// === Handlers ===

func (s *Server) handleGetQCState(_ context.Context, _ *struct{}) (*QCStateOutput, error) {
	return &QCStateOutput{Body: s.services.QC.State()}, nil
}

func (s *Server) handleToggleQC(ctx context.Context, _ *struct{}) (*ToggleOutput, error) {
	res, err := s.services.QC.Toggle(ctx)
	if err != nil {
		return nil, err
	}
	return &ToggleOutput{Body: res}, nil
}

func (s *Server) handleImportQCSheet(ctx context.Context, input *ImportSheetInput) (*ImportSheetOutput, error) {
	res, err := s.services.QC.ImportCSV(ctx, string(input.RawBody))
	if err != nil {
		return nil, err
	}
	return &ImportSheetOutput{Body: res}, nil
}

func (s *Server) handleExportQCSheet(_ context.Context, _ *struct{}) (*ExportSheetOutput, error) {
	return &ExportSheetOutput{
		ContentType:        "text/csv; charset=utf-8",
		ContentDisposition: `attachment; filename="` + ExportFileName + `"`,
		CacheControl:       CacheNoStore,
		Body:               []byte(s.services.QC.ExportCSV()),
	}, nil
}

func (s *Server) handleReplaceQCVariables(ctx context.Context, input *ReplaceVariablesInput) (*VariablesOutput, error) {
	vars := make([]service.VariableInput, len(input.Body.Variables))
	for i, v := range input.Body.Variables {
		vars[i] = v.toInput()
	}

	res, err := s.services.QC.ReplaceVariables(ctx, vars)
	if err != nil {
		return nil, err
	}
	return &VariablesOutput{Body: res}, nil
}

func (s *Server) handleAddQCVariable(ctx context.Context, input *AddVariableInput) (*VariablesOutput, error) {
	res, err := s.services.QC.AddVariable(ctx, input.Body.toInput())
	if err != nil {
		return nil, err
	}
	return &VariablesOutput{Body: res}, nil
}

func (s *Server) handleSetQCVariable(ctx context.Context, input *SetVariableInput) (*VariablesOutput, error) {
	res, err := s.services.QC.SetVariable(ctx, input.Index, input.Body.toInput())
	if err != nil {
		return nil, err
	}
	return &VariablesOutput{Body: res}, nil
}

func (s *Server) handleRemoveQCVariable(ctx context.Context, input *RemoveVariableInput) (*VariablesOutput, error) {
	res, err := s.services.QC.RemoveVariable(ctx, input.Index)
	if err != nil {
		return nil, err
	}
	return &VariablesOutput{Body: res}, nil
}

func (s *Server) handleGetQCEntries(_ context.Context, input *GetEntriesInput) (*EntriesOutput, error) {
	if input.Group == "" {
		all := s.services.QC.AllEntries()
		groups := make(map[string]map[string]string, len(all))
		for key, entries := range all {
			groups[key.String()] = entries
		}
		return &EntriesOutput{Body: EntriesResponse{Groups: groups}}, nil
	}

	entries := s.services.QC.Entries(input.Group)
	return &EntriesOutput{Body: EntriesResponse{Group: input.Group, Entries: entries}}, nil
}

func (s *Server) handleSetQCEntry(ctx context.Context, input *SetEntryInput) (*SetEntryOutput, error) {
	stored, err := s.services.QC.SetEntry(ctx, service.EntryRequest{
		Group:    input.Body.Group,
		Variable: input.Body.Variable,
		Value:    input.Body.Value,
	})
	if err != nil {
		return nil, err
	}
	return &SetEntryOutput{Body: SetEntryBody{
		Group:    input.Body.Group,
		Variable: input.Body.Variable,
		Value:    stored,
	}}, nil
}
