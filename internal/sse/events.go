// Package sse streams grouping and QC changes to connected review clients.
package sse

import (
	"time"

	"github.com/listenupapp/mediaqc-server/internal/domain"
	"github.com/listenupapp/mediaqc-server/internal/grouping"
	"github.com/listenupapp/mediaqc-server/internal/qc"
)

// EventType names an event on the stream.
type EventType string

const (
	EventFilesIngested   EventType = "files.ingested"
	EventGroupingUpdated EventType = "grouping.updated"

	EventQCImported          EventType = "qc.imported"
	EventQCToggled           EventType = "qc.toggled"
	EventQCVariablesUpdated  EventType = "qc.variables_updated"
	EventQCEntryUpdated      EventType = "qc.entry_updated"
	EventQCRecomputeStarted  EventType = "qc.recompute_started"
	EventQCRecomputeProgress EventType = "qc.recompute_progress"
	EventQCRecomputeComplete EventType = "qc.recompute_completed"

	EventHeartbeat EventType = "heartbeat"
)

// Event is one message on the stream.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Timestamp: time.Now(), Data: data}
}

// FilesIngestedData reports the outcome of an ingest.
type FilesIngestedData struct {
	Source string               `json:"source"`
	Stats  grouping.IngestStats `json:"stats"`
}

// NewFilesIngestedEvent creates a files.ingested event.
func NewFilesIngestedEvent(source string, stats grouping.IngestStats) Event {
	return newEvent(EventFilesIngested, FilesIngestedData{Source: source, Stats: stats})
}

// GroupingUpdatedData summarizes the projection after a change. Clients
// refetch the groups they display.
type GroupingUpdatedData struct {
	Mode      domain.GroupMode `json:"mode"`
	Groups    int              `json:"groups"`
	Selected  int              `json:"selected"`
	GroupKeys []string         `json:"group_keys"`
}

// NewGroupingUpdatedEvent creates a grouping.updated event.
func NewGroupingUpdatedEvent(mode domain.GroupMode, groups []domain.VideoGroup, selected int) Event {
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	return newEvent(EventGroupingUpdated, GroupingUpdatedData{
		Mode:      mode,
		Groups:    len(groups),
		Selected:  selected,
		GroupKeys: keys,
	})
}

// QCImportedData describes a freshly imported sheet.
type QCImportedData struct {
	Headers []string `json:"headers"`
	Rows    int      `json:"rows"`
	RunID   string   `json:"run_id"`
}

// NewQCImportedEvent creates a qc.imported event.
func NewQCImportedEvent(headers []string, rows int, runID string) Event {
	return newEvent(EventQCImported, QCImportedData{Headers: headers, Rows: rows, RunID: runID})
}

// QCToggledData carries the new enabled flag.
type QCToggledData struct {
	Enabled bool   `json:"enabled"`
	RunID   string `json:"run_id,omitempty"`
}

// NewQCToggledEvent creates a qc.toggled event.
func NewQCToggledEvent(enabled bool, runID string) Event {
	return newEvent(EventQCToggled, QCToggledData{Enabled: enabled, RunID: runID})
}

// QCVariablesData carries the full variable list after a change.
type QCVariablesData struct {
	Variables []domain.QCVariable `json:"variables"`
	RunID     string              `json:"run_id"`
}

// NewQCVariablesUpdatedEvent creates a qc.variables_updated event.
func NewQCVariablesUpdatedEvent(vars []domain.QCVariable, runID string) Event {
	return newEvent(EventQCVariablesUpdated, QCVariablesData{Variables: vars, RunID: runID})
}

// QCEntryData is a single edited cell.
type QCEntryData struct {
	Group    string `json:"group"`
	Variable string `json:"variable"`
	Value    string `json:"value"`
}

// NewQCEntryUpdatedEvent creates a qc.entry_updated event.
func NewQCEntryUpdatedEvent(group domain.GroupKey, variable, value string) Event {
	return newEvent(EventQCEntryUpdated, QCEntryData{Group: group.String(), Variable: variable, Value: value})
}

// QCRecomputeData reports recompute progress.
type QCRecomputeData struct {
	qc.RecomputeInfo
	Processed int                `json:"processed,omitempty"`
	Stats     *qc.RecomputeStats `json:"stats,omitempty"`
}

// NewQCRecomputeStartedEvent creates a qc.recompute_started event.
func NewQCRecomputeStartedEvent(info qc.RecomputeInfo) Event {
	return newEvent(EventQCRecomputeStarted, QCRecomputeData{RecomputeInfo: info})
}

// NewQCRecomputeProgressEvent creates a qc.recompute_progress event.
func NewQCRecomputeProgressEvent(info qc.RecomputeInfo, processed int) Event {
	return newEvent(EventQCRecomputeProgress, QCRecomputeData{RecomputeInfo: info, Processed: processed})
}

// NewQCRecomputeCompletedEvent creates a qc.recompute_completed event.
func NewQCRecomputeCompletedEvent(info qc.RecomputeInfo, stats qc.RecomputeStats) Event {
	return newEvent(EventQCRecomputeComplete, QCRecomputeData{
		RecomputeInfo: info,
		Processed:     info.Total,
		Stats:         &stats,
	})
}

// HeartbeatData keeps idle connections open through proxies.
type HeartbeatData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{Type: EventHeartbeat, Timestamp: now, Data: HeartbeatData{ServerTime: now}}
}
