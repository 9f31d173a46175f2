package watcher

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType is the kind of change seen on a path.
type EventType int

const (
	EventCreated EventType = iota
	EventWritten
	EventRemoved
	EventRenamed
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventWritten:
		return "written"
	case EventRemoved:
		return "removed"
	case EventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is one change below the watched root.
type Event struct {
	Type EventType
	Path string
}

// Batch is every change seen between two quiet periods.
// Repeated changes to one path keep only the latest event.
type Batch struct {
	Events []Event
	First  time.Time
	Last   time.Time
}

func eventType(op fsnotify.Op) (EventType, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return EventRemoved, true
	case op.Has(fsnotify.Rename):
		return EventRenamed, true
	case op.Has(fsnotify.Create):
		return EventCreated, true
	case op.Has(fsnotify.Write):
		return EventWritten, true
	default:
		// Chmod alone does not change what a scan sees.
		return 0, false
	}
}
