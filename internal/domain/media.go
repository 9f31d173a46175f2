package domain

import "strings"

// GroupKeySeparator joins subject and session into a GroupKey.
const GroupKeySeparator = " / "

// GroupKey addresses one subject/session pair. It is the only key shared
// between the file grouping and the QC ledger: "<subject> / <session>".
type GroupKey string

// NewGroupKey builds the key for a subject/session pair.
func NewGroupKey(subject, session string) GroupKey {
	return GroupKey(subject + GroupKeySeparator + session)
}

// Split returns the subject and session of a key.
// Keys without a separator return the whole key as subject.
func (k GroupKey) Split() (subject, session string) {
	subject, session, _ = strings.Cut(string(k), GroupKeySeparator)
	return subject, session
}

func (k GroupKey) String() string {
	return string(k)
}

// FileRecord is one admitted media file.
// Path is an opaque handle allocated by whoever supplied the file (a blob URL,
// a /media/<id> route). It is stored and passed through, never interpreted.
type FileRecord struct {
	FileName string `json:"file_name"`
	Path     string `json:"path"`
	FullPath string `json:"full_path"`
}

// GroupedFile is a FileRecord placed in a display group.
type GroupedFile struct {
	FileRecord
	Subject string `json:"subject"`
	Session string `json:"session"`
}

// SubjectSessions is one row of the sorted subject listing.
type SubjectSessions struct {
	Subject  string   `json:"subject"`
	Sessions []string `json:"sessions"`
}

// VideoGroup is one entry of the grouped projection. Key is a subject in
// subject mode and a GroupKey in subject-session mode.
type VideoGroup struct {
	Key   string        `json:"key"`
	Files []GroupedFile `json:"files"`
}

// GroupMode selects how the projection buckets files.
type GroupMode string

const (
	// GroupBySubject merges all sessions of a subject into one group.
	GroupBySubject GroupMode = "subject"
	// GroupBySubjectSession keeps one group per subject/session pair.
	GroupBySubjectSession GroupMode = "subject-session"
)

// Valid reports whether m is a known mode.
func (m GroupMode) Valid() bool {
	return m == GroupBySubject || m == GroupBySubjectSession
}
