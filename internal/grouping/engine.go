// Package grouping classifies ingested media files into subject/session
// groups and derives the sorted, selection-filtered views shown to reviewers.
package grouping

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/text/language"

	"github.com/listenupapp/mediaqc-server/internal/domain"
)

// Options configure an Engine.
type Options struct {
	// Locale drives the collation of subjects, sessions and file names.
	// Defaults to the root locale.
	Locale language.Tag
	// Mode is the initial grouping mode. Defaults to subject-session.
	Mode domain.GroupMode
}

// IngestStats summarizes one Ingest call.
type IngestStats struct {
	Admitted         int `json:"admitted"`
	SkippedShortPath int `json:"skipped_short_path"`
	SkippedExtension int `json:"skipped_extension"`
	Groups           int `json:"groups"`
	Subjects         int `json:"subjects"`
}

// Engine owns the subject/session index, the per-group file lists and the
// selection-driven projection built from them.
//
// Every change rebuilds derived state from scratch; nothing is patched
// incrementally. The mutex only makes the engine safe to share between
// request handlers.
type Engine struct {
	logger *slog.Logger
	locale language.Tag

	mu       sync.RWMutex
	subjects map[string][]string // subject -> unique sessions, first-seen order
	videos   map[domain.GroupKey][]domain.FileRecord
	selected map[string]struct{}
	mode     domain.GroupMode
	grouped  []domain.VideoGroup
}

// NewEngine creates an empty engine.
func NewEngine(logger *slog.Logger, opts Options) *Engine {
	if opts.Mode == "" {
		opts.Mode = domain.GroupBySubjectSession
	}
	return &Engine{
		logger:   logger,
		locale:   opts.Locale,
		subjects: make(map[string][]string),
		videos:   make(map[domain.GroupKey][]domain.FileRecord),
		selected: make(map[string]struct{}),
		mode:     opts.Mode,
		grouped:  []domain.VideoGroup{},
	}
}

// Ingest replaces the whole grouping with the given files.
//
// Each relative path must have at least three segments; the last three are
// read as subject, session and file name. Files with a shorter path or a
// name outside the extension allow-list are skipped without error.
func (e *Engine) Ingest(files []RawFile) IngestStats {
	subjects := make(map[string][]string)
	videos := make(map[domain.GroupKey][]domain.FileRecord)
	var stats IngestStats

	for _, f := range files {
		relPath := f.RelativePath()
		subject, session, fileName, ok := splitPath(relPath)
		if !ok {
			stats.SkippedShortPath++
			continue
		}
		if !IsAllowedFile(fileName) {
			stats.SkippedExtension++
			continue
		}

		if !slices.Contains(subjects[subject], session) {
			subjects[subject] = append(subjects[subject], session)
		}

		key := domain.NewGroupKey(subject, session)
		videos[key] = append(videos[key], domain.FileRecord{
			FileName: fileName,
			Path:     f.Handle(),
			FullPath: relPath,
		})
		stats.Admitted++
	}
	stats.Groups = len(videos)
	stats.Subjects = len(subjects)

	e.mu.Lock()
	e.subjects = subjects
	e.videos = videos
	e.rebuildLocked()
	e.mu.Unlock()

	e.logger.Info("files ingested",
		"admitted", stats.Admitted,
		"skipped_short_path", stats.SkippedShortPath,
		"skipped_extension", stats.SkippedExtension,
		"groups", stats.Groups,
	)
	return stats
}

// SortedView lists subjects in collation order, each with its sessions sorted.
// It is the canonical iteration order for every derived view.
func (e *Engine) SortedView() []domain.SubjectSessions {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sortedViewLocked()
}

func (e *Engine) sortedViewLocked() []domain.SubjectSessions {
	names := slices.Collect(maps.Keys(e.subjects))
	sortCollated(e.locale, names)

	view := make([]domain.SubjectSessions, 0, len(names))
	for _, subject := range names {
		sessions := slices.Clone(e.subjects[subject])
		sortCollated(e.locale, sessions)
		view = append(view, domain.SubjectSessions{Subject: subject, Sessions: sessions})
	}
	return view
}

// SetSelection replaces the selected file names and rebuilds the projection.
func (e *Engine) SetSelection(fileNames []string) {
	selected := make(map[string]struct{}, len(fileNames))
	for _, name := range fileNames {
		selected[name] = struct{}{}
	}

	e.mu.Lock()
	e.selected = selected
	e.rebuildLocked()
	e.mu.Unlock()
}

// Selection returns the selected file names in collation order.
func (e *Engine) Selection() []string {
	e.mu.RLock()
	names := slices.Collect(maps.Keys(e.selected))
	e.mu.RUnlock()

	sortCollated(e.locale, names)
	return names
}

// SetGroupMode switches the grouping mode and rebuilds the projection.
// An unknown mode is stored as given and yields an empty projection.
func (e *Engine) SetGroupMode(mode domain.GroupMode) {
	e.mu.Lock()
	e.mode = mode
	e.rebuildLocked()
	e.mu.Unlock()
}

// GroupMode returns the current grouping mode.
func (e *Engine) GroupMode() domain.GroupMode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// UniqueFileNames returns every distinct file name across all groups, sorted.
func (e *Engine) UniqueFileNames() []string {
	seen := make(map[string]struct{})

	e.mu.RLock()
	for _, records := range e.videos {
		for _, r := range records {
			seen[r.FileName] = struct{}{}
		}
	}
	e.mu.RUnlock()

	names := slices.Collect(maps.Keys(seen))
	sortCollated(e.locale, names)
	return names
}

// GroupedVideos returns the current projection in canonical order.
// Groups with no selected file are never present.
func (e *Engine) GroupedVideos() []domain.VideoGroup {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneGroups(e.grouped)
}

// Group returns one projection entry by key.
func (e *Engine) Group(key string) ([]domain.GroupedFile, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, g := range e.grouped {
		if g.Key == key {
			return slices.Clone(g.Files), true
		}
	}
	return nil, false
}

// Files returns the ingested files of one subject/session group, in
// ingestion order.
func (e *Engine) Files(key domain.GroupKey) ([]domain.FileRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	records, ok := e.videos[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(records), true
}

// GroupKeys lists every subject/session key in canonical order.
func (e *Engine) GroupKeys() []domain.GroupKey {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var keys []domain.GroupKey
	for _, s := range e.sortedViewLocked() {
		for _, session := range s.Sessions {
			keys = append(keys, domain.NewGroupKey(s.Subject, session))
		}
	}
	return keys
}

// rebuildLocked recomputes the projection: sorted view, then selection
// filter, then bucketing by mode. Caller holds e.mu for writing.
func (e *Engine) rebuildLocked() {
	grouped := []domain.VideoGroup{}

	for _, s := range e.sortedViewLocked() {
		switch e.mode {
		case domain.GroupBySubject:
			var files []domain.GroupedFile
			for _, session := range s.Sessions {
				files = e.appendSelected(files, s.Subject, session)
			}
			if len(files) > 0 {
				grouped = append(grouped, domain.VideoGroup{Key: s.Subject, Files: files})
			}
		case domain.GroupBySubjectSession:
			for _, session := range s.Sessions {
				files := e.appendSelected(nil, s.Subject, session)
				if len(files) > 0 {
					key := domain.NewGroupKey(s.Subject, session)
					grouped = append(grouped, domain.VideoGroup{Key: key.String(), Files: files})
				}
			}
		}
	}

	e.grouped = grouped
}

func (e *Engine) appendSelected(dst []domain.GroupedFile, subject, session string) []domain.GroupedFile {
	for _, r := range e.videos[domain.NewGroupKey(subject, session)] {
		if _, ok := e.selected[r.FileName]; !ok {
			continue
		}
		dst = append(dst, domain.GroupedFile{FileRecord: r, Subject: subject, Session: session})
	}
	return dst
}

func cloneGroups(groups []domain.VideoGroup) []domain.VideoGroup {
	out := make([]domain.VideoGroup, len(groups))
	for i, g := range groups {
		out[i] = domain.VideoGroup{Key: g.Key, Files: slices.Clone(g.Files)}
	}
	return out
}
