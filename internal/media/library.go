package media

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	domainerrors "github.com/listenupapp/mediaqc-server/internal/errors"
	"github.com/listenupapp/mediaqc-server/internal/grouping"
)

// Ingester receives a full file list. The grouping service implements it.
type Ingester interface {
	IngestFiles(files []grouping.RawFile) grouping.IngestStats
}

// RescanResult describes one completed rescan.
type RescanResult struct {
	Root     string               `json:"root"`
	Scanned  int                  `json:"scanned"`
	Released int                  `json:"released_handles"`
	Stats    grouping.IngestStats `json:"stats"`
	Duration time.Duration        `json:"duration"`
}

// Library ties a media root to the grouping engine. Concurrent rescans
// share a single walk.
type Library struct {
	logger   *slog.Logger
	root     string
	scanner  *Scanner
	registry *Registry
	ingester Ingester
	group    singleflight.Group
}

// NewLibrary creates a library for root. An empty root is allowed; Rescan
// then fails with UNAVAILABLE.
func NewLibrary(logger *slog.Logger, root string, registry *Registry, ingester Ingester) *Library {
	return &Library{
		logger:   logger,
		root:     root,
		scanner:  NewScanner(logger, registry),
		registry: registry,
		ingester: ingester,
	}
}

// Root returns the configured media root.
func (l *Library) Root() string {
	return l.root
}

// Registry returns the handle registry backing scanned files.
func (l *Library) Registry() *Registry {
	return l.registry
}

// Rescan walks the root and replaces the engine's files with the result.
// A caller whose ctx ends early gets ctx's error; the shared walk keeps
// running for the other callers.
func (l *Library) Rescan(ctx context.Context) (RescanResult, error) {
	if l.root == "" {
		return RescanResult{}, domainerrors.Unavailable("no media root configured")
	}

	ch := l.group.DoChan("rescan", func() (any, error) {
		return l.rescan(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return RescanResult{}, res.Err
		}
		return res.Val.(RescanResult), nil
	case <-ctx.Done():
		return RescanResult{}, domainerrors.FromContext(ctx.Err(), "rescan still running")
	}
}

func (l *Library) rescan(ctx context.Context) (RescanResult, error) {
	start := time.Now()

	files, err := l.scanner.Scan(ctx, l.root)
	if err != nil {
		return RescanResult{}, domainerrors.Wrapf(err, domainerrors.CodeUnavailable, "scan %s", l.root)
	}

	stats := l.ingester.IngestFiles(files)
	released := l.registry.Prune()

	res := RescanResult{
		Root:     l.root,
		Scanned:  len(files),
		Released: released,
		Stats:    stats,
		Duration: time.Since(start),
	}
	l.logger.Info("media rescanned",
		"root", l.root,
		"scanned", res.Scanned,
		"admitted", stats.Admitted,
		"released_handles", released,
		"duration", res.Duration,
	)
	return res, nil
}
