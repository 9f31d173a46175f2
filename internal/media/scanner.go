// Package media discovers media files below a root directory and hands
// them to the grouping engine with servable handles.
package media

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/listenupapp/mediaqc-server/internal/grouping"
)

// Scanner walks a directory tree and lists its files.
type Scanner struct {
	logger   *slog.Logger
	registry *Registry
}

// NewScanner creates a scanner whose files register with registry.
func NewScanner(logger *slog.Logger, registry *Registry) *Scanner {
	return &Scanner{logger: logger, registry: registry}
}

// scannedFile defers handle allocation until the engine admits the file.
type scannedFile struct {
	rel      string
	abs      string
	registry *Registry
}

func (f scannedFile) RelativePath() string { return f.rel }

func (f scannedFile) Handle() string { return f.registry.Handle(f.abs) }

// Scan lists every non-hidden file below root. Relative paths use "/" and
// include the root's own name as the first segment, the way a browser
// directory picker reports them. Unreadable entries are logged and
// skipped.
func (s *Scanner) Scan(ctx context.Context, root string) ([]grouping.RawFile, error) {
	root = filepath.Clean(root)
	base := filepath.Base(root)

	var files []grouping.RawFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Warn("walk error", "path", path, "error", err)
			return nil
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			s.logger.Warn("failed to compute relative path", "path", path, "error", err)
			return nil
		}

		files = append(files, scannedFile{
			rel:      base + "/" + filepath.ToSlash(rel),
			abs:      path,
			registry: s.registry,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("media scan complete", "root", root, "files", len(files))
	return files, nil
}
