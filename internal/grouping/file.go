package grouping

import "strings"

// RawFile is an ingested file as handed over by the UI shell or a directory scan.
type RawFile interface {
	// RelativePath is the slash-separated path below the picked root,
	// e.g. "study/S01/V1/front.mp4".
	RelativePath() string
	// Handle returns the display handle for the file. Ingest calls it once,
	// and only for files that pass the path and extension checks.
	Handle() string
}

// File is a RawFile whose handle was allocated up front.
type File struct {
	Path string
	Ref  string
}

// RelativePath implements RawFile.
func (f File) RelativePath() string { return f.Path }

// Handle implements RawFile.
func (f File) Handle() string { return f.Ref }

// allowedExtensions is matched as an exact, case-sensitive suffix.
//
//nolint:gochecknoglobals // Static allow-list
var allowedExtensions = []string{".mp4", ".jpeg", ".png"}

// IsAllowedFile reports whether name carries one of the admitted extensions.
func IsAllowedFile(name string) bool {
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// splitPath returns the last three path segments as subject, session and
// file name. ok is false when the path has fewer than three segments.
func splitPath(relativePath string) (subject, session, fileName string, ok bool) {
	parts := strings.Split(relativePath, "/")
	if len(parts) < 3 {
		return "", "", "", false
	}
	tail := parts[len(parts)-3:]
	return tail[0], tail[1], tail[2], true
}
