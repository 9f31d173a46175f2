package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// DefaultSettleDelay is the quiet period before a batch is delivered.
const DefaultSettleDelay = 500 * time.Millisecond

// Options configures the watcher.
type Options struct {
	// IgnorePatterns are filepath.Match patterns tested against the base name.
	// nil selects the defaults and turns IgnoreHidden on.
	IgnorePatterns []string
	// SettleDelay is how long the tree must stay quiet before a batch fires.
	SettleDelay  time.Duration
	IgnoreHidden bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{".DS_Store", "Thumbs.db", "*.tmp", "*.part", "*.crdownload"}
		o.IgnoreHidden = true
	}
}

// shouldIgnore tests path relative to root, so a hidden directory above
// the root does not hide the whole tree.
func (o *Options) shouldIgnore(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}

	if o.IgnoreHidden {
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if strings.HasPrefix(part, ".") && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}
