package media

import (
	"sync"

	domainerrors "github.com/listenupapp/mediaqc-server/internal/errors"
	"github.com/listenupapp/mediaqc-server/internal/id"
)

// RoutePrefix is where handles are served.
const RoutePrefix = "/media/"

// Registry maps opaque media IDs to absolute file paths.
//
// A path keeps its ID across rescans for as long as it is registered again
// before the next Prune, so clients holding a handle keep working.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]string
	byPath map[string]string
	marked map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]string),
		byPath: make(map[string]string),
		marked: make(map[string]struct{}),
	}
}

// Register returns the ID for absPath, allocating one if needed.
func (r *Registry) Register(absPath string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	mediaID, ok := r.byPath[absPath]
	if !ok {
		mediaID = id.MustGenerate(id.PrefixMedia)
		r.byPath[absPath] = mediaID
		r.byID[mediaID] = absPath
	}
	r.marked[mediaID] = struct{}{}
	return mediaID
}

// Handle returns the URL path clients use to fetch absPath.
func (r *Registry) Handle(absPath string) string {
	return RoutePrefix + r.Register(absPath)
}

// Resolve returns the file behind a media ID.
func (r *Registry) Resolve(mediaID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path, ok := r.byID[mediaID]
	if !ok {
		return "", domainerrors.NotFoundf("media %q not found", mediaID)
	}
	return path, nil
}

// Prune releases every ID not registered since the previous Prune and
// returns how many were released.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	released := 0
	for mediaID, path := range r.byID {
		if _, ok := r.marked[mediaID]; ok {
			continue
		}
		delete(r.byID, mediaID)
		delete(r.byPath, path)
		released++
	}
	clear(r.marked)
	return released
}

// Len returns the number of live IDs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
