package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/listenupapp/mediaqc-server/internal/http/response"
)

// handleServeMedia streams a scanned file by its /media handle. Range
// requests are supported so players can seek.
func (s *Server) handleServeMedia(w http.ResponseWriter, r *http.Request) {
	if s.services.Library == nil {
		response.NotFound(w, "no media root configured", s.logger)
		return
	}

	path, err := s.services.Library.Registry().Resolve(chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	w.Header().Set("Cache-Control", CacheMediaPublic)
	http.ServeFile(w, r, path)
}
