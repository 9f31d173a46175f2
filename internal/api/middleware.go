package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/listenupapp/mediaqc-server/internal/http/response"
)

// EnvelopeVersion is sent as "v" in every JSON body.
const EnvelopeVersion = response.Version

// EnvelopeTransformer wraps huma response bodies in the shared envelope:
// {"v":1,"success":true,"data":...} or
// {"v":1,"success":false,"error":{"code":...,"message":...}}.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	code, _ := strconv.Atoi(status)

	switch body := v.(type) {
	case *APIError:
		return response.ErrorEnvelope{
			Version: EnvelopeVersion,
			Error: response.ErrorBody{
				Code:    body.Code,
				Message: body.Message,
				Details: body.Details,
			},
		}, nil
	case error:
		return response.ErrorEnvelope{
			Version: EnvelopeVersion,
			Error: response.ErrorBody{
				Code:    statusToCode(code),
				Message: body.Error(),
			},
		}, nil
	}

	return response.Envelope{
		Version: EnvelopeVersion,
		Success: code < http.StatusBadRequest,
		Data:    v,
	}, nil
}

// requestLogger logs one line per request once the response is written.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := s.logger.Debug
			if status >= http.StatusInternalServerError {
				level = s.logger.Error
			} else if r.Method != http.MethodGet {
				level = s.logger.Info
			}
			level("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// rateLimitMutations applies the keyed limiter to every request that can
// change state. Reads, the event stream and media are never limited.
func (s *Server) rateLimitMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		key := clientIP(r)
		if !s.limiter.Allow(key) {
			s.services.Metrics.RateLimited()
			s.logger.Warn("rate limit exceeded", "ip", key, "path", r.URL.Path)
			response.TooManyRequests(w, "Too many requests. Please try again later.", s.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the limiter key for r. RealIP has already replaced
// RemoteAddr with a forwarded address when one was present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
