package api

import (
	"github.com/listenupapp/mediaqc-server/internal/media"
	"github.com/listenupapp/mediaqc-server/internal/metrics"
	"github.com/listenupapp/mediaqc-server/internal/service"
	"github.com/listenupapp/mediaqc-server/internal/sse"
)

// Services groups everything the handlers call into.
type Services struct {
	Grouping *service.GroupingService
	QC       *service.QCService
	Library  *media.Library // Scans MEDIA_ROOT and resolves /media handles
	Events   *sse.Manager
	Metrics  *metrics.Metrics
}
