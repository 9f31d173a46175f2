package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// startupTimeout bounds the startup import, preset and initial scan.
	startupTimeout = 2 * time.Minute
)
