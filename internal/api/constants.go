package api

// API limits and constants.
const (
	// MaxCSVSize bounds the QC sheet accepted by PUT /api/v1/qc/csv (32 MB).
	MaxCSVSize = 32 << 20

	// ExportFileName is suggested to clients downloading the merged sheet.
	ExportFileName = "qc_export.csv"
)

// Cache-Control header values.
const (
	CacheNoStore     = "no-cache"
	CacheMediaPublic = "private, max-age=3600"
)
