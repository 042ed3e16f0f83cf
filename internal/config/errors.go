package config

const (
	// Config errors
	ErrLoadConfigFmt         = "Failed to load config: %v"
	ErrWriteConfigContentFmt = "Failed to write config content: %v"

	// Storage errors
	ErrSelectBackendFmt = "Failed to select storage backend: %v"
)
