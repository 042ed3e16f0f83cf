package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HCacheControl = "Cache-Control"

	CTypeJSON        = "application/json"
	CTypeEventStream = "text/event-stream"
)

const (
	HTTPErrDraftNotFound = "Draft not found"
	HTTPErrInvalidBody   = "Invalid request body"
)
