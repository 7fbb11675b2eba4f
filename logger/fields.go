package logger

// Standard field names for consistent structured logging.
// Use these constants instead of raw strings.
const (
	// Ingest runs
	FieldRunID  = "run_id"
	FieldAsOf   = "as_of"
	FieldSource = "source"

	// Claims
	FieldClaim  = "claim"
	FieldStatus = "status"

	// Counts
	FieldCount = "count"

	// Storage
	FieldDatabase = "db"

	// HTTP
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldDurationMS = "duration_ms"
	FieldAddress    = "address"
	FieldHTTPStatus = "http_status"

	// Errors
	FieldError = "error"
)
