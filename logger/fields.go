package logger

// Standard field names for consistent structured logging across Cardrail.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldJobID     = "job_id"
	FieldItemID    = "item_id"
	FieldCardID    = "card_id"
	FieldCompanyID = "company_id"

	// Components
	FieldComponent = "component"
	FieldKind      = "kind"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldHeartbeat  = "last_processed_at"

	// Errors
	FieldError  = "error"
	FieldReason = "reason"

	// Counts and sizes
	FieldCount     = "count"
	FieldBatchSize = "batch_size"
	FieldProcessed = "processed_items"
	FieldTotal     = "total_items"

	// Status
	FieldStatus = "status"
)
