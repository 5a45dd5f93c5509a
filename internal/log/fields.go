package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldTraceID      = "trace_id"
	FieldChatID       = "chat_id"
	FieldShift        = "shift"
	FieldBusinessDate = "business_date"
	FieldCurrency     = "currency"
	FieldAmount       = "amount"
	FieldError        = "error"
	FieldDurationMS   = "duration_ms"
)
