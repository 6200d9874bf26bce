package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldYear      = "year"
	FieldMonth     = "month"
	FieldLabel     = "label"
	FieldAttempt   = "attempt"
	FieldPage      = "page"
	FieldOffset    = "offset"
	FieldStatus    = "status_code"
	FieldDelay     = "delay"
	FieldDuration  = "duration_ms"
	FieldRecords   = "records"
	FieldWarnings  = "warnings"
	FieldBatchID   = "batch_id"
	FieldPath      = "path"
	FieldFormat    = "format"
	FieldRunID     = "run_id"
	FieldSheet     = "sheet"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentClover  = "clover"
	ComponentReport  = "report"
	ComponentExport  = "export"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentMetrics = "metrics"
	ComponentHTTP    = "http"
)

// Operations defines standard operation names
const (
	OpFetch     = "fetch"
	OpNormalize = "normalize"
	OpAggregate = "aggregate"
	OpRender    = "render"
	OpWrite     = "write"
	OpPublish   = "publish"
	OpRecord    = "record"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithMonth adds year and month fields
func (f LogFields) WithMonth(year, month int) LogFields {
	f[FieldYear] = year
	f[FieldMonth] = month
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
