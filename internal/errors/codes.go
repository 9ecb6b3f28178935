package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidRule     ErrorCode = "invalid_rule"
	ErrInvalidSchedule ErrorCode = "invalid_schedule"
	ErrReadRules       ErrorCode = "read_rules_failed"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Resource errors
	ErrResourceBusy      ErrorCode = "resource_busy"
	ErrResourceNotFound  ErrorCode = "resource_not_found"
	ErrResourceExhausted ErrorCode = "resource_exhausted"

	// Application errors
	ErrInitApp      ErrorCode = "init_app_failed"
	ErrMainLoop     ErrorCode = "main_loop_failed"
	ErrSampleGPU    ErrorCode = "sample_gpu_failed"
	ErrShutdownGPU  ErrorCode = "shutdown_gpu_failed"
	ErrEvaluateRule ErrorCode = "evaluate_rule_failed"

	// Operation errors
	ErrOperationFailed  ErrorCode = "operation_failed"
	ErrTimeout          ErrorCode = "operation_timeout"
	ErrInvalidOperation ErrorCode = "invalid_operation"

	// History errors
	ErrInitHistory  ErrorCode = "init_history_failed"
	ErrWriteHistory ErrorCode = "write_history_failed"
	ErrCloseHistory ErrorCode = "close_history_failed"

	// Telemetry errors
	ErrInitTelemetry ErrorCode = "init_telemetry_failed"
	ErrServeMetrics  ErrorCode = "serve_metrics_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrNotImplemented:    "Operation not implemented",
	ErrUnavailable:       "Service unavailable",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrInvalidConfig:     "Invalid configuration",
	ErrMissingConfig:     "Missing configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read configuration",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidRule:       "Invalid alert rule",
	ErrInvalidSchedule:   "Invalid schedule expression",
	ErrReadRules:         "Failed to read rules file",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrResourceBusy:      "Resource is busy",
	ErrResourceNotFound:  "Resource not found",
	ErrResourceExhausted: "Resource exhausted",
	ErrOperationFailed:   "Operation failed",
	ErrTimeout:           "Operation timed out",
	ErrInvalidOperation:  "Invalid operation",
	ErrInitApp:           "Failed to initialize application",
	ErrMainLoop:          "Error in main loop",
	ErrSampleGPU:         "Failed to sample GPU metrics",
	ErrShutdownGPU:       "Failed to shutdown GPU",
	ErrEvaluateRule:      "Failed to evaluate alert rule",
	ErrInitHistory:       "Failed to initialize history",
	ErrWriteHistory:      "Failed to write history",
	ErrCloseHistory:      "Failed to close history",
	ErrInitTelemetry:     "Failed to initialize telemetry",
	ErrServeMetrics:      "Failed to serve metrics",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
