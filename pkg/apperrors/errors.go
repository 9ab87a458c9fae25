// Package apperrors is the ambient error type used by every layer outside
// the normalizer: config loading, credential bootstrap, upstream dispatch,
// signal handling. The normalizer itself never returns one of these; its
// failures are recorded as normalize.Error on the offending field instead,
// per the pipeline's no-abort contract.
package apperrors

import (
	"fmt"
	"runtime"
	"time"
)

// AppError is a standardized application error carrying enough context for
// structured logging without a caller having to re-derive it.
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Severity   Severity               `json:"severity"`
}

// Severity ranks how urgently an error needs attention.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Error codes, grouped by the ambient layer that raises them.
const (
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeConfigNotFound   = "CONFIG_NOT_FOUND"
	CodeConfigValidation = "CONFIG_VALIDATION_FAILED"

	CodeCredentialInvalid  = "CREDENTIAL_INVALID"
	CodeCredentialNotFound = "CREDENTIAL_NOT_FOUND"
	CodeCredentialGenerate = "CREDENTIAL_GENERATION_FAILED"

	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamRejected    = "UPSTREAM_REJECTED"
	CodeUpstreamTimeout     = "UPSTREAM_TIMEOUT"

	CodeIngestInvalidPayload = "INGEST_INVALID_PAYLOAD"
	CodeIngestRateLimited    = "INGEST_RATE_LIMITED"

	CodeResourceExhausted = "RESOURCE_EXHAUSTED"

	CodeSecurityUnauthorized = "SECURITY_UNAUTHORIZED"
	CodeSecurityForbidden    = "SECURITY_FORBIDDEN"

	CodeSystemShutdown = "SYSTEM_SHUTDOWN_FAILED"
	CodeSystemFailure  = "SYSTEM_FAILURE"
)

// New constructs an AppError, capturing the caller's file:line as a
// lightweight stack trace.
func New(code, component, operation, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	return &AppError{
		Code:       code,
		Message:    message,
		Component:  component,
		Operation:  operation,
		StackTrace: fmt.Sprintf("%s:%d", file, line),
		Metadata:   make(map[string]interface{}),
		Timestamp:  time.Now(),
		Severity:   SeverityMedium,
	}
}

// NewCritical constructs an AppError with SeverityCritical.
func NewCritical(code, component, operation, message string) *AppError {
	err := New(code, component, operation, message)
	err.Severity = SeverityCritical
	return err
}

// NewWithSeverity constructs an AppError with an explicit severity.
func NewWithSeverity(severity Severity, code, component, operation, message string) *AppError {
	err := New(code, component, operation, message)
	err.Severity = severity
	return err
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Wrap attaches cause as the underlying error.
func (e *AppError) Wrap(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithMetadata attaches a key/value pair for structured logging.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithSeverity overrides the severity level.
func (e *AppError) WithSeverity(severity Severity) *AppError {
	e.Severity = severity
	return e
}

// IsCritical reports whether the error is SeverityCritical.
func (e *AppError) IsCritical() bool {
	return e.Severity == SeverityCritical
}

// IsRecoverable reports whether a caller might reasonably retry.
func (e *AppError) IsRecoverable() bool {
	switch e.Severity {
	case SeverityCritical, SeverityHigh:
		return false
	default:
		return true
	}
}

// ToMap renders the error as a flat field set for structured logging.
func (e *AppError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code":      e.Code,
		"error_message":   e.Message,
		"error_component": e.Component,
		"error_operation": e.Operation,
		"error_severity":  string(e.Severity),
		"error_timestamp": e.Timestamp,
	}
	if e.StackTrace != "" {
		result["error_stack_trace"] = e.StackTrace
	}
	if e.Cause != nil {
		result["error_cause"] = e.Cause.Error()
	}
	for k, v := range e.Metadata {
		result[fmt.Sprintf("error_meta_%s", k)] = v
	}
	return result
}

// Convenience constructors for the layers that actually raise AppErrors in
// this agent: config, credentials, upstream dispatch, ingest, and the
// process supervisor.

func ConfigError(operation, message string) *AppError {
	return New(CodeConfigInvalid, "config", operation, message)
}

func CredentialError(operation, message string) *AppError {
	return New(CodeCredentialInvalid, "credentials", operation, message)
}

func UpstreamError(operation, message string) *AppError {
	return New(CodeUpstreamUnavailable, "upstream", operation, message)
}

func IngestError(operation, message string) *AppError {
	return New(CodeIngestInvalidPayload, "server", operation, message)
}

func ResourceError(operation, message string) *AppError {
	return New(CodeResourceExhausted, "resource", operation, message)
}

func SecurityError(operation, message string) *AppError {
	return NewCritical(CodeSecurityUnauthorized, "security", operation, message)
}

func SystemError(operation, message string) *AppError {
	return NewCritical(CodeSystemFailure, "controller", operation, message)
}

// IsAppError reports whether err is an *AppError.
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError type-asserts err to *AppError.
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}

// WrapError wraps a plain error into an AppError, passing through
// unchanged if it already is one.
func WrapError(err error, component, operation, message string) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return New("WRAPPED_ERROR", component, operation, message).Wrap(err)
}
