// Package errors provides a lightweight structured error type (HubError)
// for category-based classification and retry semantics across the sync
// pipeline and CLI.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of an intra-hub error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors
	CategorySource    ErrorCategory = "source"    // source database unreachable
	CategoryWriteBack ErrorCategory = "writeback" // ID write-back to source failed

	// Pipeline and processing errors
	CategoryAllocation ErrorCategory = "allocation" // ID ledger integrity violation
	CategoryCache      ErrorCategory = "cache"      // persisted record unreadable
	CategoryRender     ErrorCategory = "render"     // block rendering failure
	CategorySite       ErrorCategory = "site"       // site artifact generation failure
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the cycle
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// HubError is a structured error with category, retryability, and context
type HubError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for HubError
type ContextFields map[string]any

// Error implements the error interface
func (e *HubError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *HubError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *HubError) WithContext(key string, value any) *HubError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new HubError
func New(category ErrorCategory, severity ErrorSeverity, message string) *HubError {
	return &HubError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new HubError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *HubError {
	return &HubError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// WrapRetryable creates a new retryable HubError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *HubError {
	return &HubError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if he, ok := err.(*HubError); ok {
		return he.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if he, ok := err.(*HubError); ok {
		return he.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a HubError
func GetCategory(err error) ErrorCategory {
	if he, ok := err.(*HubError); ok {
		return he.Category
	}
	return CategoryInternal
}

// SourceUnavailable creates a fatal, retryable-next-cycle source error.
// The cycle aborts before any mutation is applied.
func SourceUnavailable(err error, message string) *HubError {
	return WrapRetryable(err, CategorySource, SeverityFatal, message)
}

// WriteBackFailure creates a non-fatal write-back error. The local ledger
// entry is kept and the write-back is retried on the next cycle.
func WriteBackFailure(err error, sourceID string) *HubError {
	return WrapRetryable(err, CategoryWriteBack, SeverityWarning, "failed to write assigned ID back to source").
		WithContext("source_id", sourceID)
}

// AllocationConflict creates a fatal integrity violation that must never
// be silently resolved.
func AllocationConflict(message string) *HubError {
	return New(CategoryAllocation, SeverityFatal, message)
}

// CacheCorruption creates a warning-level cache error; the record is
// treated as absent and re-fetched.
func CacheCorruption(err error, sourceID string) *HubError {
	return Wrap(err, CategoryCache, SeverityWarning, "unreadable cache record").
		WithContext("source_id", sourceID)
}

// ValidationError creates a new validation error
func ValidationError(message string) *HubError {
	return &HubError{
		Category:  CategoryValidation,
		Severity:  SeverityWarning,
		Message:   message,
		Retryable: false,
	}
}
