// Package errors defines the structured error taxonomy for the matching
// engines. Every error carries a category and code so callers can map
// failures onto HTTP statuses or CLI exit codes without string matching.
//
// An expected non-match is NOT represented here: rule and pattern
// evaluation return it as data (MatchResult with Matched=false).
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of engine errors
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryStore      ErrorCategory = "store"
	CategoryAllocation ErrorCategory = "allocation"
	CategoryMatching   ErrorCategory = "matching"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Validation errors
	CodeInvalidAmount    ErrorCode = "invalid_amount"
	CodeInvalidDirection ErrorCode = "invalid_direction"
	CodeMissingField     ErrorCode = "missing_field"
	CodeInvalidRule      ErrorCode = "invalid_rule"
	CodeInvalidPattern   ErrorCode = "invalid_pattern"
	CodeInvalidFeedback  ErrorCode = "invalid_feedback"

	// Store errors
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	CodeNotFound         ErrorCode = "not_found"
	CodeUpdateConflict   ErrorCode = "update_conflict"

	// Allocation errors
	CodeSplitMismatch ErrorCode = "split_mismatch"

	// Matching errors
	CodeEvaluationFailed ErrorCode = "evaluation_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// EngineError is the base error type for all matching engine errors
type EngineError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *EngineError) GetExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryStore:
		return 3
	case CategoryAllocation, CategoryMatching:
		return 4
	case CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *EngineError) WithSuggestion(suggestion string) *EngineError {
	e.Suggestion = suggestion
	return e
}

// New creates a new EngineError
func New(category ErrorCategory, code ErrorCode, message string) *EngineError {
	return &EngineError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with EngineError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *EngineError {
	if err == nil {
		return nil
	}

	return &EngineError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}) *EngineError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g., '12.34')"
	case CodeInvalidDirection:
		message = fmt.Sprintf("invalid direction in field '%s': %v", field, value)
		suggestion = "direction must be 'debit' or 'credit'"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeInvalidRule:
		message = fmt.Sprintf("invalid rule definition in '%s': %v", field, value)
		suggestion = "check the rule's conditions and actions"
	case CodeInvalidPattern:
		message = fmt.Sprintf("invalid pattern definition in '%s': %v", field, value)
		suggestion = "check the pattern type and description pattern"
	case CodeInvalidFeedback:
		message = fmt.Sprintf("invalid feedback in field '%s': %v", field, value)
		suggestion = "feedback action must be accepted, modified or rejected"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return New(CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// StoreError creates a store-related error
func StoreError(code ErrorCode, operation string, err error) *EngineError {
	var message string
	var suggestion string

	switch code {
	case CodeStoreUnavailable:
		message = fmt.Sprintf("store unavailable during %s", operation)
		suggestion = "check the database connection and try again"
	case CodeNotFound:
		message = fmt.Sprintf("record not found during %s", operation)
		suggestion = "verify the identifier and tenant scope"
	case CodeUpdateConflict:
		message = fmt.Sprintf("concurrent update conflict during %s", operation)
		suggestion = "the operation was retried and still conflicted; try again"
	default:
		message = fmt.Sprintf("store error during %s", operation)
		suggestion = "check the store and try again"
	}

	var result *EngineError
	if err != nil {
		result = Wrap(err, CategoryStore, code, message)
	} else {
		result = New(CategoryStore, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// AllocationError creates a split-allocation error
func AllocationError(target, allocated string) *EngineError {
	message := fmt.Sprintf("split total %s differs from transaction amount %s beyond rounding tolerance",
		allocated, target)

	return New(CategoryAllocation, CodeSplitMismatch, message).
		WithSuggestion("review the rule's percentage and fixed allocations; they do not add up").
		WithContext("target_amount", target).
		WithContext("allocated_amount", allocated)
}

// MatchingError creates a matching-related error
func MatchingError(operation string, err error) *EngineError {
	message := fmt.Sprintf("evaluation failed during %s", operation)

	var result *EngineError
	if err != nil {
		result = Wrap(err, CategoryMatching, CodeEvaluationFailed, message)
	} else {
		result = New(CategoryMatching, CodeEvaluationFailed, message)
	}

	return result.
		WithSuggestion("check the transaction data and rule definitions").
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *EngineError {
	message := fmt.Sprintf("unexpected error during %s", operation)

	var result *EngineError
	if err != nil {
		result = Wrap(err, CategoryInternal, CodeUnexpectedError, message)
	} else {
		result = New(CategoryInternal, CodeUnexpectedError, message)
	}

	return result.
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// IsEngineError checks if an error is an EngineError
func IsEngineError(err error) bool {
	_, ok := err.(*EngineError)
	return ok
}

// AsEngineError extracts an EngineError from an error chain
func AsEngineError(err error) (*EngineError, bool) {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already an EngineError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *EngineError {
	if err == nil {
		return nil
	}

	if engineErr, ok := AsEngineError(err); ok {
		return engineErr
	}

	return Wrap(err, category, code, message)
}
