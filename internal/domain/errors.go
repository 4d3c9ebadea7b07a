package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error codes for different failure scenarios
const (
	ErrValidation       = "VALIDATION_ERROR"
	ErrUnknownCalc      = "UNKNOWN_CALCULATOR"
	ErrAuditPersistence = "AUDIT_PERSISTENCE_ERROR"
	ErrComputation      = "COMPUTATION_ERROR"
	ErrDatabaseError    = "DATABASE_ERROR"
	ErrInternalServer   = "INTERNAL_SERVER_ERROR"
)

// Validation rule identifiers reported in field violations
const (
	RuleRequired = "required"
	RuleType     = "type"
	RuleRange    = "range"
	RuleEnum     = "enum"
	RuleUnknown  = "unknown_field"
)

// FieldViolation names one input field and the domain rule it broke.
type FieldViolation struct {
	Field   string      `json:"field"`
	Rule    string      `json:"rule"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationError aggregates every field violation found in one input.
// Validation is a pure report; nothing is partially computed or defaulted.
type ValidationError struct {
	Violations []FieldViolation `json:"violations"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation error"
	}
	fields := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		fields[i] = fmt.Sprintf("%s (%s)", v.Field, v.Rule)
	}
	return fmt.Sprintf("validation failed for %s", strings.Join(fields, ", "))
}

// Add appends a violation and returns the error for chaining.
func (e *ValidationError) Add(field, rule, message string, value interface{}) *ValidationError {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Rule: rule, Message: message, Value: value})
	return e
}

// HasViolations reports whether any violation was recorded.
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

// NewValidationError creates an empty validation report.
func NewValidationError() *ValidationError {
	return &ValidationError{}
}

// UnknownCalculatorError indicates the requested identifier is not registered.
// It is a client error and is never silently defaulted to another calculator.
type UnknownCalculatorError struct {
	CalculatorID CalculatorID `json:"calculator_id"`
}

// Error implements the error interface
func (e *UnknownCalculatorError) Error() string {
	return fmt.Sprintf("unknown calculator: %s", e.CalculatorID)
}

// AuditPersistenceError indicates the audit record for a patient-linked
// calculation could not be durably stored. The calculation result is
// discarded; the caller may retry with identical input since computation
// is pure.
type AuditPersistenceError struct {
	CalculatorID CalculatorID
	Cause        error
}

// Error implements the error interface
func (e *AuditPersistenceError) Error() string {
	return fmt.Sprintf("audit persistence failed for %s: %v", e.CalculatorID, e.Cause)
}

// Unwrap exposes the storage cause for errors.Is/As chains.
func (e *AuditPersistenceError) Unwrap() error {
	return e.Cause
}

// Retryable marks the error as safe to retry with identical input.
func (e *AuditPersistenceError) Retryable() bool {
	return true
}

// ComputationError is an invariant violation inside a calculator. It is a
// defect, not a user error: fatal to the call, logged at high severity, and
// never exposed with internal detail to the caller.
type ComputationError struct {
	CalculatorID CalculatorID
	Detail       string
}

// Error implements the error interface
func (e *ComputationError) Error() string {
	return fmt.Sprintf("internal computation error in %s: %s", e.CalculatorID, e.Detail)
}

// AppError is the structured error surfaced on the wire.
type AppError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAppError creates a new AppError with a UTC timestamp.
func NewAppError(code, message, details, requestID string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// AsValidationError extracts a *ValidationError from an error chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// AsUnknownCalculatorError extracts an *UnknownCalculatorError from a chain.
func AsUnknownCalculatorError(err error) (*UnknownCalculatorError, bool) {
	var ue *UnknownCalculatorError
	ok := errors.As(err, &ue)
	return ue, ok
}

// AsAuditPersistenceError extracts an *AuditPersistenceError from a chain.
func AsAuditPersistenceError(err error) (*AuditPersistenceError, bool) {
	var ae *AuditPersistenceError
	ok := errors.As(err, &ae)
	return ae, ok
}

// AsComputationError extracts a *ComputationError from a chain.
func AsComputationError(err error) (*ComputationError, bool) {
	var ce *ComputationError
	ok := errors.As(err, &ce)
	return ce, ok
}
