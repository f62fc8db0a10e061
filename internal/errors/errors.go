// Package errors provides the error definitions and classification helpers
// shared by keeper's guarded resources, lock and workers.
//
// # Error Types
//
// Domain-specific errors describe a failure inside one subsystem:
//   - StoreError: a durable log or output sink operation failed
//   - LockError: a blocked lock acquisition was abandoned
//
// Semantic errors describe a common condition:
//   - ValidationError: invalid input or configuration
//
// Resource lookups that find nothing return (value, false, nil). The CLI
// turns a miss into an error wrapping ErrNotFound.
//
// # Classification
//
// Every keeper error carries a Severity and a retryable flag. The worker
// scheduler uses GetSeverity and IsRetryable to pick the log level of a
// failed run.
//
// # Usage
//
//	err := errors.NewStoreError("append", path, cause).WithResource("directory")
//
//	if errors.Is(err, errors.ErrIO) { ... }
//
//	var storeErr *errors.StoreError
//	if errors.As(err, &storeErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound indicates that a requested entry, cell or route does not exist.
	ErrNotFound = New("not found")
	// ErrIO indicates that a durable log or sink operation failed.
	ErrIO = New("i/o failure")
	// ErrWaitAbandoned indicates that a blocked acquire gave up before the lock was granted.
	ErrWaitAbandoned = New("lock wait abandoned")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrClosed indicates that a writer was used after Close.
	ErrClosed = New("closed")
	// ErrMalformedRecord indicates a durable record that could not be parsed.
	ErrMalformedRecord = New("malformed record")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// KeeperError is the base interface for all keeper errors.
type KeeperError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool
}

type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// formatWithContext renders "<kind> [k=v, ...]: message: cause".
func formatWithContext(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// StoreError reports a failed durable write, rewrite, replay or render.
// The guarded resource's lock has already been released when the caller
// sees it, and the in-memory state is still valid.
//
// Example:
//
//	err := errors.NewStoreError("append", "database.txt", cause).WithResource("directory")
//	fmt.Println(err) // "store error [resource=directory, op=append, path=database.txt]: ..."
type StoreError struct {
	baseError
	Op       string
	Path     string
	Resource string
}

// NewStoreError creates a new StoreError for operation op on path.
func NewStoreError(op, path string, cause error) *StoreError {
	return &StoreError{
		baseError: baseError{
			message:   fmt.Sprintf("%s failed", op),
			cause:     cause,
			severity:  SeverityError,
			retryable: true,
		},
		Op:   op,
		Path: path,
	}
}

// WithResource names the guarded resource that owns the store.
func (e *StoreError) WithResource(name string) *StoreError {
	e.Resource = name
	return e
}

// Error returns the formatted error message.
func (e *StoreError) Error() string {
	var parts []string
	if e.Resource != "" {
		parts = append(parts, fmt.Sprintf("resource=%s", e.Resource))
	}
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return formatWithContext("store error", parts, e.message, e.cause)
}

// Is matches any *StoreError and ErrIO, then defers to the cause.
func (e *StoreError) Is(target error) bool {
	if _, ok := target.(*StoreError); ok {
		return true
	}
	if target == ErrIO {
		return true
	}
	return e.baseError.Is(target)
}

// LockError reports that an acquire was abandoned before the lock was
// granted. The lock's counters are unchanged by the abandoned wait.
//
// Example:
//
//	err := errors.NewLockError("directory", "write", ctx.Err())
//	fmt.Println(err) // "lock error [lock=directory, mode=write]: wait abandoned: context canceled"
type LockError struct {
	baseError
	Lock string
	Mode string
}

// NewLockError creates a new LockError.
func NewLockError(lock, mode string, cause error) *LockError {
	return &LockError{
		baseError: baseError{
			message:   "wait abandoned",
			cause:     cause,
			severity:  SeverityWarning,
			retryable: true,
		},
		Lock: lock,
		Mode: mode,
	}
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	var parts []string
	if e.Lock != "" {
		parts = append(parts, fmt.Sprintf("lock=%s", e.Lock))
	}
	if e.Mode != "" {
		parts = append(parts, fmt.Sprintf("mode=%s", e.Mode))
	}
	return formatWithContext("lock error", parts, e.message, e.cause)
}

// Is matches any *LockError and ErrWaitAbandoned, then defers to the cause
// so errors.Is(err, context.Canceled) keeps working.
func (e *LockError) Is(target error) bool {
	if _, ok := target.(*LockError); ok {
		return true
	}
	if target == ErrWaitAbandoned {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("grid needs at least one row").WithField("rows").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:   message,
			severity:  SeverityWarning,
			retryable: false,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatWithContext("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition.
// Store failures and abandoned waits are retryable; validation failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var keeperErr KeeperError
	if As(err, &keeperErr) {
		return keeperErr.IsRetryable()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement KeeperError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var keeperErr KeeperError
	if As(err, &keeperErr) {
		return keeperErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
