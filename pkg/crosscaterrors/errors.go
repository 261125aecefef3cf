// Package crosscaterrors provides structured error handling for the CrossCat
// engine with error categorization, key-value details and stack traces.
//
// # Overview
//
// Every failure raised by the model packages is an *Error carrying an
// ErrorType. Callers branch on the category with IsType:
//
//	_, err := model.Logpdf(targets, conditions)
//	if crosscaterrors.IsType(err, crosscaterrors.ErrorTypeOverlappingVariables) {
//	    overlap := err.(*crosscaterrors.Error).Details["overlap"]
//	    ...
//	}
//
// # Propagation
//
// Errors are raised at the point of detection and returned to the immediate
// caller. No package in this module retries or suppresses them.
//
// # Thread Safety
//
// Error instances are not thread-safe for modification. Call WithDetail
// before sharing an error across goroutines.
package crosscaterrors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeInternal represents internal invariant failures
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents malformed arguments
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeOverlappingVariables is raised when targets and conditions share a name
	ErrorTypeOverlappingVariables ErrorType = "overlapping_variables"
	// ErrorTypeUnresolvedVariable is raised when an event references an unbound variable
	ErrorTypeUnresolvedVariable ErrorType = "unresolved_variable"
	// ErrorTypePrecondition represents caller precondition violations
	ErrorTypePrecondition ErrorType = "precondition"
	// ErrorTypeNotFound represents unknown views, columns or rows
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeExhausted is raised when a bounded rejection loop runs out of attempts
	ErrorTypeExhausted ErrorType = "exhausted"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents values that do not fit a column's statistical type
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents checkpoint and schema file errors
	ErrorTypeFile ErrorType = "file"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: Categorizes the error
//   - Message: Human-readable error description
//   - Cause: The underlying error, if any
//   - Details: Key-value pairs for diagnosis
//   - Stack: Call stack at the point of creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. It can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. If the error is
// already an *Error its stack trace is preserved. Returns nil for a nil error.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// NewOverlappingVariables reports that targets and conditions share names.
// Both offending sets and their intersection are attached as details.
func NewOverlappingVariables(targets, conditions, overlap []string) *Error {
	sort.Strings(overlap)
	e := &Error{
		Type:    ErrorTypeOverlappingVariables,
		Message: fmt.Sprintf("targets and conditions overlap on %v", overlap),
		Stack:   captureStack(2),
	}
	return e.WithDetail("targets", targets).
		WithDetail("conditions", conditions).
		WithDetail("overlap", overlap)
}

// NewUnresolvedVariable reports an event variable missing from the evaluation
// environment. The environment is attached for diagnosis.
func NewUnresolvedVariable(symbol string, env map[string]interface{}) *Error {
	e := &Error{
		Type:    ErrorTypeUnresolvedVariable,
		Message: fmt.Sprintf("unable to resolve symbol: %s in this context", symbol),
		Stack:   captureStack(2),
	}
	return e.WithDetail("symbol", symbol).WithDetail("env", env)
}

// IsType checks if the error is of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// Detail returns the named detail of a structured error, if present.
func Detail(err error, key string) (interface{}, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// captureStack captures the current call stack, skipping the given number of
// frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
