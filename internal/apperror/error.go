package apperror

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// AppError is the structured error carried across module boundaries.
type AppError struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Context   string    `json:"context,omitempty"`
	TraceID   string    `json:"traceId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
	stack     []uintptr
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithTraceID sets the trace ID for distributed tracing
func (e *AppError) WithTraceID(traceID string) *AppError {
	e.TraceID = traceID
	return e
}

// Kind returns the taxonomy bucket of the error code.
func (e *AppError) Kind() Kind {
	return kindOf(e.Code)
}

// ToLog flattens the error into key/value pairs for the logger.
func (e *AppError) ToLog() []any {
	kv := []any{"code", string(e.Code), "message", e.Message, "kind", e.Kind().String()}
	if e.Context != "" {
		kv = append(kv, "context", e.Context)
	}
	if e.TraceID != "" {
		kv = append(kv, "trace_id", e.TraceID)
	}
	if e.cause != nil {
		kv = append(kv, "cause", e.cause.Error())
	}
	if len(e.stack) > 0 {
		kv = append(kv, "stack", e.formatStack())
	}
	return kv
}

func (e *AppError) formatStack() string {
	var sb strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			sb.WriteString(fmt.Sprintf("\n\t%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return sb.String()
}

func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}

// New creates a new AppError with the given code and options
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:      code,
		Message:   messages[code],
		Timestamp: time.Now(),
		stack:     captureStack(),
	}

	for _, opt := range opts {
		opt(err)
	}

	if err.Message == "" {
		err.Message = string(code)
	}

	return err
}

// Option is a functional option for AppError
type Option func(*AppError)

// WithMessage sets a custom message
func WithMessage(message string) Option {
	return func(e *AppError) {
		e.Message = message
	}
}

// WithContext adds key=value context. Repeated calls accumulate.
func WithContext(key string, value any) Option {
	return func(e *AppError) {
		pair := fmt.Sprintf("%s=%v", key, value)
		if e.Context == "" {
			e.Context = pair
			return
		}
		e.Context += " " + pair
	}
}

// WithCause wraps an underlying error
func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

// Validation creates a validation error for field.
func Validation(code Code, field string, cause error) *AppError {
	return New(code, WithContext("field", field), WithCause(cause))
}

// NotFound creates a not found error
func NotFound(code Code, what string) *AppError {
	return New(code, WithContext("ref", what))
}

// Transport wraps a failure of a remote call.
func Transport(code Code, operation string, cause error) *AppError {
	return New(code, WithContext("op", operation), WithCause(cause))
}

// Wrap converts err into an AppError, keeping existing AppErrors as they are.
func Wrap(err error, code Code, operation string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return New(code, WithContext("op", operation), WithCause(err))
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode extracts the error code from an error
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &AppError{Code: code})
}
