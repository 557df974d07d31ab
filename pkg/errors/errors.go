package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors
type ErrorCode string

const (
	ErrCodeUnrecognized ErrorCode = "UNRECOGNIZED_FORMAT"
	ErrCodeDecode       ErrorCode = "DECODE_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeIO           ErrorCode = "IO_ERROR"
	ErrCodeCanceled     ErrorCode = "CANCELED_ERROR"
)

// ErrUnrecognizedFormat matches any *UnrecognizedFormatError via errors.Is
var ErrUnrecognizedFormat = errors.New("unrecognized container format")

// CprLabError is the base structured error
type CprLabError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *CprLabError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CprLabError) Unwrap() error {
	return e.Cause
}

// UnrecognizedFormatError is returned when a buffer carries no container
// fingerprint at all. It is the only error that aborts a parse.
type UnrecognizedFormatError struct {
	CprLabError
	Size int
}

func NewUnrecognizedFormatError(size int) *UnrecognizedFormatError {
	return &UnrecognizedFormatError{
		CprLabError: CprLabError{
			Code:    ErrCodeUnrecognized,
			Message: "no version, track or metadata marker found",
		},
		Size: size,
	}
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("[%s] %s (size=%d)", e.Code, e.Message, e.Size)
}

func (e *UnrecognizedFormatError) Is(target error) bool {
	return target == ErrUnrecognizedFormat
}

// DecodeError is a failure to decode the value of a single marker occurrence
type DecodeError struct {
	CprLabError
	Marker string
	Offset int
}

func NewDecodeError(marker string, offset int, reason string) *DecodeError {
	return &DecodeError{
		CprLabError: CprLabError{
			Code:    ErrCodeDecode,
			Message: reason,
		},
		Marker: marker,
		Offset: offset,
	}
}

// WrapDecodeError attaches a lower-level cause to a decode failure.
func WrapDecodeError(marker string, offset int, reason string, cause error) *DecodeError {
	e := NewDecodeError(marker, offset, reason)
	e.Cause = cause
	return e
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("[%s] marker=%q offset=%d: %s", e.Code, e.Marker, e.Offset, e.Reason())
}

// Reason is the message plus its cause, if any.
func (e *DecodeError) Reason() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// ValidationError represents input validation failure
type ValidationError struct {
	CprLabError
	Field string
	Value interface{}
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		CprLabError: CprLabError{
			Code:    ErrCodeValidation,
			Message: message,
		},
		Field: field,
		Value: value,
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] field=%s value=%v: %s", e.Code, e.Field, e.Value, e.Message)
}

// IOError represents a failure to obtain the bytes of a container
type IOError struct {
	CprLabError
	Path string
}

func NewIOError(path, message string, cause error) *IOError {
	return &IOError{
		CprLabError: CprLabError{
			Code:    ErrCodeIO,
			Message: message,
			Cause:   cause,
		},
		Path: path,
	}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("[%s] %s (path=%s): %v", e.Code, e.Message, truncate(e.Path, 200), e.Cause)
}

// Is enables errors.Is checks
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As enables errors.As checks
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
