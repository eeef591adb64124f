package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Canonical error codes. Callers branch on these, never on message text.
const (
	CodeValidation          = "VALIDATION"
	CodeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeProcessorAPI        = "PROCESSOR_API"
	CodeNotFound            = "NOT_FOUND"
	CodeBackendForward      = "BACKEND_FORWARD"
	CodeNotImplemented      = "NOT_IMPLEMENTED"
	CodeInternal            = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// ValidationError reports a missing or malformed request field.
func ValidationError(message string, details any) *AppError {
	return &AppError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest, Details: details}
}

// UnsupportedProviderError reports an unknown processor name.
func UnsupportedProviderError(name string) *AppError {
	return &AppError{
		Code:       CodeUnsupportedProvider,
		Message:    fmt.Sprintf("unsupported provider %q", name),
		HTTPStatus: http.StatusBadRequest,
	}
}

// SignatureError reports a webhook whose headers are missing, malformed or
// whose signature does not match.
func SignatureError(message string, err error) *AppError {
	return &AppError{Code: CodeInvalidSignature, Message: message, HTTPStatus: http.StatusBadRequest, Err: err}
}

// ProcessorError wraps a failed upstream processor call. The raw upstream
// response text travels in Details for log inspection.
func ProcessorError(provider string, err error, raw string) *AppError {
	ae := &AppError{
		Code:       CodeProcessorAPI,
		Message:    fmt.Sprintf("%s api call failed", provider),
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
	if raw != "" {
		ae.Details = map[string]string{"upstream": raw}
	}
	return ae
}

// NotFoundError reports a missing local session or subscription record.
func NotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// BackendForwardError wraps a failed internal notification. It is logged and
// absorbed by callers, never written to an HTTP response.
func BackendForwardError(err error) *AppError {
	return &AppError{Code: CodeBackendForward, Message: "backend forward failed", HTTPStatus: http.StatusBadGateway, Err: err}
}

// NotImplementedError reports an operation a provider adapter does not support yet.
func NotImplementedError(provider, op string) *AppError {
	return &AppError{
		Code:       CodeNotImplemented,
		Message:    fmt.Sprintf("%s: %s not implemented", provider, op),
		HTTPStatus: http.StatusNotImplemented,
	}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// ErrorCode extracts the canonical code from err, or CodeInternal.
func ErrorCode(err error) string {
	var target *AppError
	if errors.As(err, &target) {
		return target.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given canonical code.
func HasCode(err error, code string) bool {
	return ErrorCode(err) == code
}
