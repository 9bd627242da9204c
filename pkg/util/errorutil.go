package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the gateway, the core and the console API.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeNetwork      = "NETWORK_ERROR"
	CodeRemote       = "REMOTE_ERROR"
	CodeFormat       = "FORMAT_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewNetworkError reports that a backend call never produced a response.
func NewNetworkError(operation string, err error) error {
	return &DomainError{
		Code:       CodeNetwork,
		Message:    fmt.Sprintf("%s: backend unreachable", operation),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"operation": operation},
		Err:        err,
	}
}

// NewRemoteError reports a failure returned by a reachable backend.
func NewRemoteError(operation string, status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &DomainError{
		Code:       CodeRemote,
		Message:    fmt.Sprintf("%s: backend reported failure: %s", operation, message),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"operation": operation, "status": status},
	}
}

// NewFormatError reports a backend response with an unexpected shape.
func NewFormatError(operation string, err error) error {
	return &DomainError{
		Code:       CodeFormat,
		Message:    fmt.Sprintf("%s: malformed backend response", operation),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"operation": operation},
		Err:        err,
	}
}

func hasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool { return hasCode(err, CodeNetwork) }

// IsRemoteError reports whether err was reported by the backend.
func IsRemoteError(err error) bool { return hasCode(err, CodeRemote) }

// IsFormatError reports whether err is a malformed response.
func IsFormatError(err error) bool { return hasCode(err, CodeFormat) }

// IsValidationError reports whether err is a local validation failure.
func IsValidationError(err error) bool { return hasCode(err, CodeValidation) }

// HumanMessage renders err for the single error slot shown to operators.
func HumanMessage(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case CodeNetwork:
			return "Could not reach the review backend. Check the connection and try again."
		case CodeFormat:
			return "The review backend returned data in an unexpected format."
		}
		return domainErr.Message
	}
	return err.Error()
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
