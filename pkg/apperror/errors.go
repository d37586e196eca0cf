// Package apperror carries typed application errors across the HTTP boundary.
package apperror

import (
	"errors"
	"net/http"
)

// Kind is the machine-readable error category clients branch on.
type Kind string

const (
	KindValidation          Kind = "validation_failed"
	KindExportFailed        Kind = "export_failed"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindSuperseded          Kind = "export_superseded"
	KindStorage             Kind = "storage_unavailable"
	KindNotFound            Kind = "not_found"
	KindBadRequest          Kind = "bad_request"
	KindUnauthorized        Kind = "unauthorized"
	KindRateLimited         Kind = "rate_limited"
	KindPrinter             Kind = "printer_unavailable"
	KindInternal            Kind = "internal"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int          `json:"code"`
	Kind    Kind         `json:"kind"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrUnauthorized        = &AppError{Code: http.StatusUnauthorized, Kind: KindUnauthorized, Message: "Unauthorized"}
	ErrInvalidToken        = &AppError{Code: http.StatusUnauthorized, Kind: KindUnauthorized, Message: "Invalid token"}
	ErrTooManyRequests     = &AppError{Code: http.StatusTooManyRequests, Kind: KindRateLimited, Message: "Too many requests"}
	ErrInsufficientCredits = &AppError{Code: http.StatusPaymentRequired, Kind: KindInsufficientCredits, Message: "Not enough credits to download this receipt"}
	ErrExportSuperseded    = &AppError{Code: http.StatusConflict, Kind: KindSuperseded, Message: "Export was replaced by a newer request"}
)

// NewValidationError creates a new validation error
func NewValidationError(fieldErrors []FieldError) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Kind:    KindValidation,
		Message: "Validation failed",
		Errors:  fieldErrors,
	}
}

// NewExportError reports a failed rendering. The client may retry.
func NewExportError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadGateway,
		Kind:    KindExportFailed,
		Message: message,
	}
}

// NewStorageError reports a backing store failure. Local state is intact.
func NewStorageError(message string) *AppError {
	return &AppError{
		Code:    http.StatusServiceUnavailable,
		Kind:    KindStorage,
		Message: message,
	}
}

// NewPrinterError reports a print job the printer did not accept.
func NewPrinterError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadGateway,
		Kind:    KindPrinter,
		Message: message,
	}
}

// NewNotFoundError creates a not found error with a custom message
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Kind:    KindNotFound,
		Message: resource + " not found",
	}
}

// NewBadRequestError creates a bad request error with a custom message
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Kind:    KindBadRequest,
		Message: message,
	}
}

// GetAppError converts an error to AppError if possible
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:    http.StatusInternalServerError,
		Kind:    KindInternal,
		Message: err.Error(),
	}
}
