// Package errors provides the typed errors returned by A2S Gestion services
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the base interface for all domain errors
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// BaseError is the base implementation of AppError
type BaseError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"code"`
	Details    string `json:"details,omitempty"`
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) HTTPStatus() int {
	return e.StatusCode
}

func (e *BaseError) Code() string {
	return e.ErrorCode
}

// Error codes for referential-integrity conflicts
const (
	CodeInstallationHasPayments = "INSTALLATION_HAS_PAYMENTS"
	CodeSubscriptionHasPayments = "SUBSCRIPTION_HAS_PAYMENTS"
	CodeProspectReferenced      = "PROSPECT_REFERENCED"
	CodeForeignKeyViolation     = "FOREIGN_KEY_VIOLATION"
)

// NotFoundError represents a resource not found error
type NotFoundError struct {
	BaseError
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s introuvable", resource),
			StatusCode: http.StatusNotFound,
			ErrorCode:  "NOT_FOUND",
		},
		Resource: resource,
	}
}

// ValidationError represents a missing or malformed field
type ValidationError struct {
	BaseError
	Field string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "VALIDATION_ERROR",
		},
		Field: field,
	}
}

// PermissionDeniedError represents a permission denied error
type PermissionDeniedError struct {
	BaseError
	Action   string
	Resource string
}

func NewPermissionDeniedError(action, resource string) *PermissionDeniedError {
	return &PermissionDeniedError{
		BaseError: BaseError{
			Message:    "permission refusée",
			StatusCode: http.StatusForbidden,
			ErrorCode:  "PERMISSION_DENIED",
		},
		Action:   action,
		Resource: resource,
	}
}

// UnauthorizedError represents an authentication error
type UnauthorizedError struct {
	BaseError
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	if message == "" {
		message = "authentification requise"
	}
	return &UnauthorizedError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusUnauthorized,
			ErrorCode:  "UNAUTHORIZED",
		},
	}
}

// InternalError wraps a backend or network failure
type InternalError struct {
	BaseError
	OriginalError error
}

func NewInternalError(original error) *InternalError {
	return &InternalError{
		BaseError: BaseError{
			Message:    "erreur interne du serveur",
			StatusCode: http.StatusInternalServerError,
			ErrorCode:  "INTERNAL_ERROR",
		},
		OriginalError: original,
	}
}

func (e *InternalError) Unwrap() error {
	return e.OriginalError
}

// ConflictError represents a uniqueness conflict
type ConflictError struct {
	BaseError
	Resource string
}

func NewConflictError(resource string) *ConflictError {
	return NewConflictErrorf(resource, "%s existe déjà", resource)
}

// NewConflictErrorf builds a conflict error with a custom message
func NewConflictErrorf(resource, format string, args ...interface{}) *ConflictError {
	return &ConflictError{
		BaseError: BaseError{
			Message:    fmt.Sprintf(format, args...),
			StatusCode: http.StatusConflict,
			ErrorCode:  "CONFLICT",
		},
		Resource: resource,
	}
}

// ReferentialError is raised when a delete or write would break a reference
type ReferentialError struct {
	BaseError
	Resource string
}

func NewReferentialError(code, resource, message string) *ReferentialError {
	return &ReferentialError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusConflict,
			ErrorCode:  code,
		},
		Resource: resource,
	}
}

// InvalidStateError rejects a lifecycle transition that is not allowed
type InvalidStateError struct {
	BaseError
	From string
	To   string
}

func NewInvalidStateError(resource, from, to string) *InvalidStateError {
	return &InvalidStateError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s: transition %s -> %s impossible", resource, from, to),
			StatusCode: http.StatusUnprocessableEntity,
			ErrorCode:  "INVALID_STATE",
		},
		From: from,
		To:   to,
	}
}

// BadRequestError represents a generic bad request error
type BadRequestError struct {
	BaseError
}

func NewBadRequestError(message string) *BadRequestError {
	return &BadRequestError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "BAD_REQUEST",
		},
	}
}

// IsCode reports whether err carries the given error code
func IsCode(err error, code string) bool {
	var ae AppError
	if stderrors.As(err, &ae) {
		return ae.Code() == code
	}
	return false
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}

// ToHTTPError converts any error to an appropriate HTTP response
func ToHTTPError(err error) (int, map[string]interface{}) {
	if err == nil {
		return http.StatusOK, nil
	}

	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve.HTTPStatus(), map[string]interface{}{
			"error":   ve.Code(),
			"message": ve.Error(),
			"field":   ve.Field,
		}
	}

	var ae AppError
	if stderrors.As(err, &ae) {
		return ae.HTTPStatus(), map[string]interface{}{
			"error":   ae.Code(),
			"message": ae.Error(),
		}
	}

	// Default to internal server error for unknown errors
	return http.StatusInternalServerError, map[string]interface{}{
		"error":   "INTERNAL_ERROR",
		"message": "erreur interne du serveur",
	}
}
