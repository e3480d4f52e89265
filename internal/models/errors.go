package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Stable error codes returned to API clients.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeForbidden    = "FORBIDDEN"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeTimeout      = "TIMEOUT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

// Forbidden reasons surfaced by the audience gate.
const (
	ReasonCandidateCommentsDisabled = "candidate_comments_disabled"
	ReasonEmployerCommentsDisabled  = "employer_comments_disabled"
	ReasonRoleNotPermitted          = "role_not_permitted"
	ReasonNotOwner                  = "not_owner"
	ReasonAdminRequired             = "admin_required"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Reason  string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewForbiddenError builds a FORBIDDEN error; reason is a stable machine-readable tag.
func NewForbiddenError(reason, message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Reason:  reason,
		Message: message,
	}
}

// NewConflictError signals that a concurrent writer won and the caller may retry.
func NewConflictError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: fmt.Sprintf("%s with ID %v was modified concurrently, please retry", resource, id),
	}
}

func NewTimeoutError(err error) *AppError {
	return &AppError{
		Code:    CodeTimeout,
		Message: "Request timed out",
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// ErrorCode returns the stable code carried by err, classifying well-known
// infrastructure errors along the way.
func ErrorCode(err error) string {
	var appErr *AppError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &appErr):
		return appErr.Code
	case errors.Is(err, gorm.ErrRecordNotFound):
		return CodeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// StatusForError maps an error to its HTTP status.
func StatusForError(err error) int {
	switch ErrorCode(err) {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeConflict:
		return fiber.StatusConflict
	case CodeTimeout:
		return fiber.StatusGatewayTimeout
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		response = ErrorResponse{
			Error:  appErr.Message,
			Code:   appErr.Code,
			Reason: appErr.Reason,
		}
		// internal causes stay in the logs
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		response = ErrorResponse{Error: "Resource not found", Code: CodeNotFound}
	case errors.Is(err, context.DeadlineExceeded):
		response = ErrorResponse{Error: "Request timed out", Code: CodeTimeout}
	default:
		response = ErrorResponse{
			Error: "Internal server error",
			Code:  CodeInternal,
		}
	}

	return c.Status(status).JSON(response)
}

// RespondWithAppError writes err using the status derived from its code.
func RespondWithAppError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, StatusForError(err), err)
}
