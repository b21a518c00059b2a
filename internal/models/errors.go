package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeNotFound    = "NOT_FOUND"
	CodeValidation  = "VALIDATION_ERROR"
	CodeConflict    = "CONFLICT"
	CodeUnavailable = "UNAVAILABLE"
	CodeInternal    = "INTERNAL_ERROR"
	CodeNoWallet    = "NO_WALLET"
	CodeRejected    = "REJECTED"
	CodeWallet      = "WALLET_ERROR"
)

var codeStatus = map[string]int{
	CodeNotFound:    fiber.StatusNotFound,
	CodeValidation:  fiber.StatusBadRequest,
	CodeConflict:    fiber.StatusConflict,
	CodeUnavailable: fiber.StatusServiceUnavailable,
	CodeNoWallet:    fiber.StatusServiceUnavailable,
	CodeRejected:    fiber.StatusForbidden,
	CodeWallet:      fiber.StatusBadGateway,
}

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError carries a user-facing message and a stable code; Err is the
// underlying cause and is only exposed as details.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Status maps the error code to an HTTP status. Unknown codes are 500.
func (e *AppError) Status() int {
	if s, ok := codeStatus[e.Code]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

func NewNotFoundError(resource string, id any) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %v not found", resource, id)}
}

func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

func NewUnavailableError(message string, err error) *AppError {
	return &AppError{Code: CodeUnavailable, Message: message, Err: err}
}

func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "Internal server error", Err: err}
}

// NewWalletError wraps a wallet failure with code and the reason shown to
// the user.
func NewWalletError(code, reason string, err error) *AppError {
	return &AppError{Code: code, Message: reason, Err: err}
}

// Respond writes err with the status implied by its code.
func Respond(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return RespondWithError(c, appErr.Status(), err)
	}
	return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(err))
}

// RespondWithError writes err with an explicit status.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	response := ErrorResponse{Error: err.Error()}

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{Error: appErr.Message, Code: appErr.Code}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	}
	return c.Status(status).JSON(response)
}
