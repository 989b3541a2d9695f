package errors

import (
	stderrors "errors"
	"fmt"
	"os"
)

// Standard error codes
const (
	ErrInvalidRequest      = 400
	ErrUnauthorized        = 401
	ErrForbidden           = 403
	ErrNotFound            = 404
	ErrConflict            = 409
	ErrInternalServerError = 500
	ErrServiceUnavailable  = 503

	// Scratch-game error codes (1000+)
	ErrTicketIntegrity       = 1001
	ErrTicketNotFound        = 1002
	ErrInsufficientInventory = 1003
	ErrDrawNotFound          = 1004
	ErrValidationInProgress  = 1005
	ErrStoreError            = 1006
	ErrRedisError            = 1007
	ErrTransientNetwork      = 1010
)

// MsgTicketNotFound is returned for both digest mismatches and unknown tickets
// so callers cannot tell which check failed.
const MsgTicketNotFound = "ticket not found with the provided details"

// AppError represents a custom application error
type AppError struct {
	Code         int    `json:"code"`
	Message      string `json:"message"`
	DebugMessage string `json:"debug_message,omitempty"`
	Err          error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.DebugMessage != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.DebugMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s [%v]", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDebug creates a new AppError with a debug message
func NewWithDebug(code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Integrity builds the error returned when a submitted grid does not hash to
// the digest stored for the ticket. The reason is kept server-side only.
func Integrity(reason string) *AppError {
	return NewWithDebug(ErrTicketIntegrity, MsgTicketNotFound, reason)
}

// TicketNotFound builds the lookup failure returned by validation.
func TicketNotFound(reason string) *AppError {
	return NewWithDebug(ErrTicketNotFound, MsgTicketNotFound, reason)
}

// Response returns a map suitable for JSON response
func (e *AppError) Response() map[string]interface{} {
	response := map[string]interface{}{
		"success": false,
		"code":    e.Code,
		"message": e.Message,
	}

	// Debug details never leave the server outside development, and never
	// for integrity failures.
	env := os.Getenv("APP_ENV")
	if (env == "dev" || env == "development") && e.DebugMessage != "" && e.Code != ErrTicketIntegrity {
		response["debug_message"] = e.DebugMessage
	}

	return response
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode extracts error code from an error
func GetCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServerError
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code int) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// HTTPStatusFromCode maps error codes to HTTP status codes
func HTTPStatusFromCode(code int) int {
	switch code {
	case ErrInvalidRequest:
		return 400
	case ErrUnauthorized:
		return 401
	case ErrForbidden:
		return 403
	case ErrNotFound:
		return 404
	case ErrConflict:
		return 409
	case ErrInternalServerError:
		return 500
	case ErrServiceUnavailable:
		return 503
	case ErrTicketIntegrity, ErrTicketNotFound:
		return 400
	case ErrInsufficientInventory:
		return 400
	case ErrDrawNotFound:
		return 404
	case ErrValidationInProgress:
		return 409
	case ErrTransientNetwork:
		return 503
	default:
		return 500
	}
}
