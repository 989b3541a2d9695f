package server

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/blackscorpionster/rubits/errors"
	"github.com/blackscorpionster/rubits/types"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is an alias for types.ErrorResponse
// @Description Standardized error response
type ErrorResponse = types.ErrorResponse

// SuccessResponse is a type alias for types.SuccessResponse[T]
// @Description Standardized success response
type SuccessResponse[T any] = types.SuccessResponse[T]

// BaseResponse is SuccessResponse[interface{}] for swagger annotations
// @Description Standard API response wrapper
type BaseResponse = SuccessResponse[interface{}]

// Success sends a success response
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, types.SuccessResponse[interface{}]{
		Success: true,
		Data:    data,
	})
}

// OK sends a 200 OK response
func OK(c *gin.Context, data interface{}) {
	Success(c, http.StatusOK, data)
}

// List sends a ticket listing
func List[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, types.ListResponse[T]{
		Success: true,
		Tickets: items,
		Count:   len(items),
	})
}

// Error sends an error response. AppErrors keep their code and message;
// anything else is reported as a generic internal error.
func Error(c *gin.Context, statusCode int, err error) {
	detail := &types.ErrorDetail{
		Timestamp: time.Now().Format(time.RFC3339),
		Path:      c.Request.URL.Path,
		Code:      errors.ErrInternalServerError,
	}
	message := "internal server error"

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
		detail.Code = appErr.Code
		if debug, ok := appErr.Response()["debug_message"].(string); ok {
			detail.DebugMessage = debug
		}
	}

	c.JSON(statusCode, types.ErrorResponse{
		Success: false,
		Message: message,
		Error:   detail,
	})
}

// BadRequest sends a 400 Bad Request response
func BadRequest(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, err)
}

// InternalError sends a 500 Internal Server Error response
func InternalError(c *gin.Context, err error) {
	Error(c, http.StatusInternalServerError, err)
}

// HandleAppError maps an error to its HTTP status and sends it
func HandleAppError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		Error(c, errors.HTTPStatusFromCode(appErr.Code), appErr)
		return
	}
	InternalError(c, err)
}
