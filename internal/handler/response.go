package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/slotwise/booking-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError writes err with the status its error code maps to.
// Unrecognized errors become opaque 500s.
func RespondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode(), NewErrorResponse(appErr.Message))
		return
	}
	internal := apperrors.Internal(err)
	c.Error(err)
	c.JSON(internal.StatusCode(), NewErrorResponse(internal.Message))
}
