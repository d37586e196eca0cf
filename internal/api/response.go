package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/receipt-studio/pkg/apperror"
)

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	Kind    apperror.Kind         `json:"kind,omitempty"`
	Data    interface{}           `json:"data,omitempty"`
	Errors  []apperror.FieldError `json:"errors,omitempty"`
	Meta    *Meta                 `json:"meta,omitempty"`
}

// Meta contains metadata about the response
type Meta struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

func newMeta(c *gin.Context) *Meta {
	return &Meta{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: c.GetString(ctxRequestID),
	}
}

// respond sends a success response
func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    newMeta(c),
	})
}

func created(c *gin.Context, message string, data interface{}) {
	respond(c, 201, message, data)
}

// fail converts err to its typed form and sends it
func fail(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.Code >= 500 {
		_ = c.Error(err)
	}
	abort(c, appErr)
}

func abort(c *gin.Context, appErr *apperror.AppError) {
	c.AbortWithStatusJSON(appErr.Code, APIResponse{
		Success: false,
		Message: appErr.Message,
		Kind:    appErr.Kind,
		Errors:  appErr.Errors,
		Meta:    newMeta(c),
	})
}
