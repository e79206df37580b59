package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-platform/apperror"
)

type ErrorBody struct {
	Code      apperror.ErrorCode `json:"code"`
	Message   string             `json:"message"`
	Retryable bool               `json:"retryable"`
	Details   map[string]any     `json:"details,omitempty"`
}

func JSON200(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func JSON201(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

func JSON202(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, data)
}

func JSON400(c *gin.Context, message string) {
	JSONError(c, apperror.InvalidInput("", message))
}

func JSON401(c *gin.Context, message string) {
	JSONError(c, apperror.Unauthorized(message))
}

func JSON403(c *gin.Context, message string) {
	JSONError(c, apperror.Forbidden(message))
}

func JSON500(c *gin.Context) {
	JSONError(c, apperror.Internal(nil))
}

// JSONError renders err with the status and code carried by its AppError.
// Unknown errors become a 500 without exposing the cause.
func JSONError(c *gin.Context, err error) {
	appErr := apperror.As(err)
	if appErr == nil {
		appErr = apperror.Internal(nil)
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": ErrorBody{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Retryable: appErr.Retryable,
		Details:   appErr.Details,
	}})
}
