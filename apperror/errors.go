// Package apperror defines the typed errors shared by the API, the object
// store service and the consumers. Every AppError carries the HTTP status it
// should be rendered with.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any AppError with the same code, so callers can write
// errors.Is(err, apperror.FileNotFound("")).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// As extracts an AppError from err. Errors that are not AppErrors become
// INTERNAL_ERROR with the original kept as the cause.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func withID(e *AppError, key, id string) *AppError {
	if id != "" {
		e.WithDetail(key, id)
	}
	return e
}

// --- Generic ---

func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "An unexpected error occurred.", http.StatusInternalServerError).WithCause(cause)
}

func InvalidInput(field, reason string) *AppError {
	e := New(ErrCodeInvalidInput, "Invalid input: "+reason, http.StatusBadRequest)
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return New(ErrCodeUnauthorized, reason, http.StatusUnauthorized)
}

func Forbidden(reason string) *AppError {
	if reason == "" {
		reason = "You don't have permission to perform this action."
	}
	return New(ErrCodeForbidden, reason, http.StatusForbidden)
}

func InvalidToken() *AppError {
	return New(ErrCodeInvalidToken, "The provided credentials are invalid.", http.StatusUnauthorized)
}

func TokenExpired() *AppError {
	return New(ErrCodeTokenExpired, "The access token has expired.", http.StatusUnauthorized)
}

func Timeout(operation string) *AppError {
	return New(ErrCodeTimeout, "The request took too long. Please try again.", http.StatusGatewayTimeout).
		WithDetail("operation", operation)
}

func RateLimited() *AppError {
	return New(ErrCodeRateLimited, "Too many requests. Please wait a moment and try again.", http.StatusTooManyRequests)
}

func Conflict(reason string) *AppError {
	return New(ErrCodeConflict, reason, http.StatusConflict)
}

func StorageUnavailable(cause error) *AppError {
	return New(ErrCodeStorageUnavailable, "The storage backend is unavailable.", http.StatusBadGateway).WithCause(cause)
}

func RuntimeUnavailable(cause error) *AppError {
	return New(ErrCodeRuntimeUnavailable, "The function runtime is unavailable.", http.StatusBadGateway).WithCause(cause)
}

func ServiceUnavailable(service string) *AppError {
	return New(ErrCodeServiceUnavailable, fmt.Sprintf("The %s is temporarily unavailable.", service), http.StatusServiceUnavailable).
		WithDetail("service", service)
}

// --- Storage ---

func BucketNotFound(id string) *AppError {
	return withID(New(ErrCodeBucketNotFound, "Bucket not found.", http.StatusNotFound), "bucket", id)
}

func BucketAlreadyExists(name string) *AppError {
	return withID(New(ErrCodeBucketAlreadyExists, "A bucket with this name already exists.", http.StatusConflict), "name", name)
}

func BucketNotEmpty(id string) *AppError {
	return withID(New(ErrCodeBucketNotEmpty, "Bucket is not empty.", http.StatusConflict), "bucket", id)
}

func FileNotFound(id string) *AppError {
	return withID(New(ErrCodeFileNotFound, "File not found.", http.StatusNotFound), "file", id)
}

func FileAlreadyExists(path string) *AppError {
	return withID(New(ErrCodeFileAlreadyExists, "A file already exists at this path.", http.StatusConflict), "path", path)
}

func FileTooLarge(limit int64) *AppError {
	return New(ErrCodeFileTooLarge, "File exceeds the maximum allowed size.", http.StatusRequestEntityTooLarge).
		WithDetail("limit", limit)
}

func UnsupportedMediaType(contentType string) *AppError {
	return New(ErrCodeUnsupportedMediaType, "Content type is not allowed in this bucket.", http.StatusUnsupportedMediaType).
		WithDetail("content_type", contentType)
}

func RangeNotSatisfiable(size int64) *AppError {
	return New(ErrCodeRangeNotSatisfiable, "Requested range not satisfiable.", http.StatusRequestedRangeNotSatisfiable).
		WithDetail("size", size)
}

func TransferCancelled(uploadID string) *AppError {
	return withID(New(ErrCodeTransferCancelled, "The transfer was cancelled.", http.StatusConflict), "upload_id", uploadID)
}

func UploadSessionNotFound(id string) *AppError {
	return withID(New(ErrCodeUploadNotFound, "Upload session not found.", http.StatusNotFound), "upload_id", id)
}

func UploadExpired(id string) *AppError {
	return withID(New(ErrCodeUploadExpired, "Upload session has expired.", http.StatusBadRequest), "upload_id", id)
}

// --- Functions ---

func FunctionNotFound(id string) *AppError {
	return withID(New(ErrCodeFunctionNotFound, "Function not found.", http.StatusNotFound), "function", id)
}

func FunctionAlreadyExists(name string) *AppError {
	return withID(New(ErrCodeFunctionAlreadyExists, "A function with this name already exists.", http.StatusConflict), "name", name)
}

func FunctionNotDeployed(id string) *AppError {
	return withID(New(ErrCodeFunctionNotDeployed, "Function is not deployed.", http.StatusConflict), "function", id)
}

func WebhookNotFound(id string) *AppError {
	return withID(New(ErrCodeWebhookNotFound, "Webhook not found.", http.StatusNotFound), "webhook", id)
}

func WebhookDisabled(id string) *AppError {
	return withID(New(ErrCodeWebhookDisabled, "Webhook is disabled.", http.StatusForbidden), "webhook", id)
}

func InvalidSignature(reason string) *AppError {
	return New(ErrCodeInvalidSignature, "Invalid signature: "+reason, http.StatusUnauthorized)
}
