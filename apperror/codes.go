package apperror

type ErrorCode string

const (
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeRuntimeUnavailable ErrorCode = "RUNTIME_UNAVAILABLE"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Storage
	ErrCodeBucketNotFound       ErrorCode = "BUCKET_NOT_FOUND"
	ErrCodeBucketAlreadyExists  ErrorCode = "BUCKET_ALREADY_EXISTS"
	ErrCodeBucketNotEmpty       ErrorCode = "BUCKET_NOT_EMPTY"
	ErrCodeFileNotFound         ErrorCode = "FILE_NOT_FOUND"
	ErrCodeFileAlreadyExists    ErrorCode = "FILE_ALREADY_EXISTS"
	ErrCodeFileTooLarge         ErrorCode = "FILE_TOO_LARGE"
	ErrCodeUnsupportedMediaType ErrorCode = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodeRangeNotSatisfiable  ErrorCode = "RANGE_NOT_SATISFIABLE"
	ErrCodeTransferCancelled    ErrorCode = "TRANSFER_CANCELLED"
	ErrCodeUploadNotFound       ErrorCode = "UPLOAD_NOT_FOUND"
	ErrCodeUploadExpired        ErrorCode = "UPLOAD_EXPIRED"

	// Functions
	ErrCodeFunctionNotFound      ErrorCode = "FUNCTION_NOT_FOUND"
	ErrCodeFunctionAlreadyExists ErrorCode = "FUNCTION_ALREADY_EXISTS"
	ErrCodeFunctionNotDeployed   ErrorCode = "FUNCTION_NOT_DEPLOYED"
	ErrCodeWebhookNotFound       ErrorCode = "WEBHOOK_NOT_FOUND"
	ErrCodeWebhookDisabled       ErrorCode = "WEBHOOK_DISABLED"
	ErrCodeInvalidSignature      ErrorCode = "INVALID_SIGNATURE"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeStorageUnavailable: true,
	ErrCodeRuntimeUnavailable: true,
	ErrCodeServiceUnavailable: true,
}

func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
