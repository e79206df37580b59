package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SetsRetryableFromCode(t *testing.T) {
	assert.True(t, New(ErrCodeTimeout, "slow", http.StatusGatewayTimeout).Retryable)
	assert.False(t, New(ErrCodeFileNotFound, "missing", http.StatusNotFound).Retryable)
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("download: %w", FileNotFound("abc"))

	assert.True(t, errors.Is(err, FileNotFound("")))
	assert.False(t, errors.Is(err, BucketNotFound("")))
	assert.True(t, HasCode(err, ErrCodeFileNotFound))
}

func TestAs_WrapsUnknownErrorsAsInternal(t *testing.T) {
	cause := errors.New("boom")
	appErr := As(cause)

	require.NotNil(t, appErr)
	assert.Equal(t, ErrCodeInternal, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	assert.ErrorIs(t, appErr, cause)
	assert.Nil(t, As(nil))
}

func TestDomainConstructors_StatusMapping(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
	}{
		{FunctionNotFound("f"), http.StatusNotFound},
		{FunctionAlreadyExists("hello"), http.StatusConflict},
		{FunctionNotDeployed("f"), http.StatusConflict},
		{FileAlreadyExists("a/b"), http.StatusConflict},
		{FileTooLarge(10), http.StatusRequestEntityTooLarge},
		{UnsupportedMediaType("text/html"), http.StatusUnsupportedMediaType},
		{RangeNotSatisfiable(5), http.StatusRequestedRangeNotSatisfiable},
		{TransferCancelled("u"), http.StatusConflict},
		{StorageUnavailable(nil), http.StatusBadGateway},
		{Timeout("download"), http.StatusGatewayTimeout},
		{InvalidToken(), http.StatusUnauthorized},
		{WebhookDisabled("w"), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Code), func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.HTTPStatus)
		})
	}
}

func TestWithID_SkipsEmptyID(t *testing.T) {
	assert.Nil(t, FileNotFound("").Details)
	assert.Equal(t, "x", FileNotFound("x").Details["file"])
}
