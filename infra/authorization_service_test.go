package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tnqbao/gau-platform/apperror"
)

func newTestAuthorizationService(t *testing.T, status int, calls *int32) *AuthorizationService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/api/v2/authorization/token/validate", r.URL.Path)
		assert.Equal(t, "pk", r.Header.Get("Private-Key"))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return &AuthorizationService{
		AuthorizationServiceURL: srv.URL,
		PrivateKey:              "pk",
		CacheTTL:                time.Minute,
		cache:                   newTestRedis(t),
		client:                  srv.Client(),
	}
}

func TestAuthorizationService_CachesPositiveResult(t *testing.T) {
	var calls int32
	svc := newTestAuthorizationService(t, http.StatusOK, &calls)

	assert.NoError(t, svc.CheckAccessToken(context.Background(), "tok"))
	assert.NoError(t, svc.CheckAccessToken(context.Background(), "tok"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAuthorizationService_RejectedToken(t *testing.T) {
	var calls int32
	svc := newTestAuthorizationService(t, http.StatusUnauthorized, &calls)

	err := svc.CheckAccessToken(context.Background(), "tok")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidToken))
	err = svc.CheckAccessToken(context.Background(), "tok")
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAuthorizationService_DisabledWithoutURL(t *testing.T) {
	svc := &AuthorizationService{}
	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.CheckAccessToken(context.Background(), "anything"))
}
