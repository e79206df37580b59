package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-platform/apperror"
)

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims AccessClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestParseToken(t *testing.T) {
	userID := uuid.New()
	valid := AccessClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "gau-auth",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	claims, err := ParseToken(signToken(t, jwt.SigningMethodHS256, []byte("secret"), valid), "secret", "gau-auth")
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)

	_, err = ParseToken(signToken(t, jwt.SigningMethodHS256, []byte("other"), valid), "secret", "")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidToken))

	_, err = ParseToken(signToken(t, jwt.SigningMethodHS256, []byte("secret"), valid), "secret", "someone-else")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidToken))

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = ParseToken(signToken(t, jwt.SigningMethodHS256, []byte("secret"), expired), "secret", "")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeTokenExpired))

	noExpiry := valid
	noExpiry.ExpiresAt = nil
	_, err = ParseToken(signToken(t, jwt.SigningMethodHS256, []byte("secret"), noExpiry), "secret", "")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidToken))

	badUser := valid
	badUser.UserID = "not-a-uuid"
	_, err = ParseToken(signToken(t, jwt.SigningMethodHS256, []byte("secret"), badUser), "secret", "")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInvalidToken))

	_, err = ParseToken(signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid), "secret", "")
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCtx := func(req *http.Request) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = req
		return c
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractToken(newCtx(req)))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"})
	assert.Equal(t, "cookie-token", ExtractToken(newCtx(req)))

	req = httptest.NewRequest(http.MethodGet, "/download?access_token=q", nil)
	assert.Equal(t, "q", ExtractToken(newCtx(req)))

	req = httptest.NewRequest(http.MethodPost, "/upload?access_token=q", nil)
	assert.Equal(t, "", ExtractToken(newCtx(req)))
}

func TestGetUserIDFromContext(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := GetUserIDFromContext(c)
	assert.Error(t, err)

	id := uuid.New()
	InjectPrincipal(c, Principal{UserID: id, AuthMethod: AuthMethodBearer})
	got, err := GetUserIDFromContext(c)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, AuthMethodBearer, c.GetString("auth_method"))
}
