package utils

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
)

const (
	AuthMethodBearer = "bearer"
	AuthMethodAPIKey = "api_key"
)

type AccessClaims struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller stored on the gin context.
type Principal struct {
	UserID     uuid.UUID `json:"user_id"`
	Permission string    `json:"permission"`
	AuthMethod string    `json:"auth_method"`
}

// ExtractToken reads the access token from the cookie, the Authorization
// header or, for download links, the access_token query parameter.
func ExtractToken(c *gin.Context) string {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	if c.Request.Method == "GET" || c.Request.Method == "HEAD" {
		return c.Query("access_token")
	}
	return ""
}

// ParseToken validates signature, expiry and issuer and returns the claims.
func ParseToken(tokenString, secret, issuer string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.TokenExpired()
		}
		return nil, apperror.InvalidToken().WithCause(err)
	}
	if !token.Valid {
		return nil, apperror.InvalidToken()
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, apperror.InvalidToken().WithCause(err)
	}
	return claims, nil
}

func InjectPrincipal(c *gin.Context, p Principal) {
	c.Set("user_id", p.UserID.String())
	c.Set("permission", p.Permission)
	c.Set("auth_method", p.AuthMethod)
}

// GetUserIDFromContext supports both string and uuid.UUID values.
func GetUserIDFromContext(c *gin.Context) (uuid.UUID, error) {
	userID, exists := c.Get("user_id")
	if !exists || userID == nil {
		return uuid.Nil, apperror.Unauthorized("user_id not found")
	}

	switch v := userID.(type) {
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, apperror.Unauthorized("invalid user_id format")
		}
		return parsed, nil
	case uuid.UUID:
		return v, nil
	default:
		return uuid.Nil, apperror.Unauthorized("invalid user_id type in context")
	}
}
