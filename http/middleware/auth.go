package middlewares

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/repository"
	"github.com/tnqbao/gau-platform/utils"
)

const apiKeyHeader = "X-API-Key"

// cachedAPIKey is the principal of an API key as kept in Redis.
type cachedAPIKey struct {
	KeyID      uuid.UUID  `json:"key_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Permission string     `json:"permission"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// AuthMiddleware accepts either an X-API-Key header or a bearer token
// (header, access_token cookie, or access_token query on downloads).
func AuthMiddleware(
	authService *infra.AuthorizationService,
	cache *infra.RedisClient,
	apiKeys *repository.APIKeyRepository,
	logger *infra.LoggerClient,
	cfg *config.EnvConfig,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if key := c.GetHeader(apiKeyHeader); key != "" {
			principal, err := authenticateAPIKey(ctx, key, cache, apiKeys, logger, cfg.AuthCacheTTL)
			if err != nil {
				utils.JSONError(c, err)
				return
			}
			utils.InjectPrincipal(c, *principal)
			c.Next()
			return
		}

		token := utils.ExtractToken(c)
		if token == "" {
			utils.JSON401(c, "Authorization token is required")
			return
		}

		claims, err := utils.ParseToken(token, cfg.JWT.SecretKey, cfg.JWT.Issuer)
		if err != nil {
			utils.JSONError(c, err)
			return
		}

		if err := authService.CheckAccessToken(ctx, token); err != nil {
			logger.DebugWithContextf(ctx, "[Auth] Token rejected by authorization service: %v", err)
			utils.JSONError(c, err)
			return
		}

		utils.InjectPrincipal(c, utils.Principal{
			UserID:     uuid.MustParse(claims.UserID),
			Permission: claims.Permission,
			AuthMethod: utils.AuthMethodBearer,
		})
		c.Next()
	}
}

func authenticateAPIKey(
	ctx context.Context,
	key string,
	cache *infra.RedisClient,
	apiKeys *repository.APIKeyRepository,
	logger *infra.LoggerClient,
	ttl time.Duration,
) (*utils.Principal, error) {
	hash := utils.HashAPIKey(key)
	cacheKey := utils.APIKeyCacheKey(hash)
	now := time.Now()

	var cached cachedAPIKey
	err := cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		if cached.ExpiresAt != nil && !now.Before(*cached.ExpiresAt) {
			_ = cache.Delete(ctx, cacheKey)
			return nil, apperror.TokenExpired()
		}
	} else {
		if !errors.Is(err, infra.ErrCacheMiss) {
			logger.WarningWithContextf(ctx, "[Auth] API key cache unavailable, using database: %v", err)
		}
		apiKey, err := apiKeys.FindByHash(hash)
		if err != nil {
			return nil, err
		}
		if apiKey.RevokedAt != nil {
			return nil, apperror.InvalidToken()
		}
		if !apiKey.Active(now) {
			return nil, apperror.TokenExpired()
		}
		cached = cachedAPIKey{
			KeyID:      apiKey.ID,
			UserID:     apiKey.UserID,
			Permission: apiKey.Permission,
			ExpiresAt:  apiKey.ExpiresAt,
		}
		expiry := ttl
		if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Sub(now) < expiry {
			expiry = apiKey.ExpiresAt.Sub(now)
		}
		if err := cache.Set(ctx, cacheKey, cached, expiry); err != nil {
			logger.WarningWithContextf(ctx, "[Auth] Failed to cache API key %s: %v", apiKey.ID, err)
		}
	}

	keyID := cached.KeyID
	go func() {
		if err := apiKeys.TouchLastUsed(keyID, now); err != nil {
			logger.WarningWithContextf(context.Background(), "[Auth] Failed to record use of API key %s: %v", keyID, err)
		}
	}()

	return &utils.Principal{
		UserID:     cached.UserID,
		Permission: cached.Permission,
		AuthMethod: utils.AuthMethodAPIKey,
	}, nil
}
