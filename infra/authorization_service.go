package infra

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// AuthorizationService checks access tokens against the external issuer so
// revoked tokens stop working before they expire. Positive answers are
// cached in Redis for CacheTTL.
type AuthorizationService struct {
	AuthorizationServiceURL string
	PrivateKey              string
	CacheTTL                time.Duration

	cache  *RedisClient
	client *http.Client
}

func InitAuthorizationService(cfg *config.EnvConfig, cache *RedisClient) *AuthorizationService {
	return &AuthorizationService{
		AuthorizationServiceURL: cfg.ExternalService.AuthorizationServiceURL,
		PrivateKey:              cfg.PrivateKey,
		CacheTTL:                cfg.AuthCacheTTL,
		cache:                   cache,
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Enabled reports whether remote validation is configured.
func (s *AuthorizationService) Enabled() bool {
	return s != nil && s.AuthorizationServiceURL != ""
}

func (s *AuthorizationService) CheckAccessToken(ctx context.Context, token string) error {
	if !s.Enabled() {
		return nil
	}

	sum := sha256.Sum256([]byte(token))
	cacheKey := "auth:token:" + hex.EncodeToString(sum[:])
	if s.cache != nil {
		if ok, err := s.cache.Exists(ctx, cacheKey); err == nil && ok {
			return nil
		}
	}

	endpoint := fmt.Sprintf("%s/api/v2/authorization/token/validate?token=%s",
		s.AuthorizationServiceURL, url.QueryEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Private-Key", s.PrivateKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return apperror.ServiceUnavailable("authorization service").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperror.InvalidToken().WithCause(fmt.Errorf("authorization service returned %d: %s", resp.StatusCode, raw))
	}

	if s.cache != nil && s.CacheTTL > 0 {
		_ = s.cache.Set(ctx, cacheKey, true, s.CacheTTL)
	}
	return nil
}
