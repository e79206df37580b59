package controller

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/http/controller/dto"
	"github.com/tnqbao/gau-platform/utils"
)

// CreateAPIKey issues a key for the caller. The plaintext is only part of
// this response; the database keeps its hash.
func (ctrl *Controller) CreateAPIKey(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateAPIKeyRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request: "+err.Error())
		return
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		utils.JSONError(c, apperror.InvalidInput("expires_at", "must be in the future"))
		return
	}

	key, prefix, hash, err := utils.GenerateAPIKey()
	if err != nil {
		ctrl.respondError(c, err, "[APIKey] Failed to generate key")
		return
	}

	apiKey := &entity.APIKey{
		UserID:     userID,
		Name:       req.Name,
		Prefix:     prefix,
		KeyHash:    hash,
		Permission: c.GetString("permission"),
		ExpiresAt:  req.ExpiresAt,
	}
	if err := ctrl.Repository.APIKeyRepo.Create(apiKey); err != nil {
		ctrl.respondError(c, err, "[APIKey] Failed to store key %s", req.Name)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(c.Request.Context(), "[APIKey] Created key %s (%s) for %s", apiKey.ID, prefix, userID)
	utils.JSON201(c, dto.CreateAPIKeyResponseDTO{APIKey: *apiKey, Key: key})
}

func (ctrl *Controller) ListAPIKeys(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	keys, err := ctrl.Repository.APIKeyRepo.ListByUser(userID)
	if err != nil {
		ctrl.respondError(c, err, "[APIKey] Failed to list keys of %s", userID)
		return
	}
	if keys == nil {
		keys = []entity.APIKey{}
	}
	utils.JSON200(c, gin.H{"api_keys": keys})
}

// RevokeAPIKey revokes the key and drops its cached principal so it stops
// authenticating right away.
func (ctrl *Controller) RevokeAPIKey(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	keyID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	apiKey, err := ctrl.Repository.APIKeyRepo.FindOwned(keyID, userID)
	if err != nil {
		ctrl.respondError(c, err, "[APIKey] Failed to load key %s", keyID)
		return
	}
	if err := ctrl.Repository.APIKeyRepo.Revoke(apiKey.ID, time.Now()); err != nil {
		ctrl.respondError(c, err, "[APIKey] Failed to revoke key %s", apiKey.ID)
		return
	}
	if err := ctrl.Infra.Redis.Delete(ctx, utils.APIKeyCacheKey(apiKey.KeyHash)); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[APIKey] Failed to evict cached key %s: %v", apiKey.ID, err)
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[APIKey] Revoked key %s", apiKey.ID)
	utils.JSON200(c, gin.H{"message": "API key revoked", "id": apiKey.ID})
}
