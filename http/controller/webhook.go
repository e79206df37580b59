package controller

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/http/controller/dto"
	"github.com/tnqbao/gau-platform/utils"
)

// webhookURL is the public delivery address of a webhook.
func (ctrl *Controller) webhookURL(id uuid.UUID) string {
	path := "/hooks/" + id.String()
	domain := strings.TrimSuffix(ctrl.Config.EnvConfig.DomainName, "/")
	if domain == "" {
		return path
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return domain + path
}

func (ctrl *Controller) ownedWebhook(c *gin.Context) (*entity.Webhook, uuid.UUID, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, uuid.Nil, false
	}
	webhookID, ok := paramUUID(c, "id")
	if !ok {
		return nil, uuid.Nil, false
	}
	webhook, err := ctrl.Repository.WebhookRepo.FindOwned(webhookID, userID)
	if err != nil {
		ctrl.respondError(c, err, "[Webhook] Failed to load webhook %s", webhookID)
		return nil, uuid.Nil, false
	}
	return webhook, userID, true
}

func (ctrl *Controller) CreateWebhook(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateWebhookRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request: "+err.Error())
		return
	}
	functionID := uuid.MustParse(req.FunctionID)
	if _, err := ctrl.Repository.FunctionRepo.FindOwned(functionID, userID); err != nil {
		ctrl.respondError(c, err, "[Webhook] Failed to load function %s", functionID)
		return
	}

	secret, err := utils.GenerateWebhookSecret()
	if err != nil {
		ctrl.respondError(c, err, "[Webhook] Failed to generate secret")
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	webhook := &entity.Webhook{
		OwnerID:    userID,
		FunctionID: functionID,
		Name:       req.Name,
		Secret:     secret,
		Enabled:    enabled,
	}
	if err := ctrl.Repository.WebhookRepo.Create(webhook); err != nil {
		ctrl.respondError(c, err, "[Webhook] Failed to create webhook %s", req.Name)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(c.Request.Context(), "[Webhook] Created webhook %s for function %s", webhook.ID, functionID)
	utils.JSON201(c, gin.H{
		"webhook": webhook,
		"secret":  secret,
		"url":     ctrl.webhookURL(webhook.ID),
	})
}

func (ctrl *Controller) ListWebhooks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	webhooks, err := ctrl.Repository.WebhookRepo.ListByOwner(userID)
	if err != nil {
		ctrl.respondError(c, err, "[Webhook] Failed to list webhooks of %s", userID)
		return
	}
	if webhooks == nil {
		webhooks = []entity.Webhook{}
	}
	utils.JSON200(c, gin.H{"webhooks": webhooks})
}

func (ctrl *Controller) GetWebhook(c *gin.Context) {
	webhook, _, ok := ctrl.ownedWebhook(c)
	if !ok {
		return
	}
	utils.JSON200(c, gin.H{"webhook": webhook, "url": ctrl.webhookURL(webhook.ID)})
}

func (ctrl *Controller) UpdateWebhook(c *gin.Context) {
	webhook, userID, ok := ctrl.ownedWebhook(c)
	if !ok {
		return
	}

	var req dto.UpdateWebhookRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request: "+err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}
	if req.FunctionID != nil {
		functionID := uuid.MustParse(*req.FunctionID)
		if _, err := ctrl.Repository.FunctionRepo.FindOwned(functionID, userID); err != nil {
			ctrl.respondError(c, err, "[Webhook] Failed to load function %s", functionID)
			return
		}
		updates["function_id"] = functionID
	}
	if len(updates) > 0 {
		if err := ctrl.Repository.WebhookRepo.Update(webhook, updates); err != nil {
			ctrl.respondError(c, err, "[Webhook] Failed to update webhook %s", webhook.ID)
			return
		}
	}

	updated, err := ctrl.Repository.WebhookRepo.FindByID(webhook.ID)
	if err != nil {
		ctrl.respondError(c, err, "[Webhook] Failed to reload webhook %s", webhook.ID)
		return
	}
	utils.JSON200(c, updated)
}

func (ctrl *Controller) DeleteWebhook(c *gin.Context) {
	webhook, _, ok := ctrl.ownedWebhook(c)
	if !ok {
		return
	}
	if err := ctrl.Repository.WebhookRepo.Delete(webhook.ID); err != nil {
		ctrl.respondError(c, err, "[Webhook] Failed to delete webhook %s", webhook.ID)
		return
	}
	ctrl.Infra.Logger.InfoWithContextf(c.Request.Context(), "[Webhook] Deleted webhook %s", webhook.ID)
	utils.JSON200(c, gin.H{"message": "Webhook deleted successfully", "id": webhook.ID})
}

// RotateWebhookSecret replaces the signing secret. The old secret stops
// working immediately.
func (ctrl *Controller) RotateWebhookSecret(c *gin.Context) {
	webhook, _, ok := ctrl.ownedWebhook(c)
	if !ok {
		return
	}
	secret, err := utils.GenerateWebhookSecret()
	if err != nil {
		ctrl.respondError(c, err, "[Webhook] Failed to generate secret")
		return
	}
	if err := ctrl.Repository.WebhookRepo.Update(webhook, map[string]interface{}{"secret": secret}); err != nil {
		ctrl.respondError(c, err, "[Webhook] Failed to rotate secret of %s", webhook.ID)
		return
	}
	ctrl.Infra.Logger.InfoWithContextf(c.Request.Context(), "[Webhook] Rotated secret of %s", webhook.ID)
	utils.JSON200(c, dto.WebhookSecretResponseDTO{
		ID:     webhook.ID.String(),
		Secret: secret,
		URL:    ctrl.webhookURL(webhook.ID),
	})
}

func (ctrl *Controller) ListWebhookDeliveries(c *gin.Context) {
	webhook, _, ok := ctrl.ownedWebhook(c)
	if !ok {
		return
	}
	executions, err := ctrl.Repository.ExecutionRepo.ListByWebhook(webhook.ID, historyLimit(c))
	if err != nil {
		ctrl.respondError(c, err, "[Webhook] Failed to list deliveries of %s", webhook.ID)
		return
	}
	if executions == nil {
		executions = []entity.FunctionExecution{}
	}
	utils.JSON200(c, gin.H{"deliveries": executions})
}
