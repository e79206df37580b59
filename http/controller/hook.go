package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/executor"
	"github.com/tnqbao/gau-platform/infra/produce"
	"github.com/tnqbao/gau-platform/utils"
)

const (
	maxWebhookBody = 1 << 20

	webhookTimestampHeader = "X-Webhook-Timestamp"
	webhookSignatureHeader = "X-Webhook-Signature"
)

// forwardedHookHeaders selects the inbound headers passed to the function.
func forwardedHookHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		canonical := http.CanonicalHeaderKey(name)
		switch {
		case canonical == webhookSignatureHeader:
			continue
		case canonical == "Content-Type", canonical == "User-Agent",
			strings.HasPrefix(canonical, "X-"):
			out[strings.ToLower(canonical)] = values[0]
		}
	}
	return out
}

// hookPayload keeps JSON bodies as they are and wraps anything else in a
// JSON string.
func hookPayload(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	raw, _ := json.Marshal(string(body))
	return raw
}

// ReceiveWebhook accepts a signed delivery for /hooks/:id and queues the
// execution of the bound function.
func (ctrl *Controller) ReceiveWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	webhookID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	webhook, err := ctrl.Repository.WebhookRepo.FindByID(webhookID)
	if err != nil {
		ctrl.respondError(c, err, "[Hook] Failed to load webhook %s", webhookID)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.JSONError(c, apperror.New(apperror.ErrCodeInvalidInput, "Webhook body exceeds 1 MiB.", http.StatusRequestEntityTooLarge))
			return
		}
		utils.JSON400(c, "Failed to read request body")
		return
	}

	if err := utils.VerifySignature(webhook.Secret, c.Request.Method, c.Request.URL.Path,
		c.GetHeader(webhookTimestampHeader), c.GetHeader(webhookSignatureHeader), body, time.Now()); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Hook] Rejected delivery for %s: %v", webhook.ID, err)
		if !ctrl.allowHook(c, "webhook:rejected:"+webhook.ID.String()) {
			return
		}
		utils.JSONError(c, err)
		return
	}

	if !ctrl.allowHook(c, "webhook:"+webhook.ID.String()) {
		return
	}

	if !webhook.Enabled {
		utils.JSONError(c, apperror.WebhookDisabled(webhook.ID.String()))
		return
	}

	fn, err := ctrl.Repository.FunctionRepo.FindByID(webhook.FunctionID)
	if err != nil {
		ctrl.respondError(c, err, "[Hook] Failed to load function %s", webhook.FunctionID)
		return
	}
	if fn.Status != entity.DeploymentStatusDeployed {
		utils.JSONError(c, apperror.FunctionNotDeployed(fn.ID.String()))
		return
	}

	req := executor.Request{Payload: hookPayload(body), Headers: forwardedHookHeaders(c.Request.Header)}
	webhookRef := webhook.ID
	execution := &entity.FunctionExecution{
		FunctionID: fn.ID,
		WebhookID:  &webhookRef,
		Trigger:    entity.TriggerWebhook,
		Status:     entity.ExecutionStatusPending,
		Request:    req.Encode(),
	}
	if err := ctrl.Repository.ExecutionRepo.Create(execution); err != nil {
		ctrl.respondError(c, err, "[Hook] Failed to create execution for webhook %s", webhook.ID)
		return
	}

	msg := produce.WebhookDeliveryMessage{
		ExecutionID: execution.ID.String(),
		WebhookID:   webhook.ID.String(),
		FunctionID:  fn.ID.String(),
	}
	if err := ctrl.Infra.Produce.FunctionService.PublishWebhookDelivery(ctx, msg); err != nil {
		now := time.Now()
		execution.Status = entity.ExecutionStatusFailed
		execution.Error = "delivery could not be queued"
		execution.FinishedAt = &now
		_ = ctrl.Repository.ExecutionRepo.Finish(execution)
		ctrl.respondError(c, apperror.ServiceUnavailable("queue").WithCause(err), "[Hook] Failed to queue delivery %s", execution.ID)
		return
	}

	if err := ctrl.Repository.WebhookRepo.TouchDelivery(webhook.ID, time.Now()); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Hook] Failed to record delivery time of %s: %v", webhook.ID, err)
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Hook] Accepted delivery %s for webhook %s", execution.ID, webhook.ID)
	utils.JSON202(c, gin.H{"execution_id": execution.ID, "status": execution.Status})
}

// allowHook applies the per-webhook limit under key and writes 429 when it
// is exhausted. Limiter errors let the delivery through.
func (ctrl *Controller) allowHook(c *gin.Context, key string) bool {
	ctx := c.Request.Context()
	allowed, err := ctrl.Infra.Redis.Allow(ctx, key, ctrl.Config.EnvConfig.RateLimit.WebhookPerMinute, time.Minute)
	if err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Hook] Rate limiter unavailable for %s: %v", key, err)
		return true
	}
	if !allowed {
		utils.JSONError(c, apperror.RateLimited())
		return false
	}
	return true
}
