package routes

import (
	"bytes"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/infra/produce"
	"github.com/tnqbao/gau-platform/utils"
)

type createdWebhook struct {
	Webhook entity.Webhook `json:"webhook"`
	Secret  string         `json:"secret"`
	URL     string         `json:"url"`
}

func (e *testEnv) createWebhook(functionID uuid.UUID, enabled bool) createdWebhook {
	e.t.Helper()
	w := e.json(http.MethodPost, "/api/v1/webhooks", map[string]any{
		"name":        "github-push",
		"function_id": functionID.String(),
		"enabled":     enabled,
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[createdWebhook](e.t, w)
}

func (e *testEnv) deliver(webhookID uuid.UUID, secret string, body []byte, extra map[string]string) *http.Response {
	e.t.Helper()
	path := "/hooks/" + webhookID.String()
	ts := time.Now().Unix()
	headers := map[string]string{
		"Authorization":       "",
		"Content-Type":        "application/json",
		"X-Webhook-Timestamp": strconv.FormatInt(ts, 10),
		"X-Webhook-Signature": utils.SignRequest(secret, http.MethodPost, path, ts, body),
	}
	for k, v := range extra {
		headers[k] = v
	}
	return e.request(http.MethodPost, path, bytes.NewReader(body), headers).Result()
}

func TestWebhook_CRUD(t *testing.T) {
	env := newTestEnv(t)
	fn := env.createFunction("on-push", true)

	created := env.createWebhook(fn.ID, true)
	assert.NotEmpty(t, created.Secret)
	assert.Equal(t, "/hooks/"+created.Webhook.ID.String(), created.URL)
	assert.True(t, created.Webhook.Enabled)

	w := env.request(http.MethodGet, "/api/v1/webhooks", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), created.Secret)

	w = env.json(http.MethodPatch, "/api/v1/webhooks/"+created.Webhook.ID.String(), map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[entity.Webhook](t, w).Enabled)

	w = env.request(http.MethodPost, "/api/v1/webhooks/"+created.Webhook.ID.String()+"/rotate-secret", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rotated := decode[map[string]string](t, w)
	assert.NotEqual(t, created.Secret, rotated["secret"])

	w = env.request(http.MethodDelete, "/api/v1/webhooks/"+created.Webhook.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.request(http.MethodGet, "/api/v1/webhooks/"+created.Webhook.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "WEBHOOK_NOT_FOUND", errorCode(t, w))
}

func TestWebhook_CreateRequiresOwnedFunction(t *testing.T) {
	env := newTestEnv(t)

	w := env.json(http.MethodPost, "/api/v1/webhooks", map[string]any{
		"name":        "orphan",
		"function_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "FUNCTION_NOT_FOUND", errorCode(t, w))
}

func TestHook_SignedDeliveryIsQueued(t *testing.T) {
	env := newTestEnv(t)
	fn := env.createFunction("on-push", true)
	hook := env.createWebhook(fn.ID, true)

	resp := env.deliver(hook.Webhook.ID, hook.Secret, []byte(`{"ref":"main"}`), map[string]string{"X-GitHub-Event": "push"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	msgs := env.queue.ByRoutingKey(produce.FunctionWebhookRoutingKey)
	require.Len(t, msgs, 1)
	var msg produce.WebhookDeliveryMessage
	require.NoError(t, msgs[0].Decode(&msg))
	assert.Equal(t, hook.Webhook.ID.String(), msg.WebhookID)
	assert.Equal(t, fn.ID.String(), msg.FunctionID)

	executionID := uuid.MustParse(msg.ExecutionID)
	execution, err := env.repo.ExecutionRepo.FindByID(executionID)
	require.NoError(t, err)
	assert.Equal(t, entity.ExecutionStatusPending, execution.Status)
	assert.Equal(t, entity.TriggerWebhook, execution.Trigger)
	assert.Contains(t, string(execution.Request), `"ref":"main"`)
	assert.Contains(t, string(execution.Request), `"x-github-event":"push"`)
	assert.NotContains(t, string(execution.Request), "x-webhook-signature")

	stored, err := env.repo.WebhookRepo.FindByID(hook.Webhook.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastDeliveryAt)

	w := env.request(http.MethodGet, "/api/v1/webhooks/"+hook.Webhook.ID.String()+"/deliveries", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), msg.ExecutionID)
}

func TestHook_RejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	fn := env.createFunction("on-push", true)
	hook := env.createWebhook(fn.ID, true)

	resp := env.deliver(hook.Webhook.ID, "wrong-secret", []byte(`{}`), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.deliver(hook.Webhook.ID, hook.Secret, []byte(`{}`), map[string]string{
		"X-Webhook-Timestamp": strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10),
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Empty(t, env.queue.ByRoutingKey(produce.FunctionWebhookRoutingKey))
}

func TestHook_DisabledAndUndeployed(t *testing.T) {
	env := newTestEnv(t)
	deployed := env.createFunction("on-push", true)
	disabled := env.createWebhook(deployed.ID, false)

	resp := env.deliver(disabled.Webhook.ID, disabled.Secret, []byte(`{}`), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	pending := env.createFunction("not-ready", false)
	hook := env.createWebhook(pending.ID, true)
	resp = env.deliver(hook.Webhook.ID, hook.Secret, []byte(`{}`), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.deliver(uuid.New(), "any", []byte(`{}`), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHook_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.ctrl.Config.EnvConfig.RateLimit.WebhookPerMinute = 1
	fn := env.createFunction("on-push", true)
	hook := env.createWebhook(fn.ID, true)

	resp := env.deliver(hook.Webhook.ID, hook.Secret, []byte(`{}`), nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp = env.deliver(hook.Webhook.ID, hook.Secret, []byte(`{}`), nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHook_UnsignedCallersDoNotUseTheBudget(t *testing.T) {
	env := newTestEnv(t)
	env.ctrl.Config.EnvConfig.RateLimit.WebhookPerMinute = 2
	fn := env.createFunction("on-push", true)
	hook := env.createWebhook(fn.ID, true)

	for i := 0; i < 2; i++ {
		resp := env.deliver(hook.Webhook.ID, "wrong-secret", []byte(`{}`), nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := env.deliver(hook.Webhook.ID, "wrong-secret", []byte(`{}`), nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	for i := 0; i < 2; i++ {
		resp = env.deliver(hook.Webhook.ID, hook.Secret, []byte(`{}`), nil)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	}
	resp = env.deliver(hook.Webhook.ID, hook.Secret, []byte(`{}`), nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHook_QueueFailureFailsExecution(t *testing.T) {
	env := newTestEnv(t)
	fn := env.createFunction("on-push", true)
	hook := env.createWebhook(fn.ID, true)
	env.queue.Err = assert.AnError

	resp := env.deliver(hook.Webhook.ID, hook.Secret, []byte(`plain text`), nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	executions, err := env.repo.ExecutionRepo.ListByWebhook(hook.Webhook.ID, 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, entity.ExecutionStatusFailed, executions[0].Status)
	assert.Contains(t, string(executions[0].Request), `"plain text"`)
}
