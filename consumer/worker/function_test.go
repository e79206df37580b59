package worker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/executor"
	"github.com/tnqbao/gau-platform/infra/produce"
)

func deployMessage(fn *entity.Function, action produce.DeployAction, version int) produce.FunctionDeployMessage {
	return produce.FunctionDeployMessage{Action: action, FunctionID: fn.ID.String(), Version: version}
}

func TestHandleDeploy_Success(t *testing.T) {
	env := newWorkerEnv(t)
	fn := env.createFunction(t, entity.DeploymentStatusPending)
	c := NewFunctionConsumer(nil, env.infra, env.repo, env.exec)

	msg, ack := delivery(t, deployMessage(fn, produce.DeployActionDeploy, 1), false)
	c.handleDeploy(context.Background(), msg)
	require.True(t, ack.acked)

	require.Len(t, env.runtime.deployments, 1)
	got := env.runtime.deployments[0]
	assert.Equal(t, fn.ID.String(), got.FunctionID)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, fn.Code, got.Code)
	assert.Equal(t, map[string]string{"GREETING": "hi"}, got.Env)

	stored, err := env.repo.FunctionRepo.FindByID(fn.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DeploymentStatusDeployed, stored.Status)
	assert.NotNil(t, stored.DeployedAt)
}

func TestHandleDeploy_StaleVersionIsSkipped(t *testing.T) {
	env := newWorkerEnv(t)
	fn := env.createFunction(t, entity.DeploymentStatusPending)
	require.NoError(t, env.repo.FunctionRepo.Update(fn, map[string]interface{}{"version": 3}))
	c := NewFunctionConsumer(nil, env.infra, env.repo, env.exec)

	msg, ack := delivery(t, deployMessage(fn, produce.DeployActionDeploy, 2), false)
	c.handleDeploy(context.Background(), msg)

	assert.True(t, ack.acked)
	assert.Empty(t, env.runtime.deployments)
}

func TestHandleDeploy_RejectedCodeMarksFailed(t *testing.T) {
	env := newWorkerEnv(t)
	env.runtime.deployStatus = http.StatusUnprocessableEntity
	fn := env.createFunction(t, entity.DeploymentStatusPending)
	c := NewFunctionConsumer(nil, env.infra, env.repo, env.exec)

	msg, ack := delivery(t, deployMessage(fn, produce.DeployActionDeploy, 1), false)
	c.handleDeploy(context.Background(), msg)
	require.True(t, ack.acked)

	stored, err := env.repo.FunctionRepo.FindByID(fn.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DeploymentStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.DeployError)
}

func TestHandleDeploy_UnavailableRuntimeRetriesThenFails(t *testing.T) {
	env := newWorkerEnv(t)
	env.runtime.deployStatus = http.StatusServiceUnavailable
	fn := env.createFunction(t, entity.DeploymentStatusPending)
	c := NewFunctionConsumer(nil, env.infra, env.repo, env.exec)

	msg, ack := delivery(t, deployMessage(fn, produce.DeployActionDeploy, 1), false)
	c.handleDeploy(context.Background(), msg)
	assert.True(t, ack.requeued)

	stored, err := env.repo.FunctionRepo.FindByID(fn.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DeploymentStatusPending, stored.Status)

	msg, ack = delivery(t, deployMessage(fn, produce.DeployActionDeploy, 1), true)
	c.handleDeploy(context.Background(), msg)
	assert.True(t, ack.acked)

	stored, err = env.repo.FunctionRepo.FindByID(fn.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DeploymentStatusFailed, stored.Status)
}

func TestHandleDeploy_Undeploy(t *testing.T) {
	env := newWorkerEnv(t)
	fn := env.createFunction(t, entity.DeploymentStatusDeployed)
	c := NewFunctionConsumer(nil, env.infra, env.repo, env.exec)

	msg, ack := delivery(t, deployMessage(fn, produce.DeployActionUndeploy, 1), false)
	c.handleDeploy(context.Background(), msg)
	require.True(t, ack.acked)

	assert.Equal(t, []string{fn.ID.String()}, env.runtime.undeployed)
	stored, err := env.repo.FunctionRepo.FindByID(fn.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DeploymentStatusUndeployed, stored.Status)
}

func TestHandleDeploy_UndeployOfDeletedFunction(t *testing.T) {
	env := newWorkerEnv(t)
	c := NewFunctionConsumer(nil, env.infra, env.repo, env.exec)
	id := uuid.New()

	msg, ack := delivery(t, produce.FunctionDeployMessage{Action: produce.DeployActionUndeploy, FunctionID: id.String(), Version: 1}, false)
	c.handleDeploy(context.Background(), msg)
	assert.True(t, ack.acked)
	assert.Equal(t, []string{id.String()}, env.runtime.undeployed)

	msg, ack = delivery(t, produce.FunctionDeployMessage{Action: produce.DeployActionDeploy, FunctionID: uuid.NewString(), Version: 1}, false)
	c.handleDeploy(context.Background(), msg)
	assert.True(t, ack.acked)
	assert.Empty(t, env.runtime.deployments)
}

func pendingWebhookExecution(t *testing.T, env *workerEnv, fn *entity.Function) *entity.FunctionExecution {
	t.Helper()
	webhookID := uuid.New()
	execution := &entity.FunctionExecution{
		FunctionID: fn.ID,
		WebhookID:  &webhookID,
		Trigger:    entity.TriggerWebhook,
		Status:     entity.ExecutionStatusPending,
		Request: executor.Request{
			Payload: []byte(`{"ref":"main"}`),
			Headers: map[string]string{"x-github-event": "push"},
		}.Encode(),
	}
	require.NoError(t, env.repo.ExecutionRepo.Create(execution))
	return execution
}

func webhookMessage(execution *entity.FunctionExecution) produce.WebhookDeliveryMessage {
	return produce.WebhookDeliveryMessage{
		ExecutionID: execution.ID.String(),
		WebhookID:   execution.WebhookID.String(),
		FunctionID:  execution.FunctionID.String(),
		Timestamp:   time.Now().Unix(),
	}
}

func TestHandleWebhook_RunsExecution(t *testing.T) {
	env := newWorkerEnv(t)
	fn := env.createFunction(t, entity.DeploymentStatusDeployed)
	execution := pendingWebhookExecution(t, env, fn)
	c := NewFunctionConsumer(nil, env.infra, env.repo, env.exec)

	msg, ack := delivery(t, webhookMessage(execution), false)
	c.handleWebhook(context.Background(), msg)
	require.True(t, ack.acked)

	require.Len(t, env.runtime.executions, 1)
	got := env.runtime.executions[0]
	assert.Equal(t, execution.ID.String(), got.ExecutionID)
	assert.JSONEq(t, `{"ref":"main"}`, string(got.Payload))
	assert.Equal(t, "push", got.Headers["x-github-event"])
	assert.EqualValues(t, 10000, got.TimeoutMs)

	stored, err := env.repo.ExecutionRepo.FindByID(execution.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ExecutionStatusSucceeded, stored.Status)
	assert.NotNil(t, stored.StartedAt)
	assert.JSONEq(t, `{"ok":true}`, string(stored.Response))
}

func TestHandleWebhook_DuplicateDeliveryIsIgnored(t *testing.T) {
	env := newWorkerEnv(t)
	fn := env.createFunction(t, entity.DeploymentStatusDeployed)
	execution := pendingWebhookExecution(t, env, fn)
	c := NewFunctionConsumer(nil, env.infra, env.repo, env.exec)

	for i := 0; i < 2; i++ {
		msg, ack := delivery(t, webhookMessage(execution), i > 0)
		c.handleWebhook(context.Background(), msg)
		assert.True(t, ack.acked)
	}
	assert.Len(t, env.runtime.executions, 1)
}

func TestHandleWebhook_UndeployedFunctionFailsExecution(t *testing.T) {
	env := newWorkerEnv(t)
	fn := env.createFunction(t, entity.DeploymentStatusUndeployed)
	execution := pendingWebhookExecution(t, env, fn)
	c := NewFunctionConsumer(nil, env.infra, env.repo, env.exec)

	msg, ack := delivery(t, webhookMessage(execution), false)
	c.handleWebhook(context.Background(), msg)
	require.True(t, ack.acked)

	assert.Empty(t, env.runtime.executions)
	stored, err := env.repo.ExecutionRepo.FindByID(execution.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ExecutionStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
	assert.NotNil(t, stored.FinishedAt)
}
