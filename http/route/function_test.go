package routes

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/http/controller/dto"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/infra/produce"
)

func TestFunction_CreateQueuesDeploy(t *testing.T) {
	env := newTestEnv(t)

	fn := env.createFunction("resize-image", false)
	assert.Equal(t, 1, fn.Version)
	assert.Equal(t, entity.DeploymentStatusPending, fn.Status)
	assert.Equal(t, entity.RuntimeDeno, fn.Runtime)

	msgs := env.queue.ByRoutingKey(produce.FunctionDeployRoutingKey)
	require.Len(t, msgs, 1)
	var msg produce.FunctionDeployMessage
	require.NoError(t, msgs[0].Decode(&msg))
	assert.Equal(t, fn.ID.String(), msg.FunctionID)
	assert.Equal(t, 1, msg.Version)

	w := env.json(http.MethodPost, "/api/v1/functions", map[string]any{"name": "resize-image", "code": "x"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "FUNCTION_ALREADY_EXISTS", errorCode(t, w))

	w = env.json(http.MethodPost, "/api/v1/functions", map[string]any{"name": "bad name!", "code": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFunction_CreateMarksFailedWhenQueueIsDown(t *testing.T) {
	env := newTestEnv(t)
	env.queue.Err = assert.AnError

	w := env.json(http.MethodPost, "/api/v1/functions", map[string]any{"name": "hello", "code": "x"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	fn := decode[entity.Function](t, w)

	stored, err := env.repo.FunctionRepo.FindByID(fn.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DeploymentStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.DeployError)
}

func TestFunction_UpdateBumpsVersionOnlyForRuntimeChanges(t *testing.T) {
	env := newTestEnv(t)
	fn := env.createFunction("hello", true)
	path := "/api/v1/functions/" + fn.ID.String()

	w := env.json(http.MethodPut, path, map[string]any{"description": "says hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[entity.Function](t, w)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, entity.DeploymentStatusDeployed, updated.Status)
	assert.Len(t, env.queue.ByRoutingKey(produce.FunctionDeployRoutingKey), 1)

	w = env.json(http.MethodPut, path, map[string]any{
		"code": "export default () => new Response('hi')",
		"env":  map[string]string{"GREETING": "hi"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated = decode[entity.Function](t, w)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, entity.DeploymentStatusPending, updated.Status)
	assert.JSONEq(t, `{"GREETING":"hi"}`, string(updated.Env))

	msgs := env.queue.ByRoutingKey(produce.FunctionDeployRoutingKey)
	require.Len(t, msgs, 2)
	var msg produce.FunctionDeployMessage
	require.NoError(t, msgs[1].Decode(&msg))
	assert.Equal(t, 2, msg.Version)
}

func TestFunction_DeployUndeployDelete(t *testing.T) {
	env := newTestEnv(t)
	fn := env.createFunction("hello", true)
	path := "/api/v1/functions/" + fn.ID.String()

	w := env.request(http.MethodPost, path+"/undeploy", nil, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, env.queue.ByRoutingKey(produce.FunctionUndeployRoutingKey), 1)

	w = env.request(http.MethodPost, path+"/deploy", nil, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, env.queue.ByRoutingKey(produce.FunctionDeployRoutingKey), 2)

	w = env.request(http.MethodDelete, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.queue.ByRoutingKey(produce.FunctionUndeployRoutingKey), 2)

	w = env.request(http.MethodGet, path, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "FUNCTION_NOT_FOUND", errorCode(t, w))
}

func TestFunction_InvokeRequiresDeployment(t *testing.T) {
	env := newTestEnv(t)
	fn := env.createFunction("hello", false)

	w := env.request(http.MethodPost, "/api/v1/functions/"+fn.ID.String()+"/invoke", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "FUNCTION_NOT_DEPLOYED", errorCode(t, w))
	assert.Empty(t, env.runtime.Executions())
}

func TestFunction_InvokeRecordsExecutionAndLogs(t *testing.T) {
	env := newTestEnv(t)
	fn := env.createFunction("hello", true)
	env.runtime.result = infra.ExecutionResult{
		StatusCode: 201,
		Body:       json.RawMessage(`{"greeting":"hi"}`),
		DurationMs: 12,
		Logs: []infra.RuntimeLogLine{
			{Level: "info", Message: "starting"},
			{Message: "no level"},
		},
	}

	w := env.json(http.MethodPost, "/api/v1/functions/"+fn.ID.String()+"/invoke", map[string]any{
		"payload": map[string]string{"name": "ada"},
		"headers": map[string]string{"x-trace": "1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.InvokeFunctionResponseDTO](t, w)
	assert.Equal(t, string(entity.ExecutionStatusSucceeded), resp.Status)
	assert.Equal(t, 201, resp.StatusCode)
	assert.JSONEq(t, `{"greeting":"hi"}`, string(resp.Body))
	assert.EqualValues(t, 12, resp.DurationMs)

	calls := env.runtime.Executions()
	require.Len(t, calls, 1)
	assert.Equal(t, fn.ID.String(), calls[0].FunctionID)
	assert.Equal(t, resp.ExecutionID, calls[0].ExecutionID)
	assert.JSONEq(t, `{"name":"ada"}`, string(calls[0].Payload))
	assert.Equal(t, "1", calls[0].Headers["x-trace"])
	assert.EqualValues(t, 30000, calls[0].TimeoutMs)

	w = env.request(http.MethodGet, "/api/v1/functions/"+fn.ID.String()+"/executions", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	executions := decode[struct {
		Executions []entity.FunctionExecution `json:"executions"`
	}](t, w).Executions
	require.Len(t, executions, 1)
	assert.Equal(t, entity.TriggerInvoke, executions[0].Trigger)

	w = env.request(http.MethodGet, "/api/v1/functions/"+fn.ID.String()+"/logs?execution_id="+resp.ExecutionID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := decode[struct {
		Logs []entity.FunctionLog `json:"logs"`
	}](t, w).Logs
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, "info", l.Level)
	}

	w = env.request(http.MethodGet, "/api/v1/functions/"+fn.ID.String()+"/logs?execution_id=nope", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFunction_InvokeRuntimeFailure(t *testing.T) {
	env := newTestEnv(t)
	fn := env.createFunction("hello", true)
	env.runtime.status = http.StatusInternalServerError

	w := env.request(http.MethodPost, "/api/v1/functions/"+fn.ID.String()+"/invoke", nil, nil)
	assert.GreaterOrEqual(t, w.Code, 500)
	assert.Equal(t, "RUNTIME_UNAVAILABLE", errorCode(t, w))

	executions, err := env.repo.ExecutionRepo.ListByFunction(fn.ID, 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, entity.ExecutionStatusFailed, executions[0].Status)
	assert.NotNil(t, executions[0].FinishedAt)
}
