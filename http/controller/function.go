package controller

import (
	"encoding/json"
	"reflect"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/executor"
	"github.com/tnqbao/gau-platform/http/controller/dto"
	"github.com/tnqbao/gau-platform/utils"
	"gorm.io/datatypes"
)

const (
	defaultFunctionTimeout = 30
	defaultHistoryLimit    = 50
	maxHistoryLimit        = 500
)

func encodeEnv(env map[string]string) (datatypes.JSON, error) {
	if env == nil {
		env = map[string]string{}
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, apperror.InvalidInput("env", err.Error())
	}
	return datatypes.JSON(raw), nil
}

func historyLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func (ctrl *Controller) ownedFunction(c *gin.Context) (*entity.Function, uuid.UUID, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, uuid.Nil, false
	}
	functionID, ok := paramUUID(c, "id")
	if !ok {
		return nil, uuid.Nil, false
	}
	fn, err := ctrl.Repository.FunctionRepo.FindOwned(functionID, userID)
	if err != nil {
		ctrl.respondError(c, err, "[Function] Failed to load function %s", functionID)
		return nil, uuid.Nil, false
	}
	return fn, userID, true
}

// queueDeploy publishes a deployment of fn's current version. When the
// message cannot be queued the function is marked failed so the caller can
// retry with the deploy endpoint.
func (ctrl *Controller) queueDeploy(c *gin.Context, fn *entity.Function, userID uuid.UUID) {
	ctx := c.Request.Context()
	if err := ctrl.Infra.Produce.FunctionService.PublishDeploy(ctx, fn.ID.String(), fn.Version, userID.String()); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Function] Failed to queue deployment of %s v%d", fn.ID, fn.Version)
		if _, mErr := ctrl.Repository.FunctionRepo.MarkDeployFailed(fn.ID, fn.Version, "deployment could not be queued"); mErr == nil {
			fn.Status = entity.DeploymentStatusFailed
			fn.DeployError = "deployment could not be queued"
		}
		return
	}
	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Function] Queued deployment of %s v%d", fn.ID, fn.Version)
}

func (ctrl *Controller) CreateFunction(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateFunctionRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request: "+err.Error())
		return
	}
	env, err := encodeEnv(req.Env)
	if err != nil {
		utils.JSONError(c, err)
		return
	}
	timeout := req.TimeoutSeconds
	if timeout == 0 {
		timeout = defaultFunctionTimeout
	}

	fn := &entity.Function{
		OwnerID:        userID,
		Name:           req.Name,
		Description:    req.Description,
		Code:           req.Code,
		Runtime:        entity.RuntimeDeno,
		Env:            env,
		TimeoutSeconds: timeout,
		Version:        1,
		Status:         entity.DeploymentStatusPending,
	}
	if err := ctrl.Repository.FunctionRepo.Create(fn); err != nil {
		ctrl.respondError(c, err, "[Function] Failed to create function %s", req.Name)
		return
	}

	ctrl.queueDeploy(c, fn, userID)
	utils.JSON201(c, fn)
}

func (ctrl *Controller) ListFunctions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	functions, err := ctrl.Repository.FunctionRepo.ListByOwner(userID)
	if err != nil {
		ctrl.respondError(c, err, "[Function] Failed to list functions of %s", userID)
		return
	}
	if functions == nil {
		functions = []entity.Function{}
	}
	utils.JSON200(c, gin.H{"functions": functions})
}

func (ctrl *Controller) GetFunction(c *gin.Context) {
	fn, _, ok := ctrl.ownedFunction(c)
	if !ok {
		return
	}
	utils.JSON200(c, fn)
}

// UpdateFunction bumps the version and redeploys when anything the runtime
// sees has changed.
func (ctrl *Controller) UpdateFunction(c *gin.Context) {
	fn, userID, ok := ctrl.ownedFunction(c)
	if !ok {
		return
	}

	var req dto.UpdateFunctionRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request: "+err.Error())
		return
	}

	updates := map[string]interface{}{}
	redeploy := false
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Code != nil && *req.Code != fn.Code {
		updates["code"] = *req.Code
		redeploy = true
	}
	if req.Env != nil && !reflect.DeepEqual(*req.Env, fn.EnvMap()) {
		env, err := encodeEnv(*req.Env)
		if err != nil {
			utils.JSONError(c, err)
			return
		}
		updates["env"] = env
		redeploy = true
	}
	if req.TimeoutSeconds != nil && *req.TimeoutSeconds != fn.TimeoutSeconds {
		updates["timeout_seconds"] = *req.TimeoutSeconds
		redeploy = true
	}
	if redeploy {
		updates["version"] = fn.Version + 1
		updates["status"] = entity.DeploymentStatusPending
		updates["deploy_error"] = ""
	}
	if len(updates) == 0 {
		utils.JSON200(c, fn)
		return
	}

	if err := ctrl.Repository.FunctionRepo.Update(fn, updates); err != nil {
		ctrl.respondError(c, err, "[Function] Failed to update function %s", fn.ID)
		return
	}
	updated, err := ctrl.Repository.FunctionRepo.FindByID(fn.ID)
	if err != nil {
		ctrl.respondError(c, err, "[Function] Failed to reload function %s", fn.ID)
		return
	}
	if redeploy {
		ctrl.queueDeploy(c, updated, userID)
	}
	utils.JSON200(c, updated)
}

func (ctrl *Controller) DeleteFunction(c *gin.Context) {
	ctx := c.Request.Context()
	fn, userID, ok := ctrl.ownedFunction(c)
	if !ok {
		return
	}

	if err := ctrl.Repository.FunctionRepo.Delete(fn.ID); err != nil {
		ctrl.respondError(c, err, "[Function] Failed to delete function %s", fn.ID)
		return
	}
	if err := ctrl.Infra.Produce.FunctionService.PublishUndeploy(ctx, fn.ID.String(), fn.Version, userID.String()); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Function] Failed to queue undeploy of deleted function %s", fn.ID)
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Function] Deleted function %s (%s)", fn.ID, fn.Name)
	utils.JSON200(c, gin.H{"message": "Function deleted successfully", "id": fn.ID})
}

func (ctrl *Controller) DeployFunction(c *gin.Context) {
	fn, userID, ok := ctrl.ownedFunction(c)
	if !ok {
		return
	}
	if err := ctrl.Repository.FunctionRepo.SetStatus(fn.ID, entity.DeploymentStatusPending); err != nil {
		ctrl.respondError(c, err, "[Function] Failed to reset status of %s", fn.ID)
		return
	}
	fn.Status = entity.DeploymentStatusPending
	ctrl.queueDeploy(c, fn, userID)
	utils.JSON202(c, gin.H{"id": fn.ID, "version": fn.Version, "status": fn.Status})
}

func (ctrl *Controller) UndeployFunction(c *gin.Context) {
	ctx := c.Request.Context()
	fn, userID, ok := ctrl.ownedFunction(c)
	if !ok {
		return
	}
	if err := ctrl.Infra.Produce.FunctionService.PublishUndeploy(ctx, fn.ID.String(), fn.Version, userID.String()); err != nil {
		ctrl.respondError(c, apperror.ServiceUnavailable("queue").WithCause(err), "[Function] Failed to queue undeploy of %s", fn.ID)
		return
	}
	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Function] Queued undeploy of %s", fn.ID)
	utils.JSON202(c, gin.H{"id": fn.ID, "version": fn.Version, "status": "undeploying"})
}

// InvokeFunction runs a deployed function synchronously and returns the
// runtime's answer.
func (ctrl *Controller) InvokeFunction(c *gin.Context) {
	ctx := c.Request.Context()
	fn, _, ok := ctrl.ownedFunction(c)
	if !ok {
		return
	}
	if fn.Status != entity.DeploymentStatusDeployed {
		utils.JSONError(c, apperror.FunctionNotDeployed(fn.ID.String()))
		return
	}

	var req dto.InvokeFunctionRequestDTO
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.JSON400(c, "Invalid request: "+err.Error())
			return
		}
	}
	execReq := executor.Request{Payload: req.Payload, Headers: req.Headers}

	now := time.Now()
	execution := &entity.FunctionExecution{
		FunctionID: fn.ID,
		Trigger:    entity.TriggerInvoke,
		Status:     entity.ExecutionStatusRunning,
		Request:    execReq.Encode(),
		StartedAt:  &now,
	}
	if err := ctrl.Repository.ExecutionRepo.Create(execution); err != nil {
		ctrl.respondError(c, err, "[Function] Failed to create execution for %s", fn.ID)
		return
	}

	execution, err := ctrl.Executor.Run(ctx, fn, execution, execReq)
	if err != nil {
		appErr := apperror.As(err).WithDetail("execution_id", execution.ID.String())
		ctrl.respondError(c, appErr, "[Function] Execution %s of %s failed", execution.ID, fn.ID)
		return
	}

	utils.JSON200(c, dto.InvokeFunctionResponseDTO{
		ExecutionID: execution.ID.String(),
		Status:      string(execution.Status),
		StatusCode:  execution.StatusCode,
		Body:        json.RawMessage(execution.Response),
		Error:       execution.Error,
		DurationMs:  execution.DurationMs,
	})
}

func (ctrl *Controller) ListExecutions(c *gin.Context) {
	fn, _, ok := ctrl.ownedFunction(c)
	if !ok {
		return
	}
	executions, err := ctrl.Repository.ExecutionRepo.ListByFunction(fn.ID, historyLimit(c))
	if err != nil {
		ctrl.respondError(c, err, "[Function] Failed to list executions of %s", fn.ID)
		return
	}
	if executions == nil {
		executions = []entity.FunctionExecution{}
	}
	utils.JSON200(c, gin.H{"executions": executions})
}

// ListFunctionLogs returns the newest log lines, optionally for a single
// ?execution_id.
func (ctrl *Controller) ListFunctionLogs(c *gin.Context) {
	fn, _, ok := ctrl.ownedFunction(c)
	if !ok {
		return
	}

	var executionID *uuid.UUID
	if raw := c.Query("execution_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.JSONError(c, apperror.InvalidInput("execution_id", "must be a valid UUID"))
			return
		}
		executionID = &id
	}

	logs, err := ctrl.Repository.FunctionLogRepo.List(fn.ID, executionID, historyLimit(c))
	if err != nil {
		ctrl.respondError(c, err, "[Function] Failed to list logs of %s", fn.ID)
		return
	}
	if logs == nil {
		logs = []entity.FunctionLog{}
	}
	utils.JSON200(c, gin.H{"logs": logs})
}
