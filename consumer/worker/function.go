package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/executor"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/infra/produce"
	"github.com/tnqbao/gau-platform/repository"
)

// FunctionConsumer pushes function versions to the Deno runtime and runs
// queued webhook deliveries.
type FunctionConsumer struct {
	channel    *amqp.Channel
	infra      *infra.Infra
	repository *repository.Repository
	executor   *executor.Executor
}

func NewFunctionConsumer(channel *amqp.Channel, infra *infra.Infra, repo *repository.Repository, exec *executor.Executor) *FunctionConsumer {
	return &FunctionConsumer{
		channel:    channel,
		infra:      infra,
		repository: repo,
		executor:   exec,
	}
}

func (c *FunctionConsumer) Start(ctx context.Context) error {
	if err := consume(ctx, c.channel, c.infra.Logger, produce.FunctionDeployQueue, "Function Consumer - Deploy", c.handleDeploy); err != nil {
		return fmt.Errorf("failed to start function deploy consumer: %w", err)
	}
	if err := consume(ctx, c.channel, c.infra.Logger, produce.FunctionWebhookQueue, "Function Consumer - Webhook", c.handleWebhook); err != nil {
		return fmt.Errorf("failed to start webhook delivery consumer: %w", err)
	}
	return nil
}

func (c *FunctionConsumer) handleDeploy(ctx context.Context, msg amqp.Delivery) {
	var payload produce.FunctionDeployMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Deploy] Failed to unmarshal message")
		_ = msg.Nack(false, false)
		return
	}
	functionID, err := uuid.Parse(payload.FunctionID)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Deploy] Invalid function ID %q", payload.FunctionID)
		_ = msg.Nack(false, false)
		return
	}

	fn, err := c.repository.FunctionRepo.FindByID(functionID)
	if err != nil {
		if !apperror.HasCode(err, apperror.ErrCodeFunctionNotFound) {
			requeued := retryOrDrop(msg, err)
			c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Deploy] Failed to load function %s (requeued: %t)", functionID, requeued)
			return
		}
		// Deleted functions still have to leave the runtime.
		if payload.Action == produce.DeployActionUndeploy {
			if err := c.infra.RuntimeService.Undeploy(ctx, payload.FunctionID); err != nil {
				requeued := retryOrDrop(msg, err)
				c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Deploy] Failed to undeploy deleted function %s (requeued: %t)", functionID, requeued)
				return
			}
			c.infra.Logger.InfoWithContextf(ctx, "[Function Consumer - Deploy] Removed deleted function %s from runtime", functionID)
		}
		_ = msg.Ack(false)
		return
	}

	if payload.Version < fn.Version {
		c.infra.Logger.InfoWithContextf(ctx, "[Function Consumer - Deploy] Skipping %s of %s v%d, current is v%d",
			payload.Action, fn.Name, payload.Version, fn.Version)
		_ = msg.Ack(false)
		return
	}

	switch payload.Action {
	case produce.DeployActionDeploy:
		c.deploy(ctx, msg, fn, payload.Version)
	case produce.DeployActionUndeploy:
		c.undeploy(ctx, msg, fn, payload.Version)
	default:
		c.infra.Logger.WarningWithContextf(ctx, "[Function Consumer - Deploy] Unknown action %q dropped", payload.Action)
		_ = msg.Nack(false, false)
	}
}

func (c *FunctionConsumer) deploy(ctx context.Context, msg amqp.Delivery, fn *entity.Function, version int) {
	err := c.infra.RuntimeService.Deploy(ctx, infra.DeploymentRequest{
		FunctionID: fn.ID.String(),
		Name:       fn.Name,
		Version:    version,
		Code:       fn.Code,
		Env:        fn.EnvMap(),
	})
	if err != nil {
		if isRetryable(err) && !msg.Redelivered {
			c.infra.Logger.WarningWithContextf(ctx, "[Function Consumer - Deploy] Deploy of %s v%d failed, retrying: %v", fn.Name, version, err)
			_ = msg.Nack(false, true)
			return
		}
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Deploy] Deploy of %s v%d failed", fn.Name, version)
		if _, err := c.repository.FunctionRepo.MarkDeployFailed(fn.ID, version, apperror.As(err).Message); err != nil {
			c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Deploy] Failed to record deploy failure of %s", fn.ID)
		}
		_ = msg.Ack(false)
		return
	}

	current, err := c.repository.FunctionRepo.MarkDeployed(fn.ID, version, time.Now())
	if err != nil {
		requeued := retryOrDrop(msg, err)
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Deploy] Failed to mark %s deployed (requeued: %t)", fn.ID, requeued)
		return
	}
	if !current {
		c.infra.Logger.InfoWithContextf(ctx, "[Function Consumer - Deploy] %s v%d was superseded during deploy", fn.Name, version)
	} else {
		c.infra.Logger.InfoWithContextf(ctx, "[Function Consumer - Deploy] Deployed %s v%d", fn.Name, version)
	}
	_ = msg.Ack(false)
}

func (c *FunctionConsumer) undeploy(ctx context.Context, msg amqp.Delivery, fn *entity.Function, version int) {
	if err := c.infra.RuntimeService.Undeploy(ctx, fn.ID.String()); err != nil {
		requeued := retryOrDrop(msg, err)
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Deploy] Undeploy of %s failed (requeued: %t)", fn.Name, requeued)
		return
	}
	if version == fn.Version {
		if err := c.repository.FunctionRepo.SetStatus(fn.ID, entity.DeploymentStatusUndeployed); err != nil {
			c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Deploy] Failed to mark %s undeployed", fn.ID)
		}
	}
	c.infra.Logger.InfoWithContextf(ctx, "[Function Consumer - Deploy] Undeployed %s", fn.Name)
	_ = msg.Ack(false)
}

func (c *FunctionConsumer) handleWebhook(ctx context.Context, msg amqp.Delivery) {
	var payload produce.WebhookDeliveryMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Webhook] Failed to unmarshal message")
		_ = msg.Nack(false, false)
		return
	}
	executionID, err := uuid.Parse(payload.ExecutionID)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Webhook] Invalid execution ID %q", payload.ExecutionID)
		_ = msg.Nack(false, false)
		return
	}

	claimed, err := c.repository.ExecutionRepo.MarkRunning(executionID, time.Now())
	if err != nil {
		requeued := retryOrDrop(msg, err)
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Webhook] Failed to claim execution %s (requeued: %t)", executionID, requeued)
		return
	}
	if !claimed {
		c.infra.Logger.InfoWithContextf(ctx, "[Function Consumer - Webhook] Execution %s already handled", executionID)
		_ = msg.Ack(false)
		return
	}

	execution, err := c.repository.ExecutionRepo.FindByID(executionID)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Webhook] Failed to load execution %s", executionID)
		_ = msg.Ack(false)
		return
	}

	fn, err := c.repository.FunctionRepo.FindByID(execution.FunctionID)
	if err == nil && fn.Status != entity.DeploymentStatusDeployed {
		err = apperror.FunctionNotDeployed(fn.ID.String())
	}
	if err != nil {
		c.abandon(ctx, execution, err)
		_ = msg.Ack(false)
		return
	}

	req, err := executor.DecodeRequest(execution.Request)
	if err != nil {
		c.abandon(ctx, execution, apperror.InvalidInput("request", "stored request is not valid JSON"))
		_ = msg.Ack(false)
		return
	}

	if _, err := c.executor.Run(ctx, fn, execution, req); err != nil {
		c.infra.Logger.WarningWithContextf(ctx, "[Function Consumer - Webhook] Execution %s ended with runtime error: %v", executionID, err)
	}
	_ = msg.Ack(false)
}

// abandon finishes a claimed execution that cannot be run.
func (c *FunctionConsumer) abandon(ctx context.Context, execution *entity.FunctionExecution, cause error) {
	now := time.Now()
	execution.Status = entity.ExecutionStatusFailed
	execution.Error = apperror.As(cause).Message
	execution.FinishedAt = &now
	if err := c.repository.ExecutionRepo.Finish(execution); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Function Consumer - Webhook] Failed to fail execution %s", execution.ID)
	}
	c.infra.Logger.WarningWithContextf(ctx, "[Function Consumer - Webhook] Execution %s abandoned: %s", execution.ID, execution.Error)
}
