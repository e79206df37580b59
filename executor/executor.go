// Package executor runs function executions against the Deno runtime and
// records their outcome. It is shared by synchronous invocations in the API
// and webhook deliveries in the consumer.
package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/metrics"
	"github.com/tnqbao/gau-platform/repository"
	"gorm.io/datatypes"
)

// Runtime is the part of infra.RuntimeService the executor needs.
type Runtime interface {
	Execute(ctx context.Context, req infra.ExecutionRequest) (*infra.ExecutionResult, error)
}

// Request is what gets stored in FunctionExecution.Request and sent to the
// runtime.
type Request struct {
	Payload json.RawMessage   `json:"payload,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Encode renders r for the execution row.
func (r Request) Encode() datatypes.JSON {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// DecodeRequest reads back a stored request. An empty column yields an
// empty request.
func DecodeRequest(raw datatypes.JSON) (Request, error) {
	var req Request
	if len(raw) == 0 {
		return req, nil
	}
	err := json.Unmarshal(raw, &req)
	return req, err
}

type Executor struct {
	runtime Runtime
	repo    *repository.Repository
	logger  *infra.LoggerClient
	metrics *metrics.Metrics
}

func New(runtime Runtime, repo *repository.Repository, logger *infra.LoggerClient, m *metrics.Metrics) *Executor {
	return &Executor{runtime: runtime, repo: repo, logger: logger, metrics: m}
}

// Run executes fn for an execution row that is already pending or running.
// The outcome, including runtime failures, is written to the row and its
// logs; the returned error is the runtime error, if any.
func (e *Executor) Run(ctx context.Context, fn *entity.Function, execution *entity.FunctionExecution, req Request) (*entity.FunctionExecution, error) {
	started := time.Now()
	if execution.StartedAt == nil {
		execution.StartedAt = &started
	}

	result, runErr := e.runtime.Execute(ctx, infra.ExecutionRequest{
		ExecutionID: execution.ID.String(),
		FunctionID:  fn.ID.String(),
		Payload:     req.Payload,
		Headers:     req.Headers,
		TimeoutMs:   int64(fn.TimeoutSeconds) * 1000,
	})

	finished := time.Now()
	execution.FinishedAt = &finished
	execution.DurationMs = finished.Sub(started).Milliseconds()

	if runErr != nil {
		appErr := apperror.As(runErr)
		execution.Status = entity.ExecutionStatusFailed
		if appErr.Code == apperror.ErrCodeTimeout {
			execution.Status = entity.ExecutionStatusTimedOut
		}
		execution.Error = appErr.Message
	} else {
		execution.StatusCode = result.StatusCode
		execution.Error = result.Error
		if result.DurationMs > 0 {
			execution.DurationMs = result.DurationMs
		}
		if len(result.Body) > 0 && json.Valid(result.Body) {
			execution.Response = datatypes.JSON(result.Body)
		}
		execution.Status = entity.ExecutionStatusSucceeded
		if result.Error != "" || result.StatusCode >= 500 {
			execution.Status = entity.ExecutionStatusFailed
		}
	}

	if err := e.repo.ExecutionRepo.Finish(execution); err != nil {
		e.logger.ErrorWithContextf(ctx, err, "[Executor] Failed to store result of execution %s", execution.ID)
	}
	if result != nil && len(result.Logs) > 0 {
		e.storeLogs(ctx, fn.ID, execution.ID, result.Logs)
	}
	e.metrics.FunctionExecution(execution.Trigger, string(execution.Status))

	e.logger.InfoWithContextf(ctx, "[Executor] Execution %s of %s finished: %s in %dms",
		execution.ID, fn.Name, execution.Status, execution.DurationMs)
	return execution, runErr
}

func (e *Executor) storeLogs(ctx context.Context, functionID, executionID uuid.UUID, lines []infra.RuntimeLogLine) {
	logs := make([]entity.FunctionLog, 0, len(lines))
	for _, line := range lines {
		level := line.Level
		if level == "" {
			level = "info"
		}
		entry := entity.FunctionLog{
			FunctionID:  functionID,
			ExecutionID: executionID,
			Level:       level,
			Message:     line.Message,
		}
		if !line.Timestamp.IsZero() {
			entry.CreatedAt = line.Timestamp
		}
		logs = append(logs, entry)
	}
	if err := e.repo.FunctionLogRepo.CreateBatch(logs); err != nil {
		e.logger.ErrorWithContextf(ctx, err, "[Executor] Failed to store %d log lines of execution %s", len(logs), executionID)
	}
}
