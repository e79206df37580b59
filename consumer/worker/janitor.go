package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/repository"
)

const (
	expireUploadsSchedule     = "@every 10m"
	timeOutExecutionsSchedule = "@every 5m"

	janitorBatchSize       = 200
	defaultFunctionTimeout = 30 * time.Second
	// Executions younger than this are never swept, whatever their timeout.
	executionGrace = time.Minute
)

// Janitor periodically expires abandoned upload sessions and finalises
// executions whose worker never reported back.
type Janitor struct {
	cron       *cron.Cron
	infra      *infra.Infra
	repository *repository.Repository
	batchSize  int
}

func NewJanitor(infra *infra.Infra, repo *repository.Repository) *Janitor {
	return &Janitor{
		cron:       cron.New(),
		infra:      infra,
		repository: repo,
		batchSize:  janitorBatchSize,
	}
}

// Start schedules the sweeps and stops them once ctx is done.
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc(expireUploadsSchedule, func() { j.ExpireUploads(ctx, time.Now()) }); err != nil {
		return fmt.Errorf("failed to schedule upload expiry: %w", err)
	}
	if _, err := j.cron.AddFunc(timeOutExecutionsSchedule, func() { j.TimeOutExecutions(ctx, time.Now()) }); err != nil {
		return fmt.Errorf("failed to schedule execution timeouts: %w", err)
	}

	j.cron.Start()
	j.infra.Logger.InfoWithContextf(ctx, "[Janitor] Scheduler started")

	go func() {
		<-ctx.Done()
		<-j.cron.Stop().Done()
		j.infra.Logger.InfoWithContextf(context.Background(), "[Janitor] Scheduler stopped")
	}()
	return nil
}

// ExpireUploads moves open sessions past their deadline to EXPIRED and
// removes their chunks. It returns the number of sessions expired.
func (j *Janitor) ExpireUploads(ctx context.Context, now time.Time) int {
	sessions, err := j.repository.UploadSessionRepo.FindExpired(now, j.batchSize)
	if err != nil {
		j.infra.Logger.ErrorWithContextf(ctx, err, "[Janitor - Uploads] Failed to list expired sessions")
		return 0
	}

	expired := 0
	for i := range sessions {
		session := &sessions[i]
		moved, err := j.repository.UploadSessionRepo.Transition(session.ID,
			[]entity.UploadStatus{entity.UploadStatusInit, entity.UploadStatusUploading},
			entity.UploadStatusExpired, "upload session expired")
		if err != nil {
			j.infra.Logger.ErrorWithContextf(ctx, err, "[Janitor - Uploads] Failed to expire session %s", session.ID)
			continue
		}
		if !moved {
			continue
		}
		expired++

		if err := j.infra.StorageService.DeletePrefix(ctx, session.TempBucket, session.TempPrefix); err != nil {
			j.infra.Logger.WarningWithContextf(ctx, "[Janitor - Uploads] Failed to delete chunks of %s: %v", session.ID, err)
		}
		if err := j.infra.Redis.Delete(ctx, session.ChunkSetKey()); err != nil {
			j.infra.Logger.WarningWithContextf(ctx, "[Janitor - Uploads] Failed to delete chunk index of %s: %v", session.ID, err)
		}
	}

	if expired > 0 {
		j.infra.Logger.InfoWithContextf(ctx, "[Janitor - Uploads] Expired %d upload sessions", expired)
	}
	return expired
}

// TimeOutExecutions marks pending or running executions as timed out once
// twice their function timeout has passed since creation.
func (j *Janitor) TimeOutExecutions(ctx context.Context, now time.Time) int {
	timedOut := 0
	var after *entity.FunctionExecution
	for {
		executions, err := j.repository.ExecutionRepo.FindUnfinishedBefore(now.Add(-executionGrace), after, j.batchSize)
		if err != nil {
			j.infra.Logger.ErrorWithContextf(ctx, err, "[Janitor - Executions] Failed to list unfinished executions")
			break
		}

		for i := range executions {
			execution := &executions[i]
			timeout := defaultFunctionTimeout
			if execution.Function != nil && execution.Function.TimeoutSeconds > 0 {
				timeout = time.Duration(execution.Function.TimeoutSeconds) * time.Second
			}
			if now.Before(execution.CreatedAt.Add(2 * timeout)) {
				continue
			}
			if err := j.repository.ExecutionRepo.MarkTimedOut(execution.ID, now); err != nil {
				j.infra.Logger.ErrorWithContextf(ctx, err, "[Janitor - Executions] Failed to time out execution %s", execution.ID)
				continue
			}
			timedOut++
		}

		if len(executions) < j.batchSize || ctx.Err() != nil {
			break
		}
		after = &executions[len(executions)-1]
	}

	if timedOut > 0 {
		j.infra.Logger.InfoWithContextf(ctx, "[Janitor - Executions] Timed out %d executions", timedOut)
	}
	return timedOut
}
