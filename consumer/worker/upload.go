package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/infra/produce"
	"github.com/tnqbao/gau-platform/repository"
	"github.com/tnqbao/gau-platform/utils"
)

// UploadConsumer assembles the chunks of a completed chunked upload into
// the final object.
type UploadConsumer struct {
	channel    *amqp.Channel
	infra      *infra.Infra
	repository *repository.Repository
}

func NewUploadConsumer(channel *amqp.Channel, infra *infra.Infra, repo *repository.Repository) *UploadConsumer {
	return &UploadConsumer{
		channel:    channel,
		infra:      infra,
		repository: repo,
	}
}

func (c *UploadConsumer) Start(ctx context.Context) error {
	if err := consume(ctx, c.channel, c.infra.Logger, produce.ComposeUploadQueue, "Upload Consumer - Compose", c.handleCompose); err != nil {
		return fmt.Errorf("failed to start compose upload consumer: %w", err)
	}
	return nil
}

func (c *UploadConsumer) handleCompose(ctx context.Context, msg amqp.Delivery) {
	var payload produce.ComposeUploadMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Upload Consumer - Compose] Failed to unmarshal message")
		_ = msg.Nack(false, false)
		return
	}
	uploadID, err := uuid.Parse(payload.UploadID)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Upload Consumer - Compose] Invalid upload ID %q", payload.UploadID)
		_ = msg.Nack(false, false)
		return
	}

	session, err := c.repository.UploadSessionRepo.FindByID(uploadID)
	if err != nil {
		if apperror.HasCode(err, apperror.ErrCodeUploadNotFound) {
			c.infra.Logger.WarningWithContextf(ctx, "[Upload Consumer - Compose] Session %s no longer exists", uploadID)
			_ = msg.Ack(false)
			return
		}
		requeued := retryOrDrop(msg, err)
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Upload Consumer - Compose] Failed to load session %s (requeued: %t)", uploadID, requeued)
		return
	}
	if session.Status != entity.UploadStatusProcessing {
		c.infra.Logger.InfoWithContextf(ctx, "[Upload Consumer - Compose] Session %s is %s, nothing to do", uploadID, session.Status)
		_ = msg.Ack(false)
		return
	}

	file, err := c.compose(ctx, session)
	if err != nil {
		if isRetryable(err) && !msg.Redelivered {
			c.infra.Logger.WarningWithContextf(ctx, "[Upload Consumer - Compose] Session %s failed, retrying: %v", uploadID, err)
			_ = msg.Nack(false, true)
			return
		}
		c.fail(ctx, session, err)
		_ = msg.Ack(false)
		return
	}

	if err := c.repository.UploadSessionRepo.MarkCompleted(session.ID, file.ID); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Upload Consumer - Compose] Failed to mark session %s completed", session.ID)
	}
	c.cleanup(ctx, session)

	c.infra.Logger.InfoWithContextf(ctx, "[Upload Consumer - Compose] Session %s completed as file %s (%d bytes)", session.ID, file.ID, file.Size)
	_ = msg.Ack(false)
}

// compose concatenates the chunks into the bucket and records the file.
func (c *UploadConsumer) compose(ctx context.Context, session *entity.UploadSession) (*entity.File, error) {
	bucket, err := c.repository.BucketRepo.FindByID(session.BucketID)
	if err != nil {
		return nil, err
	}

	existing, err := c.repository.FileRepo.FindByBucketAndPath(bucket.ID, session.Path)
	switch {
	case err == nil && !session.Overwrite:
		return nil, apperror.FileAlreadyExists(session.Path)
	case err != nil && !apperror.HasCode(err, apperror.ErrCodeFileNotFound):
		return nil, err
	case err != nil:
		existing = nil
	}

	info, err := c.infra.StorageService.ComposeObject(ctx, bucket.StorageName, session.Path, infra.ComposeRequest{
		SourceBucket: session.TempBucket,
		Sources:      session.ChunkObjectKeys(),
		ContentType:  session.ContentType,
	})
	if err != nil {
		return nil, err
	}
	if info.Size != session.FileSize {
		if existing == nil {
			_ = c.infra.StorageService.DeleteObject(ctx, bucket.StorageName, session.Path)
		}
		return nil, apperror.InvalidInput("chunks", fmt.Sprintf("assembled %d bytes, expected %d", info.Size, session.FileSize))
	}

	parent, name := utils.SplitObjectPath(session.Path)
	file := &entity.File{
		BucketID:    bucket.ID,
		OwnerID:     session.UserID,
		Path:        session.Path,
		Name:        name,
		ParentPath:  parent,
		ContentType: session.ContentType,
		Size:        info.Size,
		ETag:        info.ETag,
	}
	if existing != nil {
		err = c.repository.FileRepo.Save(file)
	} else {
		err = c.repository.FileRepo.Create(file)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (c *UploadConsumer) fail(ctx context.Context, session *entity.UploadSession, cause error) {
	reason := apperror.As(cause).Message
	c.infra.Logger.ErrorWithContextf(ctx, cause, "[Upload Consumer - Compose] Session %s failed", session.ID)
	if _, err := c.repository.UploadSessionRepo.Transition(session.ID,
		[]entity.UploadStatus{entity.UploadStatusProcessing}, entity.UploadStatusFailed, reason); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Upload Consumer - Compose] Failed to mark session %s failed", session.ID)
	}
	c.cleanup(ctx, session)
}

// cleanup removes the chunk objects and the chunk index of session.
func (c *UploadConsumer) cleanup(ctx context.Context, session *entity.UploadSession) {
	if err := c.infra.StorageService.DeletePrefix(ctx, session.TempBucket, session.TempPrefix); err != nil {
		c.infra.Logger.WarningWithContextf(ctx, "[Upload Consumer] Failed to delete chunks of %s: %v", session.ID, err)
	}
	if err := c.infra.Redis.Delete(ctx, session.ChunkSetKey()); err != nil {
		c.infra.Logger.WarningWithContextf(ctx, "[Upload Consumer] Failed to delete chunk index of %s: %v", session.ID, err)
	}
}
