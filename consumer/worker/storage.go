package worker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/infra/produce"
)

// StorageConsumer removes bytes from the object store after their metadata
// has been deleted by the API.
type StorageConsumer struct {
	channel *amqp.Channel
	infra   *infra.Infra
}

func NewStorageConsumer(channel *amqp.Channel, infra *infra.Infra) *StorageConsumer {
	return &StorageConsumer{
		channel: channel,
		infra:   infra,
	}
}

func (c *StorageConsumer) Start(ctx context.Context) error {
	if err := consume(ctx, c.channel, c.infra.Logger, produce.StorageDeleteQueue, "Storage Consumer - Delete", c.handleDelete); err != nil {
		return fmt.Errorf("failed to start storage delete consumer: %w", err)
	}
	return nil
}

func (c *StorageConsumer) handleDelete(ctx context.Context, msg amqp.Delivery) {
	var payload produce.StorageDeleteMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Storage Consumer - Delete] Failed to unmarshal message")
		_ = msg.Nack(false, false)
		return
	}
	if payload.StorageBucket == "" {
		c.infra.Logger.WarningWithContextf(ctx, "[Storage Consumer - Delete] Message without storage bucket dropped")
		_ = msg.Nack(false, false)
		return
	}

	storage := c.infra.StorageService
	var err error
	switch payload.Kind {
	case produce.DeleteKindObject:
		err = storage.DeleteObject(ctx, payload.StorageBucket, payload.Key)
	case produce.DeleteKindPrefix:
		err = storage.DeletePrefix(ctx, payload.StorageBucket, payload.Prefix)
	case produce.DeleteKindBucket:
		if err = storage.DeletePrefix(ctx, payload.StorageBucket, ""); err == nil {
			err = storage.DeleteBucket(ctx, payload.StorageBucket)
		}
	default:
		c.infra.Logger.WarningWithContextf(ctx, "[Storage Consumer - Delete] Unknown delete kind %q dropped", payload.Kind)
		_ = msg.Nack(false, false)
		return
	}

	if err != nil {
		requeued := retryOrDrop(msg, err)
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Storage Consumer - Delete] Failed to delete %s %s/%s%s (requeued: %t)",
			payload.Kind, payload.StorageBucket, payload.Key, payload.Prefix, requeued)
		return
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Storage Consumer - Delete] Deleted %s %s/%s%s (%s)",
		payload.Kind, payload.StorageBucket, payload.Key, payload.Prefix, payload.Reason)
	_ = msg.Ack(false)
}
