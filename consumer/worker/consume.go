package worker

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/infra"
)

// consume registers a manual-ack consumer on queue and hands every delivery
// to handle until ctx is done or the channel closes.
func consume(ctx context.Context, channel *amqp.Channel, logger *infra.LoggerClient, queue, tag string, handle func(context.Context, amqp.Delivery)) error {
	msgs, err := channel.Consume(
		queue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", queue, err)
	}

	logger.InfoWithContextf(ctx, "[%s] Started listening on queue: %s", tag, queue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.InfoWithContextf(ctx, "[%s] Shutting down...", tag)
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.WarningWithContextf(ctx, "[%s] Channel closed", tag)
					return
				}
				handle(ctx, msg)
			}
		}
	}()

	return nil
}

// retryOrDrop requeues a delivery once for retryable errors and drops it
// otherwise. Errors that are not AppErrors (database, network) count as
// retryable. It reports whether the message was requeued.
func retryOrDrop(msg amqp.Delivery, err error) bool {
	if isRetryable(err) && !msg.Redelivered {
		_ = msg.Nack(false, true)
		return true
	}
	_ = msg.Nack(false, false)
	return false
}

func isRetryable(err error) bool {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return true
	}
	return appErr.Retryable
}
