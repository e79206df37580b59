package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the subset of *amqp.Channel the producers need.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type binding struct {
	queue      string
	routingKey string
}

type Produce struct {
	StorageService  *StorageProduceService
	FunctionService *FunctionProduceService
}

var produceInstance *Produce

func InitProduce(channel *amqp.Channel) *Produce {
	if produceInstance != nil {
		return produceInstance
	}

	if err := DeclareTopology(channel); err != nil {
		panic("Failed to declare RabbitMQ topology: " + err.Error())
	}

	produceInstance = NewProduce(channel)
	return produceInstance
}

func NewProduce(publisher Publisher) *Produce {
	return &Produce{
		StorageService:  NewStorageProduceService(publisher),
		FunctionService: NewFunctionProduceService(publisher),
	}
}

func GetProduce() *Produce {
	if produceInstance == nil {
		panic("Produce not initialized. Call InitProduce() first.")
	}
	return produceInstance
}

// DeclareTopology declares every exchange, queue and binding used by the
// producers and consumers. It is idempotent.
func DeclareTopology(channel *amqp.Channel) error {
	topology := map[string][]binding{
		StorageExchange: {
			{StorageDeleteQueue, DeleteObjectRoutingKey},
			{StorageDeleteQueue, DeletePrefixRoutingKey},
			{StorageDeleteQueue, DeleteBucketRoutingKey},
			{ComposeUploadQueue, ComposeUploadRoutingKey},
		},
		FunctionExchange: {
			{FunctionDeployQueue, FunctionDeployRoutingKey},
			{FunctionDeployQueue, FunctionUndeployRoutingKey},
			{FunctionWebhookQueue, FunctionWebhookRoutingKey},
		},
	}

	for exchange, bindings := range topology {
		if err := channel.ExchangeDeclare(
			exchange,
			"topic",
			true,  // durable
			false, // auto-delete
			false, // internal
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}

		for _, b := range bindings {
			if _, err := channel.QueueDeclare(
				b.queue,
				true,  // durable
				false, // auto-delete
				false, // exclusive
				false, // no-wait
				nil,
			); err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}
			if err := channel.QueueBind(b.queue, b.routingKey, exchange, false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.routingKey, err)
			}
		}
	}
	return nil
}

func publishJSON(ctx context.Context, publisher Publisher, exchange, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return publisher.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
