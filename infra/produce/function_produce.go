package produce

import (
	"context"
	"time"
)

const (
	FunctionExchange = "function.exchange"

	FunctionDeployQueue        = "function.deploy"
	FunctionDeployRoutingKey   = "function.deploy"
	FunctionUndeployRoutingKey = "function.undeploy"

	FunctionWebhookQueue      = "function.webhook"
	FunctionWebhookRoutingKey = "function.webhook"
)

type DeployAction string

const (
	DeployActionDeploy   DeployAction = "deploy"
	DeployActionUndeploy DeployAction = "undeploy"
)

// FunctionDeployMessage carries the function version it was produced for;
// the consumer drops messages older than the stored version.
type FunctionDeployMessage struct {
	Action     DeployAction `json:"action"`
	FunctionID string       `json:"function_id"`
	Version    int          `json:"version"`
	UserID     string       `json:"user_id,omitempty"`
	Timestamp  int64        `json:"timestamp"`
}

type WebhookDeliveryMessage struct {
	ExecutionID string `json:"execution_id"`
	WebhookID   string `json:"webhook_id"`
	FunctionID  string `json:"function_id"`
	Timestamp   int64  `json:"timestamp"`
}

type FunctionProduceService struct {
	publisher Publisher
}

func NewFunctionProduceService(publisher Publisher) *FunctionProduceService {
	return &FunctionProduceService{publisher: publisher}
}

func (s *FunctionProduceService) PublishDeploy(ctx context.Context, functionID string, version int, userID string) error {
	msg := FunctionDeployMessage{
		Action:     DeployActionDeploy,
		FunctionID: functionID,
		Version:    version,
		UserID:     userID,
		Timestamp:  time.Now().Unix(),
	}
	return publishJSON(ctx, s.publisher, FunctionExchange, FunctionDeployRoutingKey, msg)
}

func (s *FunctionProduceService) PublishUndeploy(ctx context.Context, functionID string, version int, userID string) error {
	msg := FunctionDeployMessage{
		Action:     DeployActionUndeploy,
		FunctionID: functionID,
		Version:    version,
		UserID:     userID,
		Timestamp:  time.Now().Unix(),
	}
	return publishJSON(ctx, s.publisher, FunctionExchange, FunctionUndeployRoutingKey, msg)
}

func (s *FunctionProduceService) PublishWebhookDelivery(ctx context.Context, msg WebhookDeliveryMessage) error {
	msg.Timestamp = time.Now().Unix()
	return publishJSON(ctx, s.publisher, FunctionExchange, FunctionWebhookRoutingKey, msg)
}
