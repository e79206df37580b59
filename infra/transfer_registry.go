package infra

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
)

const transferCancelChannel = "transfers:cancel"

// ErrTransferCancelled is the cancellation cause of a transfer stopped via
// TransferRegistry.Cancel.
var ErrTransferCancelled = errors.New("transfer cancelled")

type activeTransfer struct {
	ownerID string
	cancel  context.CancelCauseFunc
}

// TransferRegistry tracks in-flight uploads so they can be cancelled by id.
// Ownership is stored in Redis and cancel requests are broadcast over Redis
// pub/sub, so the instance serving the stream does not need to be the one
// receiving the cancel request.
type TransferRegistry struct {
	mu        sync.Mutex
	transfers map[string]*activeTransfer

	redis  *RedisClient
	logger *LoggerClient
	ttl    time.Duration
}

type transferCancelMessage struct {
	UploadID string `json:"upload_id"`
	OwnerID  string `json:"owner_id"`
}

// transferClaim is the value of the Redis owner key. Token tells apart two
// registrations by the same owner so release only drops its own claim.
type transferClaim struct {
	OwnerID string `json:"owner_id"`
	Token   string `json:"token"`
}

func NewTransferRegistry(redis *RedisClient, logger *LoggerClient, ttl time.Duration) *TransferRegistry {
	return &TransferRegistry{
		transfers: make(map[string]*activeTransfer),
		redis:     redis,
		logger:    logger,
		ttl:       ttl,
	}
}

func transferOwnerKey(uploadID string) string {
	return "transfer:owner:" + uploadID
}

// Register derives a cancellable context for the transfer. The returned
// release func must be called when the transfer ends. The upload id is
// claimed across instances; a claim held elsewhere yields a conflict.
func (r *TransferRegistry) Register(ctx context.Context, uploadID, ownerID string) (context.Context, func(), error) {
	r.mu.Lock()
	if _, exists := r.transfers[uploadID]; exists {
		r.mu.Unlock()
		return nil, nil, transferInProgress(uploadID)
	}
	transferCtx, cancel := context.WithCancelCause(ctx)
	r.transfers[uploadID] = &activeTransfer{ownerID: ownerID, cancel: cancel}
	r.mu.Unlock()

	forget := func() {
		r.mu.Lock()
		delete(r.transfers, uploadID)
		r.mu.Unlock()
		cancel(nil)
	}

	claim := transferClaim{OwnerID: ownerID, Token: uuid.NewString()}
	claimed := false
	if r.redis != nil {
		ok, err := r.redis.SetNX(ctx, transferOwnerKey(uploadID), claim, r.ttl)
		switch {
		case err != nil:
			r.logger.WarningWithContextf(ctx, "[Transfer] Failed to record owner of %s: %v", uploadID, err)
		case !ok:
			forget()
			return nil, nil, transferInProgress(uploadID)
		default:
			claimed = true
		}
	}

	release := func() {
		forget()
		if claimed {
			if _, err := r.redis.DeleteIfEquals(context.WithoutCancel(ctx), transferOwnerKey(uploadID), claim); err != nil {
				r.logger.WarningWithContextf(ctx, "[Transfer] Failed to release owner of %s: %v", uploadID, err)
			}
		}
	}
	return transferCtx, release, nil
}

func transferInProgress(uploadID string) error {
	return apperror.Conflict("An upload with this id is already in progress.").WithDetail("upload_id", uploadID)
}

// Cancel stops the transfer if requesterID owns it.
func (r *TransferRegistry) Cancel(ctx context.Context, uploadID, requesterID string) error {
	owner, ok := r.owner(ctx, uploadID)
	if !ok {
		return apperror.UploadSessionNotFound(uploadID)
	}
	if owner != requesterID {
		return apperror.Forbidden("You can only cancel your own uploads.")
	}

	if r.cancelLocal(uploadID, owner) {
		return nil
	}
	if r.redis == nil {
		return apperror.UploadSessionNotFound(uploadID)
	}
	if err := r.redis.Publish(ctx, transferCancelChannel, transferCancelMessage{UploadID: uploadID, OwnerID: owner}); err != nil {
		return apperror.ServiceUnavailable("cache").WithCause(err)
	}
	return nil
}

func (r *TransferRegistry) owner(ctx context.Context, uploadID string) (string, bool) {
	r.mu.Lock()
	t, ok := r.transfers[uploadID]
	r.mu.Unlock()
	if ok {
		return t.ownerID, true
	}
	if r.redis == nil {
		return "", false
	}
	var claim transferClaim
	if err := r.redis.Get(ctx, transferOwnerKey(uploadID), &claim); err != nil {
		return "", false
	}
	return claim.OwnerID, true
}

func (r *TransferRegistry) cancelLocal(uploadID, ownerID string) bool {
	r.mu.Lock()
	t, ok := r.transfers[uploadID]
	r.mu.Unlock()
	if !ok || t.ownerID != ownerID {
		return false
	}
	t.cancel(ErrTransferCancelled)
	return true
}

// Active reports whether uploadID is being served by this instance.
func (r *TransferRegistry) Active(uploadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.transfers[uploadID]
	return ok
}

// Listen applies cancel requests broadcast by other instances until ctx is
// done. ready, if not nil, is closed once the subscription is established.
func (r *TransferRegistry) Listen(ctx context.Context, ready chan<- struct{}) error {
	if r.redis == nil {
		if ready != nil {
			close(ready)
		}
		<-ctx.Done()
		return nil
	}

	sub := r.redis.Subscribe(ctx, transferCancelChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var payload transferCancelMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				r.logger.WarningWithContextf(ctx, "[Transfer] Ignoring malformed cancel message: %v", err)
				continue
			}
			if r.cancelLocal(payload.UploadID, payload.OwnerID) {
				r.logger.InfoWithContextf(ctx, "[Transfer] Cancelled upload %s", payload.UploadID)
			}
		}
	}
}
