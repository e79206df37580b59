package worker

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/infra/produce"
)

func putObject(t *testing.T, env *workerEnv, bucket, key, content string) {
	t.Helper()
	_, err := env.infra.StorageService.PutObject(context.Background(), bucket, key,
		bytes.NewReader([]byte(content)), int64(len(content)), "text/plain")
	require.NoError(t, err)
}

func TestHandleDelete_Object(t *testing.T) {
	env := newWorkerEnv(t)
	putObject(t, env, testTempBucket, "a/1.txt", "one")
	putObject(t, env, testTempBucket, "a/2.txt", "two")

	c := NewStorageConsumer(nil, env.infra)
	msg, ack := delivery(t, produce.StorageDeleteMessage{
		Kind:          produce.DeleteKindObject,
		StorageBucket: testTempBucket,
		Key:           "a/1.txt",
	}, false)
	c.handleDelete(context.Background(), msg)

	assert.True(t, ack.acked)
	assert.Equal(t, []string{"a/2.txt"}, env.store.Keys(testTempBucket))
}

func TestHandleDelete_MissingObjectIsAcked(t *testing.T) {
	env := newWorkerEnv(t)
	c := NewStorageConsumer(nil, env.infra)

	msg, ack := delivery(t, produce.StorageDeleteMessage{
		Kind:          produce.DeleteKindObject,
		StorageBucket: testTempBucket,
		Key:           "gone.txt",
	}, false)
	c.handleDelete(context.Background(), msg)

	assert.True(t, ack.acked)
}

func TestHandleDelete_Prefix(t *testing.T) {
	env := newWorkerEnv(t)
	putObject(t, env, testTempBucket, "u1/s1/chunk_00000.part", "x")
	putObject(t, env, testTempBucket, "u1/s1/chunk_00001.part", "y")
	putObject(t, env, testTempBucket, "u1/s2/chunk_00000.part", "z")

	c := NewStorageConsumer(nil, env.infra)
	msg, ack := delivery(t, produce.StorageDeleteMessage{
		Kind:          produce.DeleteKindPrefix,
		StorageBucket: testTempBucket,
		Prefix:        "u1/s1/",
	}, false)
	c.handleDelete(context.Background(), msg)

	assert.True(t, ack.acked)
	assert.Equal(t, []string{"u1/s2/chunk_00000.part"}, env.store.Keys(testTempBucket))
}

func TestHandleDelete_Bucket(t *testing.T) {
	env := newWorkerEnv(t)
	require.NoError(t, env.infra.StorageService.CreateBucket(context.Background(), "doomed", 0))
	putObject(t, env, "doomed", "x.txt", "x")

	c := NewStorageConsumer(nil, env.infra)
	msg, ack := delivery(t, produce.StorageDeleteMessage{
		Kind:          produce.DeleteKindBucket,
		StorageBucket: "doomed",
	}, false)
	c.handleDelete(context.Background(), msg)

	assert.True(t, ack.acked)
	assert.Empty(t, env.store.Keys("doomed"))
}

func TestHandleDelete_BadMessagesAreDropped(t *testing.T) {
	env := newWorkerEnv(t)
	c := NewStorageConsumer(nil, env.infra)

	for name, payload := range map[string]any{
		"malformed":    "{not json",
		"no bucket":    produce.StorageDeleteMessage{Kind: produce.DeleteKindObject, Key: "x"},
		"unknown kind": produce.StorageDeleteMessage{Kind: "volume", StorageBucket: testTempBucket},
	} {
		t.Run(name, func(t *testing.T) {
			msg, ack := delivery(t, payload, false)
			c.handleDelete(context.Background(), msg)
			assert.True(t, ack.nacked)
			assert.False(t, ack.requeued)
		})
	}
}

func TestHandleDelete_UnavailableStorageIsRetriedOnce(t *testing.T) {
	env := newWorkerEnv(t)
	env.infra.StorageService = infra.NewStorageService("http://127.0.0.1:1", testPrivateKey, time.Second, http.DefaultTransport)
	c := NewStorageConsumer(nil, env.infra)

	payload := produce.StorageDeleteMessage{Kind: produce.DeleteKindObject, StorageBucket: testTempBucket, Key: "x"}

	msg, ack := delivery(t, payload, false)
	c.handleDelete(context.Background(), msg)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeued)

	msg, ack = delivery(t, payload, true)
	c.handleDelete(context.Background(), msg)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)
}
