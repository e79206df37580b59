package backend

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-platform/utils"
)

func TestMemoryBackend_PutGetRange(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.EnsureBucket(ctx, "b1", 0))

	info, err := b.PutObject(ctx, "b1", "docs/a.txt", strings.NewReader("hello world"), -1, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size)
	assert.Len(t, info.ETag, 32)

	rc, err := b.GetObject(ctx, "b1", "docs/a.txt", &utils.ByteRange{Start: 6, End: 10})
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "world", string(data))
}

func TestMemoryBackend_NotFound(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	_, err := b.StatObject(ctx, "missing", "k")
	assert.ErrorIs(t, err, ErrBucketNotFound)

	require.NoError(t, b.EnsureBucket(ctx, "b1", 0))
	_, err = b.StatObject(ctx, "b1", "k")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.NoError(t, b.DeleteObject(ctx, "b1", "k"))
}

func TestMemoryBackend_DeletePrefixAndCompose(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.EnsureBucket(ctx, "tmp", 0))
	require.NoError(t, b.EnsureBucket(ctx, "dst", 0))

	for i, part := range []string{"ab", "cd", "e"} {
		_, err := b.PutObject(ctx, "tmp", "u1/chunk_0000"+string(rune('0'+i))+".part", strings.NewReader(part), int64(len(part)), "")
		require.NoError(t, err)
	}

	info, err := b.ComposeObject(ctx, "dst", "out.bin", "tmp",
		[]string{"u1/chunk_00000.part", "u1/chunk_00001.part", "u1/chunk_00002.part"}, "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	n, err := b.DeletePrefix(ctx, "tmp", "u1/")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, b.Keys("tmp"))
	assert.Equal(t, []string{"out.bin"}, b.Keys("dst"))
}

func TestMemoryBackend_PutStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewMemoryBackend()
	require.NoError(t, b.EnsureBucket(ctx, "b1", 0))
	cancel()

	_, err := b.PutObject(ctx, "b1", "k", strings.NewReader("data"), 4, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := testConfig("ftp")
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig("memory")
	b, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Name())
}
