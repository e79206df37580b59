package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-platform/entity"
)

func newSession(bucket *entity.Bucket, expires time.Time) *entity.UploadSession {
	return &entity.UploadSession{
		BucketID:    bucket.ID,
		UserID:      bucket.OwnerID,
		FileName:    "movie.mp4",
		Path:        "movie.mp4",
		FileSize:    25,
		ChunkSize:   10,
		TotalChunks: 3,
		Status:      entity.UploadStatusInit,
		TempBucket:  "tmp",
		TempPrefix:  "uploads/x/",
		ExpiresAt:   expires,
	}
}

func TestUploadSessionRepository_Transition(t *testing.T) {
	repo := newTestRepository(t)
	bucket := seedBucket(t, repo)
	session := newSession(bucket, time.Now().Add(time.Hour))
	require.NoError(t, repo.UploadSessionRepo.Create(session))

	require.NoError(t, repo.UploadSessionRepo.SetUploadedChunks(session.ID, 2))

	open := []entity.UploadStatus{entity.UploadStatusInit, entity.UploadStatusUploading}
	changed, err := repo.UploadSessionRepo.Transition(session.ID, open, entity.UploadStatusProcessing, "")
	require.NoError(t, err)
	assert.True(t, changed)

	// second caller loses the race
	changed, err = repo.UploadSessionRepo.Transition(session.ID, open, entity.UploadStatusAborted, "")
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := repo.UploadSessionRepo.FindByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.UploadStatusProcessing, stored.Status)
	assert.Equal(t, 2, stored.UploadedChunks)

	fileID := uuid.New()
	require.NoError(t, repo.UploadSessionRepo.MarkCompleted(session.ID, fileID))
	stored, err = repo.UploadSessionRepo.FindByID(session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FileID)
	assert.Equal(t, fileID, *stored.FileID)
}

func TestUploadSessionRepository_FindExpired(t *testing.T) {
	repo := newTestRepository(t)
	bucket := seedBucket(t, repo)
	now := time.Now()

	expired := newSession(bucket, now.Add(-time.Minute))
	fresh := newSession(bucket, now.Add(time.Hour))
	done := newSession(bucket, now.Add(-time.Minute))
	done.Status = entity.UploadStatusCompleted
	for _, s := range []*entity.UploadSession{expired, fresh, done} {
		require.NoError(t, repo.UploadSessionRepo.Create(s))
	}

	sessions, err := repo.UploadSessionRepo.FindExpired(now, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, expired.ID, sessions[0].ID)
}

func TestUploadSession_ExpectedChunkSize(t *testing.T) {
	s := &entity.UploadSession{FileSize: 25, ChunkSize: 10, TotalChunks: 3}
	assert.Equal(t, int64(10), s.ExpectedChunkSize(0))
	assert.Equal(t, int64(10), s.ExpectedChunkSize(1))
	assert.Equal(t, int64(5), s.ExpectedChunkSize(2))
	assert.Equal(t, int64(-1), s.ExpectedChunkSize(3))
	assert.Equal(t, int64(-1), s.ExpectedChunkSize(-1))
}
