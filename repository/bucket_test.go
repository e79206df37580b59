package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
)

func TestBucketRepository_CreateAndFind(t *testing.T) {
	repo := newTestRepository(t)
	owner := uuid.New()

	bucket := &entity.Bucket{OwnerID: owner, Name: "photos"}
	require.NoError(t, repo.BucketRepo.Create(bucket))
	assert.NotEqual(t, uuid.Nil, bucket.ID)
	assert.Equal(t, entity.StorageNameFor(bucket.ID), bucket.StorageName)
	assert.Len(t, bucket.StorageName, 34)

	found, err := repo.BucketRepo.FindOwned(bucket.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "photos", found.Name)

	_, err = repo.BucketRepo.FindOwned(bucket.ID, uuid.New())
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeBucketNotFound))
}

func TestBucketRepository_DuplicateNamePerOwner(t *testing.T) {
	repo := newTestRepository(t)
	owner := uuid.New()

	require.NoError(t, repo.BucketRepo.Create(&entity.Bucket{OwnerID: owner, Name: "docs"}))

	err := repo.BucketRepo.Create(&entity.Bucket{OwnerID: owner, Name: "docs"})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeBucketAlreadyExists))

	// another owner may reuse the name
	assert.NoError(t, repo.BucketRepo.Create(&entity.Bucket{OwnerID: uuid.New(), Name: "docs"}))
}

func TestBucketRepository_UsageBytes(t *testing.T) {
	repo := newTestRepository(t)
	owner := uuid.New()
	bucket := &entity.Bucket{OwnerID: owner, Name: "usage"}
	require.NoError(t, repo.BucketRepo.Create(bucket))

	used, err := repo.BucketRepo.UsageBytes(bucket.ID)
	require.NoError(t, err)
	assert.Zero(t, used)

	for i, size := range []int64{10, 32} {
		require.NoError(t, repo.FileRepo.Create(&entity.File{
			BucketID: bucket.ID, OwnerID: owner, Path: string(rune('a' + i)), Name: "f", Size: size,
		}))
	}
	used, err = repo.BucketRepo.UsageBytes(bucket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), used)
}
