package staging

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, "arbiter:staging:", time.Hour, nil)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := testRedisStore(t)
	payload := []byte(`{"candidates":["a","b","c"]}`)

	handle, err := store.Put(context.Background(), "run-1", payload)
	require.NoError(t, err)
	assert.Equal(t, "redis", handle.Backend)
	assert.Equal(t, "arbiter:staging:run-1", handle.Key)
	assert.Equal(t, int64(len(payload)), handle.Size)

	got, err := store.Get(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRedisStoreAppliesTTL(t *testing.T) {
	store, mr := testRedisStore(t)

	handle, err := store.Put(context.Background(), "run-1", []byte("payload"))
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = store.Get(context.Background(), handle)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRedisStoreRejectsForeignHandle(t *testing.T) {
	store, _ := testRedisStore(t)

	_, err := store.Get(context.Background(), Handle{Backend: "s3", Key: "x"})
	require.Error(t, err)
}

func TestRedisStoreMissingKey(t *testing.T) {
	store, _ := testRedisStore(t)

	_, err := store.Get(context.Background(), Handle{Backend: "redis", Key: "arbiter:staging:ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestNewRedisStoreInvalidURL(t *testing.T) {
	_, err := NewRedisStore("not-a-url", "p:", time.Hour, nil)
	require.Error(t, err)
}

func TestS3StoreRoundTrip(t *testing.T) {
	mock := NewMockS3Client()
	store, err := NewS3StoreWithClient(context.Background(), mock, "arbiter-staging", nil)
	require.NoError(t, err)
	assert.True(t, mock.CreateBucketCalled)

	payload := []byte("oversized candidate set")
	handle, err := store.Put(context.Background(), "run-7", payload)
	require.NoError(t, err)
	assert.Equal(t, "s3", handle.Backend)
	assert.Equal(t, "arbiter-staging", mock.LastBucket)

	got, err := store.Get(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestS3StoreReusesExistingBucket(t *testing.T) {
	mock := NewMockS3Client()
	mock.Buckets["arbiter-staging"] = true

	_, err := NewS3StoreWithClient(context.Background(), mock, "arbiter-staging", nil)
	require.NoError(t, err)
	assert.True(t, mock.HeadBucketCalled)
	assert.False(t, mock.CreateBucketCalled)
}

func TestS3StoreMissingObject(t *testing.T) {
	mock := NewMockS3Client()
	store, err := NewS3StoreWithClient(context.Background(), mock, "arbiter-staging", nil)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), Handle{Backend: "s3", Key: "ghost"})
	require.Error(t, err)
}

func TestS3StoreRejectsForeignHandle(t *testing.T) {
	mock := NewMockS3Client()
	store, err := NewS3StoreWithClient(context.Background(), mock, "arbiter-staging", nil)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), Handle{Backend: "redis", Key: "x"})
	require.Error(t, err)
}
