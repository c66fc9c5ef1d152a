package xlimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisStore_NilClient(t *testing.T) {
	_, err := NewRedisStore(nil, time.Second)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestRedisStore_FixedWindow(t *testing.T) {
	mr, client := setupMiniredis(t)
	s, err := NewRedisStore(client, 0)
	require.NoError(t, err)
	ctx := context.Background()

	c, err := s.Increment(ctx, "rate-limit:/a:1.1.1.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, Counter{Count: 1, TTL: time.Minute}, c)

	mr.FastForward(15 * time.Second)
	c, err = s.Increment(ctx, "rate-limit:/a:1.1.1.1", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, c.Count)
	assert.Equal(t, 45*time.Second, c.TTL, "existing key keeps its expiry")

	mr.FastForward(46 * time.Second)
	c, err = s.Increment(ctx, "rate-limit:/a:1.1.1.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, Counter{Count: 1, TTL: time.Minute}, c)
}

func TestRedisStore_RepairsMissingExpiry(t *testing.T) {
	mr, client := setupMiniredis(t)
	s, err := NewRedisStore(client, time.Second)
	require.NoError(t, err)

	require.NoError(t, mr.Set("k", "5"))
	c, err := s.Increment(context.Background(), "k", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Counter{Count: 6, TTL: 30 * time.Second}, c)
	assert.Equal(t, 30*time.Second, mr.TTL("k"))
}

func TestRedisStore_IgnoresRequestCancellation(t *testing.T) {
	_, client := setupMiniredis(t)
	s, err := NewRedisStore(client, time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, err := s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.Count)
}

func TestRedisStore_Errors(t *testing.T) {
	mr, client := setupMiniredis(t)
	s, err := NewRedisStore(client, time.Second)
	require.NoError(t, err)

	mr.SetError("LOADING dataset")
	_, err = s.Increment(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, s.Ping(context.Background()), ErrStoreUnavailable)

	mr.SetError("")
	assert.NoError(t, s.Ping(context.Background()))
}

func TestRedisStore_ConcurrentIncrements(t *testing.T) {
	_, client := setupMiniredis(t)
	s, err := NewRedisStore(client, time.Second)
	require.NoError(t, err)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				_, _ = s.Increment(context.Background(), "hot", time.Minute)
			}
		}()
	}
	wg.Wait()

	c, err := s.Increment(context.Background(), "hot", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, workers*perWorker+1, c.Count)
}

func TestRedisStore_CloseOwnership(t *testing.T) {
	_, client := setupMiniredis(t)

	borrowed, err := NewRedisStore(client, time.Second)
	require.NoError(t, err)
	require.NoError(t, borrowed.Close(context.Background()))
	assert.NoError(t, client.Ping(context.Background()).Err(), "borrowed client stays open")

	owned, err := NewRedisStore(client, time.Second, WithOwnedClient())
	require.NoError(t, err)
	require.NoError(t, owned.Close(context.Background()))
	assert.Error(t, client.Ping(context.Background()).Err())
}
