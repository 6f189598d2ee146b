package throttle_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/geoplaces/internal/throttle"
)

func newTestLimiter(t *testing.T, max int, window time.Duration) (*throttle.LoginLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return throttle.NewLoginLimiter(client, max, window), mr
}

func TestLimiter_LocksAfterMaxAttempts(t *testing.T) {
	l, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, l.RecordFailure(ctx, "bob"))
	}
	locked, err := l.Locked(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, l.RecordFailure(ctx, "bob"))
	locked, err = l.Locked(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestLimiter_UnknownUserNotLocked(t *testing.T) {
	l, _ := newTestLimiter(t, 3, time.Minute)
	locked, err := l.Locked(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLimiter_UsernamesAreCaseSensitive(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.RecordFailure(ctx, "Bob"))
	assert.True(t, mr.Exists("login_failures:Bob"))
	assert.False(t, mr.Exists("login_failures:bob"))

	locked, err := l.Locked(ctx, "Bob")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = l.Locked(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLimiter_CounterWithoutTTLGetsWindow(t *testing.T) {
	l, mr := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set("login_failures:bob", "3"))
	assert.Zero(t, mr.TTL("login_failures:bob"))

	require.NoError(t, l.RecordFailure(ctx, "bob"))
	assert.Equal(t, time.Minute, mr.TTL("login_failures:bob"))
	got, err := mr.Get("login_failures:bob")
	require.NoError(t, err)
	assert.Equal(t, "4", got)
}

func TestLimiter_WindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.RecordFailure(ctx, "bob"))
	assert.Equal(t, time.Minute, mr.TTL("login_failures:bob"))

	mr.FastForward(2 * time.Minute)

	locked, err := l.Locked(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, locked, "counter should be gone after the window")
}

func TestLimiter_WindowStartsAtFirstFailure(t *testing.T) {
	l, mr := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.RecordFailure(ctx, "bob"))
	mr.FastForward(30 * time.Second)
	require.NoError(t, l.RecordFailure(ctx, "bob"))

	assert.Equal(t, 30*time.Second, mr.TTL("login_failures:bob"))
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.RecordFailure(ctx, "bob"))
	require.NoError(t, l.Reset(ctx, "bob"))

	locked, err := l.Locked(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLimiter_Reset_NonExistent(t *testing.T) {
	l, _ := newTestLimiter(t, 1, time.Minute)
	require.NoError(t, l.Reset(context.Background(), "ghost"))
}

func TestLimiter_RedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, 1, time.Minute)
	mr.Close()

	_, err := l.Locked(context.Background(), "bob")
	require.Error(t, err)
	require.Error(t, l.RecordFailure(context.Background(), "bob"))
}

func TestNewLoginLimiter_Defaults(t *testing.T) {
	l, mr := newTestLimiter(t, 0, 0)
	ctx := context.Background()

	require.NoError(t, l.RecordFailure(ctx, "bob"))
	assert.Equal(t, throttle.DefaultWindow, mr.TTL("login_failures:bob"))
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := throttle.Connect(context.Background(), "not-a-url")
	require.Error(t, err)
}

func TestConnect_UnreachableServer(t *testing.T) {
	_, err := throttle.Connect(context.Background(), "redis://localhost:19999")
	require.Error(t, err)
}

func TestConnect_OK(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := throttle.Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	_ = client.Close()
}
