package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogurasousui/employer-onboarding/internal/platform/config"
)

func TestMemory_SetGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemory("onboarding")

	_, err := c.Get(ctx, "token")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "token", "abc", time.Minute))
	v, err := c.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, c.Delete(ctx, "token"))
	_, err = c.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Expires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemory("")

	require.NoError(t, c.Set(ctx, "short", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemory("").Set(ctx, "k", "v", 0)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNew_Drivers(t *testing.T) {
	t.Parallel()

	c, err := New(config.CacheConfig{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = New(config.CacheConfig{Driver: "REDIS", RedisAddr: "127.0.0.1:6379"})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, c)
	require.NoError(t, c.Close())

	_, err = New(config.CacheConfig{Driver: "memcached"})
	assert.Error(t, err)
}

func TestPrefixed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "key", prefixed("", "key"))
	assert.Equal(t, "app:key", prefixed("app", "key"))
}
