package reset

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/staffdesk/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewRegistryWithClient(client, time.Hour), mr
}

func TestCreateReturnsOpaqueToken(t *testing.T) {
	registry, _ := setupRegistry(t)
	ctx := context.Background()

	token, expiresAt, err := registry.Create(ctx, 42, types.RoleUser)
	require.NoError(t, err)
	assert.Len(t, token, 40) // 20 random bytes, hex-encoded
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	other, _, err := registry.Create(ctx, 42, types.RoleUser)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestConsumeIsSingleUse(t *testing.T) {
	registry, _ := setupRegistry(t)
	ctx := context.Background()

	token, _, err := registry.Create(ctx, 42, types.RoleAdmin)
	require.NoError(t, err)

	id, role, err := registry.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	assert.Equal(t, types.RoleAdmin, role)

	_, _, err = registry.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestConsumeUnknownToken(t *testing.T) {
	registry, _ := setupRegistry(t)

	_, _, err := registry.Consume(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestConsumeExpiredToken(t *testing.T) {
	registry, mr := setupRegistry(t)
	ctx := context.Background()

	token, _, err := registry.Create(ctx, 42, types.RoleUser)
	require.NoError(t, err)

	mr.FastForward(time.Hour + time.Minute)

	_, _, err = registry.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestExpiredAndUnknownAreIndistinguishable(t *testing.T) {
	registry, mr := setupRegistry(t)
	ctx := context.Background()

	token, _, err := registry.Create(ctx, 42, types.RoleUser)
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	_, _, expiredErr := registry.Consume(ctx, token)
	_, _, unknownErr := registry.Consume(ctx, "deadbeef")
	assert.Equal(t, expiredErr, unknownErr)
}
