package auth

import (
	"context"
	"testing"
	"time"

	"libraryapi/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresBlacklist(t *testing.T) {
	pool := testutil.PostgresPool(t)
	repo := NewPostgresBlacklist(pool, time.Second)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "jti-live", "u1", time.Now().Add(time.Hour)))
	require.NoError(t, repo.Add(ctx, "jti-live", "u1", time.Now().Add(time.Hour)))
	require.NoError(t, repo.Add(ctx, "jti-old", "u1", time.Now().Add(-time.Hour)))

	live, err := repo.IsBlacklisted(ctx, "jti-live")
	require.NoError(t, err)
	assert.True(t, live)

	old, err := repo.IsBlacklisted(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, old)

	unknown, err := repo.IsBlacklisted(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, unknown)

	n, err := repo.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
