package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-identity-core/apierrors"
)

func setupLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter, err := NewLimiter(client)
	require.NoError(t, err)
	return limiter, mr
}

func TestLimiterAdmitsUpToLimit(t *testing.T) {
	limiter, _ := setupLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Check(ctx, "signin:10.0.0.1", 5, time.Minute))
	}
}

func TestLimiterDeniesOverLimitWithRetryAfter(t *testing.T) {
	limiter, _ := setupLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Check(ctx, "signin:10.0.0.1", 3, time.Minute))
	}

	err := limiter.Check(ctx, "signin:10.0.0.1", 3, time.Minute)
	require.Error(t, err)
	require.True(t, apierrors.IsCode(err, apierrors.CodeRateLimited))

	apiErr := apierrors.From(err)
	require.NotNil(t, apiErr)
	assert.Greater(t, apiErr.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, apiErr.RetryAfter, time.Minute)
}

func TestLimiterIdentifiersAreIndependent(t *testing.T) {
	limiter, _ := setupLimiter(t)
	ctx := context.Background()

	require.NoError(t, limiter.Check(ctx, "signin:10.0.0.1", 1, time.Minute))
	err := limiter.Check(ctx, "signin:10.0.0.1", 1, time.Minute)
	require.True(t, apierrors.IsCode(err, apierrors.CodeRateLimited))

	// Other identifiers keep their own counter.
	require.NoError(t, limiter.Check(ctx, "signin:10.0.0.2", 1, time.Minute))
	require.NoError(t, limiter.Check(ctx, "signup:10.0.0.1", 1, time.Minute))
}

func TestLimiterWindowResets(t *testing.T) {
	limiter, mr := setupLimiter(t)
	ctx := context.Background()

	require.NoError(t, limiter.Check(ctx, "signin:10.0.0.1", 1, time.Minute))
	err := limiter.Check(ctx, "signin:10.0.0.1", 1, time.Minute)
	require.True(t, apierrors.IsCode(err, apierrors.CodeRateLimited))

	mr.FastForward(time.Minute + time.Second)

	require.NoError(t, limiter.Check(ctx, "signin:10.0.0.1", 1, time.Minute))
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "10.0.0.1:/session/signin", Identifier("10.0.0.1", "/session/signin"))
}
