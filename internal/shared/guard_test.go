package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSubmitGuardWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	guard := NewSubmitGuard(client, 5*time.Second)
	ctx := context.Background()

	require.NoError(t, guard.Claim(ctx, "drain", "batch-1"))
	require.ErrorIs(t, guard.Claim(ctx, "drain", "batch-1"), ErrAlreadySubmitted)
	require.NoError(t, guard.Claim(ctx, "promote", "batch-1"))
	require.True(t, mr.Exists("returnsdesk:guard:drain:batch-1"))

	mr.FastForward(6 * time.Second)
	require.NoError(t, guard.Claim(ctx, "drain", "batch-1"))

	require.NoError(t, guard.Release(ctx, "drain", "batch-1"))
	require.NoError(t, guard.Claim(ctx, "drain", "batch-1"))
}

func TestSubmitGuardValidation(t *testing.T) {
	guard := NewSubmitGuard(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), 0)
	require.Equal(t, 10*time.Second, guard.Window())
	require.Error(t, guard.Claim(context.Background(), "", "k"))
	require.Error(t, guard.Claim(context.Background(), "drain", ""))

	var missing *SubmitGuard
	require.Error(t, missing.Claim(context.Background(), "drain", "k"))
	require.NoError(t, missing.Release(context.Background(), "drain", "k"))
}
