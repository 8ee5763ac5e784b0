package shared

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrAlreadySubmitted is returned by Claim while an earlier claim on the same
// key is still inside the window.
var ErrAlreadySubmitted = errors.New("already submitted")

// SubmitGuard turns away a repeated submission for a short window. Claims
// live in Redis so every desk replica sees them.
type SubmitGuard struct {
	client *redis.Client
	window time.Duration
}

// NewSubmitGuard builds a guard. A non-positive window means ten seconds.
func NewSubmitGuard(client *redis.Client, window time.Duration) *SubmitGuard {
	if window <= 0 {
		window = 10 * time.Second
	}
	return &SubmitGuard{client: client, window: window}
}

// Window reports how long a claim blocks repeats.
func (g *SubmitGuard) Window() time.Duration {
	return g.window
}

// Claim records key under scope, failing with ErrAlreadySubmitted when it is
// already held.
func (g *SubmitGuard) Claim(ctx context.Context, scope, key string) error {
	if g == nil || g.client == nil {
		return errors.New("submit guard not initialised")
	}
	if scope == "" || key == "" {
		return errors.New("submit guard: scope and key required")
	}
	ok, err := g.client.SetNX(ctx, g.redisKey(scope, key), time.Now().UTC().Format(time.RFC3339), g.window).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadySubmitted
	}
	return nil
}

// Release drops a claim so a failed submission can be retried at once.
func (g *SubmitGuard) Release(ctx context.Context, scope, key string) error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Del(ctx, g.redisKey(scope, key)).Err()
}

func (g *SubmitGuard) redisKey(scope, key string) string {
	return "returnsdesk:guard:" + scope + ":" + key
}
