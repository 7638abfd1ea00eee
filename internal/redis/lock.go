package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// LinkGuard serializes magic link redemption across instances.
type LinkGuard struct {
	Client *redis.Client
}

func NewLinkGuard(client *redis.Client) *LinkGuard {
	return &LinkGuard{Client: client}
}

const linkKeyPrefix = "magic_link:"

// ClaimToken marks a payment link token as taken for ttl. Only the first
// caller for a given token gets true.
func (r *LinkGuard) ClaimToken(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	return r.Client.SetNX(ctx, linkKeyPrefix+token, time.Now().Unix(), ttl).Result()
}

func (r *LinkGuard) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
