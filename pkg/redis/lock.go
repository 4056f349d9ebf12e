package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another process is never removed.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a single-holder lease on a Redis key.
type Lock struct {
	client redis.UniversalClient
}

func NewLock(client redis.UniversalClient) *Lock {
	return &Lock{client: client}
}

// TryLock returns ok=false without error when someone else holds the key.
func (l *Lock) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			logrus.Warnf("Failed to release lock %s: %v", key, err)
		}
	}
	return release, true, nil
}
