package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if it is still held by the caller
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a best-effort mutual exclusion over a Redis key. It keeps
// replicas from running the same scheduled job at once; correctness never
// depends on it.
type Lease struct {
	client    *redis.Client
	keyPrefix string
	owner     string
}

// NewLease creates a lease helper identified by a random owner token
func NewLease(client *redis.Client, keyPrefix string) *Lease {
	return &Lease{
		client:    client,
		keyPrefix: keyPrefix,
		owner:     uuid.NewString(),
	}
}

func (l *Lease) key(name string) string {
	return fmt.Sprintf("%s:lease:%s", l.keyPrefix, name)
}

// Acquire tries to take the named lease for ttl
func (l *Lease) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(name), l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lease %s: %w", name, err)
	}
	return ok, nil
}

// Release gives the named lease back if this owner still holds it
func (l *Lease) Release(ctx context.Context, name string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(name)}, l.owner).Err(); err != nil {
		return fmt.Errorf("releasing lease %s: %w", name, err)
	}
	return nil
}
