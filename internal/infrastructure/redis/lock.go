package redis

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseLockScript deletes the key only while it still holds our token.
var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock serialises listener runs for one payment across worker
// instances. The TTL bounds how long a crashed holder blocks others.
type DistributedLock struct {
	client   *redis.Client
	key      string
	token    string
	ttl      time.Duration
	acquired bool
}

// NewPaymentLock returns an unacquired lock for the given payment.
func NewPaymentLock(client *redis.Client, paymentID uuid.UUID, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    fmt.Sprintf("lock:payment:%s", paymentID),
		token:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire tries once; it reports false when another holder owns the lock.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domainErrors.ErrLockAcquisitionFailed, err)
	}
	l.acquired = ok
	return ok, nil
}

func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}
	l.acquired = false

	n, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if n == 0 {
		return domainErrors.ErrLockNotHeld
	}
	return nil
}
