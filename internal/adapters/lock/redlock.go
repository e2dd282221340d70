package lock

import (
	"context"
	"math/rand"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/config"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const lockKeyPrefix = "lock:auction:"

// RedisLocker provides per-auction mutual exclusion across service instances
// using a lease-based Redis lock. The TTL is the safety net against a crashed
// holder; a lost lease surfaces as shared.ErrLockLost.
type RedisLocker struct {
	rs         *redsync.Redsync
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
	logger     zerolog.Logger
}

type RedisLockerParams struct {
	RedisClient *redis.Client
	Config      *config.Config
	Logger      zerolog.Logger
}

// NewRedisLocker creates a new Redis-backed resource locker
func NewRedisLocker(params RedisLockerParams) *RedisLocker {
	pool := goredis.NewPool(params.RedisClient)

	return &RedisLocker{
		rs:         redsync.New(pool),
		ttl:        params.Config.Lock.TTL,
		retries:    params.Config.Lock.Retries,
		retryDelay: params.Config.Lock.RetryDelay,
		logger:     params.Logger.With().Str("component", "redis_locker").Logger(),
	}
}

// WithLock acquires the lock for resourceKey, runs work while it is held and
// releases it on every exit path, including a panic inside work.
func (l *RedisLocker) WithLock(ctx context.Context, resourceKey string, work func(ctx context.Context) error) (err error) {
	mutex := l.rs.NewMutex(
		lockKeyPrefix+resourceKey,
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(l.retries),
		redsync.WithRetryDelayFunc(l.jitteredDelay),
	)

	if lockErr := mutex.LockContext(ctx); lockErr != nil {
		l.logger.Warn().
			Err(lockErr).
			Str("resource", resourceKey).
			Msg("Failed to acquire resource lock")
		return shared.ErrResourceBusy
	}

	l.logger.Debug().Str("resource", resourceKey).Msg("Acquired resource lock")

	defer func() {
		// Unlock deliberately ignores ctx: a cancelled request must still
		// release the lock rather than leave it to expire.
		ok, unlockErr := mutex.Unlock()
		if unlockErr != nil || !ok {
			l.logger.Error().
				Err(unlockErr).
				Str("resource", resourceKey).
				Msg("Resource lock was lost before release; partial effects are unknown")
			if err == nil {
				err = shared.ErrLockLost
			}
			return
		}
		l.logger.Debug().Str("resource", resourceKey).Msg("Released resource lock")
	}()

	return work(ctx)
}

// jitteredDelay spreads contending acquirers so they do not retry in lockstep
func (l *RedisLocker) jitteredDelay(tries int) time.Duration {
	half := l.retryDelay / 2
	return half + time.Duration(rand.Int63n(int64(l.retryDelay)))
}
