package store

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"personasim/internal/config"
	"personasim/internal/errors"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
)

// Locker serialises writers of one output path. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LocalLocker serialises writers inside this process. A key's slot lives
// only while someone holds or waits for it.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot)}
}

func (l *LocalLocker) acquire(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) drop(key string, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Lock blocks until key is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	s := l.acquire(key)
	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.drop(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.drop(key, s)
		return nil, errors.NewIOError(errors.ErrCodePathLocked,
			fmt.Sprintf("timed out waiting for lock on %s", key), ctx.Err())
	}
}

// RedisLocker serialises writers across processes sharing one Redis.
type RedisLocker struct {
	client *goredislib.Client
	rs     *redsync.Redsync
	ttl    time.Duration
	tries  int
	delay  time.Duration
	logger *errors.Logger
}

const lockRetryDelay = 100 * time.Millisecond

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(ctx context.Context, cfg config.LockConfig, logger *errors.Logger) (*RedisLocker, error) {
	client := goredislib.NewClient(&goredislib.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("cannot reach redis at %s", cfg.RedisAddr), err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	tries := 1
	if cfg.WaitTimeout > 0 {
		tries = int(math.Ceil(float64(cfg.WaitTimeout) / float64(lockRetryDelay)))
	}

	logger.Debug("Redis path lock enabled", "addr", cfg.RedisAddr, "ttl", ttl, "tries", tries)

	return &RedisLocker{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		ttl:    ttl,
		tries:  tries,
		delay:  lockRetryDelay,
		logger: logger,
	}, nil
}

// Lock acquires the distributed mutex for key.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := r.rs.NewMutex("personasim:lock:"+key,
		redsync.WithExpiry(r.ttl),
		redsync.WithTries(r.tries),
		redsync.WithRetryDelay(r.delay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.NewIOError(errors.ErrCodePathLocked,
			fmt.Sprintf("%s is locked by another writer", key), err)
	}

	return func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("Failed to release path lock", "key", key, "error", err)
		}
	}, nil
}

// Close closes the Redis client.
func (r *RedisLocker) Close() error {
	return r.client.Close()
}

// chainLocker takes each lock in order and releases them in reverse.
type chainLocker []Locker

func (c chainLocker) Lock(ctx context.Context, key string) (func(), error) {
	releases := make([]func(), 0, len(c))
	release := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, l := range c {
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		releases = append(releases, unlock)
	}
	return release, nil
}

// NewLocker returns the in-process locker, chained with a Redis locker when
// cfg enables it. The returned close func releases Redis resources.
func NewLocker(ctx context.Context, cfg config.LockConfig, logger *errors.Logger) (Locker, func() error, error) {
	local := NewLocalLocker()
	if !cfg.Enabled {
		return local, func() error { return nil }, nil
	}

	redisLocker, err := NewRedisLocker(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return chainLocker{local, redisLocker}, redisLocker.Close, nil
}
