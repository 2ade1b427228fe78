// Package redislock implements store.Locker on top of a Redis key so that
// several processes sharing one document take turns writing it.
package redislock

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/internal/store"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// extendScript refreshes the expiry only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Options configures a Locker.
type Options struct {
	// Key is the Redis key guarding the document.
	Key string
	// TTL bounds how long a crashed holder keeps the lock. A live holder
	// extends it every TTL/3 until unlock, so long critical sections keep
	// exclusive access.
	TTL time.Duration
	// RetryInterval is the pause between acquisition attempts.
	RetryInterval time.Duration
}

// Locker is a token-based mutual exclusion lock stored in Redis.
type Locker struct {
	client redis.UniversalClient
	opts   Options
}

var _ store.Locker = (*Locker)(nil)

// New creates a Locker. Zero option fields get defaults.
func New(client redis.UniversalClient, opts Options) *Locker {
	if opts.Key == "" {
		opts.Key = "quickcart:document:lock"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 25 * time.Millisecond
	}
	return &Locker{client: client, opts: opts}
}

// Dial parses a redis:// URL, connects and pings the server.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// Lock polls until the key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, l.opts.Key, token, l.opts.TTL).Result()
		if err != nil {
			return nil, errors.Wrap(err, "acquire redis lock")
		}
		if ok {
			return l.hold(ctx, token), nil
		}

		timer := time.NewTimer(l.opts.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// hold keeps the lease alive in the background and returns the unlock
// function that stops renewal and releases the key.
func (l *Locker) hold(ctx context.Context, token string) func() {
	lg := zctx.From(ctx)

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.renew(renewCtx, lg, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done
			l.release(lg, token)
		})
	}
}

func (l *Locker) renew(ctx context.Context, lg *zap.Logger, token string) {
	ticker := time.NewTicker(max(l.opts.TTL/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := extendScript.Run(ctx, l.client, []string{l.opts.Key}, token, l.opts.TTL.Milliseconds()).Int()
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			lg.Warn("Extend redis lock", zap.String("key", l.opts.Key), zap.Error(err))
		case n == 0:
			lg.Warn("Redis lock lost", zap.String("key", l.opts.Key))
			return
		}
	}
}

func (l *Locker) release(lg *zap.Logger, token string) {
	// The caller's context may already be cancelled; release regardless.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{l.opts.Key}, token).Err(); err != nil {
		lg.Warn("Release redis lock", zap.String("key", l.opts.Key), zap.Error(err))
	}
}
