package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lockout throttles repeated failed logins per account using Redis
// counters. Redis being unreachable never blocks logins; all errors
// fail open and are only logged.
type Lockout struct {
	rdb       *redis.Client
	logger    *slog.Logger
	threshold int
	window    time.Duration
	cooldown  time.Duration
}

func NewLockout(rdb *redis.Client, logger *slog.Logger, threshold int, window, cooldown time.Duration) *Lockout {
	return &Lockout{
		rdb:       rdb,
		logger:    logger,
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
	}
}

func lockoutKey(username string) string { return "auth:lockout:" + username }
func failKey(username string) string    { return "auth:fail:" + username }

// Locked reports whether the account is currently in cooldown.
func (l *Lockout) Locked(ctx context.Context, username string) bool {
	if l == nil || l.rdb == nil {
		return false
	}
	n, err := l.rdb.Exists(ctx, lockoutKey(username)).Result()
	if err != nil {
		l.logger.Warn("lockout check failed", slog.Any("error", err))
		return false
	}
	return n > 0
}

// RecordFailure bumps the failure counter and arms the cooldown once
// the threshold is reached inside the window.
func (l *Lockout) RecordFailure(ctx context.Context, username string) {
	if l == nil || l.rdb == nil {
		return
	}
	key := failKey(username)
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("lockout incr failed", slog.Any("error", err))
		return
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.Warn("lockout expire failed", slog.Any("error", err))
		}
	}
	if count >= int64(l.threshold) {
		if err := l.rdb.Set(ctx, lockoutKey(username), 1, l.cooldown).Err(); err != nil {
			l.logger.Warn("lockout arm failed", slog.Any("error", err))
		}
	}
}

// Reset clears failure state after a successful login.
func (l *Lockout) Reset(ctx context.Context, username string) {
	if l == nil || l.rdb == nil {
		return
	}
	if err := l.rdb.Del(ctx, failKey(username), lockoutKey(username)).Err(); err != nil {
		l.logger.Warn("lockout reset failed", slog.Any("error", err))
	}
}
