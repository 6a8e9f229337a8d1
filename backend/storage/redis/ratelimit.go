// Copyright (C) 2025 groupwire.dev <team@groupwire.dev>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/metrics"
)

const (
	userWindowPrefix  = "rl:user:"  // rl:user:{userId} - per-user minute window
	groupWindowPrefix = "rl:group:" // rl:group:{groupId}:{userId} - burst window
)

// Limiter enforces the fixed-window send limits. Counters live in redis
// so all server instances see the same windows; if redis is down the
// limiter degrades to per-process token buckets rather than letting
// traffic through unmetered.
type Limiter struct {
	rdb *redis.Client

	userLimit   int
	userWindow  time.Duration
	groupLimit  int
	groupWindow time.Duration

	mu       sync.Mutex
	fallback map[string]*fallbackLimiter
}

type fallbackLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLimiter(rdb *redis.Client, userLimit int, userWindow time.Duration, groupLimit int, groupWindow time.Duration) *Limiter {
	l := &Limiter{
		rdb:         rdb,
		userLimit:   userLimit,
		userWindow:  userWindow,
		groupLimit:  groupLimit,
		groupWindow: groupWindow,
		fallback:    make(map[string]*fallbackLimiter),
	}
	go l.gcFallback()
	return l
}

// AllowSend checks the per-user window first, then the per-group burst
// window. Both counters increment even when only one would block, so a
// blocked sender keeps paying into its windows.
func (l *Limiter) AllowSend(ctx context.Context, userID string, groupID uuid.UUID) error {
	if err := l.checkWindow(ctx, userWindowPrefix+userID, l.userLimit, l.userWindow, "user"); err != nil {
		return err
	}
	groupKey := fmt.Sprintf("%s%s:%s", groupWindowPrefix, groupID, userID)
	return l.checkWindow(ctx, groupKey, l.groupLimit, l.groupWindow, "group")
}

func (l *Limiter) checkWindow(ctx context.Context, key string, limit int, window time.Duration, kind string) error {
	// INCR and the TTL set run in one MULTI/EXEC; ExpireNX only arms
	// the window once, so a crash between the two cannot strand a
	// counter without expiry.
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limiter falling back to local buckets")
		return l.checkFallback(key, limit, window, kind)
	}
	count := incr.Val()
	if count > int64(limit) {
		ttl, err := l.rdb.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = window
		}
		metrics.RateLimited.WithLabelValues(kind).Inc()
		return apperr.RateLimited(int(ttl.Round(time.Second).Seconds()), limit)
	}
	return nil
}

func (l *Limiter) checkFallback(key string, limit int, window time.Duration, kind string) error {
	l.mu.Lock()
	fl, ok := l.fallback[key]
	if !ok {
		fl = &fallbackLimiter{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
		}
		l.fallback[key] = fl
	}
	fl.lastSeen = time.Now()
	l.mu.Unlock()

	if !fl.limiter.Allow() {
		metrics.RateLimited.WithLabelValues(kind).Inc()
		retryAfter := int(window.Round(time.Second).Seconds())
		return apperr.RateLimited(retryAfter, limit)
	}
	return nil
}

// gcFallback drops idle local buckets so a redis outage does not grow
// the map without bound.
func (l *Limiter) gcFallback() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for key, fl := range l.fallback {
			if fl.lastSeen.Before(cutoff) {
				delete(l.fallback, key)
			}
		}
		l.mu.Unlock()
	}
}
