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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupwire/groupwire/backend/apperr"
)

func TestFallbackLimiterBlocksAfterBurst(t *testing.T) {
	l := &Limiter{fallback: make(map[string]*fallbackLimiter)}

	for i := 0; i < 5; i++ {
		require.NoError(t, l.checkFallback("rl:user:alice", 5, time.Minute, "user"),
			"request %d should pass", i)
	}

	err := l.checkFallback("rl:user:alice", 5, time.Minute, "user")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeRateLimited, e.Code)
	assert.Equal(t, 5, e.Meta["limit"])
}

func TestFallbackLimitersAreKeyed(t *testing.T) {
	l := &Limiter{fallback: make(map[string]*fallbackLimiter)}

	for i := 0; i < 3; i++ {
		require.NoError(t, l.checkFallback("rl:user:alice", 3, time.Minute, "user"))
	}
	require.Error(t, l.checkFallback("rl:user:alice", 3, time.Minute, "user"))

	// bob has his own bucket
	assert.NoError(t, l.checkFallback("rl:user:bob", 3, time.Minute, "user"))
}

func TestAllowSendFallsBackWhenRedisUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rdb.Close() })

	l := &Limiter{
		rdb:         rdb,
		userLimit:   2,
		userWindow:  time.Minute,
		groupLimit:  2,
		groupWindow: 5 * time.Second,
		fallback:    make(map[string]*fallbackLimiter),
	}

	ctx := context.Background()
	groupID := uuid.New()
	require.NoError(t, l.AllowSend(ctx, "alice", groupID))
	require.NoError(t, l.AllowSend(ctx, "alice", groupID))

	err := l.AllowSend(ctx, "alice", groupID)
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeRateLimited, e.Code)
}
