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

package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/metrics"
	redisstore "github.com/groupwire/groupwire/backend/storage/redis"
)

// retryHintMillis tells EventSource clients how long to wait before
// reconnecting after a drop.
const retryHintMillis = 5000

// Hub tracks live SSE streams. It caps concurrent streams per user and
// runs each stream's heartbeat loop; the heartbeat carries relay_lag
// when the redis fan-out path is unhealthy so clients know to poll.
type Hub struct {
	pubsub    *redisstore.PubSub
	presence  PresenceToucher
	heartbeat time.Duration
	maxMissed int
	maxPerUsr int

	mu      sync.Mutex
	streams map[string]int
}

// PresenceToucher is the slice of the presence store the hub needs.
type PresenceToucher interface {
	TouchPresence(ctx context.Context, userID string, online bool) error
}

func NewHub(pubsub *redisstore.PubSub, presence PresenceToucher, heartbeat time.Duration, maxMissed, maxStreamsPerUser int) *Hub {
	return &Hub{
		pubsub:    pubsub,
		presence:  presence,
		heartbeat: heartbeat,
		maxMissed: maxMissed,
		maxPerUsr: maxStreamsPerUser,
		streams:   make(map[string]int),
	}
}

func (h *Hub) register(userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams[userID] >= h.maxPerUsr {
		return apperr.RateLimited(1, h.maxPerUsr)
	}
	h.streams[userID]++
	metrics.SSEConnections.Inc()
	return nil
}

func (h *Hub) unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streams[userID] <= 1 {
		delete(h.streams, userID)
	} else {
		h.streams[userID]--
	}
	metrics.SSEConnections.Dec()
}

// StreamCount reports the user's open streams.
func (h *Hub) StreamCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.streams[userID]
}

type heartbeatPayload struct {
	Timestamp int64 `json:"ts"`
	RelayLag  bool  `json:"relay_lag"`
}

// Serve runs one SSE stream until the client disconnects, the token
// expires, or too many heartbeats fail to flush. groupIDs are the
// groups the user belonged to at connect time; membership changes show
// up as epoch_changed events prompting a reconnect.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string, tokenExpiry time.Time, groupIDs []uuid.UUID) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return apperr.Internal(fmt.Errorf("response writer does not support streaming"))
	}

	if err := h.register(userID); err != nil {
		return err
	}
	defer h.unregister(userID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	fmt.Fprintf(w, "retry: %d\n\n", retryHintMillis)
	flusher.Flush()

	ctx := r.Context()
	sub := h.pubsub.SubscribeGroups(ctx, userID, groupIDs)
	defer sub.Close()
	events := sub.Channel()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	var expiry <-chan time.Time
	if !tokenExpiry.IsZero() {
		expiryTimer := time.NewTimer(time.Until(tokenExpiry))
		defer expiryTimer.Stop()
		expiry = expiryTimer.C
	}

	if err := h.presence.TouchPresence(ctx, userID, true); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("presence touch failed")
	}
	defer func() {
		offCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if h.StreamCount(userID) <= 1 {
			h.presence.TouchPresence(offCtx, userID, false)
		}
	}()

	missed := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-expiry:
			// The client must reconnect with a fresh token.
			writeEvent(w, "token_expired", []byte(`{}`))
			flusher.Flush()
			return nil

		case msg, open := <-events:
			if !open {
				return nil
			}
			if err := writeEvent(w, "message", []byte(msg.Payload)); err != nil {
				return nil
			}
			flusher.Flush()

		case <-ticker.C:
			payload, _ := json.Marshal(heartbeatPayload{
				Timestamp: time.Now().Unix(),
				RelayLag:  !h.pubsub.Healthy(),
			})
			if err := writeEvent(w, "heartbeat", payload); err != nil {
				missed++
				if missed > h.maxMissed {
					return nil
				}
				continue
			}
			missed = 0
			flusher.Flush()
			if err := h.presence.TouchPresence(ctx, userID, true); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("presence touch failed")
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
