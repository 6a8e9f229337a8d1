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
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/groupwire/groupwire/backend/metrics"
)

const (
	groupChannelPrefix = "group:" // group:{groupId}
	userChannelPrefix  = "user:"  // user:{userId}
)

// Event is the fan-out payload pushed to connected streams.
type Event struct {
	Type    string          `json:"type"`
	GroupID uuid.UUID       `json:"group_id,omitempty"`
	Epoch   int64           `json:"group_epoch,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

const (
	EventMessage      = "message"
	EventEpochChanged = "epoch_changed"
	EventMemberJoined = "member_joined"
	EventMemberLeft   = "member_left"
	EventSenderKey    = "sender_key"
	EventPresence     = "presence"
)

// PubSub bridges committed writes to live streams. Publish happens
// strictly after the database commit; a publish failure is logged and
// counted but never turns a committed write into a client error.
type PubSub struct {
	rdb       *redis.Client
	unhealthy atomic.Bool
}

func NewPubSub(rdb *redis.Client) *PubSub {
	p := &PubSub{rdb: rdb}
	go p.healthLoop()
	return p
}

func (p *PubSub) PublishGroup(ctx context.Context, groupID uuid.UUID, event *Event) {
	p.publish(ctx, groupChannelPrefix+groupID.String(), event)
}

func (p *PubSub) PublishUser(ctx context.Context, userID string, event *Event) {
	p.publish(ctx, userChannelPrefix+userID, event)
}

func (p *PubSub) publish(ctx context.Context, channel string, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("failed to marshal event")
		return
	}
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		metrics.RelayPublishFailures.Inc()
		p.unhealthy.Store(true)
		log.Warn().Err(err).Str("channel", channel).Msg("relay publish failed")
	}
}

// SubscribeGroups opens one subscription covering the user channel and
// all given group channels. Callers must Close it.
func (p *PubSub) SubscribeGroups(ctx context.Context, userID string, groupIDs []uuid.UUID) *redis.PubSub {
	channels := make([]string, 0, len(groupIDs)+1)
	channels = append(channels, userChannelPrefix+userID)
	for _, id := range groupIDs {
		channels = append(channels, groupChannelPrefix+id.String())
	}
	return p.rdb.Subscribe(ctx, channels...)
}

// Healthy reports whether the relay path is currently believed to work.
// Streams attach this to heartbeats as relay_lag so clients know live
// delivery may be behind and can poll.
func (p *PubSub) Healthy() bool {
	return !p.unhealthy.Load()
}

func (p *PubSub) healthLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := p.rdb.Ping(ctx).Err()
		cancel()
		p.unhealthy.Store(err != nil)
	}
}
