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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupwire_messages_sent_total",
		Help: "Group messages accepted and committed.",
	})
	EpochBumps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupwire_epoch_bumps_total",
		Help: "Committed membership changes that advanced a group epoch.",
	})
	SenderKeysDistributed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupwire_sender_keys_distributed_total",
		Help: "Accepted sender-key distribution envelopes (excluding idempotent replays).",
	})
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupwire_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	}, []string{"window"})
	SSEConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "groupwire_sse_connections",
		Help: "Currently open SSE streams.",
	})
	RelayPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupwire_relay_publish_failures_total",
		Help: "Post-commit relay publishes that failed; delivery degrades to polling.",
	})
)
