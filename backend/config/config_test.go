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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GROUPWIRE_JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.Groups.MaxParticipants)
	assert.Equal(t, 24*time.Hour, cfg.Groups.InviteExpiry)
	assert.Equal(t, 64*1024, cfg.Groups.MaxCiphertextSize)
	assert.Equal(t, 30, cfg.Limits.MessagesPerUserPerMinute)
	assert.Equal(t, 10, cfg.Limits.GroupBurst)
	assert.Equal(t, 5*time.Second, cfg.Limits.GroupBurstWindow)
	assert.Equal(t, 25*time.Second, cfg.SSE.HeartbeatInterval)
	assert.Equal(t, 2, cfg.SSE.MaxMissedHeartbeats)
	assert.Equal(t, 3, cfg.SSE.MaxStreamsPerUser)
	assert.Equal(t, "groupwire", cfg.JWT.Issuer)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("GROUPWIRE_JWT_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt secret")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GROUPWIRE_JWT_SECRET", "s3cret")
	t.Setenv("GROUPWIRE_SERVER_ADDR", ":9999")
	t.Setenv("GROUPWIRE_GROUPS_MAX_PARTICIPANTS", "50")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Groups.MaxParticipants)
}
