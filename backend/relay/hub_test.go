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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupwire/groupwire/backend/apperr"
)

type nopToucher struct{}

func (nopToucher) TouchPresence(context.Context, string, bool) error { return nil }

func TestStreamCapPerUser(t *testing.T) {
	h := NewHub(nil, nopToucher{}, 25*time.Second, 2, 3)

	require.NoError(t, h.register("alice"))
	require.NoError(t, h.register("alice"))
	require.NoError(t, h.register("alice"))

	err := h.register("alice")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeRateLimited))
	assert.Equal(t, 3, h.StreamCount("alice"))

	// Another user is unaffected.
	require.NoError(t, h.register("bob"))
}

func TestUnregisterFreesSlot(t *testing.T) {
	h := NewHub(nil, nopToucher{}, 25*time.Second, 2, 1)

	require.NoError(t, h.register("alice"))
	require.Error(t, h.register("alice"))

	h.unregister("alice")
	assert.Equal(t, 0, h.StreamCount("alice"))
	require.NoError(t, h.register("alice"))
}
