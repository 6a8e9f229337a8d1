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

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, CodeNotMember.HTTPStatus())
	assert.Equal(t, http.StatusConflict, CodeEpochStale.HTTPStatus())
	assert.Equal(t, http.StatusConflict, CodeGroupFull.HTTPStatus())
	assert.Equal(t, http.StatusTooManyRequests, CodeRateLimited.HTTPStatus())
	assert.Equal(t, http.StatusGone, CodeGone.HTTPStatus())
	assert.Equal(t, http.StatusRequestEntityTooLarge, CodePayloadTooLarge.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Code("BOGUS").HTTPStatus())
}

func TestEpochStaleCarriesCurrentEpoch(t *testing.T) {
	err := EpochStale(7)
	assert.Equal(t, CodeEpochStale, err.Code)
	assert.Equal(t, int64(7), err.Meta["current_epoch"])
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	err := RateLimited(12, 30)
	assert.Equal(t, 12, err.Meta["retry_after"])
	assert.Equal(t, 30, err.Meta["limit"])
}

func TestAsUnwrapsThroughChain(t *testing.T) {
	inner := NotMember()
	wrapped := fmt.Errorf("handling request: %w", inner)

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeNotMember, e.Code)
	assert.True(t, IsCode(wrapped, CodeNotMember))
	assert.False(t, IsCode(wrapped, CodeBanned))
}

func TestAsRejectsPlainErrors(t *testing.T) {
	_, ok := As(errors.New("boom"))
	assert.False(t, ok)
}

func TestInternalPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
