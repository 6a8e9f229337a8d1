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

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/storage"
)

func TestWriteErrorSetsErrorCodeHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperr.NotMember())

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NOT_MEMBER", rec.Header().Get("X-Error-Code"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_MEMBER", body["error"])
}

func TestWriteErrorEpochStaleHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperr.EpochStale(9))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EPOCH_STALE", rec.Header().Get("X-Error-Code"))
	assert.Equal(t, "9", rec.Header().Get("X-Current-Epoch"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(9), body["current_epoch"])
}

func TestWriteErrorSenderKeyRequiredHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperr.SenderKeyRequired(4))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SENDER_KEY_REQUIRED", rec.Header().Get("X-Error-Code"))
	assert.Equal(t, "4", rec.Header().Get("X-Current-Epoch"))
}

func TestWriteErrorRateLimitedHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperr.RateLimited(15, 30))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", rec.Header().Get("X-Error-Code"))
	assert.Equal(t, "15", rec.Header().Get("X-Retry-After"))
	assert.Equal(t, "15", rec.Header().Get("Retry-After"))
	assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Limit"))
}

func TestWriteErrorMasksPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL", rec.Header().Get("X-Error-Code"))
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestCursorRoundTrip(t *testing.T) {
	orig := &storage.Cursor{
		CreatedAt: time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC),
		ID:        uuid.New(),
	}

	decoded, err := decodeCursor(encodeCursor(orig))
	require.NoError(t, err)
	assert.True(t, orig.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, orig.ID, decoded.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"not-base64!!", "aGVsbG8", "", "fHw"} {
		_, err := decodeCursor(raw)
		assert.True(t, apperr.IsCode(err, apperr.CodeInvalidCursor), "input %q", raw)
	}
}
