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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error to its wire shape. Every error response
// carries X-Error-Code; consistency errors additionally carry
// X-Current-Epoch and rate limits carry the retry delay, so clients
// resync from headers alone.
func writeError(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(err)
	}
	if e.Code == apperr.CodeInternal {
		log.Error().Err(e).Msg("internal error")
	}

	w.Header().Set("X-Error-Code", string(e.Code))
	switch e.Code {
	case apperr.CodeEpochStale, apperr.CodeSenderKeyRequired:
		if epoch, ok := e.Meta["current_epoch"]; ok {
			w.Header().Set("X-Current-Epoch", fmt.Sprint(epoch))
		}
	case apperr.CodeRateLimited:
		if retry, ok := e.Meta["retry_after"]; ok {
			w.Header().Set("X-Retry-After", fmt.Sprint(retry))
			w.Header().Set("Retry-After", fmt.Sprint(retry))
		}
		if limit, ok := e.Meta["limit"]; ok {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprint(limit))
		}
	}

	body := map[string]any{
		"error":   string(e.Code),
		"message": e.Message,
	}
	for k, v := range e.Meta {
		body[k] = v
	}
	writeJSON(w, e.Code.HTTPStatus(), body)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.InvalidArgument("malformed request body")
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, apperr.InvalidArgument("invalid " + name)
	}
	return id, nil
}

// encodeCursor packs the pagination anchor as base64("created_at|id").
func encodeCursor(c *storage.Cursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (*storage.Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, apperr.InvalidCursor()
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return nil, apperr.InvalidCursor()
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, apperr.InvalidCursor()
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, apperr.InvalidCursor()
	}
	return &storage.Cursor{CreatedAt: ts, ID: id}, nil
}
