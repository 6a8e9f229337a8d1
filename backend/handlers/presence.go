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
	"net/http"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/middleware"
	"github.com/groupwire/groupwire/backend/storage"
)

const maxPresenceQuery = 100

type PresenceHandler struct {
	store storage.PresenceStore
}

func NewPresenceHandler(store storage.PresenceStore) *PresenceHandler {
	return &PresenceHandler{store: store}
}

func (h *PresenceHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	p, err := h.store.GetMyPresence(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PresenceHandler) UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	var req struct {
		ShareLastSeen *string `json:"share_last_seen"`
		ShareOnline   *bool   `json:"share_online"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ShareLastSeen == nil && req.ShareOnline == nil {
		writeError(w, apperr.InvalidArgument("nothing to update"))
		return
	}

	p, err := h.store.UpdatePresencePrivacy(r.Context(), userID, req.ShareLastSeen, req.ShareOnline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Query resolves presence for a batch of users, masked through each
// target's privacy settings relative to the caller.
func (h *PresenceHandler) Query(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	var req struct {
		UserIDs []string `json:"user_ids"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.UserIDs) == 0 {
		writeError(w, apperr.InvalidArgument("user_ids is required"))
		return
	}
	if len(req.UserIDs) > maxPresenceQuery {
		writeError(w, apperr.InvalidArgument("too many user_ids"))
		return
	}

	views, err := h.store.GetPresences(r.Context(), userID, req.UserIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	if views == nil {
		views = []storage.PresenceView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"presences": views})
}

// Ping records activity for clients that poll instead of streaming.
func (h *PresenceHandler) Ping(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	if err := h.store.TouchPresence(r.Context(), userID, true); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
