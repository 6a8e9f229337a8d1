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

	"github.com/google/uuid"

	"github.com/groupwire/groupwire/backend/middleware"
	"github.com/groupwire/groupwire/backend/relay"
	"github.com/groupwire/groupwire/backend/storage"
)

type StreamHandler struct {
	hub    *relay.Hub
	groups storage.GroupStore
}

func NewStreamHandler(hub *relay.Hub, groups storage.GroupStore) *StreamHandler {
	return &StreamHandler{hub: hub, groups: groups}
}

// Stream opens the SSE event stream. Subscriptions cover the user's
// groups at connect time; an epoch_changed event is the cue to
// reconnect after membership changes.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	groups, err := h.groups.ListGroupsForUser(r.Context(), userID, 200, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	groupIDs := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}

	expiry := middleware.TokenExpiry(r)
	if err := h.hub.Serve(w, r, userID, expiry, groupIDs); err != nil {
		writeError(w, err)
	}
}

// StreamGroup opens an SSE stream scoped to a single group. Membership
// is checked up front; a later removal surfaces as an epoch_changed
// event and the next request fails with NOT_MEMBER.
func (h *StreamHandler) StreamGroup(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.groups.GetGroupForUser(r.Context(), groupID, userID); err != nil {
		writeError(w, err)
		return
	}

	expiry := middleware.TokenExpiry(r)
	if err := h.hub.Serve(w, r, userID, expiry, []uuid.UUID{groupID}); err != nil {
		writeError(w, err)
	}
}
