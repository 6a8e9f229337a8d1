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
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/metrics"
	"github.com/groupwire/groupwire/backend/middleware"
	"github.com/groupwire/groupwire/backend/models"
	"github.com/groupwire/groupwire/backend/storage"
	redisstore "github.com/groupwire/groupwire/backend/storage/redis"
)

type MemberHandler struct {
	store  storage.MembershipStore
	pubsub Publisher
}

func NewMemberHandler(store storage.MembershipStore, pubsub Publisher) *MemberHandler {
	return &MemberHandler{store: store, pubsub: pubsub}
}

// publishEpochChanged fans out after the commit. Receivers discard
// their sender keys for the old epoch and redistribute.
func (h *MemberHandler) publishEpochChanged(r *http.Request, groupID uuid.UUID, epoch int64) {
	metrics.EpochBumps.Inc()
	h.pubsub.PublishGroup(context.WithoutCancel(r.Context()), groupID, &redisstore.Event{
		Type:    redisstore.EventEpochChanged,
		GroupID: groupID,
		Epoch:   epoch,
	})
}

func (h *MemberHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

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

	added, epoch, err := h.store.AddMembers(r.Context(), groupID, userID, req.UserIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(added) > 0 {
		h.publishEpochChanged(r, groupID, epoch)
	}
	if added == nil {
		added = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"added":       added,
		"group_epoch": epoch,
	})
}

func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}
	targetID := mux.Vars(r)["userId"]

	epoch, err := h.store.RemoveMember(r.Context(), groupID, userID, targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.publishEpochChanged(r, groupID, epoch)
	writeJSON(w, http.StatusOK, map[string]any{"group_epoch": epoch})
}

func (h *MemberHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	epoch, err := h.store.Leave(r.Context(), groupID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.publishEpochChanged(r, groupID, epoch)
	writeJSON(w, http.StatusOK, map[string]any{"group_epoch": epoch})
}

func (h *MemberHandler) Promote(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}
	targetID := mux.Vars(r)["userId"]

	if err := h.store.Promote(r.Context(), groupID, userID, targetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": models.RoleAdmin})
}

func (h *MemberHandler) Demote(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}
	targetID := mux.Vars(r)["userId"]

	epoch, err := h.store.Demote(r.Context(), groupID, userID, targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.publishEpochChanged(r, groupID, epoch)
	writeJSON(w, http.StatusOK, map[string]any{
		"role":        models.RoleMember,
		"group_epoch": epoch,
	})
}

func (h *MemberHandler) Ban(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}
	targetID := mux.Vars(r)["userId"]

	var req struct {
		Reason string `json:"reason"`
	}
	decodeBody(r, &req) // reason is optional

	epoch, err := h.store.Ban(r.Context(), groupID, userID, targetID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	h.publishEpochChanged(r, groupID, epoch)
	writeJSON(w, http.StatusOK, map[string]any{"group_epoch": epoch})
}

func (h *MemberHandler) Unban(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}
	targetID := mux.Vars(r)["userId"]

	if err := h.store.Unban(r.Context(), groupID, userID, targetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unbanned": true})
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	members, err := h.store.ListMembers(r.Context(), groupID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if members == nil {
		members = []models.Participant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *MemberHandler) Mute(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Until *time.Time `json:"until"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.Mute(r.Context(), groupID, userID, req.Until); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mute_until": req.Until})
}
