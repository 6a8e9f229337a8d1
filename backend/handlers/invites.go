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

type InviteHandler struct {
	store        storage.InviteStore
	pubsub       Publisher
	inviteExpiry time.Duration
}

func NewInviteHandler(store storage.InviteStore, pubsub Publisher, inviteExpiry time.Duration) *InviteHandler {
	return &InviteHandler{store: store, pubsub: pubsub, inviteExpiry: inviteExpiry}
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Type      string     `json:"type"`
		ExpiresAt *time.Time `json:"expires_at"`
		MaxUses   *int       `json:"max_uses"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Type == "" {
		req.Type = "link"
	}
	if req.Type != "link" && req.Type != "direct" {
		writeError(w, apperr.InvalidArgument("type must be link or direct"))
		return
	}
	if req.MaxUses != nil && *req.MaxUses < 1 {
		writeError(w, apperr.InvalidArgument("max_uses must be positive"))
		return
	}

	// Caller may pin its own expiry; otherwise the configured TTL applies.
	expiresAt := time.Now().Add(h.inviteExpiry)
	if req.ExpiresAt != nil {
		expiresAt = *req.ExpiresAt
	}

	invite := &models.Invite{
		ID:        uuid.New(),
		GroupID:   groupID,
		CreatedBy: userID,
		Type:      req.Type,
		ExpiresAt: expiresAt,
		MaxUses:   req.MaxUses,
	}
	if err := h.store.CreateInvite(r.Context(), invite); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	invites, err := h.store.ListInvites(r.Context(), groupID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if invites == nil {
		invites = []models.Invite{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": invites})
}

func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}
	inviteID, err := pathUUID(r, "inviteId")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.RevokeInvite(r.Context(), groupID, inviteID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": true})
}

func (h *InviteHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	code := mux.Vars(r)["code"]
	if code == "" {
		writeError(w, apperr.InvalidArgument("invite code is required"))
		return
	}

	result, err := h.store.RedeemInvite(r.Context(), code, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.AlreadyMember {
		metrics.EpochBumps.Inc()
		h.pubsub.PublishGroup(context.WithoutCancel(r.Context()), result.GroupID, &redisstore.Event{
			Type:    redisstore.EventEpochChanged,
			GroupID: result.GroupID,
			Epoch:   result.Epoch,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group_id":       result.GroupID,
		"group_epoch":    result.Epoch,
		"already_member": result.AlreadyMember,
	})
}
