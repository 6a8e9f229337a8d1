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

	"github.com/google/uuid"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/metrics"
	"github.com/groupwire/groupwire/backend/middleware"
	"github.com/groupwire/groupwire/backend/models"
	"github.com/groupwire/groupwire/backend/storage"
	redisstore "github.com/groupwire/groupwire/backend/storage/redis"
)

type SenderKeyHandler struct {
	store  storage.SenderKeyStore
	pubsub Publisher
}

func NewSenderKeyHandler(store storage.SenderKeyStore, pubsub Publisher) *SenderKeyHandler {
	return &SenderKeyHandler{store: store, pubsub: pubsub}
}

// Distribute records that the calling device has fanned out a sender
// key for the current epoch. The ciphertext itself travels as a proto
// 11 message; this endpoint only tracks the key's existence.
func (h *SenderKeyHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		DeviceID uuid.UUID `json:"device_id"`
		Epoch    int64     `json:"group_epoch"`
		KeyID    int       `json:"key_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.DeviceID == uuid.Nil {
		writeError(w, apperr.InvalidArgument("device_id is required"))
		return
	}

	rec := &models.SenderKeyRecord{
		GroupID:  groupID,
		UserID:   userID,
		DeviceID: req.DeviceID,
		Epoch:    req.Epoch,
		KeyID:    req.KeyID,
	}
	duplicate, err := h.store.DistributeSenderKey(r.Context(), rec)
	if err != nil {
		writeError(w, err)
		return
	}

	if !duplicate {
		metrics.SenderKeysDistributed.Inc()
		h.pubsub.PublishGroup(context.WithoutCancel(r.Context()), groupID, &redisstore.Event{
			Type:    redisstore.EventSenderKey,
			GroupID: groupID,
			Epoch:   req.Epoch,
		})
	}

	status := http.StatusCreated
	if duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"duplicate":   duplicate,
		"group_epoch": req.Epoch,
	})
}

func (h *SenderKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := h.store.ListSenderKeys(r.Context(), groupID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []models.SenderKeyRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sender_keys": records})
}
