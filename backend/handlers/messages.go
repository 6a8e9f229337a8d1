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
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/metrics"
	"github.com/groupwire/groupwire/backend/middleware"
	"github.com/groupwire/groupwire/backend/models"
	"github.com/groupwire/groupwire/backend/storage"
	redisstore "github.com/groupwire/groupwire/backend/storage/redis"
)

type MessageHandler struct {
	store         storage.MessageStore
	limiter       SendLimiter
	pubsub        Publisher
	maxCiphertext int
}

func NewMessageHandler(store storage.MessageStore, limiter SendLimiter, pubsub Publisher, maxCiphertext int) *MessageHandler {
	return &MessageHandler{
		store:         store,
		limiter:       limiter,
		pubsub:        pubsub,
		maxCiphertext: maxCiphertext,
	}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		DeviceID        uuid.UUID  `json:"device_id"`
		Ciphertext      []byte     `json:"ciphertext"`
		Proto           int        `json:"proto"`
		Epoch           int64      `json:"group_epoch"`
		ClientMessageID string     `json:"client_message_id"`
		ReplyToID       *uuid.UUID `json:"reply_to_message_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Ciphertext) == 0 {
		writeError(w, apperr.InvalidArgument("ciphertext is required"))
		return
	}
	if len(req.Ciphertext) > h.maxCiphertext {
		writeError(w, apperr.PayloadTooLarge(h.maxCiphertext))
		return
	}
	if req.DeviceID == uuid.Nil {
		writeError(w, apperr.InvalidArgument("device_id is required"))
		return
	}

	if err := h.limiter.AllowSend(r.Context(), userID, groupID); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.store.SendMessage(r.Context(), &storage.SendMessageRequest{
		GroupID:         groupID,
		SenderUserID:    userID,
		SenderDeviceID:  req.DeviceID,
		Ciphertext:      req.Ciphertext,
		Proto:           req.Proto,
		Epoch:           req.Epoch,
		ClientMessageID: req.ClientMessageID,
		ReplyToID:       req.ReplyToID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if !result.Duplicate {
		metrics.MessagesSent.Inc()
		data, _ := json.Marshal(result.Message)
		// The insert is committed; a client hangup must not cancel the
		// fan-out.
		h.pubsub.PublishGroup(context.WithoutCancel(r.Context()), groupID, &redisstore.Event{
			Type:    redisstore.EventMessage,
			GroupID: groupID,
			Epoch:   result.Message.Epoch,
			Data:    data,
		})
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"message":   result.Message,
		"duplicate": result.Duplicate,
	})
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	var cursor *storage.Cursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor, err = decodeCursor(raw)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	limit := queryInt(r, "limit", 50, 1, 200)

	messages, next, err := h.store.ListMessages(r.Context(), groupID, userID, cursor, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	resp := map[string]any{"messages": messages}
	if next != nil {
		resp["next_cursor"] = encodeCursor(next)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MessageHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.markReceipt(w, r, h.store.MarkDelivered, "delivered_at")
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.markReceipt(w, r, h.store.MarkRead, "read_at")
}

func (h *MessageHandler) markReceipt(w http.ResponseWriter, r *http.Request, mark func(ctx context.Context, messageID uuid.UUID, userID string) (time.Time, error), field string) {
	userID, _ := middleware.GetUserID(r)
	messageID, err := pathUUID(r, "messageId")
	if err != nil {
		writeError(w, err)
		return
	}

	ts, err := mark(r.Context(), messageID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{field: ts})
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	messageID, err := pathUUID(r, "messageId")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.DeleteMessage(r.Context(), messageID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
