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
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/middleware"
	"github.com/groupwire/groupwire/backend/models"
	"github.com/groupwire/groupwire/backend/storage"
)

const maxTitleLen = 100

type GroupHandler struct {
	store storage.GroupStore
}

func NewGroupHandler(store storage.GroupStore) *GroupHandler {
	return &GroupHandler{store: store}
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	var req struct {
		Title    string `json:"title"`
		About    string `json:"about"`
		PhotoURL string `json:"photo_url"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > maxTitleLen {
		writeError(w, apperr.InvalidArgument("title must be 1-100 characters"))
		return
	}

	group := &models.Group{
		ID:        uuid.New(),
		Title:     req.Title,
		About:     req.About,
		PhotoURL:  req.PhotoURL,
		CreatedBy: userID,
	}
	if err := h.store.CreateGroup(r.Context(), group); err != nil {
		writeError(w, err)
		return
	}

	group.MyRole = models.RoleOwner
	group.ParticipantCount = 1
	writeJSON(w, http.StatusCreated, group)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	group, err := h.store.GetGroupForUser(r.Context(), groupID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	limit := queryInt(r, "limit", 50, 1, 200)
	offset := queryInt(r, "offset", 0, 0, 1<<30)

	groups, err := h.store.ListGroupsForUser(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Title    *string `json:"title"`
		About    *string `json:"about"`
		PhotoURL *string `json:"photo_url"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" || len(t) > maxTitleLen {
			writeError(w, apperr.InvalidArgument("title must be 1-100 characters"))
			return
		}
		req.Title = &t
	}

	group, err := h.store.UpdateGroup(r.Context(), groupID, userID, req.Title, req.About, req.PhotoURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.CloseGroup(r.Context(), groupID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed": true})
}

// queryInt reads a query parameter, falling back to def for anything
// missing or out of range. min guards paging parameters: limit must
// stay >= 1 or the pagination arithmetic breaks.
func queryInt(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return def
	}
	if n > max {
		return max
	}
	return n
}
