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
	"strings"

	"github.com/groupwire/groupwire/backend/middleware"
	"github.com/groupwire/groupwire/backend/models"
	"github.com/groupwire/groupwire/backend/storage"
)

type DeviceHandler struct {
	store storage.DeviceStore
}

func NewDeviceHandler(store storage.DeviceStore) *DeviceHandler {
	return &DeviceHandler{store: store}
}

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	var req struct {
		Name string `json:"device_name"`
	}
	decodeBody(r, &req)
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = "device"
	}

	device, err := h.store.RegisterDevice(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)

	devices, err := h.store.ListDevices(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (h *DeviceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	deviceID, err := pathUUID(r, "deviceId")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.RevokeDevice(r.Context(), userID, deviceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": true})
}
