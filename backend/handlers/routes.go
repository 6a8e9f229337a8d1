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

	"github.com/gorilla/mux"
)

// Handlers bundles the API surface for route registration.
type Handlers struct {
	Groups     *GroupHandler
	Members    *MemberHandler
	Invites    *InviteHandler
	Messages   *MessageHandler
	SenderKeys *SenderKeyHandler
	Devices    *DeviceHandler
	Presence   *PresenceHandler
	Stream     *StreamHandler
}

// Register mounts the API on an already-authenticated subrouter.
func (h *Handlers) Register(api *mux.Router) {
	api.HandleFunc("/groups", h.Groups.Create).Methods(http.MethodPost)
	api.HandleFunc("/groups", h.Groups.List).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}", h.Groups.Get).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}", h.Groups.Update).Methods(http.MethodPatch)
	api.HandleFunc("/groups/{groupId}/close", h.Groups.Close).Methods(http.MethodPost)

	api.HandleFunc("/groups/{groupId}/members", h.Members.Add).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/members", h.Members.List).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}/members/{userId}", h.Members.Remove).Methods(http.MethodDelete)
	api.HandleFunc("/groups/{groupId}/members/{userId}/promote", h.Members.Promote).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/members/{userId}/demote", h.Members.Demote).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/members/{userId}/ban", h.Members.Ban).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/members/{userId}/unban", h.Members.Unban).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/leave", h.Members.Leave).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/mute", h.Members.Mute).Methods(http.MethodPost)

	api.HandleFunc("/groups/{groupId}/invites", h.Invites.Create).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/invites", h.Invites.List).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}/invites/{inviteId}", h.Invites.Revoke).Methods(http.MethodDelete)
	api.HandleFunc("/invites/{code}/redeem", h.Invites.Redeem).Methods(http.MethodPost)

	api.HandleFunc("/groups/{groupId}/messages", h.Messages.Send).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/messages", h.Messages.List).Methods(http.MethodGet)
	api.HandleFunc("/messages/{messageId}/delivered", h.Messages.MarkDelivered).Methods(http.MethodPost)
	api.HandleFunc("/messages/{messageId}/read", h.Messages.MarkRead).Methods(http.MethodPost)
	api.HandleFunc("/messages/{messageId}", h.Messages.Delete).Methods(http.MethodDelete)

	api.HandleFunc("/groups/{groupId}/sender-keys", h.SenderKeys.Distribute).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/sender-keys", h.SenderKeys.List).Methods(http.MethodGet)

	api.HandleFunc("/devices", h.Devices.Register).Methods(http.MethodPost)
	api.HandleFunc("/devices", h.Devices.List).Methods(http.MethodGet)
	api.HandleFunc("/devices/{deviceId}", h.Devices.Revoke).Methods(http.MethodDelete)

	api.HandleFunc("/presence/me", h.Presence.GetMine).Methods(http.MethodGet)
	api.HandleFunc("/presence/privacy", h.Presence.UpdatePrivacy).Methods(http.MethodPatch)
	api.HandleFunc("/presence/query", h.Presence.Query).Methods(http.MethodPost)
	api.HandleFunc("/presence/ping", h.Presence.Ping).Methods(http.MethodPost)

	api.HandleFunc("/events", h.Stream.Stream).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}/sse", h.Stream.StreamGroup).Methods(http.MethodGet)
}
