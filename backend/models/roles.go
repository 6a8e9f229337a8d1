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

package models

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Action is a permission-gated group operation.
type Action string

const (
	ActionSendMessage   Action = "send_message"
	ActionReadMessages  Action = "read_messages"
	ActionAddMember     Action = "add_member"
	ActionRemoveMember  Action = "remove_member"
	ActionPromote       Action = "promote"
	ActionDemote        Action = "demote"
	ActionBan           Action = "ban"
	ActionUnban         Action = "unban"
	ActionCreateInvite  Action = "create_invite"
	ActionRevokeInvite  Action = "revoke_invite"
	ActionUpdateGroup   Action = "update_group"
	ActionCloseGroup    Action = "close_group"
	ActionDeleteMessage Action = "delete_message"
)

var permissions = map[Role]map[Action]bool{
	RoleOwner: {
		ActionSendMessage: true, ActionReadMessages: true,
		ActionAddMember: true, ActionRemoveMember: true,
		ActionPromote: true, ActionDemote: true,
		ActionBan: true, ActionUnban: true,
		ActionCreateInvite: true, ActionRevokeInvite: true,
		ActionUpdateGroup: true, ActionCloseGroup: true,
		ActionDeleteMessage: true,
	},
	RoleAdmin: {
		ActionSendMessage: true, ActionReadMessages: true,
		ActionAddMember: true, ActionRemoveMember: true,
		ActionPromote: true,
		ActionBan:     true, ActionUnban: true,
		ActionCreateInvite: true, ActionRevokeInvite: true,
		ActionUpdateGroup:   true,
		ActionDeleteMessage: true,
	},
	RoleMember: {
		ActionSendMessage: true, ActionReadMessages: true,
	},
}

// CanPerform is the single permission check. Callers evaluate it against
// the role read inside the same transaction as the mutation, never
// against a role cached at request entry.
func CanPerform(role Role, action Action) bool {
	return permissions[role][action]
}
