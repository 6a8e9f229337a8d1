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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerCanDoEverything(t *testing.T) {
	actions := []Action{
		ActionSendMessage, ActionReadMessages, ActionAddMember,
		ActionRemoveMember, ActionPromote, ActionDemote, ActionBan,
		ActionUnban, ActionCreateInvite, ActionRevokeInvite,
		ActionUpdateGroup, ActionCloseGroup, ActionDeleteMessage,
	}
	for _, a := range actions {
		assert.True(t, CanPerform(RoleOwner, a), "owner should be allowed %s", a)
	}
}

func TestAdminCannotDemoteOrClose(t *testing.T) {
	assert.False(t, CanPerform(RoleAdmin, ActionDemote))
	assert.False(t, CanPerform(RoleAdmin, ActionCloseGroup))

	assert.True(t, CanPerform(RoleAdmin, ActionAddMember))
	assert.True(t, CanPerform(RoleAdmin, ActionBan))
	assert.True(t, CanPerform(RoleAdmin, ActionPromote))
	assert.True(t, CanPerform(RoleAdmin, ActionCreateInvite))
}

func TestMemberCanOnlyMessage(t *testing.T) {
	assert.True(t, CanPerform(RoleMember, ActionSendMessage))
	assert.True(t, CanPerform(RoleMember, ActionReadMessages))

	assert.False(t, CanPerform(RoleMember, ActionAddMember))
	assert.False(t, CanPerform(RoleMember, ActionRemoveMember))
	assert.False(t, CanPerform(RoleMember, ActionBan))
	assert.False(t, CanPerform(RoleMember, ActionUpdateGroup))
}

func TestUnknownRoleDeniedEverything(t *testing.T) {
	assert.False(t, CanPerform(Role("moderator"), ActionSendMessage))
	assert.False(t, CanPerform(Role(""), ActionReadMessages))
}
