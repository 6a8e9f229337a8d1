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

package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/groupwire/groupwire/backend/models"
)

// Store methods return *apperr.Error for every condition a client can
// correct; any other error is an infrastructure failure. All
// multi-statement operations run in one transaction: an error means
// nothing was committed.

type GroupStore interface {
	// CreateGroup inserts the group and its creator as owner.
	CreateGroup(ctx context.Context, group *models.Group) error
	// GetGroupForUser returns the group with the caller's role and the
	// active participant count; NOT_MEMBER if the caller is not active.
	GetGroupForUser(ctx context.Context, groupID uuid.UUID, userID string) (*models.Group, error)
	ListGroupsForUser(ctx context.Context, userID string, limit, offset int) ([]models.Group, error)
	// UpdateGroup applies non-nil fields. Owner/admin only, re-checked
	// in the transaction.
	UpdateGroup(ctx context.Context, groupID uuid.UUID, actorID string, title, about, photoURL *string) (*models.Group, error)
	// CloseGroup soft-closes; owner only; idempotent.
	CloseGroup(ctx context.Context, groupID uuid.UUID, actorID string) error
	CurrentEpoch(ctx context.Context, groupID uuid.UUID) (int64, error)
}

type MembershipStore interface {
	// AddMembers adds the given users. Already-active users are skipped
	// (idempotent success). Bumps the epoch once iff membership changed.
	// Returned epoch is the group's current epoch after the call.
	AddMembers(ctx context.Context, groupID uuid.UUID, actorID string, userIDs []string) (added []string, epoch int64, err error)
	RemoveMember(ctx context.Context, groupID uuid.UUID, actorID, targetID string) (epoch int64, err error)
	Leave(ctx context.Context, groupID uuid.UUID, userID string) (epoch int64, err error)
	Promote(ctx context.Context, groupID uuid.UUID, actorID, targetID string) error
	// Demote narrows a security boundary, so it bumps the epoch.
	Demote(ctx context.Context, groupID uuid.UUID, actorID, targetID string) (epoch int64, err error)
	Ban(ctx context.Context, groupID uuid.UUID, actorID, targetID, reason string) (epoch int64, err error)
	Unban(ctx context.Context, groupID uuid.UUID, actorID, targetID string) error
	ListMembers(ctx context.Context, groupID uuid.UUID, requesterID string) ([]models.Participant, error)
	Mute(ctx context.Context, groupID uuid.UUID, userID string, until *time.Time) error
}

// RedeemResult reports the outcome of an invite redemption.
type RedeemResult struct {
	GroupID       uuid.UUID
	Epoch         int64
	AlreadyMember bool
}

type InviteStore interface {
	CreateInvite(ctx context.Context, invite *models.Invite) error
	ListInvites(ctx context.Context, groupID uuid.UUID, actorID string) ([]models.Invite, error)
	RevokeInvite(ctx context.Context, groupID, inviteID uuid.UUID, actorID string) error
	// RedeemInvite checks expiry, remaining uses, bans, closure and
	// capacity, then increments uses and inserts the participant, all
	// under a row lock on the invite so a max_uses boundary cannot be
	// crossed by concurrent redemptions.
	RedeemInvite(ctx context.Context, code, userID string) (*RedeemResult, error)
}

type SenderKeyStore interface {
	// DistributeSenderKey validates the submitted epoch against the
	// group's current epoch and records the key. Replaying an identical
	// envelope reports duplicate=true and changes nothing.
	DistributeSenderKey(ctx context.Context, rec *models.SenderKeyRecord) (duplicate bool, err error)
	// ListSenderKeys returns records at the group's current epoch.
	ListSenderKeys(ctx context.Context, groupID uuid.UUID, requesterID string) ([]models.SenderKeyRecord, error)
}

// SendMessageRequest is the validated ingest payload.
type SendMessageRequest struct {
	GroupID         uuid.UUID
	SenderUserID    string
	SenderDeviceID  uuid.UUID
	Ciphertext      []byte
	Proto           int
	Epoch           int64
	ClientMessageID string
	ReplyToID       *uuid.UUID
}

type SendMessageResult struct {
	Message   *models.Message
	Duplicate bool
}

// Cursor is the stable pagination anchor: messages order by
// (created_at, id), which survives concurrent inserts and deletions.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

type MessageStore interface {
	// SendMessage validates membership, device, epoch and sender-key
	// presence, then inserts the message and one delivery record per
	// active recipient device in a single transaction.
	SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResult, error)
	// ListMessages returns messages after the cursor in (created_at, id)
	// order, plus the cursor for the next page (nil at the end).
	ListMessages(ctx context.Context, groupID uuid.UUID, requesterID string, cursor *Cursor, limit int) ([]models.Message, *Cursor, error)
	MarkDelivered(ctx context.Context, messageID uuid.UUID, userID string) (time.Time, error)
	MarkRead(ctx context.Context, messageID uuid.UUID, userID string) (time.Time, error)
	// DeleteMessage soft-deletes. Sender, or group owner/admin.
	DeleteMessage(ctx context.Context, messageID uuid.UUID, actorID string) error
}

type DeviceStore interface {
	RegisterDevice(ctx context.Context, userID, name string) (*models.Device, error)
	ListDevices(ctx context.Context, userID string) ([]models.Device, error)
	RevokeDevice(ctx context.Context, userID string, deviceID uuid.UUID) error
}

// PresenceView is what a querier is allowed to see after privacy
// filtering.
type PresenceView struct {
	UserID       string     `json:"user_id"`
	LastSeenAt   *time.Time `json:"last_seen_at"`
	DeviceOnline bool       `json:"device_online"`
}

type PresenceStore interface {
	// TouchPresence records activity; called on heartbeats and pings.
	TouchPresence(ctx context.Context, userID string, online bool) error
	GetMyPresence(ctx context.Context, userID string) (*models.Presence, error)
	UpdatePresencePrivacy(ctx context.Context, userID string, shareLastSeen *string, shareOnline *bool) (*models.Presence, error)
	// GetPresences applies the target users' privacy settings relative
	// to the viewer. Storage is never filtered, only the view.
	GetPresences(ctx context.Context, viewerID string, userIDs []string) ([]PresenceView, error)
}

type Store interface {
	GroupStore
	MembershipStore
	InviteStore
	SenderKeyStore
	MessageStore
	DeviceStore
	PresenceStore
}
