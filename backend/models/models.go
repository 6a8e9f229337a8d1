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
	"time"

	"github.com/google/uuid"
)

// ProtoSenderKeyDistribution tags a sender-key distribution envelope.
// Every other proto value is an ordinary content message and requires a
// distributed sender key at the current epoch before it is accepted.
const ProtoSenderKeyDistribution = 11

type Group struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	About           string    `json:"about,omitempty" db:"about"`
	PhotoURL        string    `json:"photo_url,omitempty" db:"photo_url"`
	CreatedBy       string    `json:"created_by" db:"created_by"`
	MaxParticipants int       `json:"max_participants" db:"max_participants"`
	Epoch           int64     `json:"group_epoch" db:"group_epoch"`
	IsClosed        bool      `json:"is_closed" db:"is_closed"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`

	// Filled on reads that join membership state; zero otherwise.
	ParticipantCount int    `json:"participant_count,omitempty" db:"-"`
	MyRole           Role   `json:"my_role,omitempty" db:"-"`
}

type Participant struct {
	GroupID   uuid.UUID  `json:"group_id" db:"group_id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Role      Role       `json:"role" db:"role"`
	IsBanned  bool       `json:"is_banned" db:"is_banned"`
	MuteUntil *time.Time `json:"mute_until,omitempty" db:"mute_until"`
	JoinedAt  time.Time  `json:"joined_at" db:"joined_at"`
}

type GroupBan struct {
	GroupID  uuid.UUID `json:"group_id" db:"group_id"`
	UserID   string    `json:"user_id" db:"user_id"`
	BannedBy string    `json:"banned_by" db:"banned_by"`
	Reason   string    `json:"reason,omitempty" db:"reason"`
	BannedAt time.Time `json:"banned_at" db:"banned_at"`
}

type Invite struct {
	ID        uuid.UUID `json:"id" db:"id"`
	GroupID   uuid.UUID `json:"group_id" db:"group_id"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	Type      string    `json:"type" db:"type"` // link or direct
	Code      string    `json:"code" db:"code"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	MaxUses   *int      `json:"max_uses,omitempty" db:"max_uses"` // nil = unlimited
	Uses      int       `json:"uses" db:"uses"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SenderKeyRecord marks that a device holds a distributed symmetric
// sending key for one specific epoch. The full composite key makes
// redelivery of the same envelope a no-op.
type SenderKeyRecord struct {
	GroupID   uuid.UUID `json:"group_id" db:"group_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	DeviceID  uuid.UUID `json:"device_id" db:"device_id"`
	Epoch     int64     `json:"group_epoch" db:"group_epoch"`
	KeyID     int       `json:"key_id" db:"key_id"`
	RotatedAt time.Time `json:"rotated_at" db:"rotated_at"`
}

type Message struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	GroupID         uuid.UUID  `json:"group_id" db:"group_id"`
	SenderUserID    string     `json:"sender_user_id" db:"sender_user_id"`
	SenderDeviceID  uuid.UUID  `json:"sender_device_id" db:"sender_device_id"`
	Ciphertext      []byte     `json:"ciphertext" db:"ciphertext"`
	Proto           int        `json:"proto" db:"proto"`
	Epoch           int64      `json:"group_epoch" db:"group_epoch"`
	ClientMessageID string     `json:"client_message_id,omitempty" db:"client_message_id"`
	ReplyToID       *uuid.UUID `json:"reply_to_message_id,omitempty" db:"reply_to_message_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	DeletedAt       *time.Time `json:"-" db:"deleted_at"`
}

type DeliveryRecord struct {
	MessageID         uuid.UUID  `json:"message_id" db:"message_id"`
	RecipientUserID   string     `json:"recipient_user_id" db:"recipient_user_id"`
	RecipientDeviceID uuid.UUID  `json:"recipient_device_id" db:"recipient_device_id"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	ReadAt            *time.Time `json:"read_at,omitempty" db:"read_at"`
}

type Device struct {
	DeviceID  uuid.UUID `json:"device_id" db:"device_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"device_name" db:"device_name"`
	Status    string    `json:"status" db:"status"` // active or revoked
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	DeviceActive  = "active"
	DeviceRevoked = "revoked"
)

// Presence visibility settings. Privacy filters what queriers see,
// never what is stored.
const (
	ShareEveryone = "everyone"
	ShareContacts = "contacts"
	ShareNobody   = "nobody"
)

type Presence struct {
	UserID        string     `json:"user_id" db:"user_id"`
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
	DeviceOnline  bool       `json:"device_online" db:"device_online"`
	ShareLastSeen string     `json:"share_last_seen" db:"share_last_seen"`
	ShareOnline   bool       `json:"share_online" db:"share_online"`
	UpdatedAt     time.Time  `json:"-" db:"updated_at"`
}
