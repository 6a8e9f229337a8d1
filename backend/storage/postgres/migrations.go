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

package postgres

func (s *Store) Migrate() error {
	migrations := []string{
		// Groups table. group_epoch is bumped in the same transaction
		// as every membership-affecting change.
		`CREATE TABLE IF NOT EXISTS groups (
			id UUID PRIMARY KEY,
			title VARCHAR(100) NOT NULL,
			about VARCHAR(500) NOT NULL DEFAULT '',
			photo_url TEXT NOT NULL DEFAULT '',
			created_by VARCHAR(255) NOT NULL,
			max_participants INTEGER NOT NULL DEFAULT 100,
			group_epoch BIGINT NOT NULL DEFAULT 0,
			is_closed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Participants. The unique primary key plus the capacity check
		// under the group row lock prevents concurrent joins from
		// exceeding max_participants.
		`CREATE TABLE IF NOT EXISTS group_participants (
			group_id UUID NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			role VARCHAR(10) NOT NULL DEFAULT 'member'
				CHECK (role IN ('owner', 'admin', 'member')),
			is_banned BOOLEAN NOT NULL DEFAULT FALSE,
			mute_until TIMESTAMPTZ,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (group_id, user_id),
			FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_active_participants
		ON group_participants(group_id)
		WHERE is_banned = FALSE`,

		`CREATE TABLE IF NOT EXISTS group_bans (
			group_id UUID NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			banned_by VARCHAR(255) NOT NULL,
			reason VARCHAR(500) NOT NULL DEFAULT '',
			banned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (group_id, user_id),
			FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
		)`,

		// Invites. uses is incremented under FOR UPDATE on the row so
		// two concurrent redemptions cannot both pass a max_uses=1
		// boundary.
		`CREATE TABLE IF NOT EXISTS group_invites (
			id UUID PRIMARY KEY,
			group_id UUID NOT NULL,
			created_by VARCHAR(255) NOT NULL,
			type VARCHAR(10) NOT NULL CHECK (type IN ('link', 'direct')),
			code VARCHAR(16) NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL,
			max_uses INTEGER,
			uses INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS e2ee_devices (
			device_id UUID PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			device_name VARCHAR(100) NOT NULL DEFAULT 'device',
			status VARCHAR(10) NOT NULL DEFAULT 'active'
				CHECK (status IN ('active', 'revoked')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_user_devices
		ON e2ee_devices(user_id, status)`,

		// Sender-key records. The full composite key makes envelope
		// redelivery idempotent (ON CONFLICT DO NOTHING).
		`CREATE TABLE IF NOT EXISTS sender_keys (
			group_id UUID NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			device_id UUID NOT NULL,
			group_epoch BIGINT NOT NULL,
			key_id INTEGER NOT NULL,
			rotated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (group_id, user_id, device_id, group_epoch, key_id),
			FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
		)`,

		// Ciphertext envelopes. group_epoch stamps the epoch at send
		// time and is immutable afterwards.
		`CREATE TABLE IF NOT EXISTS group_messages (
			id UUID PRIMARY KEY,
			group_id UUID NOT NULL,
			sender_user_id VARCHAR(255) NOT NULL,
			sender_device_id UUID NOT NULL,
			ciphertext BYTEA NOT NULL,
			proto INTEGER NOT NULL,
			group_epoch BIGINT NOT NULL,
			client_message_id VARCHAR(255),
			reply_to_message_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ,
			FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
		)`,

		// Pagination key: (created_at, id).
		`CREATE INDEX IF NOT EXISTS idx_group_messages_cursor
		ON group_messages(group_id, created_at, id)`,

		// Idempotent resend lookup.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_client_message_id
		ON group_messages(group_id, sender_user_id, client_message_id)
		WHERE client_message_id IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS group_delivery (
			message_id UUID NOT NULL,
			recipient_user_id VARCHAR(255) NOT NULL,
			recipient_device_id UUID NOT NULL,
			delivered_at TIMESTAMPTZ,
			read_at TIMESTAMPTZ,
			PRIMARY KEY (message_id, recipient_device_id),
			FOREIGN KEY (message_id) REFERENCES group_messages(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_delivery_recipient
		ON group_delivery(recipient_user_id, message_id)`,

		`CREATE TABLE IF NOT EXISTS user_presence (
			user_id VARCHAR(255) PRIMARY KEY,
			last_seen_at TIMESTAMPTZ,
			device_online BOOLEAN NOT NULL DEFAULT FALSE,
			share_last_seen VARCHAR(10) NOT NULL DEFAULT 'contacts'
				CHECK (share_last_seen IN ('everyone', 'contacts', 'nobody')),
			share_online BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
