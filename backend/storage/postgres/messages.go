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

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/models"
	"github.com/groupwire/groupwire/backend/storage"
)

func (s *Store) SendMessage(ctx context.Context, req *storage.SendMessageRequest) (*storage.SendMessageResult, error) {
	result := &storage.SendMessageResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := lockGroup(tx, req.GroupID)
		if err == sql.ErrNoRows {
			return apperr.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		if g.IsClosed {
			return apperr.GroupClosed()
		}

		sender, err := activeParticipant(tx, req.GroupID, req.SenderUserID)
		if err != nil {
			return err
		}
		if sender == nil {
			return apperr.NotMember()
		}

		var deviceStatus string
		err = tx.QueryRow(`
			SELECT status FROM e2ee_devices
			WHERE device_id = $1 AND user_id = $2`,
			req.SenderDeviceID, req.SenderUserID).Scan(&deviceStatus)
		if err == sql.ErrNoRows {
			return apperr.NotFound("unknown sender device")
		}
		if err != nil {
			return err
		}
		if deviceStatus != models.DeviceActive {
			return apperr.DeviceRevoked()
		}

		// Resend with the same client_message_id returns the original.
		if req.ClientMessageID != "" {
			existing := &models.Message{}
			err := tx.QueryRow(`
				SELECT id, group_id, sender_user_id, sender_device_id, ciphertext,
					proto, group_epoch, client_message_id, reply_to_message_id, created_at
				FROM group_messages
				WHERE group_id = $1 AND sender_user_id = $2 AND client_message_id = $3`,
				req.GroupID, req.SenderUserID, req.ClientMessageID).
				Scan(&existing.ID, &existing.GroupID, &existing.SenderUserID,
					&existing.SenderDeviceID, &existing.Ciphertext, &existing.Proto,
					&existing.Epoch, &existing.ClientMessageID, &existing.ReplyToID,
					&existing.CreatedAt)
			if err != nil && err != sql.ErrNoRows {
				return err
			}
			if err == nil {
				result.Message = existing
				result.Duplicate = true
				return nil
			}
		}

		if req.Epoch != g.Epoch {
			return apperr.EpochStale(g.Epoch)
		}

		// Content messages require a sender key distributed at the
		// current epoch; distribution envelopes bootstrap it.
		if req.Proto != models.ProtoSenderKeyDistribution {
			var hasKey bool
			err := tx.QueryRow(`
				SELECT EXISTS(SELECT 1 FROM sender_keys
					WHERE group_id = $1 AND user_id = $2 AND device_id = $3 AND group_epoch = $4)`,
				req.GroupID, req.SenderUserID, req.SenderDeviceID, g.Epoch).Scan(&hasKey)
			if err != nil {
				return err
			}
			if !hasKey {
				return apperr.SenderKeyRequired(g.Epoch)
			}
		}

		if req.ReplyToID != nil {
			var ok bool
			err := tx.QueryRow(`
				SELECT EXISTS(SELECT 1 FROM group_messages
					WHERE id = $1 AND group_id = $2 AND deleted_at IS NULL)`,
				req.ReplyToID, req.GroupID).Scan(&ok)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFound("reply target not found")
			}
		}

		msg := &models.Message{
			ID:              uuid.New(),
			GroupID:         req.GroupID,
			SenderUserID:    req.SenderUserID,
			SenderDeviceID:  req.SenderDeviceID,
			Ciphertext:      req.Ciphertext,
			Proto:           req.Proto,
			Epoch:           g.Epoch,
			ClientMessageID: req.ClientMessageID,
			ReplyToID:       req.ReplyToID,
		}
		var clientID sql.NullString
		if req.ClientMessageID != "" {
			clientID = sql.NullString{String: req.ClientMessageID, Valid: true}
		}
		err = tx.QueryRow(`
			INSERT INTO group_messages
				(id, group_id, sender_user_id, sender_device_id, ciphertext,
				proto, group_epoch, client_message_id, reply_to_message_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at`,
			msg.ID, msg.GroupID, msg.SenderUserID, msg.SenderDeviceID,
			msg.Ciphertext, msg.Proto, msg.Epoch, clientID, msg.ReplyToID).
			Scan(&msg.CreatedAt)
		if err != nil {
			return err
		}

		// One delivery row per active device of every other member.
		_, err = tx.Exec(`
			INSERT INTO group_delivery (message_id, recipient_user_id, recipient_device_id)
			SELECT $1, p.user_id, d.device_id
			FROM group_participants p
			JOIN e2ee_devices d ON d.user_id = p.user_id AND d.status = 'active'
			WHERE p.group_id = $2 AND p.is_banned = FALSE AND p.user_id <> $3`,
			msg.ID, req.GroupID, req.SenderUserID)
		if err != nil {
			return err
		}

		result.Message = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListMessages(ctx context.Context, groupID uuid.UUID, requesterID string, cursor *storage.Cursor, limit int) ([]models.Message, *storage.Cursor, error) {
	if limit < 1 {
		limit = 1
	}
	var messages []models.Message
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		requester, err := activeParticipant(tx, groupID, requesterID)
		if err != nil {
			return err
		}
		if requester == nil {
			return apperr.NotMember()
		}

		args := []any{groupID, limit + 1}
		after := ""
		if cursor != nil {
			after = `AND (created_at, id) > ($3, $4)`
			args = append(args, cursor.CreatedAt, cursor.ID)
		}
		rows, err := tx.Query(`
			SELECT id, group_id, sender_user_id, sender_device_id, ciphertext,
				proto, group_epoch, COALESCE(client_message_id, ''),
				reply_to_message_id, created_at
			FROM group_messages
			WHERE group_id = $1 AND deleted_at IS NULL `+after+`
			ORDER BY created_at ASC, id ASC
			LIMIT $2`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m models.Message
			if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderUserID, &m.SenderDeviceID,
				&m.Ciphertext, &m.Proto, &m.Epoch, &m.ClientMessageID,
				&m.ReplyToID, &m.CreatedAt); err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var next *storage.Cursor
	if len(messages) > limit {
		messages = messages[:limit]
		last := messages[len(messages)-1]
		next = &storage.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return messages, next, nil
}

// MarkDelivered stamps all of the user's delivery rows for the message.
// Re-marking keeps the first timestamp.
func (s *Store) MarkDelivered(ctx context.Context, messageID uuid.UUID, userID string) (time.Time, error) {
	return s.markReceipt(ctx, messageID, userID, "delivered_at")
}

func (s *Store) MarkRead(ctx context.Context, messageID uuid.UUID, userID string) (time.Time, error) {
	return s.markReceipt(ctx, messageID, userID, "read_at")
}

func (s *Store) markReceipt(ctx context.Context, messageID uuid.UUID, userID, column string) (time.Time, error) {
	var ts sql.NullTime
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE group_delivery SET `+column+` = NOW()
			WHERE message_id = $1 AND recipient_user_id = $2 AND `+column+` IS NULL`,
			messageID, userID)
		if err != nil {
			return err
		}
		return tx.QueryRow(`
			SELECT MIN(`+column+`) FROM group_delivery
			WHERE message_id = $1 AND recipient_user_id = $2`,
			messageID, userID).Scan(&ts)
	})
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, apperr.NotFound("no delivery record")
	}
	return ts.Time, nil
}

func (s *Store) DeleteMessage(ctx context.Context, messageID uuid.UUID, actorID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var groupID uuid.UUID
		var senderID string
		err := tx.QueryRow(`
			SELECT group_id, sender_user_id FROM group_messages
			WHERE id = $1 AND deleted_at IS NULL`, messageID).
			Scan(&groupID, &senderID)
		if err == sql.ErrNoRows {
			return apperr.NotFound("message not found")
		}
		if err != nil {
			return err
		}

		if senderID != actorID {
			actor, err := activeParticipant(tx, groupID, actorID)
			if err != nil {
				return err
			}
			if actor == nil {
				return apperr.NotMember()
			}
			if !models.CanPerform(actor.Role, models.ActionDeleteMessage) {
				return apperr.Forbidden("sender, owner or admin required")
			}
		}

		_, err = tx.Exec(`
			UPDATE group_messages SET deleted_at = NOW()
			WHERE id = $1`, messageID)
		return err
	})
}
