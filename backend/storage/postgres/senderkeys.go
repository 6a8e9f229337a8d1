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

	"github.com/google/uuid"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/models"
)

func (s *Store) DistributeSenderKey(ctx context.Context, rec *models.SenderKeyRecord) (bool, error) {
	var duplicate bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := lockGroup(tx, rec.GroupID)
		if err == sql.ErrNoRows {
			return apperr.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		if g.IsClosed {
			return apperr.GroupClosed()
		}
		if rec.Epoch != g.Epoch {
			return apperr.EpochStale(g.Epoch)
		}

		p, err := activeParticipant(tx, rec.GroupID, rec.UserID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NotMember()
		}

		var deviceStatus string
		err = tx.QueryRow(`
			SELECT status FROM e2ee_devices
			WHERE device_id = $1 AND user_id = $2`,
			rec.DeviceID, rec.UserID).Scan(&deviceStatus)
		if err == sql.ErrNoRows {
			return apperr.NotFound("unknown device")
		}
		if err != nil {
			return err
		}
		if deviceStatus != models.DeviceActive {
			return apperr.DeviceRevoked()
		}

		res, err := tx.Exec(`
			INSERT INTO sender_keys (group_id, user_id, device_id, group_epoch, key_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT DO NOTHING`,
			rec.GroupID, rec.UserID, rec.DeviceID, rec.Epoch, rec.KeyID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		duplicate = n == 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return duplicate, nil
}

// ListSenderKeys reports which devices hold a key at the current epoch,
// so a client knows who still needs a distribution envelope.
func (s *Store) ListSenderKeys(ctx context.Context, groupID uuid.UUID, requesterID string) ([]models.SenderKeyRecord, error) {
	var records []models.SenderKeyRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := lockGroup(tx, groupID)
		if err == sql.ErrNoRows {
			return apperr.NotFound("group not found")
		}
		if err != nil {
			return err
		}

		p, err := activeParticipant(tx, groupID, requesterID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NotMember()
		}

		rows, err := tx.Query(`
			SELECT group_id, user_id, device_id, group_epoch, key_id, rotated_at
			FROM sender_keys
			WHERE group_id = $1 AND group_epoch = $2
			ORDER BY user_id, device_id, key_id`, groupID, g.Epoch)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var r models.SenderKeyRecord
			if err := rows.Scan(&r.GroupID, &r.UserID, &r.DeviceID,
				&r.Epoch, &r.KeyID, &r.RotatedAt); err != nil {
				return err
			}
			records = append(records, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
