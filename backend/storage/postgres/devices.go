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

	"github.com/google/uuid"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/models"
)

func (s *Store) RegisterDevice(ctx context.Context, userID, name string) (*models.Device, error) {
	d := &models.Device{
		DeviceID: uuid.New(),
		UserID:   userID,
		Name:     name,
		Status:   models.DeviceActive,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO e2ee_devices (device_id, user_id, device_name, status)
		VALUES ($1, $2, $3, 'active')
		RETURNING created_at`,
		d.DeviceID, d.UserID, d.Name).Scan(&d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) ListDevices(ctx context.Context, userID string) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, user_id, device_name, status, created_at
		FROM e2ee_devices
		WHERE user_id = $1
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.DeviceID, &d.UserID, &d.Name, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// RevokeDevice is idempotent; re-revoking an already revoked device
// succeeds. Revoked devices stop sending immediately but their stored
// messages remain.
func (s *Store) RevokeDevice(ctx context.Context, userID string, deviceID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE e2ee_devices SET status = 'revoked'
		WHERE device_id = $1 AND user_id = $2`, deviceID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("device not found")
	}
	return nil
}
