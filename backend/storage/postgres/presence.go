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

	"github.com/lib/pq"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/models"
	"github.com/groupwire/groupwire/backend/storage"
)

func (s *Store) TouchPresence(ctx context.Context, userID string, online bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_presence (user_id, last_seen_at, device_online, updated_at)
		VALUES ($1, NOW(), $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET last_seen_at = NOW(), device_online = $2, updated_at = NOW()`,
		userID, online)
	return err
}

func (s *Store) GetMyPresence(ctx context.Context, userID string) (*models.Presence, error) {
	p := &models.Presence{}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, last_seen_at, device_online, share_last_seen, share_online, updated_at
		FROM user_presence WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.LastSeenAt, &p.DeviceOnline,
			&p.ShareLastSeen, &p.ShareOnline, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		// Defaults for a user who never connected.
		return &models.Presence{
			UserID:        userID,
			ShareLastSeen: models.ShareContacts,
			ShareOnline:   true,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) UpdatePresencePrivacy(ctx context.Context, userID string, shareLastSeen *string, shareOnline *bool) (*models.Presence, error) {
	if shareLastSeen != nil {
		switch *shareLastSeen {
		case "all": // legacy alias
			v := models.ShareEveryone
			shareLastSeen = &v
		case models.ShareEveryone, models.ShareContacts, models.ShareNobody:
		default:
			return nil, apperr.InvalidArgument("share_last_seen must be everyone, contacts or nobody")
		}
	}

	p := &models.Presence{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_presence (user_id, share_last_seen, share_online, updated_at)
		VALUES ($1, COALESCE($2, 'contacts'), COALESCE($3, TRUE), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET share_last_seen = COALESCE($2, user_presence.share_last_seen),
			share_online = COALESCE($3, user_presence.share_online),
			updated_at = NOW()
		RETURNING user_id, last_seen_at, device_online, share_last_seen, share_online, updated_at`,
		userID, shareLastSeen, shareOnline).
		Scan(&p.UserID, &p.LastSeenAt, &p.DeviceOnline,
			&p.ShareLastSeen, &p.ShareOnline, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPresences filters each target's presence through their privacy
// settings. Contacts means sharing at least one group with the viewer.
// Storage is untouched; only the returned view is masked.
func (s *Store) GetPresences(ctx context.Context, viewerID string, userIDs []string) ([]storage.PresenceView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.uid,
			p.last_seen_at, COALESCE(p.device_online, FALSE),
			COALESCE(p.share_last_seen, 'contacts'), COALESCE(p.share_online, TRUE),
			EXISTS(
				SELECT 1 FROM group_participants a
				JOIN group_participants b ON a.group_id = b.group_id
				WHERE a.user_id = u.uid AND a.is_banned = FALSE
					AND b.user_id = $2 AND b.is_banned = FALSE
			)
		FROM unnest($1::text[]) AS u(uid)
		LEFT JOIN user_presence p ON p.user_id = u.uid`,
		pq.Array(userIDs), viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []storage.PresenceView
	for rows.Next() {
		var (
			v            storage.PresenceView
			lastSeen     sql.NullTime
			deviceOnline bool
			shareSeen    string
			shareOnline  bool
			isContact    bool
		)
		if err := rows.Scan(&v.UserID, &lastSeen, &deviceOnline,
			&shareSeen, &shareOnline, &isContact); err != nil {
			return nil, err
		}

		self := v.UserID == viewerID
		seenVisible := self || shareSeen == models.ShareEveryone ||
			(shareSeen == models.ShareContacts && isContact)
		if seenVisible && lastSeen.Valid {
			t := lastSeen.Time
			v.LastSeenAt = &t
		}
		if self || shareOnline {
			v.DeviceOnline = deviceOnline
		}
		views = append(views, v)
	}
	return views, rows.Err()
}
