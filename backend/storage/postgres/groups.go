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

func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.MaxParticipants == 0 {
		group.MaxParticipants = s.maxParticipants
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRow(`
			INSERT INTO groups (id, title, about, photo_url, created_by, max_participants, group_epoch, is_closed)
			VALUES ($1, $2, $3, $4, $5, $6, 0, FALSE)
			RETURNING created_at, updated_at`,
			group.ID, group.Title, group.About, group.PhotoURL,
			group.CreatedBy, group.MaxParticipants).
			Scan(&group.CreatedAt, &group.UpdatedAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO group_participants (group_id, user_id, role, joined_at)
			VALUES ($1, $2, 'owner', NOW())`,
			group.ID, group.CreatedBy)
		return err
	})
}

func (s *Store) GetGroupForUser(ctx context.Context, groupID uuid.UUID, userID string) (*models.Group, error) {
	g := &models.Group{}
	var role sql.NullString
	var banned sql.NullBool
	err := s.db.QueryRowContext(ctx, `
		SELECT g.id, g.title, g.about, g.photo_url, g.created_by, g.max_participants,
			g.group_epoch, g.is_closed, g.created_at, g.updated_at,
			p.role, p.is_banned,
			(SELECT COUNT(*) FROM group_participants
				WHERE group_id = g.id AND is_banned = FALSE)
		FROM groups g
		LEFT JOIN group_participants p ON p.group_id = g.id AND p.user_id = $2
		WHERE g.id = $1`, groupID, userID).
		Scan(&g.ID, &g.Title, &g.About, &g.PhotoURL, &g.CreatedBy, &g.MaxParticipants,
			&g.Epoch, &g.IsClosed, &g.CreatedAt, &g.UpdatedAt,
			&role, &banned, &g.ParticipantCount)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("group not found")
	}
	if err != nil {
		return nil, err
	}
	if !role.Valid || (banned.Valid && banned.Bool) {
		return nil, apperr.NotMember()
	}
	g.MyRole = models.Role(role.String)
	return g, nil
}

func (s *Store) ListGroupsForUser(ctx context.Context, userID string, limit, offset int) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.title, g.about, g.photo_url, g.created_by, g.max_participants,
			g.group_epoch, g.is_closed, g.created_at, g.updated_at,
			p.role,
			(SELECT COUNT(*) FROM group_participants
				WHERE group_id = g.id AND is_banned = FALSE)
		FROM groups g
		JOIN group_participants p ON p.group_id = g.id
		WHERE p.user_id = $1 AND p.is_banned = FALSE
		ORDER BY g.updated_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		var role string
		if err := rows.Scan(&g.ID, &g.Title, &g.About, &g.PhotoURL, &g.CreatedBy,
			&g.MaxParticipants, &g.Epoch, &g.IsClosed, &g.CreatedAt, &g.UpdatedAt,
			&role, &g.ParticipantCount); err != nil {
			return nil, err
		}
		g.MyRole = models.Role(role)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Store) UpdateGroup(ctx context.Context, groupID uuid.UUID, actorID string, title, about, photoURL *string) (*models.Group, error) {
	var updated *models.Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := lockGroup(tx, groupID)
		if err == sql.ErrNoRows {
			return apperr.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		if g.IsClosed {
			return apperr.GroupClosed()
		}

		actor, err := activeParticipant(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperr.NotMember()
		}
		if !models.CanPerform(actor.Role, models.ActionUpdateGroup) {
			return apperr.Forbidden("owner or admin required")
		}

		updated = &models.Group{}
		err = tx.QueryRow(`
			UPDATE groups
			SET title = COALESCE($2, title),
				about = COALESCE($3, about),
				photo_url = COALESCE($4, photo_url),
				updated_at = NOW()
			WHERE id = $1
			RETURNING id, title, about, photo_url, created_by, max_participants,
				group_epoch, is_closed, created_at, updated_at`,
			groupID, title, about, photoURL).
			Scan(&updated.ID, &updated.Title, &updated.About, &updated.PhotoURL,
				&updated.CreatedBy, &updated.MaxParticipants, &updated.Epoch,
				&updated.IsClosed, &updated.CreatedAt, &updated.UpdatedAt)
		if err != nil {
			return err
		}
		updated.MyRole = actor.Role
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) CloseGroup(ctx context.Context, groupID uuid.UUID, actorID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := lockGroup(tx, groupID)
		if err == sql.ErrNoRows {
			return apperr.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		if g.IsClosed {
			return nil // already closed
		}

		actor, err := activeParticipant(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperr.NotMember()
		}
		if !models.CanPerform(actor.Role, models.ActionCloseGroup) {
			return apperr.Forbidden("only the owner can close the group")
		}

		_, err = tx.Exec(`
			UPDATE groups SET is_closed = TRUE, updated_at = NOW()
			WHERE id = $1`, groupID)
		return err
	})
}

func (s *Store) CurrentEpoch(ctx context.Context, groupID uuid.UUID) (int64, error) {
	var epoch int64
	err := s.db.QueryRowContext(ctx,
		`SELECT group_epoch FROM groups WHERE id = $1`, groupID).Scan(&epoch)
	if err == sql.ErrNoRows {
		return 0, apperr.NotFound("group not found")
	}
	return epoch, err
}
