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
)

func (s *Store) AddMembers(ctx context.Context, groupID uuid.UUID, actorID string, userIDs []string) ([]string, int64, error) {
	var added []string
	var epoch int64
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
		epoch = g.Epoch

		actor, err := activeParticipant(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperr.NotMember()
		}
		if !models.CanPerform(actor.Role, models.ActionAddMember) {
			return apperr.Forbidden("owner or admin required")
		}

		count, err := activeCount(tx, groupID)
		if err != nil {
			return err
		}

		for _, userID := range userIDs {
			var banned bool
			err := tx.QueryRow(`
				SELECT EXISTS(SELECT 1 FROM group_bans
					WHERE group_id = $1 AND user_id = $2)`,
				groupID, userID).Scan(&banned)
			if err != nil {
				return err
			}
			if banned {
				return apperr.Banned().With("user_id", userID)
			}

			// Re-adding an active participant is a no-op: no row
			// change, no epoch bump.
			existing, err := participantRow(tx, groupID, userID)
			if err != nil {
				return err
			}
			if existing != nil && !existing.IsBanned {
				continue
			}

			if count >= g.MaxParticipants {
				return apperr.GroupFull()
			}

			if existing != nil {
				// Left or previously flagged row: reactivate as member.
				_, err = tx.Exec(`
					UPDATE group_participants
					SET role = 'member', is_banned = FALSE, joined_at = NOW()
					WHERE group_id = $1 AND user_id = $2`, groupID, userID)
			} else {
				_, err = tx.Exec(`
					INSERT INTO group_participants (group_id, user_id, role, joined_at)
					VALUES ($1, $2, 'member', NOW())`, groupID, userID)
			}
			if err != nil {
				return err
			}
			added = append(added, userID)
			count++
		}

		if len(added) > 0 {
			epoch, err = bumpEpoch(tx, groupID)
		}
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return added, epoch, nil
}

func (s *Store) RemoveMember(ctx context.Context, groupID uuid.UUID, actorID, targetID string) (int64, error) {
	var epoch int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockGroup(tx, groupID); err != nil {
			if err == sql.ErrNoRows {
				return apperr.NotFound("group not found")
			}
			return err
		}

		actor, err := activeParticipant(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperr.NotMember()
		}
		if !models.CanPerform(actor.Role, models.ActionRemoveMember) {
			return apperr.Forbidden("owner or admin required")
		}

		target, err := activeParticipant(tx, groupID, targetID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperr.NotFound("not a member")
		}
		if target.Role == models.RoleOwner {
			return apperr.Forbidden("the owner cannot be removed")
		}
		if target.Role == models.RoleAdmin && actor.Role != models.RoleOwner {
			return apperr.Forbidden("only the owner can remove an admin")
		}

		_, err = tx.Exec(`
			DELETE FROM group_participants
			WHERE group_id = $1 AND user_id = $2`, groupID, targetID)
		if err != nil {
			return err
		}

		epoch, err = bumpEpoch(tx, groupID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return epoch, nil
}

func (s *Store) Leave(ctx context.Context, groupID uuid.UUID, userID string) (int64, error) {
	var epoch int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockGroup(tx, groupID); err != nil {
			if err == sql.ErrNoRows {
				return apperr.NotFound("group not found")
			}
			return err
		}

		p, err := activeParticipant(tx, groupID, userID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NotMember()
		}
		if p.Role == models.RoleOwner {
			// The owner must transfer or close before leaving.
			return apperr.OwnerRequired()
		}
		if p.Role == models.RoleAdmin {
			var admins int
			err := tx.QueryRow(`
				SELECT COUNT(*) FROM group_participants
				WHERE group_id = $1 AND role IN ('owner', 'admin') AND is_banned = FALSE`,
				groupID).Scan(&admins)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return apperr.LastAdmin()
			}
		}

		_, err = tx.Exec(`
			DELETE FROM group_participants
			WHERE group_id = $1 AND user_id = $2`, groupID, userID)
		if err != nil {
			return err
		}

		epoch, err = bumpEpoch(tx, groupID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return epoch, nil
}

// Promote widens no security boundary (the target already decrypts
// everything), so the epoch stays put.
func (s *Store) Promote(ctx context.Context, groupID uuid.UUID, actorID, targetID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockGroup(tx, groupID); err != nil {
			if err == sql.ErrNoRows {
				return apperr.NotFound("group not found")
			}
			return err
		}

		actor, err := activeParticipant(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperr.NotMember()
		}
		if !models.CanPerform(actor.Role, models.ActionPromote) {
			return apperr.Forbidden("owner or admin required")
		}

		target, err := activeParticipant(tx, groupID, targetID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperr.NotFound("not a member")
		}
		if target.Role != models.RoleMember {
			return nil // already admin or owner
		}

		_, err = tx.Exec(`
			UPDATE group_participants SET role = 'admin'
			WHERE group_id = $1 AND user_id = $2`, groupID, targetID)
		return err
	})
}

func (s *Store) Demote(ctx context.Context, groupID uuid.UUID, actorID, targetID string) (int64, error) {
	var epoch int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := lockGroup(tx, groupID)
		if err == sql.ErrNoRows {
			return apperr.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		epoch = g.Epoch

		actor, err := activeParticipant(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperr.NotMember()
		}
		if !models.CanPerform(actor.Role, models.ActionDemote) {
			return apperr.Forbidden("only the owner can demote")
		}

		target, err := activeParticipant(tx, groupID, targetID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperr.NotFound("not a member")
		}
		if target.Role != models.RoleAdmin {
			return apperr.Forbidden("target is not an admin")
		}

		_, err = tx.Exec(`
			UPDATE group_participants SET role = 'member'
			WHERE group_id = $1 AND user_id = $2`, groupID, targetID)
		if err != nil {
			return err
		}

		epoch, err = bumpEpoch(tx, groupID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return epoch, nil
}

func (s *Store) Ban(ctx context.Context, groupID uuid.UUID, actorID, targetID, reason string) (int64, error) {
	var epoch int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockGroup(tx, groupID); err != nil {
			if err == sql.ErrNoRows {
				return apperr.NotFound("group not found")
			}
			return err
		}

		actor, err := activeParticipant(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperr.NotMember()
		}
		if !models.CanPerform(actor.Role, models.ActionBan) {
			return apperr.Forbidden("owner or admin required")
		}

		target, err := participantRow(tx, groupID, targetID)
		if err != nil {
			return err
		}
		if target != nil {
			if target.Role == models.RoleOwner {
				return apperr.Forbidden("the owner cannot be banned")
			}
			if target.Role == models.RoleAdmin && actor.Role != models.RoleOwner {
				return apperr.Forbidden("only the owner can ban an admin")
			}
		}

		_, err = tx.Exec(`
			INSERT INTO group_bans (group_id, user_id, banned_by, reason, banned_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (group_id, user_id) DO UPDATE
			SET banned_by = $3, reason = $4, banned_at = NOW()`,
			groupID, targetID, actorID, reason)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			DELETE FROM group_participants
			WHERE group_id = $1 AND user_id = $2`, groupID, targetID)
		if err != nil {
			return err
		}

		epoch, err = bumpEpoch(tx, groupID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return epoch, nil
}

// Unban lifts the ban only. The user rejoins through an invite or an
// add, which is where capacity and the epoch are handled.
func (s *Store) Unban(ctx context.Context, groupID uuid.UUID, actorID, targetID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockGroup(tx, groupID); err != nil {
			if err == sql.ErrNoRows {
				return apperr.NotFound("group not found")
			}
			return err
		}

		actor, err := activeParticipant(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperr.NotMember()
		}
		if !models.CanPerform(actor.Role, models.ActionUnban) {
			return apperr.Forbidden("owner or admin required")
		}

		res, err := tx.Exec(`
			DELETE FROM group_bans
			WHERE group_id = $1 AND user_id = $2`, groupID, targetID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("no ban for user")
		}
		return nil
	})
}

func (s *Store) ListMembers(ctx context.Context, groupID uuid.UUID, requesterID string) ([]models.Participant, error) {
	var members []models.Participant
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		requester, err := activeParticipant(tx, groupID, requesterID)
		if err != nil {
			return err
		}
		if requester == nil {
			return apperr.NotMember()
		}

		rows, err := tx.Query(`
			SELECT group_id, user_id, role, is_banned, mute_until, joined_at
			FROM group_participants
			WHERE group_id = $1 AND is_banned = FALSE
			ORDER BY joined_at ASC`, groupID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p models.Participant
			if err := rows.Scan(&p.GroupID, &p.UserID, &p.Role, &p.IsBanned,
				&p.MuteUntil, &p.JoinedAt); err != nil {
				return err
			}
			members = append(members, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// Mute sets the caller's own notification mute; nil until clears it.
func (s *Store) Mute(ctx context.Context, groupID uuid.UUID, userID string, until *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE group_participants SET mute_until = $3
		WHERE group_id = $1 AND user_id = $2 AND is_banned = FALSE`,
		groupID, userID, until)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotMember()
	}
	return nil
}

// participantRow reads the raw participant row, banned or not.
func participantRow(tx *sql.Tx, groupID uuid.UUID, userID string) (*models.Participant, error) {
	p := &models.Participant{}
	err := tx.QueryRow(`
		SELECT group_id, user_id, role, is_banned, joined_at
		FROM group_participants
		WHERE group_id = $1 AND user_id = $2`, groupID, userID).
		Scan(&p.GroupID, &p.UserID, &p.Role, &p.IsBanned, &p.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
