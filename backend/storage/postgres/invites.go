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
	"crypto/rand"
	"database/sql"
	"encoding/base32"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/groupwire/groupwire/backend/apperr"
	"github.com/groupwire/groupwire/backend/models"
	"github.com/groupwire/groupwire/backend/storage"
)

const inviteCodeLen = 12

func newInviteCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
	return code[:inviteCodeLen], nil
}

func (s *Store) CreateInvite(ctx context.Context, invite *models.Invite) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := lockGroup(tx, invite.GroupID)
		if err == sql.ErrNoRows {
			return apperr.NotFound("group not found")
		}
		if err != nil {
			return err
		}
		if g.IsClosed {
			return apperr.GroupClosed()
		}

		actor, err := activeParticipant(tx, invite.GroupID, invite.CreatedBy)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperr.NotMember()
		}
		if !models.CanPerform(actor.Role, models.ActionCreateInvite) {
			return apperr.Forbidden("owner or admin required")
		}

		// Retry once on a code collision; with 2^64 code space a second
		// collision means the RNG is broken.
		for attempt := 0; attempt < 2; attempt++ {
			invite.Code, err = newInviteCode()
			if err != nil {
				return err
			}
			err = tx.QueryRow(`
				INSERT INTO group_invites (id, group_id, created_by, type, code, expires_at, max_uses)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING created_at`,
				invite.ID, invite.GroupID, invite.CreatedBy, invite.Type,
				invite.Code, invite.ExpiresAt, invite.MaxUses).
				Scan(&invite.CreatedAt)
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" && attempt == 0 {
				continue
			}
			return err
		}
		return err
	})
}

func (s *Store) ListInvites(ctx context.Context, groupID uuid.UUID, actorID string) ([]models.Invite, error) {
	var invites []models.Invite
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		actor, err := activeParticipant(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperr.NotMember()
		}
		if !models.CanPerform(actor.Role, models.ActionCreateInvite) {
			return apperr.Forbidden("owner or admin required")
		}

		rows, err := tx.Query(`
			SELECT id, group_id, created_by, type, code, expires_at, max_uses, uses, created_at
			FROM group_invites
			WHERE group_id = $1 AND expires_at > NOW()
			ORDER BY created_at DESC`, groupID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var inv models.Invite
			if err := rows.Scan(&inv.ID, &inv.GroupID, &inv.CreatedBy, &inv.Type,
				&inv.Code, &inv.ExpiresAt, &inv.MaxUses, &inv.Uses, &inv.CreatedAt); err != nil {
				return err
			}
			invites = append(invites, inv)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return invites, nil
}

func (s *Store) RevokeInvite(ctx context.Context, groupID, inviteID uuid.UUID, actorID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		actor, err := activeParticipant(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if actor == nil {
			return apperr.NotMember()
		}
		if !models.CanPerform(actor.Role, models.ActionRevokeInvite) {
			return apperr.Forbidden("owner or admin required")
		}

		res, err := tx.Exec(`
			DELETE FROM group_invites
			WHERE id = $1 AND group_id = $2`, inviteID, groupID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("invite not found")
		}
		return nil
	})
}

// RedeemInvite locks the invite row first so two concurrent redemptions
// of a max_uses=1 code serialize. Check order: expiry, uses, group
// closed, ban, existing membership, capacity.
func (s *Store) RedeemInvite(ctx context.Context, code, userID string) (*storage.RedeemResult, error) {
	result := &storage.RedeemResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var inv models.Invite
		var expired bool
		err := tx.QueryRow(`
			SELECT id, group_id, max_uses, uses, expires_at <= NOW()
			FROM group_invites
			WHERE code = $1
			FOR UPDATE`, code).
			Scan(&inv.ID, &inv.GroupID, &inv.MaxUses, &inv.Uses, &expired)
		if err == sql.ErrNoRows {
			return apperr.Gone()
		}
		if err != nil {
			return err
		}
		if expired {
			return apperr.Gone()
		}
		if inv.MaxUses != nil && inv.Uses >= *inv.MaxUses {
			return apperr.MaxUses()
		}

		g, err := lockGroup(tx, inv.GroupID)
		if err != nil {
			return err
		}
		if g.IsClosed {
			return apperr.GroupClosed()
		}
		result.GroupID = g.ID
		result.Epoch = g.Epoch

		var banned bool
		err = tx.QueryRow(`
			SELECT EXISTS(SELECT 1 FROM group_bans
				WHERE group_id = $1 AND user_id = $2)`,
			inv.GroupID, userID).Scan(&banned)
		if err != nil {
			return err
		}
		if banned {
			return apperr.Banned()
		}

		existing, err := participantRow(tx, inv.GroupID, userID)
		if err != nil {
			return err
		}
		if existing != nil && !existing.IsBanned {
			// Already in: succeed without burning a use or bumping
			// the epoch.
			result.AlreadyMember = true
			return nil
		}

		count, err := activeCount(tx, inv.GroupID)
		if err != nil {
			return err
		}
		if count >= g.MaxParticipants {
			return apperr.GroupFull()
		}

		if existing != nil {
			_, err = tx.Exec(`
				UPDATE group_participants
				SET role = 'member', is_banned = FALSE, joined_at = NOW()
				WHERE group_id = $1 AND user_id = $2`, inv.GroupID, userID)
		} else {
			_, err = tx.Exec(`
				INSERT INTO group_participants (group_id, user_id, role, joined_at)
				VALUES ($1, $2, 'member', NOW())`, inv.GroupID, userID)
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			UPDATE group_invites SET uses = uses + 1
			WHERE id = $1`, inv.ID)
		if err != nil {
			return err
		}

		result.Epoch, err = bumpEpoch(tx, inv.GroupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
