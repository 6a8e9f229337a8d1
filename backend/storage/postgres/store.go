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

	"github.com/groupwire/groupwire/backend/models"
)

type Store struct {
	db *sql.DB
	// Capacity applied to groups created without an explicit one.
	maxParticipants int
}

func NewStore(db *sql.DB, maxParticipants int) *Store {
	return &Store{db: db, maxParticipants: maxParticipants}
}

// withTx runs fn in a transaction; any error rolls everything back so
// partial state (an epoch bump without its membership row) is never
// observable.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// lockedGroup is the group row read under FOR UPDATE. Every membership
// mutation locks the group row first: the capacity check and the epoch
// bump then serialize per group.
type lockedGroup struct {
	ID              uuid.UUID
	Epoch           int64
	MaxParticipants int
	IsClosed        bool
}

func lockGroup(tx *sql.Tx, groupID uuid.UUID) (*lockedGroup, error) {
	g := &lockedGroup{}
	err := tx.QueryRow(`
		SELECT id, group_epoch, max_participants, is_closed
		FROM groups WHERE id = $1
		FOR UPDATE`, groupID).Scan(&g.ID, &g.Epoch, &g.MaxParticipants, &g.IsClosed)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// bumpEpoch advances the group epoch inside the caller's transaction so
// the bump commits or rolls back with the membership change itself.
func bumpEpoch(tx *sql.Tx, groupID uuid.UUID) (int64, error) {
	var epoch int64
	err := tx.QueryRow(`
		UPDATE groups
		SET group_epoch = group_epoch + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING group_epoch`, groupID).Scan(&epoch)
	return epoch, err
}

// activeParticipant returns the caller's non-banned participant row
// within tx, or nil. Role checks read this fresh inside the mutating
// transaction, never a role cached at request entry.
func activeParticipant(tx *sql.Tx, groupID uuid.UUID, userID string) (*models.Participant, error) {
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
	if p.IsBanned {
		return nil, nil
	}
	return p, nil
}

func activeCount(tx *sql.Tx, groupID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM group_participants
		WHERE group_id = $1 AND is_banned = FALSE`, groupID).Scan(&n)
	return n, err
}
