package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"wellness-api/internal/model"
)

func scanEdge(row pgx.Row) (*model.MembershipEdge, error) {
	e := &model.MembershipEdge{}
	var kind string
	if err := row.Scan(&kind, &e.GroupID, &e.UserID, &e.Role, &e.JoinedAt); err != nil {
		return nil, err
	}
	e.Kind = model.GroupKind(kind)
	e.JoinedAt = e.JoinedAt.UTC()
	return e, nil
}

// InsertMembership relies on the primary key, so two racing joins yield one edge.
func (s *Store) InsertMembership(ctx context.Context, e model.MembershipEdge) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO memberships (kind, group_id, user_id, role, joined_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (kind, group_id, user_id) DO NOTHING`,
		string(e.Kind), e.GroupID, e.UserID, e.Role, e.JoinedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DeleteMembership(ctx context.Context, kind model.GroupKind, groupID, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM memberships WHERE kind=$1 AND group_id=$2 AND user_id=$3`,
		string(kind), groupID, userID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) GetMembership(ctx context.Context, kind model.GroupKind, groupID, userID string) (*model.MembershipEdge, error) {
	e, err := scanEdge(s.pool.QueryRow(ctx,
		`SELECT kind, group_id, user_id, role, joined_at FROM memberships
		 WHERE kind=$1 AND group_id=$2 AND user_id=$3`,
		string(kind), groupID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (s *Store) ListMemberships(ctx context.Context, kind model.GroupKind, groupID string) ([]model.MembershipEdge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, group_id, user_id, role, joined_at FROM memberships
		 WHERE kind=$1 AND group_id=$2
		 ORDER BY joined_at, user_id`,
		string(kind), groupID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MembershipEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ClaimGroup records ownerID as founder unless the group already has one,
// and returns whoever holds the record. The read is a separate statement so
// it sees a founder committed by a concurrent claim.
func (s *Store) ClaimGroup(ctx context.Context, kind model.GroupKind, groupID, ownerID string, at time.Time) (string, error) {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO group_founders (kind, group_id, owner_id, founded_at)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (kind, group_id) DO NOTHING`,
		string(kind), groupID, ownerID, at,
	); err != nil {
		return "", err
	}
	var owner string
	err := s.pool.QueryRow(ctx,
		`SELECT owner_id FROM group_founders WHERE kind=$1 AND group_id=$2`,
		string(kind), groupID,
	).Scan(&owner)
	return owner, err
}
