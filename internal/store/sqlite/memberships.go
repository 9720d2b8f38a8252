package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wellness-api/internal/model"
)

const membershipColumns = `kind, group_id, user_id, role, joined_at`

func scanMembership(row scanner) (*model.MembershipEdge, error) {
	var (
		e      model.MembershipEdge
		kind   string
		joined int64
	)
	if err := row.Scan(&kind, &e.GroupID, &e.UserID, &e.Role, &joined); err != nil {
		return nil, err
	}
	e.Kind = model.GroupKind(kind)
	e.JoinedAt = fromMillis(joined)
	return &e, nil
}

func (s *Store) InsertMembership(ctx context.Context, e model.MembershipEdge) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (`+membershipColumns+`) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (kind, group_id, user_id) DO NOTHING`,
		string(e.Kind), e.GroupID, e.UserID, e.Role, toMillis(e.JoinedAt),
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (s *Store) DeleteMembership(ctx context.Context, kind model.GroupKind, groupID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE kind = ? AND group_id = ? AND user_id = ?`,
		string(kind), groupID, userID,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// GetMembership returns nil, nil when the edge does not exist.
func (s *Store) GetMembership(ctx context.Context, kind model.GroupKind, groupID, userID string) (*model.MembershipEdge, error) {
	e, err := scanMembership(s.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE kind = ? AND group_id = ? AND user_id = ?`,
		string(kind), groupID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (s *Store) ListMemberships(ctx context.Context, kind model.GroupKind, groupID string) ([]model.MembershipEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships
		 WHERE kind = ? AND group_id = ?
		 ORDER BY joined_at, user_id`,
		string(kind), groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MembershipEdge
	for rows.Next() {
		e, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ClaimGroup records ownerID as founder unless the group already has one,
// and returns whoever holds the record.
func (s *Store) ClaimGroup(ctx context.Context, kind model.GroupKind, groupID, ownerID string, at time.Time) (string, error) {
	var owner string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_founders (kind, group_id, owner_id, founded_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (kind, group_id) DO NOTHING`,
			string(kind), groupID, ownerID, toMillis(at),
		); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx,
			`SELECT owner_id FROM group_founders WHERE kind = ? AND group_id = ?`,
			string(kind), groupID,
		).Scan(&owner)
	})
	return owner, err
}
