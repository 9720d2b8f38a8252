package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"wellness-api/internal/apperr"
	"wellness-api/internal/invitation"
	"wellness-api/internal/model"
)

const invitationCols = `id, sender_id, recipient_email, recipient_phone, invitation_type, group_id,
	sent_at, expires_at, accepted_at, rejected_at, is_accepted, is_rejected, is_expired`

func scanInvitation(row pgx.Row) (*model.Invitation, error) {
	inv := &model.Invitation{}
	var f model.InvitationFlags
	if err := row.Scan(&inv.ID, &inv.SenderID, &inv.RecipientEmail, &inv.RecipientPhone, &inv.Type, &inv.GroupID,
		&inv.SentAt, &inv.ExpiresAt, &inv.AcceptedAt, &inv.RejectedAt, &f.IsAccepted, &f.IsRejected, &f.IsExpired,
	); err != nil {
		return nil, err
	}
	inv.SentAt, inv.ExpiresAt = inv.SentAt.UTC(), inv.ExpiresAt.UTC()
	inv.AcceptedAt, inv.RejectedAt = utcPtr(inv.AcceptedAt), utcPtr(inv.RejectedAt)
	inv.State = model.StateFromFlags(f)
	return inv, nil
}

func (s *Store) WithInvitationTx(ctx context.Context, fn func(invitation.Tx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return fn(invitationTx{tx})
	})
}

func (s *Store) InsertInvitation(ctx context.Context, inv *model.Invitation) error {
	f := inv.State.Flags()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO invitations (`+invitationCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		inv.ID, inv.SenderID, inv.RecipientEmail, inv.RecipientPhone, inv.Type, inv.GroupID,
		inv.SentAt, inv.ExpiresAt, inv.AcceptedAt, inv.RejectedAt, f.IsAccepted, f.IsRejected, f.IsExpired,
	)
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeConflict, "invitation already exists", err)
	}
	return err
}

func (s *Store) GetInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	inv, err := scanInvitation(s.pool.QueryRow(ctx,
		`SELECT `+invitationCols+` FROM invitations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("invitation not found")
	}
	return inv, err
}

func (s *Store) PendingInvitationsFor(ctx context.Context, c model.Contacts, now time.Time) ([]model.Invitation, error) {
	emails := make([]string, 0, len(c.Emails))
	for _, e := range c.Emails {
		emails = append(emails, strings.ToLower(e))
	}
	if len(emails) == 0 && c.Phone == "" {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+invitationCols+` FROM invitations
		 WHERE NOT is_accepted AND NOT is_rejected AND NOT is_expired
		   AND expires_at > $1
		   AND (LOWER(recipient_email) = ANY($2::text[]) OR ($3::text <> '' AND recipient_phone = $3))
		 ORDER BY sent_at DESC, id`,
		now, emails, c.Phone,
	)
	if err != nil {
		return nil, fmt.Errorf("pending invitations: %w", err)
	}
	defer rows.Close()

	var out []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

type invitationTx struct {
	tx pgx.Tx
}

func (t invitationTx) LockInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	inv, err := scanInvitation(t.tx.QueryRow(ctx,
		`SELECT `+invitationCols+` FROM invitations WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("invitation not found")
	}
	return inv, err
}

func (t invitationTx) SaveInvitationState(ctx context.Context, inv *model.Invitation) error {
	f := inv.State.Flags()
	_, err := t.tx.Exec(ctx,
		`UPDATE invitations
		 SET is_accepted=$2, is_rejected=$3, is_expired=$4, accepted_at=$5, rejected_at=$6
		 WHERE id=$1`,
		inv.ID, f.IsAccepted, f.IsRejected, f.IsExpired, inv.AcceptedAt, inv.RejectedAt,
	)
	return err
}
