package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"wellness-api/internal/apperr"
	"wellness-api/internal/invitation"
	"wellness-api/internal/model"
)

const invitationColumns = `id, sender_id, recipient_email, recipient_phone, invitation_type, group_id,
	sent_at, expires_at, accepted_at, rejected_at, is_accepted, is_rejected, is_expired`

func scanInvitation(row scanner) (*model.Invitation, error) {
	var (
		inv                model.Invitation
		sent, expires      int64
		accepted, rejected sql.NullInt64
		flags              model.InvitationFlags
	)
	if err := row.Scan(&inv.ID, &inv.SenderID, &inv.RecipientEmail, &inv.RecipientPhone, &inv.Type, &inv.GroupID,
		&sent, &expires, &accepted, &rejected, &flags.IsAccepted, &flags.IsRejected, &flags.IsExpired,
	); err != nil {
		return nil, err
	}
	inv.SentAt = fromMillis(sent)
	inv.ExpiresAt = fromMillis(expires)
	inv.AcceptedAt = fromNullMillis(accepted)
	inv.RejectedAt = fromNullMillis(rejected)
	inv.State = model.StateFromFlags(flags)
	return &inv, nil
}

func (s *Store) WithInvitationTx(ctx context.Context, fn func(invitation.Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(invitationTx{tx})
	})
}

func (s *Store) InsertInvitation(ctx context.Context, inv *model.Invitation) error {
	f := inv.State.Flags()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invitations (`+invitationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.SenderID, inv.RecipientEmail, inv.RecipientPhone, inv.Type, inv.GroupID,
		toMillis(inv.SentAt), toMillis(inv.ExpiresAt), nullMillis(inv.AcceptedAt), nullMillis(inv.RejectedAt),
		f.IsAccepted, f.IsRejected, f.IsExpired,
	)
	if err != nil && isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeConflict, "invitation already exists", err)
	}
	return err
}

func (s *Store) GetInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	inv, err := scanInvitation(s.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("invitation not found")
	}
	return inv, err
}

func (s *Store) PendingInvitationsFor(ctx context.Context, c model.Contacts, now time.Time) ([]model.Invitation, error) {
	var (
		match []string
		args  = []any{toMillis(now)}
	)
	if len(c.Emails) > 0 {
		match = append(match, `LOWER(recipient_email) IN (`+placeholders(len(c.Emails))+`)`)
		for _, e := range c.Emails {
			args = append(args, strings.ToLower(e))
		}
	}
	if c.Phone != "" {
		match = append(match, `recipient_phone = ?`)
		args = append(args, c.Phone)
	}
	if len(match) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations
		 WHERE is_accepted = 0 AND is_rejected = 0 AND is_expired = 0
		   AND expires_at > ?
		   AND (`+strings.Join(match, " OR ")+`)
		 ORDER BY sent_at DESC, id`, args...)
	if err != nil {
		return nil, err
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
	tx *sql.Tx
}

func (t invitationTx) LockInvitation(ctx context.Context, id string) (*model.Invitation, error) {
	inv, err := scanInvitation(t.tx.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("invitation not found")
	}
	return inv, err
}

func (t invitationTx) SaveInvitationState(ctx context.Context, inv *model.Invitation) error {
	f := inv.State.Flags()
	_, err := t.tx.ExecContext(ctx,
		`UPDATE invitations
		 SET is_accepted = ?, is_rejected = ?, is_expired = ?, accepted_at = ?, rejected_at = ?
		 WHERE id = ?`,
		f.IsAccepted, f.IsRejected, f.IsExpired, nullMillis(inv.AcceptedAt), nullMillis(inv.RejectedAt), inv.ID,
	)
	return err
}
