package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wellness-api/internal/apperr"
	"wellness-api/internal/healthid"
	"wellness-api/internal/model"
)

// CreateUser inserts u with its emails, assigning a health id when u has none.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if u.HealthID == "" {
			id, err := healthid.New().Generate(ctx, func(ctx context.Context, id string) (bool, error) {
				var exists bool
				err := tx.QueryRowContext(ctx,
					`SELECT EXISTS(SELECT 1 FROM users WHERE health_id = ?)`, id).Scan(&exists)
				return exists, err
			})
			if err != nil {
				return fmt.Errorf("health id: %w", err)
			}
			u.HealthID = id
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, health_id, name, phone_number, created_at) VALUES (?, ?, ?, ?, ?)`,
			u.ID, u.HealthID, u.Name, u.PhoneNumber, toMillis(u.CreatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.Wrap(apperr.CodeConflict, "user already exists", err)
			}
			return err
		}
		for _, e := range u.Emails {
			if err := linkEmail(ctx, tx, u.ID, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddUserEmail registers another address for an existing user.
func (s *Store) AddUserEmail(ctx context.Context, userID, email string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return linkEmail(ctx, tx, userID, email)
	})
}

func linkEmail(ctx context.Context, tx *sql.Tx, userID, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.Invalid("email required")
	}
	var emailID string
	err := tx.QueryRowContext(ctx, `SELECT id FROM emails WHERE email_address = ?`, email).Scan(&emailID)
	if errors.Is(err, sql.ErrNoRows) {
		emailID = uuid.NewString()
		_, err = tx.ExecContext(ctx, `INSERT INTO emails (id, email_address) VALUES (?, ?)`, emailID, email)
	}
	if err != nil {
		return fmt.Errorf("email %s: %w", email, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_emails (user_id, email_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		userID, emailID,
	); err != nil {
		return fmt.Errorf("link email: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var (
		u       model.User
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, health_id, name, phone_number, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.HealthID, &u.Name, &u.PhoneNumber, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	c, err := s.UserContacts(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Emails = c.Emails
	return &u, nil
}

// UserContacts returns the addresses invitations can target for userID; an
// unknown user has none.
func (s *Store) UserContacts(ctx context.Context, userID string) (model.Contacts, error) {
	var c model.Contacts
	err := s.db.QueryRowContext(ctx, `SELECT phone_number FROM users WHERE id = ?`, userID).Scan(&c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contacts{}, nil
	}
	if err != nil {
		return c, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT e.email_address FROM emails e
		 JOIN user_emails ue ON ue.email_id = e.id
		 WHERE ue.user_id = ?
		 ORDER BY e.email_address`, userID)
	if err != nil {
		return c, err
	}
	defer rows.Close()
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return c, err
		}
		c.Emails = append(c.Emails, e)
	}
	return c, rows.Err()
}
