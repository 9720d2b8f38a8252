package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"wellness-api/internal/apperr"
	"wellness-api/internal/healthid"
	"wellness-api/internal/model"
)

// CreateUser inserts u and links its emails. A missing health id is drawn
// inside the same transaction; the unique index is what guarantees it.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if u.HealthID == "" {
			id, err := healthid.New().Generate(ctx, func(ctx context.Context, id string) (bool, error) {
				var exists bool
				err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE health_id = $1)`, id).Scan(&exists)
				return exists, err
			})
			if err != nil {
				return fmt.Errorf("health id: %w", err)
			}
			u.HealthID = id
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO users (id, health_id, name, phone_number, created_at) VALUES ($1,$2,$3,$4,$5)`,
			u.ID, u.HealthID, u.Name, u.PhoneNumber, u.CreatedAt,
		)
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.CodeConflict, "user already exists", err)
		}
		if err != nil {
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

func (s *Store) AddUserEmail(ctx context.Context, userID, email string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return linkEmail(ctx, tx, userID, email)
	})
}

func linkEmail(ctx context.Context, tx pgx.Tx, userID, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.Invalid("email required")
	}
	var emailID string
	err := tx.QueryRow(ctx,
		`INSERT INTO emails (id, email_address) VALUES ($1,$2)
		 ON CONFLICT (email_address) DO UPDATE SET email_address = EXCLUDED.email_address
		 RETURNING id`,
		uuid.NewString(), email,
	).Scan(&emailID)
	if err != nil {
		return fmt.Errorf("email %s: %w", email, err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO user_emails (user_id, email_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
		userID, emailID,
	)
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, health_id, name, phone_number, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.HealthID, &u.Name, &u.PhoneNumber, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	c, err := s.UserContacts(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Emails = c.Emails
	return u, nil
}

func (s *Store) UserContacts(ctx context.Context, userID string) (model.Contacts, error) {
	var c model.Contacts
	err := s.pool.QueryRow(ctx, `SELECT phone_number FROM users WHERE id = $1`, userID).Scan(&c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Contacts{}, nil
	}
	if err != nil {
		return c, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT e.email_address FROM emails e
		 JOIN user_emails ue ON ue.email_id = e.id
		 WHERE ue.user_id = $1
		 ORDER BY e.email_address`, userID,
	)
	if err != nil {
		return c, err
	}
	c.Emails, err = pgx.CollectRows(rows, pgx.RowTo[string])
	return c, err
}
