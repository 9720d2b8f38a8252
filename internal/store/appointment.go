package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"wellness-api/internal/apperr"
	"wellness-api/internal/model"
	"wellness-api/internal/scheduling"
)

const slotCols = `id, provider_id, start_time, end_time, is_booked, created_at`

const appointmentCols = `id, reference, user_id, provider_id, slot_id, requested_time,
	consultation_type, notes, cancelled, cancellation_reason, cancelled_at, created_at`

func scanSlot(row pgx.Row) (model.AvailabilitySlot, error) {
	var s model.AvailabilitySlot
	err := row.Scan(&s.ID, &s.ProviderID, &s.StartTime, &s.EndTime, &s.IsBooked, &s.CreatedAt)
	s.StartTime, s.EndTime, s.CreatedAt = s.StartTime.UTC(), s.EndTime.UTC(), s.CreatedAt.UTC()
	return s, err
}

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	a := &model.Appointment{}
	var slotID *string
	if err := row.Scan(&a.ID, &a.Reference, &a.UserID, &a.ProviderID, &slotID, &a.RequestedTime,
		&a.ConsultationType, &a.Notes, &a.Cancelled, &a.CancellationReason, &a.CancelledAt, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	if slotID != nil {
		a.SlotID = *slotID
	}
	a.RequestedTime = a.RequestedTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.CancelledAt = utcPtr(a.CancelledAt)
	return a, nil
}

func collectSlots(rows pgx.Rows) ([]model.AvailabilitySlot, error) {
	defer rows.Close()
	var out []model.AvailabilitySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (s *Store) WithSchedulingTx(ctx context.Context, fn func(scheduling.Tx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return fn(schedulingTx{tx})
	})
}

func (s *Store) InsertSlot(ctx context.Context, slot *model.AvailabilitySlot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO provider_availabilities (id, provider_id, start_time, end_time, is_booked, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		slot.ID, slot.ProviderID, slot.StartTime, slot.EndTime, slot.IsBooked, slot.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeConflict, "slot already exists", err)
	}
	return err
}

func (s *Store) GetSlot(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	slot, err := scanSlot(s.pool.QueryRow(ctx,
		`SELECT `+slotCols+` FROM provider_availabilities WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("slot not found")
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (s *Store) ListSlots(ctx context.Context, f scheduling.SlotFilter) ([]model.AvailabilitySlot, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.ProviderID != "" {
		where = append(where, "provider_id = "+arg(f.ProviderID))
	}
	if f.AvailableOnly {
		where = append(where, "NOT is_booked")
	}
	if !f.EndsAfter.IsZero() {
		where = append(where, "end_time > "+arg(f.EndsAfter))
	}

	q := `SELECT ` + slotCols + ` FROM provider_availabilities`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY start_time, id LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment not found")
	}
	return a, err
}

func (s *Store) ListAppointmentsByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appointmentCols+` FROM appointments
		 WHERE user_id = $1
		 ORDER BY requested_time, id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type schedulingTx struct {
	tx pgx.Tx
}

// CoveringSlots locks the candidates; a racing booker blocks here and, once
// the winner commits, no longer sees the slot as free.
func (t schedulingTx) CoveringSlots(ctx context.Context, providerID string, at time.Time, booked bool) ([]model.AvailabilitySlot, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+slotCols+` FROM provider_availabilities
		 WHERE provider_id = $1 AND start_time <= $2 AND end_time > $2 AND is_booked = $3
		 ORDER BY start_time, id
		 FOR UPDATE`,
		providerID, at, booked,
	)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (t schedulingTx) SetSlotBooked(ctx context.Context, slotID string, booked bool) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE provider_availabilities SET is_booked = $2 WHERE id = $1 AND is_booked = NOT $2`,
		slotID, booked,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t schedulingTx) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	var slotID *string
	if a.SlotID != "" {
		slotID = &a.SlotID
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO appointments (id, reference, user_id, provider_id, slot_id, requested_time,
		   consultation_type, notes, cancelled, cancellation_reason, cancelled_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.Reference, a.UserID, a.ProviderID, slotID, a.RequestedTime,
		a.ConsultationType, a.Notes, a.Cancelled, a.CancellationReason, a.CancelledAt, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeConflict, "appointment reference taken", err)
	}
	return err
}

func (t schedulingTx) LockAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := scanAppointment(t.tx.QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment not found")
	}
	return a, err
}

func (t schedulingTx) CancelAppointment(ctx context.Context, id, reason string, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE appointments SET cancelled = TRUE, cancellation_reason = $2, cancelled_at = $3
		 WHERE id = $1 AND NOT cancelled`,
		id, reason, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("appointment %s changed during cancel", id)
	}
	return nil
}

func (t schedulingTx) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM appointments WHERE reference = $1)`, ref).Scan(&exists)
	return exists, err
}

// LockSlot holds the slot row so a booker's CoveringSlots waits on it.
func (t schedulingTx) LockSlot(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	slot, err := scanSlot(t.tx.QueryRow(ctx,
		`SELECT `+slotCols+` FROM provider_availabilities WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("slot not found")
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (t schedulingTx) DeleteFreeSlot(ctx context.Context, id string) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM provider_availabilities
		 WHERE id = $1 AND NOT is_booked
		   AND NOT EXISTS (SELECT 1 FROM appointments WHERE slot_id = $1 AND NOT cancelled)`,
		id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
