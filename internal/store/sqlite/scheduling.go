package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"wellness-api/internal/apperr"
	"wellness-api/internal/model"
	"wellness-api/internal/scheduling"
)

const slotColumns = `id, provider_id, start_time, end_time, is_booked, created_at`

const appointmentColumns = `id, reference, user_id, provider_id, slot_id, requested_time,
	consultation_type, notes, cancelled, cancellation_reason, cancelled_at, created_at`

func scanSlot(row scanner) (model.AvailabilitySlot, error) {
	var (
		s                   model.AvailabilitySlot
		start, end, created int64
	)
	if err := row.Scan(&s.ID, &s.ProviderID, &start, &end, &s.IsBooked, &created); err != nil {
		return s, err
	}
	s.StartTime, s.EndTime, s.CreatedAt = fromMillis(start), fromMillis(end), fromMillis(created)
	return s, nil
}

func scanAppointment(row scanner) (*model.Appointment, error) {
	var (
		a                  model.Appointment
		slotID             sql.NullString
		requested, created int64
		cancelledAt        sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.Reference, &a.UserID, &a.ProviderID, &slotID, &requested,
		&a.ConsultationType, &a.Notes, &a.Cancelled, &a.CancellationReason, &cancelledAt, &created,
	); err != nil {
		return nil, err
	}
	a.SlotID = slotID.String
	a.RequestedTime = fromMillis(requested)
	a.CancelledAt = fromNullMillis(cancelledAt)
	a.CreatedAt = fromMillis(created)
	return &a, nil
}

func collectSlots(rows *sql.Rows) ([]model.AvailabilitySlot, error) {
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
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(schedulingTx{tx})
	})
}

func (s *Store) InsertSlot(ctx context.Context, slot *model.AvailabilitySlot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_availabilities (id, provider_id, start_time, end_time, is_booked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		slot.ID, slot.ProviderID, toMillis(slot.StartTime), toMillis(slot.EndTime), slot.IsBooked, toMillis(slot.CreatedAt),
	)
	if err != nil && isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeConflict, "slot already exists", err)
	}
	return err
}

func (s *Store) GetSlot(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	slot, err := scanSlot(s.db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM provider_availabilities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
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
	if f.ProviderID != "" {
		where = append(where, "provider_id = ?")
		args = append(args, f.ProviderID)
	}
	if f.AvailableOnly {
		where = append(where, "is_booked = 0")
	}
	if !f.EndsAfter.IsZero() {
		where = append(where, "end_time > ?")
		args = append(args, toMillis(f.EndsAfter))
	}
	q := `SELECT ` + slotColumns + ` FROM provider_availabilities`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY start_time, id LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := scanAppointment(s.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("appointment not found")
	}
	return a, err
}

func (s *Store) ListAppointmentsByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		 WHERE user_id = ?
		 ORDER BY requested_time, id`, userID)
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
	tx *sql.Tx
}

func (t schedulingTx) CoveringSlots(ctx context.Context, providerID string, at time.Time, booked bool) ([]model.AvailabilitySlot, error) {
	ms := toMillis(at)
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM provider_availabilities
		 WHERE provider_id = ? AND start_time <= ? AND end_time > ? AND is_booked = ?
		 ORDER BY start_time, id`,
		providerID, ms, ms, booked,
	)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (t schedulingTx) SetSlotBooked(ctx context.Context, slotID string, booked bool) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE provider_availabilities SET is_booked = ? WHERE id = ? AND is_booked = ?`,
		booked, slotID, !booked,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (t schedulingTx) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	var slotID any
	if a.SlotID != "" {
		slotID = a.SlotID
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO appointments (id, reference, user_id, provider_id, slot_id, requested_time,
		   consultation_type, notes, cancelled, cancellation_reason, cancelled_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Reference, a.UserID, a.ProviderID, slotID, toMillis(a.RequestedTime),
		a.ConsultationType, a.Notes, a.Cancelled, a.CancellationReason, nullMillis(a.CancelledAt), toMillis(a.CreatedAt),
	)
	if err != nil && isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeConflict, "appointment reference taken", err)
	}
	return err
}

func (t schedulingTx) LockAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := scanAppointment(t.tx.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("appointment not found")
	}
	return a, err
}

func (t schedulingTx) CancelAppointment(ctx context.Context, id, reason string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE appointments SET cancelled = 1, cancellation_reason = ?, cancelled_at = ?
		 WHERE id = ? AND cancelled = 0`,
		reason, toMillis(at), id,
	)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("appointment %s changed during cancel", id)
	}
	return nil
}

func (t schedulingTx) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM appointments WHERE reference = ?)`, ref,
	).Scan(&exists)
	return exists, err
}

func (t schedulingTx) LockSlot(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	slot, err := scanSlot(t.tx.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM provider_availabilities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("slot not found")
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (t schedulingTx) DeleteFreeSlot(ctx context.Context, id string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM provider_availabilities
		 WHERE id = ? AND is_booked = 0
		   AND NOT EXISTS (SELECT 1 FROM appointments WHERE slot_id = ? AND cancelled = 0)`,
		id, id,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}
