// Package scheduling reserves provider availability slots for appointments.
//
// A booking marks exactly one free slot as booked and creates the appointment
// in the same transaction; a cancellation releases the slot the appointment
// recorded at booking time. Concurrent bookings of one slot rely on the
// store's row locks plus a compare-and-swap on is_booked, so at most one wins.
package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"wellness-api/internal/apperr"
	"wellness-api/internal/healthid"
	"wellness-api/internal/model"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

type Config struct {
	Now   func() time.Time
	NewID func() string
	// PastGrace is how far in the past a requested time may lie.
	PastGrace  time.Duration
	References *healthid.Generator
	Logger     zerolog.Logger
}

type Engine struct {
	store  Store
	now    func() time.Time
	newID  func() string
	grace  time.Duration
	refs   *healthid.Generator
	log    zerolog.Logger
	tracer trace.Tracer
}

func New(st Store, cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.References == nil {
		cfg.References = healthid.New()
	}
	return &Engine{
		store:  st,
		now:    cfg.Now,
		newID:  cfg.NewID,
		grace:  cfg.PastGrace,
		refs:   cfg.References,
		log:    cfg.Logger.With().Str("component", "reservation").Logger(),
		tracer: otel.Tracer("wellness-api/scheduling"),
	}
}

// AddSlot records a new free interval for a provider.
func (e *Engine) AddSlot(ctx context.Context, providerID string, start, end time.Time) (*model.AvailabilitySlot, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, apperr.Invalid("provider id required")
	}
	if start.IsZero() || end.IsZero() {
		return nil, apperr.Invalid("start and end time required")
	}
	if !start.Before(end) {
		return nil, apperr.Invalid("start must be before end")
	}
	s := &model.AvailabilitySlot{
		ID:         e.newID(),
		ProviderID: providerID,
		StartTime:  start.UTC(),
		EndTime:    end.UTC(),
		CreatedAt:  e.now().UTC(),
	}
	if err := e.store.InsertSlot(ctx, s); err != nil {
		return nil, fmt.Errorf("insert slot: %w", err)
	}
	return s, nil
}

func (e *Engine) Slot(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Invalid("slot id required")
	}
	return e.store.GetSlot(ctx, id)
}

func (e *Engine) Slots(ctx context.Context, f SlotFilter) ([]model.AvailabilitySlot, error) {
	f.ProviderID = strings.TrimSpace(f.ProviderID)
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return e.store.ListSlots(ctx, f)
}

// RemoveSlot deletes a slot unless it is booked or an active appointment
// still holds it. The check and the delete share one transaction with the
// slot row locked, so a concurrent Book either lands first and the removal
// is refused, or finds the slot gone.
func (e *Engine) RemoveSlot(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Invalid("slot id required")
	}
	return e.store.WithSchedulingTx(ctx, func(tx Tx) error {
		if _, err := tx.LockSlot(ctx, id); err != nil {
			return err
		}
		ok, err := tx.DeleteFreeSlot(ctx, id)
		if err != nil {
			return fmt.Errorf("delete slot: %w", err)
		}
		if !ok {
			return apperr.ErrSlotInUse
		}
		return nil
	})
}

type BookingRequest struct {
	UserID           string
	ProviderID       string
	RequestedTime    time.Time
	ConsultationType string
	Notes            string
}

func (e *Engine) validate(req *BookingRequest) error {
	req.UserID = strings.TrimSpace(req.UserID)
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.UserID == "" {
		return apperr.Invalid("user id required")
	}
	if req.ProviderID == "" {
		return apperr.Invalid("provider id required")
	}
	if req.RequestedTime.IsZero() {
		return apperr.Invalid("requested time required")
	}
	switch req.ConsultationType {
	case "":
		req.ConsultationType = model.ConsultationInPerson
	case model.ConsultationInPerson, model.ConsultationOnline:
	default:
		return apperr.Invalid("consultation type must be in-person or online")
	}
	if req.RequestedTime.Before(e.now().Add(-e.grace)) {
		return apperr.Invalid("cannot book in the past")
	}
	return nil
}

// Book reserves the free slot covering the requested time and creates the
// appointment. When several free slots cover the time (overlapping slots are
// not rejected at creation) the one starting earliest wins, then lowest id.
func (e *Engine) Book(ctx context.Context, req BookingRequest) (*model.Appointment, error) {
	if err := e.validate(&req); err != nil {
		return nil, err
	}
	at := req.RequestedTime.UTC()

	ctx, span := e.tracer.Start(ctx, "scheduling.Book", trace.WithAttributes(
		attribute.String("provider.id", req.ProviderID),
		attribute.String("requested_time", at.Format(time.RFC3339)),
	))
	defer span.End()

	var booked *model.Appointment
	err := e.store.WithSchedulingTx(ctx, func(tx Tx) error {
		candidates, err := tx.CoveringSlots(ctx, req.ProviderID, at, false)
		if err != nil {
			return fmt.Errorf("find slot: %w", err)
		}
		slot, ok := pick(candidates, at)
		if !ok {
			return apperr.ErrSlotUnavailable
		}
		swapped, err := tx.SetSlotBooked(ctx, slot.ID, true)
		if err != nil {
			return fmt.Errorf("book slot: %w", err)
		}
		if !swapped {
			return apperr.ErrSlotUnavailable
		}

		ref, err := e.refs.Generate(ctx, tx.ReferenceExists)
		if err != nil {
			return fmt.Errorf("appointment reference: %w", err)
		}
		appt := &model.Appointment{
			ID:               e.newID(),
			Reference:        ref,
			UserID:           req.UserID,
			ProviderID:       req.ProviderID,
			SlotID:           slot.ID,
			RequestedTime:    at,
			ConsultationType: req.ConsultationType,
			Notes:            req.Notes,
			CreatedAt:        e.now().UTC(),
		}
		if err := tx.InsertAppointment(ctx, appt); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		booked = appt
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("slot.id", booked.SlotID))
	e.log.Info().
		Str("appointment_id", booked.ID).
		Str("provider_id", booked.ProviderID).
		Str("slot_id", booked.SlotID).
		Time("requested_time", at).
		Msg("appointment booked")
	return booked, nil
}

type CancelRequest struct {
	AppointmentID string
	// ActorID, when set, must own the appointment; others get NotFound.
	ActorID string
	Reason  string
}

// Cancel marks the appointment cancelled and frees its slot in one
// transaction. It reports false with ErrNotFound or ErrAlreadyTerminal when
// there is nothing to cancel.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (bool, error) {
	if strings.TrimSpace(req.AppointmentID) == "" {
		return false, apperr.Invalid("appointment id required")
	}

	ctx, span := e.tracer.Start(ctx, "scheduling.Cancel", trace.WithAttributes(
		attribute.String("appointment.id", req.AppointmentID),
	))
	defer span.End()

	var (
		appt     *model.Appointment
		slotID   string
		released bool
	)
	err := e.store.WithSchedulingTx(ctx, func(tx Tx) error {
		var err error
		appt, err = tx.LockAppointment(ctx, req.AppointmentID)
		if err != nil {
			return err
		}
		if req.ActorID != "" && appt.UserID != req.ActorID {
			return apperr.NotFound("appointment not found")
		}
		if appt.Cancelled {
			return apperr.New(apperr.CodeAlreadyTerminal, "appointment already cancelled")
		}
		if err := tx.CancelAppointment(ctx, appt.ID, req.Reason, e.now().UTC()); err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}

		slotID = appt.SlotID
		if slotID == "" {
			// rows from before slot ids were recorded: derive the slot
			candidates, err := tx.CoveringSlots(ctx, appt.ProviderID, appt.RequestedTime, true)
			if err != nil {
				return fmt.Errorf("find booked slot: %w", err)
			}
			if s, ok := pick(candidates, appt.RequestedTime); ok {
				slotID = s.ID
			}
		}
		if slotID != "" {
			released, err = tx.SetSlotBooked(ctx, slotID, false)
			if err != nil {
				return fmt.Errorf("release slot: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	ev := e.log.Info()
	if !released {
		ev = e.log.Warn()
	}
	ev.Str("appointment_id", appt.ID).
		Str("slot_id", slotID).
		Bool("slot_released", released).
		Msg("appointment cancelled")
	return true, nil
}

// Appointment returns one appointment; actorID, when set, must own it.
func (e *Engine) Appointment(ctx context.Context, id, actorID string) (*model.Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Invalid("appointment id required")
	}
	a, err := e.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	// hide existence from non-owners
	if actorID != "" && a.UserID != actorID {
		return nil, apperr.NotFound("appointment not found")
	}
	return a, nil
}

func (e *Engine) Appointments(ctx context.Context, userID string) ([]model.Appointment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Invalid("user id required")
	}
	return e.store.ListAppointmentsByUser(ctx, userID)
}

// pick chooses the covering slot with the earliest start, then lowest id.
func pick(slots []model.AvailabilitySlot, at time.Time) (model.AvailabilitySlot, bool) {
	var (
		best  model.AvailabilitySlot
		found bool
	)
	for _, s := range slots {
		if !s.Covers(at) {
			continue
		}
		if !found || s.StartTime.Before(best.StartTime) ||
			(s.StartTime.Equal(best.StartTime) && s.ID < best.ID) {
			best, found = s, true
		}
	}
	return best, found
}
