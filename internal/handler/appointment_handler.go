package handler

import (
	"context"
	"errors"

	"wellness-api/internal/apperr"
	"wellness-api/internal/model"
	"wellness-api/internal/scheduling"
	"wellness-api/internal/wire"
)

func (h *Handler) CreateSlot(ctx context.Context, req *wire.CreateSlotRequest) (*wire.SlotResponse, error) {
	if _, err := uid(ctx); err != nil {
		return nil, err
	}
	s, err := h.engine.AddSlot(ctx, req.ProviderID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &wire.SlotResponse{Slot: slotToWire(s)}, nil
}

func (h *Handler) ListSlots(ctx context.Context, req *wire.ListSlotsRequest) (*wire.ListSlotsResponse, error) {
	if _, err := uid(ctx); err != nil {
		return nil, err
	}
	slots, err := h.engine.Slots(ctx, scheduling.SlotFilter{
		ProviderID:    req.ProviderID,
		AvailableOnly: req.AvailableOnly,
		EndsAfter:     req.EndsAfter,
		Limit:         int(req.Limit),
		Offset:        int(req.Offset),
	})
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	out := make([]*wire.Slot, len(slots))
	for i := range slots {
		out[i] = slotToWire(&slots[i])
	}
	return &wire.ListSlotsResponse{Slots: out}, nil
}

func (h *Handler) DeleteSlot(ctx context.Context, req *wire.IDRequest) (*wire.Empty, error) {
	if _, err := uid(ctx); err != nil {
		return nil, err
	}
	if err := h.engine.RemoveSlot(ctx, req.ID); err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &wire.Empty{}, nil
}

func (h *Handler) BookAppointment(ctx context.Context, req *wire.BookAppointmentRequest) (*wire.AppointmentResponse, error) {
	userID, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	apt, err := h.engine.Book(ctx, scheduling.BookingRequest{
		UserID:           userID,
		ProviderID:       req.ProviderID,
		RequestedTime:    req.RequestedTime,
		ConsultationType: req.ConsultationType,
		Notes:            req.Notes,
	})
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &wire.AppointmentResponse{Appointment: appointmentToWire(apt)}, nil
}

// CancelAppointment answers Cancelled=false without an error when the
// appointment was already cancelled.
func (h *Handler) CancelAppointment(ctx context.Context, req *wire.CancelAppointmentRequest) (*wire.CancelAppointmentResponse, error) {
	userID, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := h.engine.Cancel(ctx, scheduling.CancelRequest{
		AppointmentID: req.ID,
		ActorID:       userID,
		Reason:        req.Reason,
	})
	if errors.Is(err, apperr.ErrAlreadyTerminal) {
		return &wire.CancelAppointmentResponse{}, nil
	}
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &wire.CancelAppointmentResponse{Cancelled: ok}, nil
}

func (h *Handler) GetAppointment(ctx context.Context, req *wire.IDRequest) (*wire.AppointmentResponse, error) {
	userID, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	apt, err := h.engine.Appointment(ctx, req.ID, userID)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &wire.AppointmentResponse{Appointment: appointmentToWire(apt)}, nil
}

func (h *Handler) ListAppointments(ctx context.Context, _ *wire.Empty) (*wire.ListAppointmentsResponse, error) {
	userID, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	apts, err := h.engine.Appointments(ctx, userID)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	out := make([]*wire.Appointment, len(apts))
	for i := range apts {
		out[i] = appointmentToWire(&apts[i])
	}
	return &wire.ListAppointmentsResponse{Appointments: out}, nil
}

func slotToWire(s *model.AvailabilitySlot) *wire.Slot {
	return &wire.Slot{
		ID:         s.ID,
		ProviderID: s.ProviderID,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		IsBooked:   s.IsBooked,
		CreatedAt:  s.CreatedAt,
	}
}

func appointmentToWire(a *model.Appointment) *wire.Appointment {
	return &wire.Appointment{
		ID:                 a.ID,
		Reference:          a.Reference,
		UserID:             a.UserID,
		ProviderID:         a.ProviderID,
		SlotID:             a.SlotID,
		RequestedTime:      a.RequestedTime,
		ConsultationType:   a.ConsultationType,
		Notes:              a.Notes,
		Cancelled:          a.Cancelled,
		CancellationReason: a.CancellationReason,
		CancelledAt:        a.CancelledAt,
		CreatedAt:          a.CreatedAt,
	}
}
