package scheduling

import (
	"context"
	"time"

	"wellness-api/internal/model"
)

// Tx is one atomic unit of work against the slot and appointment tables.
// Implementations must lock rows returned by CoveringSlots, LockSlot and
// LockAppointment until the unit commits or rolls back.
type Tx interface {
	// CoveringSlots lists slots of providerID whose interval contains at and
	// whose is_booked equals booked, ordered by start_time then id.
	CoveringSlots(ctx context.Context, providerID string, at time.Time, booked bool) ([]model.AvailabilitySlot, error)
	// SetSlotBooked flips is_booked only if it currently holds !booked and
	// reports whether it did.
	SetSlotBooked(ctx context.Context, slotID string, booked bool) (bool, error)
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	// LockAppointment returns apperr.ErrNotFound when id does not resolve.
	LockAppointment(ctx context.Context, id string) (*model.Appointment, error)
	CancelAppointment(ctx context.Context, id, reason string, at time.Time) error
	ReferenceExists(ctx context.Context, ref string) (bool, error)
	// LockSlot returns apperr.ErrNotFound when id does not resolve.
	LockSlot(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	// DeleteFreeSlot deletes the slot only while it is unbooked and no
	// non-cancelled appointment references it, reporting whether it did.
	DeleteFreeSlot(ctx context.Context, id string) (bool, error)
}

type SlotFilter struct {
	ProviderID    string // empty for all providers
	AvailableOnly bool
	EndsAfter     time.Time // zero for no bound
	Limit         int
	Offset        int
}

// Store is the record store the engine consumes.
type Store interface {
	// WithSchedulingTx runs fn in a transaction, committing when fn returns nil.
	WithSchedulingTx(ctx context.Context, fn func(Tx) error) error

	InsertSlot(ctx context.Context, s *model.AvailabilitySlot) error
	GetSlot(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	ListSlots(ctx context.Context, f SlotFilter) ([]model.AvailabilitySlot, error)

	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	ListAppointmentsByUser(ctx context.Context, userID string) ([]model.Appointment, error)
}
