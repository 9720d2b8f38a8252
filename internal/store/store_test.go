package store_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"wellness-api/internal/apperr"
	"wellness-api/internal/invitation"
	"wellness-api/internal/membership"
	"wellness-api/internal/model"
	"wellness-api/internal/scheduling"
	"wellness-api/internal/store"
)

func setup(t *testing.T) *store.Store {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)
	st := store.New(pool)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

// provider ids are unique per test so runs against a shared database don't collide
func provider() string { return "prov-" + uuid.New().String()[:8] }

func TestConcurrentBooking(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	eng := scheduling.New(st, scheduling.Config{Logger: zerolog.Nop()})

	p := provider()
	start := time.Now().Add(48 * time.Hour).Truncate(time.Minute)
	if _, err := eng.AddSlot(ctx, p, start, start.Add(30*time.Minute)); err != nil {
		t.Fatal(err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Book(ctx, scheduling.BookingRequest{
				UserID:        uuid.NewString(),
				ProviderID:    p,
				RequestedTime: start.Add(10 * time.Minute),
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, apperr.ErrSlotUnavailable) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d", successes)
	}
}

func TestRemoveSlotRacingBook(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	eng := scheduling.New(st, scheduling.Config{Logger: zerolog.Nop()})

	p := provider()
	base := time.Now().Add(96 * time.Hour).Truncate(time.Minute)
	for i := 0; i < 10; i++ {
		start := base.Add(time.Duration(i) * 30 * time.Minute)
		slot, err := eng.AddSlot(ctx, p, start, start.Add(30*time.Minute))
		if err != nil {
			t.Fatal(err)
		}

		var (
			wg             sync.WaitGroup
			bookErr, rmErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, bookErr = eng.Book(ctx, scheduling.BookingRequest{UserID: uuid.NewString(), ProviderID: p, RequestedTime: start})
		}()
		go func() {
			defer wg.Done()
			rmErr = eng.RemoveSlot(ctx, slot.ID)
		}()
		wg.Wait()

		booked := bookErr == nil && errors.Is(rmErr, apperr.ErrSlotInUse)
		removed := errors.Is(bookErr, apperr.ErrSlotUnavailable) && rmErr == nil
		if !booked && !removed {
			t.Fatalf("round %d: book err=%v remove err=%v", i, bookErr, rmErr)
		}
	}
}

func TestBookCancelRoundTrip(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	eng := scheduling.New(st, scheduling.Config{Logger: zerolog.Nop()})

	p := provider()
	start := time.Now().Add(72 * time.Hour).Truncate(time.Minute)
	slot, err := eng.AddSlot(ctx, p, start, start.Add(30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	user := uuid.NewString()
	appt, err := eng.Book(ctx, scheduling.BookingRequest{UserID: user, ProviderID: p, RequestedTime: start.Add(15 * time.Minute), Notes: "first visit"})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	got, err := eng.Appointment(ctx, appt.ID, user)
	if err != nil {
		t.Fatal(err)
	}
	if got.SlotID != slot.ID || got.Notes != "first visit" || !got.RequestedTime.Equal(appt.RequestedTime) {
		t.Errorf("stored appointment = %+v", got)
	}

	ok, err := eng.Cancel(ctx, scheduling.CancelRequest{AppointmentID: appt.ID, ActorID: user, Reason: "reschedule"})
	if !ok || err != nil {
		t.Fatalf("cancel: %v %v", ok, err)
	}
	ok, err = eng.Cancel(ctx, scheduling.CancelRequest{AppointmentID: appt.ID, ActorID: user})
	if ok || !errors.Is(err, apperr.ErrAlreadyTerminal) {
		t.Fatalf("second cancel: %v %v", ok, err)
	}
	s, _ := eng.Slot(ctx, slot.ID)
	if s.IsBooked {
		t.Error("slot still booked")
	}
}

func TestInvitationExpiry(t *testing.T) {
	st := setup(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	lc := invitation.New(st, invitation.Config{Now: func() time.Time { return now }, Logger: zerolog.Nop()})

	email := "inv-" + uuid.New().String()[:8] + "@test.com"
	u := &model.User{Name: "Recipient", Emails: []string{email}}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	inv, err := lc.Send(ctx, invitation.SendRequest{SenderID: uuid.NewString(), RecipientEmail: email, Type: model.InvitationDataSharing})
	if err != nil {
		t.Fatal(err)
	}

	pending, err := lc.Pending(ctx, u.ID)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %d, %v", len(pending), err)
	}

	now = now.Add(20 * 24 * time.Hour)
	ok, err := lc.Accept(ctx, inv.ID)
	if ok || !errors.Is(err, apperr.ErrInvitationExpired) {
		t.Fatalf("accept: %v %v", ok, err)
	}
	got, _ := lc.Get(ctx, inv.ID)
	if got.State != model.InvitationExpired {
		t.Errorf("state = %v", got.State)
	}
}

func TestMembershipEdgeUnique(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	g := membership.New(st, nil, zerolog.Nop())

	group := "fam-" + uuid.New().String()[:8]
	if ok, err := g.Join(ctx, model.GroupFamily, group, "u1", ""); !ok {
		t.Fatal(err)
	}
	if ok, err := g.Join(ctx, model.GroupFamily, group, "u1", ""); ok || !errors.Is(err, apperr.ErrDuplicateMembership) {
		t.Fatalf("duplicate join: %v %v", ok, err)
	}
	if ok, err := g.Leave(ctx, model.GroupFamily, group, "u1"); !ok {
		t.Fatal(err)
	}
}

func TestGroupFounderClaimedOnce(t *testing.T) {
	st := setup(t)
	ctx := context.Background()
	group := "fam-" + uuid.New().String()[:8]
	now := time.Now().UTC()

	owner, err := st.ClaimGroup(ctx, model.GroupFamily, group, "u1", now)
	if err != nil || owner != "u1" {
		t.Fatalf("first claim: %q %v", owner, err)
	}
	owner, err = st.ClaimGroup(ctx, model.GroupFamily, group, "u2", now)
	if err != nil || owner != "u1" {
		t.Fatalf("second claim: %q %v", owner, err)
	}
}
