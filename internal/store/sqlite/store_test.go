package sqlite

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wellness-api/internal/apperr"
	"wellness-api/internal/model"
	"wellness-api/internal/scheduling"
)

var base = time.Date(2030, time.June, 3, 9, 0, 0, 0, time.UTC)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "wellness.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return st
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestReopenSkipsAppliedMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wellness.db")
	st, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	slot := &model.AvailabilitySlot{ID: "s1", ProviderID: "7", StartTime: base, EndTime: base.Add(30 * time.Minute), CreatedAt: base}
	if err := st.InsertSlot(context.Background(), slot); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	got, err := st.GetSlot(context.Background(), "s1")
	if err != nil {
		t.Fatalf("slot lost across reopen: %v", err)
	}
	if !got.StartTime.Equal(base) || !got.EndTime.Equal(base.Add(30*time.Minute)) {
		t.Errorf("times = %v..%v", got.StartTime, got.EndTime)
	}
}

func TestSlotCheckConstraint(t *testing.T) {
	st := openTempStore(t)
	err := st.InsertSlot(context.Background(), &model.AvailabilitySlot{
		ID: "bad", ProviderID: "7", StartTime: base, EndTime: base, CreatedAt: base,
	})
	if err == nil {
		t.Fatal("expected check constraint failure")
	}
}

func TestSetSlotBookedIsCompareAndSwap(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	st.InsertSlot(ctx, &model.AvailabilitySlot{ID: "s1", ProviderID: "7", StartTime: base, EndTime: base.Add(time.Hour), CreatedAt: base})

	var results []bool
	for _, booked := range []bool{true, true, false, false} {
		err := st.WithSchedulingTx(ctx, func(tx scheduling.Tx) error {
			ok, err := tx.SetSlotBooked(ctx, "s1", booked)
			results = append(results, ok)
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	want := []bool{true, false, true, false}
	for i := range want {
		if results[i] != want[i] {
			t.Fatalf("results = %v, want %v", results, want)
		}
	}
}

func TestRollbackOnError(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	st.InsertSlot(ctx, &model.AvailabilitySlot{ID: "s1", ProviderID: "7", StartTime: base, EndTime: base.Add(time.Hour), CreatedAt: base})

	boom := errors.New("boom")
	err := st.WithSchedulingTx(ctx, func(tx scheduling.Tx) error {
		if _, err := tx.SetSlotBooked(ctx, "s1", true); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	got, _ := st.GetSlot(ctx, "s1")
	if got.IsBooked {
		t.Fatal("booking survived rollback")
	}
}

func TestDeleteFreeSlotGuards(t *testing.T) {
	tests := []struct {
		name     string
		booked   bool
		appt     string // "", "active" or "cancelled"
		wantGone bool
	}{
		{"free", false, "", true},
		{"booked flag", true, "", false},
		{"active appointment with stale flag", false, "active", false},
		{"cancelled appointment", false, "cancelled", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := openTempStore(t)
			ctx := context.Background()
			if err := st.InsertSlot(ctx, &model.AvailabilitySlot{
				ID: "s1", ProviderID: "7", StartTime: base, EndTime: base.Add(time.Hour), IsBooked: tt.booked, CreatedAt: base,
			}); err != nil {
				t.Fatal(err)
			}
			if tt.appt != "" {
				cancelled := 0
				if tt.appt == "cancelled" {
					cancelled = 1
				}
				if _, err := st.db.ExecContext(ctx,
					`INSERT INTO appointments (id, reference, user_id, provider_id, slot_id, requested_time, cancelled, created_at)
					 VALUES ('a1', '00000001', 'u1', '7', 's1', ?, ?, ?)`,
					toMillis(base), cancelled, toMillis(base),
				); err != nil {
					t.Fatal(err)
				}
			}

			var gone bool
			err := st.WithSchedulingTx(ctx, func(tx scheduling.Tx) error {
				if _, err := tx.LockSlot(ctx, "s1"); err != nil {
					return err
				}
				var err error
				gone, err = tx.DeleteFreeSlot(ctx, "s1")
				return err
			})
			if err != nil {
				t.Fatal(err)
			}
			if gone != tt.wantGone {
				t.Fatalf("deleted = %v, want %v", gone, tt.wantGone)
			}
			_, err = st.GetSlot(ctx, "s1")
			if tt.wantGone != errors.Is(err, apperr.ErrNotFound) {
				t.Fatalf("get after delete: %v", err)
			}
		})
	}
}

func TestLockSlotNotFound(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	err := st.WithSchedulingTx(ctx, func(tx scheduling.Tx) error {
		_, err := tx.LockSlot(ctx, "missing")
		return err
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestDuplicateReference(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	insert := func(id string) error {
		return st.WithSchedulingTx(ctx, func(tx scheduling.Tx) error {
			return tx.InsertAppointment(ctx, &model.Appointment{
				ID: id, Reference: "12345678", UserID: "u1", ProviderID: "7",
				RequestedTime: base, ConsultationType: model.ConsultationOnline, CreatedAt: base,
			})
		})
	}
	if err := insert("a1"); err != nil {
		t.Fatal(err)
	}
	if err := insert("a2"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate reference: %v", err)
	}
}

func TestCancelLegacyAppointmentDerivesSlot(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	var logs bytes.Buffer
	eng := scheduling.New(st, scheduling.Config{Now: func() time.Time { return base.Add(-time.Hour) }, Logger: zerolog.New(&logs)})

	if err := st.InsertSlot(ctx, &model.AvailabilitySlot{
		ID: "s1", ProviderID: "7", StartTime: base, EndTime: base.Add(30 * time.Minute), IsBooked: true, CreatedAt: base,
	}); err != nil {
		t.Fatal(err)
	}
	// booked before slot ids were recorded on appointments
	if _, err := st.db.ExecContext(ctx,
		`INSERT INTO appointments (id, reference, user_id, provider_id, slot_id, requested_time, created_at)
		 VALUES ('a1', '00000001', 'u1', '7', NULL, ?, ?)`,
		toMillis(base.Add(15*time.Minute)), toMillis(base),
	); err != nil {
		t.Fatal(err)
	}

	ok, err := eng.Cancel(ctx, scheduling.CancelRequest{AppointmentID: "a1", Reason: "legacy"})
	if !ok || err != nil {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	slot, _ := st.GetSlot(ctx, "s1")
	if slot.IsBooked {
		t.Fatal("legacy cancel did not release the covering slot")
	}
	if !strings.Contains(logs.String(), `"slot_id":"s1"`) {
		t.Errorf("cancel log does not name the released slot: %s", logs.String())
	}
}

func TestCancelWithMissingSlotStillCommits(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	eng := scheduling.New(st, scheduling.Config{Now: func() time.Time { return base.Add(-time.Hour) }, Logger: zerolog.Nop()})

	if _, err := st.db.ExecContext(ctx,
		`INSERT INTO appointments (id, reference, user_id, provider_id, requested_time, created_at)
		 VALUES ('a1', '00000002', 'u1', '7', ?, ?)`,
		toMillis(base), toMillis(base),
	); err != nil {
		t.Fatal(err)
	}
	ok, err := eng.Cancel(ctx, scheduling.CancelRequest{AppointmentID: "a1"})
	if !ok || err != nil {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
	a, _ := st.GetAppointment(ctx, "a1")
	if !a.Cancelled {
		t.Fatal("appointment not cancelled")
	}
}

func TestLegacyInvitationFlagsDecode(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	tests := []struct {
		id                          string
		accepted, rejected, expired int
		want                        model.InvitationState
	}{
		{"pending", 0, 0, 0, model.InvitationPending},
		{"accepted-legacy", 1, 0, 1, model.InvitationAccepted},
		{"rejected-legacy", 0, 1, 1, model.InvitationRejected},
		{"expired", 0, 0, 1, model.InvitationExpired},
	}
	for _, tc := range tests {
		if _, err := st.db.ExecContext(ctx,
			`INSERT INTO invitations (id, sender_id, recipient_email, invitation_type, sent_at, expires_at,
			   is_accepted, is_rejected, is_expired)
			 VALUES (?, 's', 'ada@example.com', 'data_sharing', ?, ?, ?, ?, ?)`,
			tc.id, toMillis(base), toMillis(base.Add(time.Hour)), tc.accepted, tc.rejected, tc.expired,
		); err != nil {
			t.Fatal(err)
		}
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			inv, err := st.GetInvitation(ctx, tc.id)
			if err != nil {
				t.Fatal(err)
			}
			if inv.State != tc.want {
				t.Errorf("state = %v, want %v", inv.State, tc.want)
			}
		})
	}
}

func TestInsertMembershipConflict(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()
	e := model.MembershipEdge{Kind: model.GroupFamily, GroupID: "f1", UserID: "u1", Role: model.RoleMember, JoinedAt: base}

	first, err := st.InsertMembership(ctx, e)
	if err != nil || !first {
		t.Fatalf("first insert: %v %v", first, err)
	}
	second, err := st.InsertMembership(ctx, e)
	if err != nil || second {
		t.Fatalf("duplicate insert: %v %v", second, err)
	}
	got, err := st.GetMembership(ctx, model.GroupFamily, "f1", "u2")
	if err != nil || got != nil {
		t.Fatalf("absent edge: %v %v", got, err)
	}
}

var eightDigits = regexp.MustCompile(`^[0-9]{8}$`)

func TestCreateUserAndContacts(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	u := &model.User{Name: "Ada", PhoneNumber: "+15550100", Emails: []string{" Ada@Example.com "}}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	if !eightDigits.MatchString(u.HealthID) {
		t.Errorf("health id %q", u.HealthID)
	}
	if err := st.AddUserEmail(ctx, u.ID, "ada@work.example"); err != nil {
		t.Fatal(err)
	}
	// re-linking is a no-op
	if err := st.AddUserEmail(ctx, u.ID, "ada@example.com"); err != nil {
		t.Fatal(err)
	}

	c, err := st.UserContacts(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Phone != "+15550100" || len(c.Emails) != 2 || c.Emails[0] != "ada@example.com" {
		t.Errorf("contacts = %+v", c)
	}

	dup := &model.User{HealthID: u.HealthID, Name: "Eve"}
	if err := st.CreateUser(ctx, dup); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate health id: %v", err)
	}

	got, err := st.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Ada" || len(got.Emails) != 2 {
		t.Errorf("user = %+v", got)
	}
	if _, err := st.GetUser(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing user: %v", err)
	}
}
