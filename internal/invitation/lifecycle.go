// Package invitation governs recipient-targeted invitations through their
// time-bounded lifecycle: pending, then accepted, rejected or expired.
//
// Expiry is evaluated on access. Transitions check it before writing, and
// listings treat a pending invitation past its expiry as expired without
// persisting anything; no background sweep runs.
package invitation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"wellness-api/internal/apperr"
	"wellness-api/internal/model"
)

// DefaultTTL is the fixed window between sending and expiry.
const DefaultTTL = 15 * 24 * time.Hour

// Tx is the unit of work for a single transition.
type Tx interface {
	// LockInvitation returns apperr.ErrNotFound when id does not resolve.
	LockInvitation(ctx context.Context, id string) (*model.Invitation, error)
	SaveInvitationState(ctx context.Context, inv *model.Invitation) error
}

type Store interface {
	WithInvitationTx(ctx context.Context, fn func(Tx) error) error
	InsertInvitation(ctx context.Context, inv *model.Invitation) error
	GetInvitation(ctx context.Context, id string) (*model.Invitation, error)
	// PendingInvitationsFor lists invitations matching c that carry no
	// terminal flag and expire after now, newest first.
	PendingInvitationsFor(ctx context.Context, c model.Contacts, now time.Time) ([]model.Invitation, error)
	UserContacts(ctx context.Context, userID string) (model.Contacts, error)
}

type Config struct {
	TTL    time.Duration
	Now    func() time.Time
	NewID  func() string
	Logger zerolog.Logger
}

type Lifecycle struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
	log    zerolog.Logger
	tracer trace.Tracer
}

func New(st Store, cfg Config) *Lifecycle {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Lifecycle{
		store:  st,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		newID:  cfg.NewID,
		log:    cfg.Logger.With().Str("component", "invitation").Logger(),
		tracer: otel.Tracer("wellness-api/invitation"),
	}
}

func (l *Lifecycle) Now() time.Time { return l.now() }

type SendRequest struct {
	SenderID       string
	RecipientEmail string
	RecipientPhone string
	Type           string
	GroupID        string
}

// Send creates a pending invitation expiring TTL after now.
func (l *Lifecycle) Send(ctx context.Context, req SendRequest) (*model.Invitation, error) {
	req.SenderID = strings.TrimSpace(req.SenderID)
	req.RecipientEmail = strings.ToLower(strings.TrimSpace(req.RecipientEmail))
	req.RecipientPhone = strings.TrimSpace(req.RecipientPhone)
	req.GroupID = strings.TrimSpace(req.GroupID)
	if req.SenderID == "" {
		return nil, apperr.Invalid("sender id required")
	}
	if req.RecipientEmail == "" && req.RecipientPhone == "" {
		return nil, apperr.Invalid("recipient email or phone required")
	}
	switch req.Type {
	case model.InvitationChallenge, model.InvitationFamilyGroup:
		if req.GroupID == "" {
			return nil, apperr.Invalid("group id required for " + req.Type + " invitations")
		}
	case model.InvitationDataSharing:
	default:
		return nil, apperr.Invalid("unknown invitation type")
	}

	sent := l.now().UTC()
	inv := &model.Invitation{
		ID:             l.newID(),
		SenderID:       req.SenderID,
		RecipientEmail: req.RecipientEmail,
		RecipientPhone: req.RecipientPhone,
		Type:           req.Type,
		GroupID:        req.GroupID,
		State:          model.InvitationPending,
		SentAt:         sent,
		ExpiresAt:      sent.Add(l.ttl),
	}
	if err := l.store.InsertInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	l.log.Info().Str("invitation_id", inv.ID).Str("type", inv.Type).Time("expires_at", inv.ExpiresAt).Msg("invitation sent")
	return inv, nil
}

func (l *Lifecycle) Get(ctx context.Context, id string) (*model.Invitation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Invalid("invitation id required")
	}
	return l.store.GetInvitation(ctx, id)
}

// Accept moves a pending invitation to accepted. It reports false with
// ErrNotFound, ErrAlreadyTerminal, or ErrInvitationExpired (after recording
// the expiry) otherwise.
func (l *Lifecycle) Accept(ctx context.Context, id string) (bool, error) {
	return l.transition(ctx, id, model.InvitationAccepted)
}

// Reject is Accept's counterpart and follows the same rules.
func (l *Lifecycle) Reject(ctx context.Context, id string) (bool, error) {
	return l.transition(ctx, id, model.InvitationRejected)
}

func (l *Lifecycle) transition(ctx context.Context, id string, to model.InvitationState) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, apperr.Invalid("invitation id required")
	}

	ctx, span := l.tracer.Start(ctx, "invitation."+to.String(), trace.WithAttributes(
		attribute.String("invitation.id", id),
	))
	defer span.End()

	var result model.InvitationState
	err := l.store.WithInvitationTx(ctx, func(tx Tx) error {
		inv, err := tx.LockInvitation(ctx, id)
		if err != nil {
			return err
		}
		if inv.State.Terminal() {
			return apperr.New(apperr.CodeAlreadyTerminal, "invitation already "+inv.State.String())
		}

		now := l.now().UTC()
		if now.Before(inv.ExpiresAt) {
			inv.State = to
			switch to {
			case model.InvitationAccepted:
				inv.AcceptedAt = &now
			case model.InvitationRejected:
				inv.RejectedAt = &now
			}
		} else {
			inv.State = model.InvitationExpired
		}
		if err := tx.SaveInvitationState(ctx, inv); err != nil {
			return fmt.Errorf("save invitation: %w", err)
		}
		result = inv.State
		return nil
	})
	if err != nil {
		return false, err
	}

	span.SetAttributes(attribute.String("invitation.state", result.String()))
	l.log.Info().Str("invitation_id", id).Str("state", result.String()).Msg("invitation transition")
	if result == model.InvitationExpired {
		return false, apperr.ErrInvitationExpired
	}
	return true, nil
}

// Pending lists invitations addressed to the user that are still open now.
func (l *Lifecycle) Pending(ctx context.Context, userID string) ([]model.Invitation, error) {
	c, err := l.contacts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.Empty() {
		return nil, nil
	}
	return l.store.PendingInvitationsFor(ctx, c, l.now().UTC())
}

// Addressee reports whether inv targets one of the user's contacts.
func (l *Lifecycle) Addressee(ctx context.Context, userID string, inv *model.Invitation) (bool, error) {
	c, err := l.contacts(ctx, userID)
	if err != nil {
		return false, err
	}
	return inv.AddressedTo(c), nil
}

func (l *Lifecycle) contacts(ctx context.Context, userID string) (model.Contacts, error) {
	if strings.TrimSpace(userID) == "" {
		return model.Contacts{}, apperr.Invalid("user id required")
	}
	c, err := l.store.UserContacts(ctx, userID)
	if err != nil {
		return model.Contacts{}, fmt.Errorf("user contacts: %w", err)
	}
	return c, nil
}
