package handler

import (
	"context"
	"errors"
	"time"

	"wellness-api/internal/apperr"
	"wellness-api/internal/invitation"
	"wellness-api/internal/model"
	"wellness-api/internal/wire"
)

func (h *Handler) SendInvitation(ctx context.Context, req *wire.SendInvitationRequest) (*wire.InvitationResponse, error) {
	userID, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := h.invites.Send(ctx, invitation.SendRequest{
		SenderID:       userID,
		RecipientEmail: req.RecipientEmail,
		RecipientPhone: req.RecipientPhone,
		Type:           req.Type,
		GroupID:        req.GroupID,
	})
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &wire.InvitationResponse{Invitation: h.invitationToWire(inv, h.invites.Now())}, nil
}

// visible loads an invitation the caller sent or is addressed by.
func (h *Handler) visible(ctx context.Context, userID, id string) (*model.Invitation, error) {
	inv, err := h.invites.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.SenderID == userID {
		return inv, nil
	}
	ok, err := h.invites.Addressee(ctx, userID, inv)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("invitation not found")
	}
	return inv, nil
}

func (h *Handler) GetInvitation(ctx context.Context, req *wire.IDRequest) (*wire.InvitationResponse, error) {
	userID, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := h.visible(ctx, userID, req.ID)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &wire.InvitationResponse{Invitation: h.invitationToWire(inv, h.invites.Now())}, nil
}

func (h *Handler) AcceptInvitation(ctx context.Context, req *wire.IDRequest) (*wire.DecisionResponse, error) {
	return h.decide(ctx, req.ID, h.invites.Accept)
}

func (h *Handler) RejectInvitation(ctx context.Context, req *wire.IDRequest) (*wire.DecisionResponse, error) {
	return h.decide(ctx, req.ID, h.invites.Reject)
}

// decide runs a transition for the addressee. Terminal and expired
// invitations answer OK=false with the current record rather than an error.
func (h *Handler) decide(ctx context.Context, id string, fn func(context.Context, string) (bool, error)) (*wire.DecisionResponse, error) {
	userID, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := h.invites.Get(ctx, id)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	// only the recipient decides
	addressed, err := h.invites.Addressee(ctx, userID, inv)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	if !addressed {
		return nil, h.toStatus(ctx, apperr.NotFound("invitation not found"))
	}

	ok, err := fn(ctx, id)
	if err != nil && !errors.Is(err, apperr.ErrAlreadyTerminal) && !errors.Is(err, apperr.ErrInvitationExpired) {
		return nil, h.toStatus(ctx, err)
	}
	inv, err = h.invites.Get(ctx, id)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &wire.DecisionResponse{OK: ok, Invitation: h.invitationToWire(inv, h.invites.Now())}, nil
}

func (h *Handler) ListInvitations(ctx context.Context, _ *wire.Empty) (*wire.ListInvitationsResponse, error) {
	userID, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	invs, err := h.invites.Pending(ctx, userID)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	now := h.invites.Now()
	out := make([]*wire.Invitation, len(invs))
	for i := range invs {
		out[i] = h.invitationToWire(&invs[i], now)
	}
	return &wire.ListInvitationsResponse{Invitations: out}, nil
}

// invitationToWire reports the state observed at now, so a lapsed invitation
// reads as expired before anything records it.
func (h *Handler) invitationToWire(inv *model.Invitation, now time.Time) *wire.Invitation {
	state := inv.StateAt(now)
	flags := state.Flags()
	if h.legacyFlags {
		flags = state.LegacyFlags()
	}
	return &wire.Invitation{
		ID:             inv.ID,
		SenderID:       inv.SenderID,
		RecipientEmail: inv.RecipientEmail,
		RecipientPhone: inv.RecipientPhone,
		Type:           inv.Type,
		GroupID:        inv.GroupID,
		State:          stateToWire(state),
		SentAt:         inv.SentAt,
		ExpiresAt:      inv.ExpiresAt,
		AcceptedAt:     inv.AcceptedAt,
		RejectedAt:     inv.RejectedAt,
		IsAccepted:     flags.IsAccepted,
		IsRejected:     flags.IsRejected,
		IsExpired:      flags.IsExpired,
	}
}

func stateToWire(s model.InvitationState) wire.InvitationState {
	switch s {
	case model.InvitationPending:
		return wire.InvitationStatePending
	case model.InvitationAccepted:
		return wire.InvitationStateAccepted
	case model.InvitationRejected:
		return wire.InvitationStateRejected
	case model.InvitationExpired:
		return wire.InvitationStateExpired
	}
	return wire.InvitationStateUnspecified
}
