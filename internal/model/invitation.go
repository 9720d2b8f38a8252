package model

import (
	"strings"
	"time"
)

// InvitationState is the lifecycle state of an invitation. Every state other
// than InvitationPending is terminal.
type InvitationState int

const (
	InvitationPending InvitationState = iota
	InvitationAccepted
	InvitationRejected
	InvitationExpired
)

func (s InvitationState) String() string {
	switch s {
	case InvitationAccepted:
		return "accepted"
	case InvitationRejected:
		return "rejected"
	case InvitationExpired:
		return "expired"
	default:
		return "pending"
	}
}

func (s InvitationState) Terminal() bool {
	return s != InvitationPending
}

const (
	InvitationChallenge   = "challenge"
	InvitationDataSharing = "data_sharing"
	InvitationFamilyGroup = "family_group"
)

type Invitation struct {
	ID             string
	SenderID       string
	RecipientEmail string
	RecipientPhone string
	Type           string
	GroupID        string
	State          InvitationState
	SentAt         time.Time
	ExpiresAt      time.Time
	AcceptedAt     *time.Time
	RejectedAt     *time.Time
}

// StateAt is the state as observed at now: a pending invitation whose expiry
// has passed reads as expired even if nothing has recorded that yet.
func (inv Invitation) StateAt(now time.Time) InvitationState {
	if inv.State == InvitationPending && !now.Before(inv.ExpiresAt) {
		return InvitationExpired
	}
	return inv.State
}

// AddressedTo reports whether c matches the invitation recipient.
func (inv Invitation) AddressedTo(c Contacts) bool {
	if inv.RecipientPhone != "" && inv.RecipientPhone == c.Phone {
		return true
	}
	if inv.RecipientEmail == "" {
		return false
	}
	for _, e := range c.Emails {
		if strings.EqualFold(e, inv.RecipientEmail) {
			return true
		}
	}
	return false
}

// InvitationFlags is the boolean column view of an invitation state.
type InvitationFlags struct {
	IsAccepted bool
	IsRejected bool
	IsExpired  bool
}

// Flags maps a state to one flag per terminal state.
func (s InvitationState) Flags() InvitationFlags {
	return InvitationFlags{
		IsAccepted: s == InvitationAccepted,
		IsRejected: s == InvitationRejected,
		IsExpired:  s == InvitationExpired,
	}
}

// LegacyFlags is the historical projection where consuming an invitation
// (accept or reject) also raised is_expired. Only for readers that depend on it.
func (s InvitationState) LegacyFlags() InvitationFlags {
	f := s.Flags()
	f.IsExpired = s.Terminal()
	return f
}

// StateFromFlags decodes stored flags. Rows written with the legacy
// projection carry two flags; accepted wins over rejected, rejected over expired.
func StateFromFlags(f InvitationFlags) InvitationState {
	switch {
	case f.IsAccepted:
		return InvitationAccepted
	case f.IsRejected:
		return InvitationRejected
	case f.IsExpired:
		return InvitationExpired
	default:
		return InvitationPending
	}
}
