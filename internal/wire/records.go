package wire

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

type Slot struct {
	ID         string
	ProviderID string
	StartTime  time.Time
	EndTime    time.Time
	IsBooked   bool
	CreatedAt  time.Time
}

func (m *Slot) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.ProviderID)
	b = appendTime(b, 3, m.StartTime)
	b = appendTime(b, 4, m.EndTime)
	b = appendBool(b, 5, m.IsBooked)
	b = appendTime(b, 6, m.CreatedAt)
	return b
}

func (m *Slot) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID)
		case 2:
			return consumeString(typ, b, &m.ProviderID)
		case 3:
			return consumeTime(typ, b, &m.StartTime)
		case 4:
			return consumeTime(typ, b, &m.EndTime)
		case 5:
			return consumeBool(typ, b, &m.IsBooked)
		case 6:
			return consumeTime(typ, b, &m.CreatedAt)
		}
		return 0
	})
}

type Appointment struct {
	ID                 string
	Reference          string
	UserID             string
	ProviderID         string
	SlotID             string
	RequestedTime      time.Time
	ConsultationType   string
	Notes              string
	Cancelled          bool
	CancellationReason string
	CancelledAt        *time.Time
	CreatedAt          time.Time
}

func (m *Appointment) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.Reference)
	b = appendString(b, 3, m.UserID)
	b = appendString(b, 4, m.ProviderID)
	b = appendString(b, 5, m.SlotID)
	b = appendTime(b, 6, m.RequestedTime)
	b = appendString(b, 7, m.ConsultationType)
	b = appendString(b, 8, m.Notes)
	b = appendBool(b, 9, m.Cancelled)
	b = appendString(b, 10, m.CancellationReason)
	b = appendOptionalTime(b, 11, m.CancelledAt)
	b = appendTime(b, 12, m.CreatedAt)
	return b
}

func (m *Appointment) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID)
		case 2:
			return consumeString(typ, b, &m.Reference)
		case 3:
			return consumeString(typ, b, &m.UserID)
		case 4:
			return consumeString(typ, b, &m.ProviderID)
		case 5:
			return consumeString(typ, b, &m.SlotID)
		case 6:
			return consumeTime(typ, b, &m.RequestedTime)
		case 7:
			return consumeString(typ, b, &m.ConsultationType)
		case 8:
			return consumeString(typ, b, &m.Notes)
		case 9:
			return consumeBool(typ, b, &m.Cancelled)
		case 10:
			return consumeString(typ, b, &m.CancellationReason)
		case 11:
			return consumeOptionalTime(typ, b, &m.CancelledAt)
		case 12:
			return consumeTime(typ, b, &m.CreatedAt)
		}
		return 0
	})
}

// InvitationState mirrors the wellness.v1.InvitationState enum.
type InvitationState int32

const (
	InvitationStateUnspecified InvitationState = iota
	InvitationStatePending
	InvitationStateAccepted
	InvitationStateRejected
	InvitationStateExpired
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
	// flag view kept for clients written against the boolean columns
	IsAccepted bool
	IsRejected bool
	IsExpired  bool
}

func (m *Invitation) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.ID)
	b = appendString(b, 2, m.SenderID)
	b = appendString(b, 3, m.RecipientEmail)
	b = appendString(b, 4, m.RecipientPhone)
	b = appendString(b, 5, m.Type)
	b = appendString(b, 6, m.GroupID)
	b = appendInt32(b, 7, int32(m.State))
	b = appendTime(b, 8, m.SentAt)
	b = appendTime(b, 9, m.ExpiresAt)
	b = appendOptionalTime(b, 10, m.AcceptedAt)
	b = appendOptionalTime(b, 11, m.RejectedAt)
	b = appendBool(b, 12, m.IsAccepted)
	b = appendBool(b, 13, m.IsRejected)
	b = appendBool(b, 14, m.IsExpired)
	return b
}

func (m *Invitation) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID)
		case 2:
			return consumeString(typ, b, &m.SenderID)
		case 3:
			return consumeString(typ, b, &m.RecipientEmail)
		case 4:
			return consumeString(typ, b, &m.RecipientPhone)
		case 5:
			return consumeString(typ, b, &m.Type)
		case 6:
			return consumeString(typ, b, &m.GroupID)
		case 7:
			var v int32
			n := consumeInt32(typ, b, &v)
			m.State = InvitationState(v)
			return n
		case 8:
			return consumeTime(typ, b, &m.SentAt)
		case 9:
			return consumeTime(typ, b, &m.ExpiresAt)
		case 10:
			return consumeOptionalTime(typ, b, &m.AcceptedAt)
		case 11:
			return consumeOptionalTime(typ, b, &m.RejectedAt)
		case 12:
			return consumeBool(typ, b, &m.IsAccepted)
		case 13:
			return consumeBool(typ, b, &m.IsRejected)
		case 14:
			return consumeBool(typ, b, &m.IsExpired)
		}
		return 0
	})
}

type Member struct {
	GroupKind string
	GroupID   string
	UserID    string
	Role      string
	JoinedAt  time.Time
}

func (m *Member) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.GroupKind)
	b = appendString(b, 2, m.GroupID)
	b = appendString(b, 3, m.UserID)
	b = appendString(b, 4, m.Role)
	b = appendTime(b, 5, m.JoinedAt)
	return b
}

func (m *Member) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.GroupKind)
		case 2:
			return consumeString(typ, b, &m.GroupID)
		case 3:
			return consumeString(typ, b, &m.UserID)
		case 4:
			return consumeString(typ, b, &m.Role)
		case 5:
			return consumeTime(typ, b, &m.JoinedAt)
		}
		return 0
	})
}
