package wire

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Empty has no fields.
type Empty struct{}

func (*Empty) Marshal() []byte { return nil }

func (*Empty) Unmarshal(b []byte) error {
	return decode(b, func(protowire.Number, protowire.Type, []byte) int { return 0 })
}

// IDRequest addresses one record by id.
type IDRequest struct {
	ID string
}

func (m *IDRequest) Marshal() []byte { return appendString(nil, 1, m.ID) }

func (m *IDRequest) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeString(typ, b, &m.ID)
		}
		return 0
	})
}

type CreateSlotRequest struct {
	ProviderID string
	StartTime  time.Time
	EndTime    time.Time
}

func (m *CreateSlotRequest) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.ProviderID)
	b = appendTime(b, 2, m.StartTime)
	b = appendTime(b, 3, m.EndTime)
	return b
}

func (m *CreateSlotRequest) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ProviderID)
		case 2:
			return consumeTime(typ, b, &m.StartTime)
		case 3:
			return consumeTime(typ, b, &m.EndTime)
		}
		return 0
	})
}

type SlotResponse struct {
	Slot *Slot
}

func (m *SlotResponse) Marshal() []byte {
	if m.Slot == nil {
		return nil
	}
	return appendMessage(nil, 1, m.Slot.Marshal())
}

func (m *SlotResponse) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			m.Slot = &Slot{}
			return consumeMessage(typ, b, m.Slot)
		}
		return 0
	})
}

type ListSlotsRequest struct {
	ProviderID    string
	AvailableOnly bool
	EndsAfter     time.Time
	Limit         int32
	Offset        int32
}

func (m *ListSlotsRequest) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.ProviderID)
	b = appendBool(b, 2, m.AvailableOnly)
	b = appendTime(b, 3, m.EndsAfter)
	b = appendInt32(b, 4, m.Limit)
	b = appendInt32(b, 5, m.Offset)
	return b
}

func (m *ListSlotsRequest) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ProviderID)
		case 2:
			return consumeBool(typ, b, &m.AvailableOnly)
		case 3:
			return consumeTime(typ, b, &m.EndsAfter)
		case 4:
			return consumeInt32(typ, b, &m.Limit)
		case 5:
			return consumeInt32(typ, b, &m.Offset)
		}
		return 0
	})
}

type ListSlotsResponse struct {
	Slots []*Slot
}

func (m *ListSlotsResponse) Marshal() []byte {
	var b []byte
	for _, s := range m.Slots {
		b = appendMessage(b, 1, s.Marshal())
	}
	return b
}

func (m *ListSlotsResponse) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != 1 {
			return 0
		}
		s := &Slot{}
		n := consumeMessage(typ, b, s)
		if n > 0 {
			m.Slots = append(m.Slots, s)
		}
		return n
	})
}

type BookAppointmentRequest struct {
	ProviderID       string
	RequestedTime    time.Time
	ConsultationType string
	Notes            string
}

func (m *BookAppointmentRequest) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.ProviderID)
	b = appendTime(b, 2, m.RequestedTime)
	b = appendString(b, 3, m.ConsultationType)
	b = appendString(b, 4, m.Notes)
	return b
}

func (m *BookAppointmentRequest) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ProviderID)
		case 2:
			return consumeTime(typ, b, &m.RequestedTime)
		case 3:
			return consumeString(typ, b, &m.ConsultationType)
		case 4:
			return consumeString(typ, b, &m.Notes)
		}
		return 0
	})
}

type AppointmentResponse struct {
	Appointment *Appointment
}

func (m *AppointmentResponse) Marshal() []byte {
	if m.Appointment == nil {
		return nil
	}
	return appendMessage(nil, 1, m.Appointment.Marshal())
}

func (m *AppointmentResponse) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			m.Appointment = &Appointment{}
			return consumeMessage(typ, b, m.Appointment)
		}
		return 0
	})
}

type CancelAppointmentRequest struct {
	ID     string
	Reason string
}

func (m *CancelAppointmentRequest) Marshal() []byte {
	return appendString(appendString(nil, 1, m.ID), 2, m.Reason)
}

func (m *CancelAppointmentRequest) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ID)
		case 2:
			return consumeString(typ, b, &m.Reason)
		}
		return 0
	})
}

type CancelAppointmentResponse struct {
	Cancelled bool
}

func (m *CancelAppointmentResponse) Marshal() []byte { return appendBool(nil, 1, m.Cancelled) }

func (m *CancelAppointmentResponse) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeBool(typ, b, &m.Cancelled)
		}
		return 0
	})
}

type ListAppointmentsResponse struct {
	Appointments []*Appointment
}

func (m *ListAppointmentsResponse) Marshal() []byte {
	var b []byte
	for _, a := range m.Appointments {
		b = appendMessage(b, 1, a.Marshal())
	}
	return b
}

func (m *ListAppointmentsResponse) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != 1 {
			return 0
		}
		a := &Appointment{}
		n := consumeMessage(typ, b, a)
		if n > 0 {
			m.Appointments = append(m.Appointments, a)
		}
		return n
	})
}

type SendInvitationRequest struct {
	RecipientEmail string
	RecipientPhone string
	Type           string
	GroupID        string
}

func (m *SendInvitationRequest) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.RecipientEmail)
	b = appendString(b, 2, m.RecipientPhone)
	b = appendString(b, 3, m.Type)
	b = appendString(b, 4, m.GroupID)
	return b
}

func (m *SendInvitationRequest) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.RecipientEmail)
		case 2:
			return consumeString(typ, b, &m.RecipientPhone)
		case 3:
			return consumeString(typ, b, &m.Type)
		case 4:
			return consumeString(typ, b, &m.GroupID)
		}
		return 0
	})
}

type InvitationResponse struct {
	Invitation *Invitation
}

func (m *InvitationResponse) Marshal() []byte {
	if m.Invitation == nil {
		return nil
	}
	return appendMessage(nil, 1, m.Invitation.Marshal())
}

func (m *InvitationResponse) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			m.Invitation = &Invitation{}
			return consumeMessage(typ, b, m.Invitation)
		}
		return 0
	})
}

// DecisionResponse answers AcceptInvitation and RejectInvitation.
type DecisionResponse struct {
	OK         bool
	Invitation *Invitation
}

func (m *DecisionResponse) Marshal() []byte {
	b := appendBool(nil, 1, m.OK)
	if m.Invitation != nil {
		b = appendMessage(b, 2, m.Invitation.Marshal())
	}
	return b
}

func (m *DecisionResponse) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeBool(typ, b, &m.OK)
		case 2:
			m.Invitation = &Invitation{}
			return consumeMessage(typ, b, m.Invitation)
		}
		return 0
	})
}

type ListInvitationsResponse struct {
	Invitations []*Invitation
}

func (m *ListInvitationsResponse) Marshal() []byte {
	var b []byte
	for _, inv := range m.Invitations {
		b = appendMessage(b, 1, inv.Marshal())
	}
	return b
}

func (m *ListInvitationsResponse) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != 1 {
			return 0
		}
		inv := &Invitation{}
		n := consumeMessage(typ, b, inv)
		if n > 0 {
			m.Invitations = append(m.Invitations, inv)
		}
		return n
	})
}

// GroupRequest serves JoinGroup, LeaveGroup and ListMembers; Role is only
// read by JoinGroup.
type GroupRequest struct {
	GroupKind string
	GroupID   string
	Role      string
}

func (m *GroupRequest) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.GroupKind)
	b = appendString(b, 2, m.GroupID)
	b = appendString(b, 3, m.Role)
	return b
}

func (m *GroupRequest) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(typ, b, &m.GroupKind)
		case 2:
			return consumeString(typ, b, &m.GroupID)
		case 3:
			return consumeString(typ, b, &m.Role)
		}
		return 0
	})
}

type MembershipResponse struct {
	OK bool
}

func (m *MembershipResponse) Marshal() []byte { return appendBool(nil, 1, m.OK) }

func (m *MembershipResponse) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeBool(typ, b, &m.OK)
		}
		return 0
	})
}

type ListMembersResponse struct {
	Members []*Member
}

func (m *ListMembersResponse) Marshal() []byte {
	var b []byte
	for _, mem := range m.Members {
		b = appendMessage(b, 1, mem.Marshal())
	}
	return b
}

func (m *ListMembersResponse) Unmarshal(b []byte) error {
	return decode(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != 1 {
			return 0
		}
		mem := &Member{}
		n := consumeMessage(typ, b, mem)
		if n > 0 {
			m.Members = append(m.Members, mem)
		}
		return n
	})
}
