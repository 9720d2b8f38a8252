package model

import "time"

type User struct {
	ID          string
	HealthID    string
	Name        string
	PhoneNumber string
	Emails      []string
	CreatedAt   time.Time
}

// Contacts are the recipient addresses an invitation can target for a user.
type Contacts struct {
	Emails []string
	Phone  string
}

func (c Contacts) Empty() bool {
	return len(c.Emails) == 0 && c.Phone == ""
}

type AvailabilitySlot struct {
	ID         string
	ProviderID string
	StartTime  time.Time
	EndTime    time.Time
	IsBooked   bool
	CreatedAt  time.Time
}

// Covers reports whether t falls in [StartTime, EndTime).
func (s AvailabilitySlot) Covers(t time.Time) bool {
	return !t.Before(s.StartTime) && t.Before(s.EndTime)
}

const (
	ConsultationInPerson = "in-person"
	ConsultationOnline   = "online"
)

type Appointment struct {
	ID                 string
	Reference          string
	UserID             string
	ProviderID         string
	SlotID             string // empty for rows booked before slot references were stored
	RequestedTime      time.Time
	ConsultationType   string
	Notes              string
	Cancelled          bool
	CancellationReason string
	CancelledAt        *time.Time
	CreatedAt          time.Time
}
