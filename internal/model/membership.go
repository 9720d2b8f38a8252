package model

import "time"

// GroupKind names the group-like entity a membership edge points at.
type GroupKind string

const (
	GroupFamily    GroupKind = "family_group"
	GroupChallenge GroupKind = "challenge"
)

func (k GroupKind) Valid() bool {
	return k == GroupFamily || k == GroupChallenge
}

const (
	RoleMember      = "member"
	RoleCaregiver   = "caregiver"
	RoleAdmin       = "admin"
	RoleParticipant = "participant"
)

type MembershipEdge struct {
	Kind     GroupKind
	GroupID  string
	UserID   string
	Role     string
	JoinedAt time.Time
}
