// Package membership keeps group-like memberships (family groups, challenge
// participants) free of duplicate edges.
package membership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wellness-api/internal/apperr"
	"wellness-api/internal/model"
)

type Store interface {
	// InsertMembership reports false when the (kind, group, user) edge
	// already exists; the store's unique key decides, not a prior read.
	InsertMembership(ctx context.Context, e model.MembershipEdge) (bool, error)
	DeleteMembership(ctx context.Context, kind model.GroupKind, groupID, userID string) (bool, error)
	GetMembership(ctx context.Context, kind model.GroupKind, groupID, userID string) (*model.MembershipEdge, error)
	ListMemberships(ctx context.Context, kind model.GroupKind, groupID string) ([]model.MembershipEdge, error)
	// ClaimGroup records the founder of a group once and returns the
	// recorded founder, which differs from ownerID when someone got there first.
	ClaimGroup(ctx context.Context, kind model.GroupKind, groupID, ownerID string, at time.Time) (string, error)
}

type Guard struct {
	store Store
	now   func() time.Time
	log   zerolog.Logger
}

func New(st Store, now func() time.Time, logger zerolog.Logger) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{
		store: st,
		now:   now,
		log:   logger.With().Str("component", "membership").Logger(),
	}
}

func normalize(kind model.GroupKind, groupID, userID string) (string, string, error) {
	if !kind.Valid() {
		return "", "", apperr.Invalid("unknown group kind")
	}
	groupID, userID = strings.TrimSpace(groupID), strings.TrimSpace(userID)
	if groupID == "" || userID == "" {
		return "", "", apperr.Invalid("group id and user id required")
	}
	return groupID, userID, nil
}

func role(kind model.GroupKind, r string) (string, error) {
	r = strings.ToLower(strings.TrimSpace(r))
	if kind == model.GroupChallenge {
		if r == "" || r == model.RoleParticipant {
			return model.RoleParticipant, nil
		}
		return "", apperr.Invalid("challenges only have participants")
	}
	switch r {
	case "":
		return model.RoleMember, nil
	case model.RoleMember, model.RoleCaregiver, model.RoleAdmin:
		return r, nil
	}
	return "", apperr.Invalid("role must be member, caregiver or admin")
}

// Join adds the edge, reporting false with ErrDuplicateMembership when the
// user already belongs to the group.
func (g *Guard) Join(ctx context.Context, kind model.GroupKind, groupID, userID, r string) (bool, error) {
	groupID, userID, err := normalize(kind, groupID, userID)
	if err != nil {
		return false, err
	}
	r, err = role(kind, r)
	if err != nil {
		return false, err
	}

	existing, err := g.store.GetMembership(ctx, kind, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("lookup membership: %w", err)
	}
	if existing != nil {
		return false, apperr.ErrDuplicateMembership
	}
	inserted, err := g.store.InsertMembership(ctx, model.MembershipEdge{
		Kind:     kind,
		GroupID:  groupID,
		UserID:   userID,
		Role:     r,
		JoinedAt: g.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("insert membership: %w", err)
	}
	if !inserted {
		// lost a race with a concurrent join
		return false, apperr.ErrDuplicateMembership
	}
	g.log.Info().Str("kind", string(kind)).Str("group_id", groupID).Str("user_id", userID).Str("role", r).Msg("joined")
	return true, nil
}

// Found seeds the creator of a group as its first member with the owning
// role. A group is founded once: when another user already holds the founder
// record it reports false with ErrConflict, and the founder record outlives
// every membership so an emptied group cannot be claimed by someone else.
func (g *Guard) Found(ctx context.Context, kind model.GroupKind, groupID, ownerID string) (bool, error) {
	groupID, ownerID, err := normalize(kind, groupID, ownerID)
	if err != nil {
		return false, err
	}
	owner, err := g.store.ClaimGroup(ctx, kind, groupID, ownerID, g.now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim group: %w", err)
	}
	if owner != ownerID {
		return false, apperr.New(apperr.CodeConflict, "group already founded")
	}
	r := model.RoleAdmin
	if kind == model.GroupChallenge {
		r = model.RoleParticipant
	}
	return g.Join(ctx, kind, groupID, ownerID, r)
}

// Leave removes the edge, reporting false with ErrNotFound when absent.
func (g *Guard) Leave(ctx context.Context, kind model.GroupKind, groupID, userID string) (bool, error) {
	groupID, userID, err := normalize(kind, groupID, userID)
	if err != nil {
		return false, err
	}
	removed, err := g.store.DeleteMembership(ctx, kind, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("delete membership: %w", err)
	}
	if !removed {
		return false, apperr.NotFound("membership not found")
	}
	g.log.Info().Str("kind", string(kind)).Str("group_id", groupID).Str("user_id", userID).Msg("left")
	return true, nil
}

func (g *Guard) IsMember(ctx context.Context, kind model.GroupKind, groupID, userID string) (bool, error) {
	groupID, userID, err := normalize(kind, groupID, userID)
	if err != nil {
		return false, err
	}
	e, err := g.store.GetMembership(ctx, kind, groupID, userID)
	if err != nil {
		return false, err
	}
	return e != nil, nil
}

func (g *Guard) Members(ctx context.Context, kind model.GroupKind, groupID string) ([]model.MembershipEdge, error) {
	if !kind.Valid() {
		return nil, apperr.Invalid("unknown group kind")
	}
	if strings.TrimSpace(groupID) == "" {
		return nil, apperr.Invalid("group id required")
	}
	return g.store.ListMemberships(ctx, kind, strings.TrimSpace(groupID))
}
