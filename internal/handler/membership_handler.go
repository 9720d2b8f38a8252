package handler

import (
	"context"
	"errors"

	"wellness-api/internal/apperr"
	"wellness-api/internal/model"
	"wellness-api/internal/wire"
)

// JoinGroup adds the caller to a family group or challenge. The first member
// of a never-founded group founds it and takes the owning role; the founder
// keeps that claim after the group empties. Already being a member answers
// OK=false.
func (h *Handler) JoinGroup(ctx context.Context, req *wire.GroupRequest) (*wire.MembershipResponse, error) {
	userID, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	kind := model.GroupKind(req.GroupKind)

	members, err := h.groups.Members(ctx, kind, req.GroupID)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	var (
		ok      bool
		founded bool
	)
	if len(members) == 0 {
		ok, err = h.groups.Found(ctx, kind, req.GroupID, userID)
		founded = !errors.Is(err, apperr.ErrConflict)
	}
	if !founded {
		if req.Role == model.RoleAdmin {
			return nil, h.toStatus(ctx, apperr.Invalid("admin role is granted when founding a group"))
		}
		ok, err = h.groups.Join(ctx, kind, req.GroupID, userID, req.Role)
	}
	if errors.Is(err, apperr.ErrDuplicateMembership) {
		return &wire.MembershipResponse{}, nil
	}
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &wire.MembershipResponse{OK: ok}, nil
}

func (h *Handler) LeaveGroup(ctx context.Context, req *wire.GroupRequest) (*wire.MembershipResponse, error) {
	userID, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := h.groups.Leave(ctx, model.GroupKind(req.GroupKind), req.GroupID, userID)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &wire.MembershipResponse{OK: ok}, nil
}

// ListMembers is only answered for members; others get NotFound.
func (h *Handler) ListMembers(ctx context.Context, req *wire.GroupRequest) (*wire.ListMembersResponse, error) {
	userID, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	kind := model.GroupKind(req.GroupKind)
	in, err := h.groups.IsMember(ctx, kind, req.GroupID, userID)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	if !in {
		return nil, h.toStatus(ctx, apperr.NotFound("group not found"))
	}
	edges, err := h.groups.Members(ctx, kind, req.GroupID)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	out := make([]*wire.Member, len(edges))
	for i, e := range edges {
		out[i] = &wire.Member{
			GroupKind: string(e.Kind),
			GroupID:   e.GroupID,
			UserID:    e.UserID,
			Role:      e.Role,
			JoinedAt:  e.JoinedAt,
		}
	}
	return &wire.ListMembersResponse{Members: out}, nil
}
