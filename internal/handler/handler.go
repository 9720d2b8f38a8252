package handler

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"wellness-api/internal/apperr"
	"wellness-api/internal/invitation"
	"wellness-api/internal/membership"
	"wellness-api/internal/middleware"
	"wellness-api/internal/scheduling"
	"wellness-api/internal/wire"
)

const ServiceName = "wellness.v1.CareService"

// CareServer is the server API for the CareService described in
// api/wellness/v1/care.proto.
type CareServer interface {
	CreateSlot(context.Context, *wire.CreateSlotRequest) (*wire.SlotResponse, error)
	ListSlots(context.Context, *wire.ListSlotsRequest) (*wire.ListSlotsResponse, error)
	DeleteSlot(context.Context, *wire.IDRequest) (*wire.Empty, error)

	BookAppointment(context.Context, *wire.BookAppointmentRequest) (*wire.AppointmentResponse, error)
	CancelAppointment(context.Context, *wire.CancelAppointmentRequest) (*wire.CancelAppointmentResponse, error)
	GetAppointment(context.Context, *wire.IDRequest) (*wire.AppointmentResponse, error)
	ListAppointments(context.Context, *wire.Empty) (*wire.ListAppointmentsResponse, error)

	SendInvitation(context.Context, *wire.SendInvitationRequest) (*wire.InvitationResponse, error)
	GetInvitation(context.Context, *wire.IDRequest) (*wire.InvitationResponse, error)
	AcceptInvitation(context.Context, *wire.IDRequest) (*wire.DecisionResponse, error)
	RejectInvitation(context.Context, *wire.IDRequest) (*wire.DecisionResponse, error)
	ListInvitations(context.Context, *wire.Empty) (*wire.ListInvitationsResponse, error)

	JoinGroup(context.Context, *wire.GroupRequest) (*wire.MembershipResponse, error)
	LeaveGroup(context.Context, *wire.GroupRequest) (*wire.MembershipResponse, error)
	ListMembers(context.Context, *wire.GroupRequest) (*wire.ListMembersResponse, error)
}

// method adapts a CareServer method to a grpc.MethodDesc. The request type
// is inferred from fn.
func method[Req any, R interface {
	*Req
	wire.Message
}, Resp any](name string, fn func(CareServer, context.Context, R) (Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := R(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(CareServer)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(R))
			})
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CareServer)(nil),
	Methods: []grpc.MethodDesc{
		method("CreateSlot", CareServer.CreateSlot),
		method("ListSlots", CareServer.ListSlots),
		method("DeleteSlot", CareServer.DeleteSlot),
		method("BookAppointment", CareServer.BookAppointment),
		method("CancelAppointment", CareServer.CancelAppointment),
		method("GetAppointment", CareServer.GetAppointment),
		method("ListAppointments", CareServer.ListAppointments),
		method("SendInvitation", CareServer.SendInvitation),
		method("GetInvitation", CareServer.GetInvitation),
		method("AcceptInvitation", CareServer.AcceptInvitation),
		method("RejectInvitation", CareServer.RejectInvitation),
		method("ListInvitations", CareServer.ListInvitations),
		method("JoinGroup", CareServer.JoinGroup),
		method("LeaveGroup", CareServer.LeaveGroup),
		method("ListMembers", CareServer.ListMembers),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/wellness/v1/care.proto",
}

func Register(s grpc.ServiceRegistrar, srv CareServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type Handler struct {
	engine  *scheduling.Engine
	invites *invitation.Lifecycle
	groups  *membership.Guard
	// legacyFlags reproduces the old is_expired projection on responses
	legacyFlags bool
	log         zerolog.Logger
}

var _ CareServer = (*Handler)(nil)

func New(engine *scheduling.Engine, invites *invitation.Lifecycle, groups *membership.Guard, legacyFlags bool, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:      engine,
		invites:     invites,
		groups:      groups,
		legacyFlags: legacyFlags,
		log:         logger.With().Str("component", "handler").Logger(),
	}
}

func uid(ctx context.Context) (string, error) {
	id := middleware.UserID(ctx)
	if id == "" {
		return "", status.Error(codes.Unauthenticated, "no user")
	}
	return id, nil
}

// toStatus maps domain errors to their status; anything else is logged and
// hidden behind a generic message.
func (h *Handler) toStatus(ctx context.Context, err error) error {
	if e, ok := apperr.As(err); ok {
		return e.GRPCStatus().Err()
	}
	if s, ok := status.FromError(err); ok {
		return s.Err()
	}
	if ctx.Err() != nil {
		return status.FromContextError(ctx.Err()).Err()
	}
	h.log.Error().Err(err).Msg("unhandled error")
	return status.Error(codes.Internal, "internal error")
}
