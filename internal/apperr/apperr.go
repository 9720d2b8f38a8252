// Package apperr defines the typed failures the scheduling core reports to
// its callers and their gRPC representation.
package apperr

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain attached to gRPC statuses.
const Domain = "wellness-api"

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeSlotUnavailable     Code = "SLOT_UNAVAILABLE"
	CodeSlotInUse           Code = "SLOT_IN_USE"
	CodeAlreadyTerminal     Code = "ALREADY_TERMINAL"
	CodeInvitationExpired   Code = "INVITATION_EXPIRED"
	CodeDuplicateMembership Code = "DUPLICATE_MEMBERSHIP"
	CodeConflict            Code = "CONFLICT"
)

// GRPCCode maps a code to its gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeNotFound:
		return codes.NotFound
	case CodeSlotUnavailable, CodeDuplicateMembership, CodeConflict:
		return codes.AlreadyExists
	case CodeSlotInUse, CodeAlreadyTerminal, CodeInvitationExpired:
		return codes.FailedPrecondition
	default:
		return codes.Unknown
	}
}

// Error is a recoverable domain failure.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same code, so callers can write
// errors.Is(err, apperr.ErrNotFound) regardless of the message.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidArgument     = New(CodeInvalidArgument, "invalid argument")
	ErrNotFound            = New(CodeNotFound, "not found")
	ErrSlotUnavailable     = New(CodeSlotUnavailable, "no free slot covers the requested time")
	ErrSlotInUse           = New(CodeSlotInUse, "slot is referenced by an active appointment")
	ErrAlreadyTerminal     = New(CodeAlreadyTerminal, "already in a terminal state")
	ErrInvitationExpired   = New(CodeInvitationExpired, "invitation expired")
	ErrDuplicateMembership = New(CodeDuplicateMembership, "already a member")
	ErrConflict            = New(CodeConflict, "conflicting write")
)

func Invalid(message string) *Error {
	return New(CodeInvalidArgument, message)
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// As extracts the domain error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GRPCStatus converts the error to a status carrying an ErrorInfo detail.
// The status message is the domain message without the wrapped cause.
func (e *Error) GRPCStatus() *status.Status {
	st := status.New(e.Code.GRPCCode(), e.Message)
	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(e.Code),
		Domain: Domain,
	})
	if err != nil {
		return st
	}
	return withInfo
}
