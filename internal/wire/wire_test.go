package wire

import (
	"bytes"
	"testing"
	"time"

	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestTimestampMatchesProtobufRuntime(t *testing.T) {
	ts := time.Date(2030, time.March, 4, 9, 15, 0, 500, time.UTC)
	want, err := proto.Marshal(timestamppb.New(ts))
	if err != nil {
		t.Fatal(err)
	}

	b := appendTime(nil, 2, ts)
	_, _, n := protowire.ConsumeTag(b)
	inner, m := protowire.ConsumeBytes(b[n:])
	if m < 0 {
		t.Fatal("bad nested message")
	}
	if !bytes.Equal(inner, want) {
		t.Fatalf("timestamp bytes = %x, want %x", inner, want)
	}
}

func TestAppointmentRoundTrip(t *testing.T) {
	cancelled := time.Date(2030, time.March, 3, 18, 0, 0, 0, time.UTC)
	in := &Appointment{
		ID:                 "a1",
		Reference:          "00123456",
		UserID:             "u1",
		ProviderID:         "7",
		SlotID:             "s1",
		RequestedTime:      time.Date(2030, time.March, 4, 9, 15, 0, 0, time.UTC),
		ConsultationType:   "online",
		Notes:              "bring results",
		Cancelled:          true,
		CancellationReason: "reschedule",
		CancelledAt:        &cancelled,
		CreatedAt:          time.Date(2030, time.March, 1, 8, 0, 0, 0, time.UTC),
	}
	out := &Appointment{}
	if err := out.Unmarshal(in.Marshal()); err != nil {
		t.Fatal(err)
	}
	if out.ID != in.ID || out.Reference != in.Reference || out.SlotID != in.SlotID ||
		!out.RequestedTime.Equal(in.RequestedTime) || !out.CreatedAt.Equal(in.CreatedAt) ||
		!out.Cancelled || out.CancellationReason != in.CancellationReason ||
		out.CancelledAt == nil || !out.CancelledAt.Equal(cancelled) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestDefaultsAreOmitted(t *testing.T) {
	if b := (&Invitation{State: InvitationStateUnspecified}).Marshal(); len(b) != 0 {
		t.Errorf("empty invitation encoded to %x", b)
	}
	if b := (&CancelAppointmentResponse{}).Marshal(); len(b) != 0 {
		t.Errorf("false bool encoded to %x", b)
	}
}

func TestUnknownFieldsSkipped(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 99, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = appendString(b, 1, "inv-1")
	b = protowire.AppendTag(b, 100, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	var req IDRequest
	if err := req.Unmarshal(b); err != nil {
		t.Fatal(err)
	}
	if req.ID != "inv-1" {
		t.Errorf("id = %q", req.ID)
	}
}

func TestTruncatedInput(t *testing.T) {
	b := (&BookAppointmentRequest{ProviderID: "7", Notes: "x"}).Marshal()
	var req BookAppointmentRequest
	if err := req.Unmarshal(b[:len(b)-1]); err == nil {
		t.Fatal("expected error on truncated message")
	}
}

func TestRepeatedMessages(t *testing.T) {
	in := &ListMembersResponse{Members: []*Member{
		{GroupKind: "family_group", GroupID: "f1", UserID: "u1", Role: "admin"},
		{GroupKind: "family_group", GroupID: "f1", UserID: "u2", Role: "member"},
	}}
	var out ListMembersResponse
	if err := out.Unmarshal(in.Marshal()); err != nil {
		t.Fatal(err)
	}
	if len(out.Members) != 2 || out.Members[1].UserID != "u2" || out.Members[0].Role != "admin" {
		t.Fatalf("members = %+v", out.Members)
	}
}

func TestCodecFallsBackToProto(t *testing.T) {
	c := Codec{}
	b, err := c.Marshal(&grpc_health_v1.HealthCheckRequest{Service: "wellness.v1.CareService"})
	if err != nil {
		t.Fatal(err)
	}
	var got grpc_health_v1.HealthCheckRequest
	if err := c.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Service != "wellness.v1.CareService" {
		t.Errorf("service = %q", got.Service)
	}

	if _, err := c.Marshal(struct{}{}); err == nil {
		t.Error("expected error for unsupported type")
	}
}
