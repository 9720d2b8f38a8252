package grpcweb

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"wellness-api/internal/auth"
	"wellness-api/internal/handler"
	"wellness-api/internal/invitation"
	"wellness-api/internal/membership"
	"wellness-api/internal/middleware"
	"wellness-api/internal/scheduling"
	"wellness-api/internal/store/sqlite"
	"wellness-api/internal/wire"
)

const secret = "bridge-secret"

func newCare(t *testing.T) *handler.Handler {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "bridge.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	now := func() time.Time { return time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC) }
	log := zerolog.Nop()
	return handler.New(
		scheduling.New(st, scheduling.Config{Now: now, Logger: log}),
		invitation.New(st, invitation.Config{Now: now, Logger: log}),
		membership.New(st, now, log),
		false, log,
	)
}

func setup(t *testing.T) (http.Handler, *health.Server) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.ForceServerCodec(wire.Codec{}),
		grpc.ChainUnaryInterceptor(middleware.Auth(secret)),
	)
	handler.Register(srv, newCare(t))
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	b, err := New("passthrough:///bufnet", Options{Logger: zerolog.Nop()},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b.Handler(), hs
}

func post(t *testing.T, h http.Handler, path, token string, msg wire.Message) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(frame(0, msg.Marshal())))
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// split returns the data frame payload and the trailer text.
func split(t *testing.T, body []byte) ([]byte, string) {
	t.Helper()
	var data []byte
	var trailer string
	for len(body) >= 5 {
		n := binary.BigEndian.Uint32(body[1:5])
		part := body[5 : 5+n]
		if body[0]&0x80 != 0 {
			trailer = string(part)
		} else {
			data = part
		}
		body = body[5+n:]
	}
	return data, trailer
}

func TestBridgeForwards(t *testing.T) {
	h, _ := setup(t)
	tok, _ := auth.MakeToken("patient-1", secret, time.Minute)
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

	rr := post(t, h, "/wellness.v1.CareService/CreateSlot", tok, &wire.CreateSlotRequest{
		ProviderID: "7", StartTime: start, EndTime: start.Add(30 * time.Minute),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	data, trailer := split(t, rr.Body.Bytes())
	if !strings.Contains(trailer, "grpc-status:0") {
		t.Fatalf("trailer %q", trailer)
	}
	var resp wire.SlotResponse
	if err := resp.Unmarshal(data); err != nil {
		t.Fatal(err)
	}
	if resp.Slot == nil || resp.Slot.ProviderID != "7" || !resp.Slot.StartTime.Equal(start) {
		t.Fatalf("slot = %+v", resp.Slot)
	}
}

func TestBridgeErrors(t *testing.T) {
	h, _ := setup(t)

	// no token: status travels in the trailer
	rr := post(t, h, "/wellness.v1.CareService/ListAppointments", "", &wire.Empty{})
	_, trailer := split(t, rr.Body.Bytes())
	if !strings.Contains(trailer, "grpc-status:16") {
		t.Fatalf("trailer %q", trailer)
	}

	req := httptest.NewRequest(http.MethodPost, "/wellness.v1.CareService/ListAppointments", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("json body: status %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/wellness.v1.CareService/ListAppointments", bytes.NewReader([]byte{0, 0}))
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	_, trailer = split(t, rr.Body.Bytes())
	if !strings.Contains(trailer, "grpc-status:3") {
		t.Fatalf("short frame trailer %q", trailer)
	}
}

func TestBridgeIgnoresSpoofedClientAddress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := grpc.NewServer(
		grpc.ForceServerCodec(wire.Codec{}),
		grpc.ChainUnaryInterceptor(
			middleware.RateLimit(middleware.NewRateLimiter(ctx, 0.001, 1)),
			middleware.Auth(secret),
		),
	)
	handler.Register(srv, newCare(t))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	b, err := New(lis.Addr().String(), Options{Logger: zerolog.Nop()},
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	h := b.Handler()

	tok, _ := auth.MakeToken("provider-7", secret, time.Minute)
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	create := func(i int, remote string, spoof map[string]string) string {
		msg := &wire.CreateSlotRequest{
			ProviderID: "7",
			StartTime:  start.Add(time.Duration(i) * time.Hour),
			EndTime:    start.Add(time.Duration(i)*time.Hour + 30*time.Minute),
		}
		req := httptest.NewRequest(http.MethodPost, "/wellness.v1.CareService/CreateSlot", bytes.NewReader(frame(0, msg.Marshal())))
		req.RemoteAddr = remote
		req.Header.Set("Content-Type", "application/grpc-web+proto")
		req.Header.Set("Authorization", "Bearer "+tok)
		for k, v := range spoof {
			req.Header.Set(k, v)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		_, trailer := split(t, rr.Body.Bytes())
		return trailer
	}

	if tr := create(0, "203.0.113.7:5000", nil); !strings.Contains(tr, "grpc-status:0") {
		t.Fatalf("first call: %q", tr)
	}
	spoofs := []map[string]string{
		{"X-Real-IP": "10.9.9.1"},
		{"X-Forwarded-For": "10.9.9.2"},
		{"X-Real-IP": "10.9.9.3", "X-Forwarded-For": "10.9.9.4"},
	}
	for i, hdr := range spoofs {
		if tr := create(i+1, "203.0.113.7:5001", hdr); !strings.Contains(tr, "grpc-status:8") {
			t.Fatalf("spoofed call %d not limited: %q", i, tr)
		}
	}
	// a different TCP peer still has its own bucket
	if tr := create(9, "198.51.100.2:6000", nil); !strings.Contains(tr, "grpc-status:0") {
		t.Fatalf("other client: %q", tr)
	}
}

func TestBridgePreflight(t *testing.T) {
	h, _ := setup(t)
	req := httptest.NewRequest(http.MethodOptions, "/wellness.v1.CareService/BookAppointment", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatal("no allow-origin on preflight")
	}
}

func TestHealthz(t *testing.T) {
	h, hs := setup(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("serving: status %d", rr.Code)
	}

	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("not serving: status %d", rr.Code)
	}
}

func TestUnframe(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		ok   bool
	}{
		{"empty message", frame(0, nil), true},
		{"payload", frame(0, []byte{1, 2, 3}), true},
		{"short", []byte{0, 0, 0}, false},
		{"trailer", frame(0x80, []byte("x")), false},
		{"truncated", frame(0, []byte{1, 2, 3})[:6], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := unframe(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("err = %v", err)
			}
		})
	}
}
