package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"wellness-api/internal/scheduling"
	"wellness-api/internal/store/sqlite"
)

func TestSeedSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.db")
	var out bytes.Buffer
	err := run(context.Background(), []string{"-driver", "sqlite", "-sqlite", path, "-days", "2"}, &out, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "24 slots for 2 providers") {
		t.Fatalf("output %q", out.String())
	}

	st, err := sqlite.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	slots, err := st.ListSlots(context.Background(), scheduling.SlotFilter{ProviderID: "provider-1", Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 12 {
		t.Fatalf("provider-1 slots = %d", len(slots))
	}
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		ok   bool
	}{
		{"defaults", nil, true},
		{"zero days", []string{"-days", "0"}, false},
		{"bad slot", []string{"-slot", "-5m"}, false},
		{"unknown flag", []string{"-x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args)
			if (err == nil) != tt.ok {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestUnknownDriver(t *testing.T) {
	err := run(context.Background(), []string{"-driver", "mysql"}, &bytes.Buffer{}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error")
	}
}
