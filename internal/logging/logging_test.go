package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
	}{
		{"debug", true, true},
		{"INFO", false, true},
		{"warn", false, false},
		{"nonsense", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(&buf, tt.level, "json")
			log.Debug().Msg("dbg")
			log.Info().Msg("inf")
			out := buf.String()
			if strings.Contains(out, `"dbg"`) != tt.debugSeen {
				t.Errorf("debug seen = %v", !tt.debugSeen)
			}
			if strings.Contains(out, `"inf"`) != tt.infoSeen {
				t.Errorf("info seen = %v", !tt.infoSeen)
			}
		})
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "console")
	log.Info().Str("k", "v").Msg("hello")
	out := buf.String()
	if strings.HasPrefix(out, "{") || !strings.Contains(out, "hello") {
		t.Fatalf("console output %q", out)
	}
}
