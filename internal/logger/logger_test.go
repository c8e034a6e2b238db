package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestWithComponentWritesField(t *testing.T) {
	defer Init("info", false)

	var buf bytes.Buffer
	InitWriter(&buf, "debug", false)

	WithComponent("pip").Debug().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["component"] != "pip" {
		t.Fatalf("component=%v, want pip", entry["component"])
	}
	if entry["message"] != "hello" {
		t.Fatalf("message=%v, want hello", entry["message"])
	}
}

func TestSetLevelFilters(t *testing.T) {
	defer Init("info", false)

	var buf bytes.Buffer
	InitWriter(&buf, "info", false)
	SetLevel("error")

	Get().Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at error level: %q", buf.String())
	}

	Get().Error().Msg("kept")
	if buf.Len() == 0 {
		t.Fatal("error not written")
	}
}
