package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/panduza/panduza-go/pkg/log"
)

func TestStatsCounts(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	stats, err := Collect(path)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if stats.TotalEvents != 3 {
		t.Errorf("TotalEvents = %d, want 3", stats.TotalEvents)
	}
	if stats.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", stats.DecodeErrors)
	}
	if stats.EventsByLayer[log.LayerAttribute] != 1 {
		t.Errorf("attribute layer count = %d, want 1", stats.EventsByLayer[log.LayerAttribute])
	}
	if len(stats.Sessions) != 1 {
		t.Fatalf("Sessions = %d, want 1", len(stats.Sessions))
	}
	for _, s := range stats.Sessions {
		if s.Published != 1 || s.Received != 0 {
			t.Errorf("unexpected message counts: %+v", s)
		}
		if s.LastSeen.Sub(s.FirstSeen) != 2*time.Millisecond {
			t.Errorf("unexpected session span: %s", s.LastSeen.Sub(s.FirstSeen))
		}
	}
}

func TestStatsOutput(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := append(sampleEvents(),
		log.Event{Timestamp: ts, SessionID: "other-session", Category: log.CategoryError, Error: &log.ErrorEventData{Message: "x"}},
	)
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 4",
		"TRANSPORT:",
		"WIRE:",
		"ATTRIBUTE:",
		"DECODE_ERROR:",
		"Sessions: 2",
		"[5f1c2d3e]",
		"Messages: 1 out, 0 in",
		"pza/psu/control/voltage/cmd",
		"Decode Errors: 1",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
