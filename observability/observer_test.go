package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tailored-agentic-units/statebox/observability"
)

type captureObserver struct {
	events *[]observability.Event
}

func (c *captureObserver) OnEvent(ctx context.Context, event observability.Event) {
	*c.events = append(*c.events, event)
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  string
	}{
		{name: "trace range", level: 1, want: "TRACE"},
		{name: "verbose maps to DEBUG", level: observability.LevelVerbose, want: "DEBUG"},
		{name: "info maps to INFO", level: observability.LevelInfo, want: "INFO"},
		{name: "warning maps to WARN", level: observability.LevelWarning, want: "WARN"},
		{name: "error maps to ERROR", level: observability.LevelError, want: "ERROR"},
		{name: "fatal range", level: 21, want: "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  slog.Level
	}{
		{level: observability.LevelVerbose, want: slog.LevelDebug},
		{level: observability.LevelInfo, want: slog.LevelInfo},
		{level: observability.LevelWarning, want: slog.LevelWarn},
		{level: observability.LevelError, want: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.SlogLevel(); got != tt.want {
				t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    observability.Level
		wantErr bool
	}{
		{input: "debug", want: observability.LevelVerbose},
		{input: "INFO", want: observability.LevelInfo},
		{input: "", want: observability.LevelInfo},
		{input: " warn ", want: observability.LevelWarning},
		{input: "error", want: observability.LevelError},
		{input: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := observability.ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMultiObserver(t *testing.T) {
	var events1, events2, events3 []observability.Event

	nested := observability.NewMultiObserver(
		&captureObserver{events: &events2},
		observability.NoOpObserver{},
	)
	multi := observability.NewMultiObserver(
		&captureObserver{events: &events1},
		nil,
		observability.NoOpObserver{},
		nested,
		&captureObserver{events: &events3},
	)

	if multi.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (nil and noop dropped, nested flattened)", multi.Len())
	}

	multi.OnEvent(context.Background(), observability.Event{
		Type:  "test.event",
		Level: observability.LevelInfo,
	})

	if len(events1) != 1 || len(events2) != 1 || len(events3) != 1 {
		t.Fatalf("received %d, %d and %d events, want 1 each", len(events1), len(events2), len(events3))
	}
	if events1[0].Type != "test.event" {
		t.Errorf("event type = %q, want %q", events1[0].Type, "test.event")
	}
}

func TestSlogObserver_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     observability.Level
		minLevel  slog.Level
		expectLog bool
	}{
		{name: "verbose at debug handler", level: observability.LevelVerbose, minLevel: slog.LevelDebug, expectLog: true},
		{name: "verbose at info handler", level: observability.LevelVerbose, minLevel: slog.LevelInfo, expectLog: false},
		{name: "info at warn handler", level: observability.LevelInfo, minLevel: slog.LevelWarn, expectLog: false},
		{name: "error at error handler", level: observability.LevelError, minLevel: slog.LevelError, expectLog: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tt.minLevel}))

			observability.NewSlogObserver(logger).OnEvent(context.Background(), observability.Event{
				Type:      "test.event",
				Level:     tt.level,
				Timestamp: time.Now(),
				Source:    "test",
			})

			if got := buf.Len() > 0; got != tt.expectLog {
				t.Errorf("log output = %v, want %v (buf: %q)", got, tt.expectLog, buf.String())
			}
		})
	}
}

func TestSlogObserver_SortedAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	observability.NewSlogObserver(logger).OnEvent(context.Background(), observability.Event{
		Type:   "store.dispatch",
		Level:  observability.LevelInfo,
		Source: "store.Dispatch",
		Data: map[string]any{
			"subtree": "counter",
			"action":  "increment",
		},
	})

	output := buf.String()
	if !strings.Contains(output, "store.dispatch") {
		t.Errorf("expected event type as log message, got: %s", output)
	}
	if !strings.Contains(output, "source=store.Dispatch") {
		t.Errorf("expected source attribute, got: %s", output)
	}

	action := strings.Index(output, "action=increment")
	subtree := strings.Index(output, "subtree=counter")
	if action < 0 || subtree < 0 || action > subtree {
		t.Errorf("expected sorted data attributes, got: %s", output)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	var events []observability.Event
	observability.RegisterObserver("test-capture", &captureObserver{events: &events})

	tests := []struct {
		name    string
		names   []string
		wantErr bool
	}{
		{name: "no names", names: nil},
		{name: "single", names: []string{"test-capture"}},
		{name: "multiple", names: []string{"noop", "test-capture"}},
		{name: "unknown", names: []string{"noop", "nonexistent"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := observability.Resolve(tt.names...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve(%v) error = %v, wantErr %v", tt.names, err, tt.wantErr)
			}
			if !tt.wantErr && obs == nil {
				t.Fatalf("Resolve(%v) returned nil observer", tt.names)
			}
		})
	}

	obs, err := observability.Resolve("noop", "test-capture", "test-capture")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, ok := obs.(*captureObserver); !ok {
		t.Errorf("Resolve(noop, test-capture, test-capture) = %T, want the capture observer itself", obs)
	}
	obs.OnEvent(context.Background(), observability.Event{Type: "test.event"})
	if len(events) != 1 {
		t.Errorf("captured %d events, want 1", len(events))
	}

	if obs, _ := observability.Resolve("noop", "noop"); obs != (observability.NoOpObserver{}) {
		t.Errorf("Resolve(noop, noop) = %T, want NoOpObserver", obs)
	}
}

func TestRegistry_Names(t *testing.T) {
	names := observability.Names()

	var hasNoop, hasSlog bool
	for i, name := range names {
		if i > 0 && names[i-1] > name {
			t.Errorf("Names() not sorted: %v", names)
		}
		hasNoop = hasNoop || name == "noop"
		hasSlog = hasSlog || name == "slog"
	}
	if !hasNoop || !hasSlog {
		t.Errorf("Names() = %v, want noop and slog registered", names)
	}
}
