package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestJSONLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelWarn)
	log.Info("should not appear")
	log.Debug("also should not appear")
	if buf.Len() > 0 {
		t.Fatalf("expected no output below warn, got: %s", buf.String())
	}

	log.Warn("should appear", "key", "value")
	out := buf.String()
	if !strings.Contains(out, "should appear") || !strings.Contains(out, `"key":"value"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestSetupSelectsHandler(t *testing.T) {
	t.Parallel()
	cases := []struct {
		format string
		want   string
	}{
		{"json", `"msg":"hello"`},
		{"text", "msg=hello"},
		{"pretty", "hello"},
		{"bogus", "hello"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		Setup(&buf, tc.format, "info").Info("hello")
		if !strings.Contains(buf.String(), tc.want) {
			t.Fatalf("format %q: expected %q in %q", tc.format, tc.want, buf.String())
		}
	}
}

func TestEnabled(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelInfo)
	if log.Enabled(slog.LevelDebug) {
		t.Fatal("debug should be disabled at info level")
	}
	if !log.Enabled(slog.LevelError) {
		t.Fatal("error should be enabled at info level")
	}
	if Discard().Enabled(slog.LevelError) {
		t.Fatal("discard logger should not enable any level")
	}
}

func TestWithAndGroup(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo).With("component", "pipeline").WithGroup("chunk")
	log.Info("issued", "index", 3)

	out := buf.String()
	if !strings.Contains(out, `"component":"pipeline"`) {
		t.Fatalf("missing component attr: %s", out)
	}
	if !strings.Contains(out, `"chunk":{"index":3}`) {
		t.Fatalf("missing grouped attr: %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), JSON(&buf, slog.LevelInfo))
	FromContext(ctx).Info("roundtrip test")
	if !strings.Contains(buf.String(), "roundtrip test") {
		t.Fatalf("expected message via context logger, got: %s", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without logger returned nil")
	}
}

func TestTimeLogsElapsed(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelDebug)
	stop := Time(log, "Importing data", "file", "input0.raw")
	if !strings.Contains(buf.String(), "Importing data started") {
		t.Fatalf("missing start record: %s", buf.String())
	}
	if d := stop(); d < 0 {
		t.Fatalf("negative elapsed %v", d)
	}
	out := buf.String()
	if !strings.Contains(out, "elapsed=") || !strings.Contains(out, "file=input0.raw") {
		t.Fatalf("missing completion record: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"trace", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.input); got != tc.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}

func TestPrettyHandlerGroups(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	slog.New(h.WithGroup("a").WithGroup("b")).Info("nested", "key", "val")
	if !strings.Contains(buf.String(), "a.b.key=val") {
		t.Fatalf("expected 'a.b.key=val', got: %s", buf.String())
	}
	if h.WithGroup("") != slog.Handler(h) {
		t.Fatal("WithGroup(\"\") should return the same handler")
	}
}

func TestPrettyHandlerAttrsKeepGroupAtAddTime(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	grouped := h.WithAttrs([]slog.Attr{slog.String("service", "vecstream")}).WithGroup("seg")
	slog.New(grouped).Info("copy", "stream", 2)

	out := buf.String()
	if !strings.Contains(out, "service=vecstream") {
		t.Fatalf("ungrouped attr was qualified: %s", out)
	}
	if !strings.Contains(out, "seg.stream=2") {
		t.Fatalf("record attr missing group: %s", out)
	}
}

func TestPrettyFormatsValues(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	slog.New(NewPrettyHandler(&buf, nil)).Info("done",
		"msg", "hello world",
		"key", "simple",
		"elapsed", 1500*time.Microsecond,
	)
	out := buf.String()
	for _, want := range []string{`msg="hello world"`, "key=simple", "elapsed=1.5ms"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
}

func TestNeedsQuoting(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"simple":      false,
		"has space":   true,
		"has\ttab":    true,
		`has"quote`:   true,
		"k=v":         true,
		"":            true,
		"dash-ok_1.2": false,
	}
	for in, want := range tests {
		if got := needsQuoting(in); got != want {
			t.Errorf("needsQuoting(%q) = %v, want %v", in, got, want)
		}
	}
}
