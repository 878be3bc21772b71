package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// resetLogging puts the package back into its pre-Initialize state.
func resetLogging(t *testing.T) {
	t.Helper()
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	logBuffer = NewRingBuffer(defaultBufferSize)
	logCallback = nil
	mutex.Unlock()
}

func enabled(l *slog.Logger, level slog.Level) bool {
	return l.Handler().Enabled(context.Background(), level)
}

func TestModuleLevelOverride(t *testing.T) {
	resetLogging(t)
	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"trigger":  "debug",
			"pipeline": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"trigger", true, true, true},
		{"pipeline", false, false, true},
		{"session", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			logger := GetLogger(tt.module)
			if got := enabled(logger, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := enabled(logger, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := enabled(logger, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetLogging(t)

	before := GetLogger("decode")
	if enabled(before, slog.LevelDebug) {
		t.Error("logger created before Initialize has debug enabled, want info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"decode": "debug"}})

	// The early logger shares its LevelVar with the rebuilt one.
	if !enabled(before, slog.LevelDebug) {
		t.Error("early logger did not pick up the configured debug level")
	}
	if !enabled(GetLogger("decode"), slog.LevelDebug) {
		t.Error("GetLogger after Initialize has debug disabled")
	}
}

func TestReconfigure(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "info"})
	session := GetLogger("session")
	api := GetLogger("api")

	Reconfigure(Config{Level: "error", Modules: map[string]string{"session": "debug"}})

	if !enabled(session, slog.LevelDebug) {
		t.Error("session debug disabled after Reconfigure, want enabled")
	}
	if enabled(api, slog.LevelWarn) {
		t.Error("api warn enabled after Reconfigure to error")
	}
	if GetLogger("session") != session {
		t.Error("Reconfigure replaced the cached logger")
	}
}

func TestSetLevel(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "info"})

	if err := SetLevel("host", "debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if !enabled(GetLogger("host"), slog.LevelDebug) {
		t.Error("host debug disabled after SetLevel")
	}
	if err := SetLevel("host", "loud"); err == nil {
		t.Error("SetLevel(loud) succeeded, want error")
	}
	if got := Levels()["host"]; got != "debug" {
		t.Errorf("Levels()[host] = %q, want debug", got)
	}
}

func TestBufferHandler(t *testing.T) {
	resetLogging(t)
	var got []LogEntry
	SetLogCallback(func(e LogEntry) { got = append(got, e) })

	logger := slog.New(NewBufferHandler(slog.LevelInfo)).With("module", "trigger")
	logger.Debug("hidden")
	logger.WithGroup("camera").Info("Camera armed",
		"index", 2,
		"error", errors.New("busy"),
		"wait", 1500*time.Millisecond)

	entries := GetBuffer().ReadAll()
	if len(entries) != 1 {
		t.Fatalf("buffer has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Module != "trigger" || e.Level != "info" || e.Message != "Camera armed" || e.Seq != 1 {
		t.Errorf("entry = %+v", e)
	}
	want := map[string]any{"camera.index": int64(2), "camera.error": "busy", "camera.wait": "1.5s"}
	for k, v := range want {
		if e.Attributes[k] != v {
			t.Errorf("Attributes[%q] = %v (%T), want %v", k, e.Attributes[k], e.Attributes[k], v)
		}
	}
	if len(got) != 1 || got[0].Seq != e.Seq {
		t.Errorf("callback saw %d entries, want the buffered one", len(got))
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg})
	}

	if rb.Count() != 3 {
		t.Errorf("Count() = %d, want 3", rb.Count())
	}
	var msgs []string
	for _, e := range rb.ReadAll() {
		msgs = append(msgs, e.Message)
	}
	if strings.Join(msgs, "") != "cde" {
		t.Errorf("ReadAll() = %v, want [c d e]", msgs)
	}

	since := rb.Since(4)
	if len(since) != 1 || since[0].Message != "e" || since[0].Seq != 5 {
		t.Errorf("Since(4) = %+v, want only e", since)
	}
	if len(rb.Since(5)) != 0 {
		t.Error("Since(latest) returned entries")
	}
}

func TestFormatLogLine(t *testing.T) {
	e := LogEntry{
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:      "warn",
		Module:     "pipeline",
		Message:    "Retrieve timed out",
		Attributes: map[string]any{"round": 7, "channel": 1},
	}
	want := "2026-01-02T03:04:05Z [WARN] [pipeline] Retrieve timed out channel=1 round=7"
	if got := FormatLogLine(e); got != want {
		t.Errorf("FormatLogLine() = %q, want %q", got, want)
	}
}

func TestMultiHandlerDeliversOnce(t *testing.T) {
	var buf bytes.Buffer
	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")
	logger.Info("both")

	output := buf.String()
	if n := strings.Count(output, "debug only message"); n != 1 {
		t.Errorf("debug message written %d times, want 1", n)
	}
	if n := strings.Count(output, "both"); n != 2 {
		t.Errorf("info message written %d times, want 2", n)
	}
	if n := strings.Count(output, "module=test"); n != 3 {
		t.Errorf("module attribute written %d times, want 3", n)
	}
}

func TestJournalFields(t *testing.T) {
	fields := map[string]string{}
	addAttrToFields(fields, slog.Int("round", 12), nil)
	addAttrToFields(fields, slog.Float64("fps", 14.5), nil)
	addAttrToFields(fields, slog.Bool("threaded", true), nil)
	addAttrToFields(fields, slog.Group("camera", slog.Int("serial", 1234)), []string{"array"})
	addAttrToFields(fields, slog.Attr{}, nil)

	want := map[string]string{
		"ROUND":               "12",
		"FPS":                 "14.5",
		"THREADED":            "true",
		"ARRAY_CAMERA_SERIAL": "1234",
	}
	if len(fields) != len(want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%s] = %q, want %q", k, fields[k], v)
		}
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got := parseLevel(tt.input)
		switch {
		case tt.isNil && got != nil:
			t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
		case !tt.isNil && got == nil:
			t.Errorf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
		case !tt.isNil && *got != tt.want:
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
		}
	}
}
