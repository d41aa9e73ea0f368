package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestWriter_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "botctl.log")
	cfg := Config{File: path}
	w := cfg.Writer(nil)
	if _, ok := w.(*lj.Logger); !ok {
		t.Fatalf("expected lumberjack writer when File is set, got %T", w)
	}
	_, _ = w.Write([]byte("hello\n"))
	_ = w.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file not created at %s: %v", path, err)
	}
}

func TestWriter_Defaults(t *testing.T) {
	w := Config{File: "x.log"}.Writer(nil)
	l := w.(*lj.Logger)
	if l.MaxSize != 10 || l.MaxBackups != 3 || l.MaxAge != 7 {
		t.Fatalf("unexpected defaults: size=%d backups=%d age=%d", l.MaxSize, l.MaxBackups, l.MaxAge)
	}
}

func TestWriter_Overrides(t *testing.T) {
	w := Config{File: "x2.log", MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 11, Compress: true}.Writer(nil)
	l := w.(*lj.Logger)
	if l.MaxSize != 1 || l.MaxBackups != 9 || l.MaxAge != 11 || !l.Compress {
		t.Fatalf("unexpected overrides: size=%d backups=%d age=%d compress=%t", l.MaxSize, l.MaxBackups, l.MaxAge, l.Compress)
	}
}

func TestWriter_Discard(t *testing.T) {
	var buf bytes.Buffer
	w := Config{Discard: true}.Writer(&buf)
	_, _ = w.Write([]byte("dropped"))
	if buf.Len() != 0 {
		t.Fatalf("expected discard writer, console got %q", buf.String())
	}
}

func TestNew_JSONLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Config{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = closer.Close() }()

	log.Info("hidden")
	log.Warn("shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one record, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestNew_ColorText(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Config{Level: "debug", Color: true}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.With("component", "test").Error("bad thing")
	out := buf.String()
	// TextHandler quotes the message, so the escape shows up as \x1b.
	if !strings.Contains(out, `\x1b[31mERROR`) || !strings.Contains(out, "bad thing") {
		t.Fatalf("expected red ERROR prefix, got %q", out)
	}
	if !strings.Contains(out, "component=test") {
		t.Fatalf("expected attrs to survive WithAttrs, got %q", out)
	}
	if strings.Contains(out, "level=") {
		t.Fatalf("level attr should be replaced by the colored tag, got %q", out)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, _, err := New(Config{Level: "loud"}, nil); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, _, err := New(Config{Format: "xml"}, nil); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
