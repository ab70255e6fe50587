package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"log/slog"
)

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   formatKV,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(handler).With("component", "flow")
	LogEvent(ctx, log, slog.LevelInfo, "question.asked",
		slog.String("status", "ok"),
		slog.String("question_key", "sleep_quality"),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	tokens := strings.Split(line, " ")
	if len(tokens) < 6 {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	expected := []string{"ts=", "level=INFO", "component=flow", "event=question.asked", "status=ok", "rid=rid-123"}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
	if !strings.Contains(line, "question_key=sleep_quality") {
		t.Fatalf("expected question_key in line: %s", line)
	}
}

func TestStructuredHandlerJSONFields(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   formatJSON,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithUpdateMeta(Background(), 1, 77, 77)

	log := slog.New(handler).With("component", "tg")
	LogEvent(ctx, log, slog.LevelWarn, "send.fail",
		slog.String("err", "boom"),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &fields); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, buf.String())
	}
	if fields["level"] != "WARN" {
		t.Fatalf("level = %v", fields["level"])
	}
	if fields["component"] != "tg" {
		t.Fatalf("component = %v", fields["component"])
	}
	if fields["event"] != "send.fail" {
		t.Fatalf("event = %v", fields["event"])
	}
	if fields["user_id"] != float64(77) {
		t.Fatalf("user_id = %v", fields["user_id"])
	}
}

func TestDurationKeyNormalization(t *testing.T) {
	cases := map[string]string{
		"duration":      "duration_ms",
		"send_duration": "send_duration_ms",
		"elapsed_ms":    "elapsed_ms",
		"took":          "took_ms",
	}
	for in, want := range cases {
		if got := durationKey(in); got != want {
			t.Fatalf("durationKey(%q) = %q, want %q", in, got, want)
		}
	}
}
