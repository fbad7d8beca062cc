package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("gfx.dispatcher")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("frame dispatched", "ptsUs", 33333)

	out := buf.String()
	if strings.Contains(out, `msg="INFO frame dispatched`) {
		t.Fatalf("unexpected nested severity prefix in message: %s", out)
	}
	if !strings.Contains(out, "msg=\"frame dispatched\"") {
		t.Fatalf("expected plain message, got: %s", out)
	}
	if !strings.Contains(out, "component=gfx.dispatcher") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "ptsUs=33333") {
		t.Fatalf("expected ptsUs field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("gfx.dispatcher")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}
