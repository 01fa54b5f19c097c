package instrumentation

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestToolInvocation_Lifecycle(t *testing.T) {
	ti := NewToolInvocation("create_event").
		WithUser("jane@example.com").
		WithOperation("create_event")

	if ti.Tool != "create_event" {
		t.Errorf("Tool = %q, want %q", ti.Tool, "create_event")
	}
	if ti.StartTime.IsZero() {
		t.Error("expected StartTime to be set")
	}

	ti.CompleteSuccess()

	if !ti.Success {
		t.Error("expected Success after CompleteSuccess")
	}
	if ti.Duration < 0 {
		t.Error("expected non-negative duration")
	}
	if ti.Status() != StatusSuccess {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusSuccess)
	}
}

func TestToolInvocation_CompleteWithError(t *testing.T) {
	ti := NewToolInvocation("list_upcoming_events")
	ti.CompleteWithError(errors.New("calendar unavailable"))

	if ti.Success {
		t.Error("expected Success to be false")
	}
	if ti.Error != "calendar unavailable" {
		t.Errorf("Error = %q, want %q", ti.Error, "calendar unavailable")
	}
	if ti.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusError)
	}
}

func TestToolInvocation_UserDomain(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{"jane@example.com", "example.com"},
		{"invalid", ""},
		{"", ""},
	}

	for _, tt := range tests {
		ti := &ToolInvocation{UserEmail: tt.email}
		if got := ti.UserDomain(); got != tt.expected {
			t.Errorf("UserDomain(%q) = %q, want %q", tt.email, got, tt.expected)
		}
	}
}

func TestToolInvocation_LogAttrs_OmitsEmail(t *testing.T) {
	ti := NewToolInvocation("create_event").
		WithUser("jane@example.com")
	ti.CompleteSuccess()

	for _, attr := range ti.LogAttrs() {
		if attr.Value.String() == "jane@example.com" {
			t.Error("LogAttrs must not contain the full email address")
		}
	}
}

func TestAuditLogger_LogToolInvocation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	al := NewAuditLogger(logger)

	ti := &ToolInvocation{
		Tool:      "list_upcoming_events",
		UserEmail: "jane@example.com",
		StartTime: time.Now(),
		Success:   true,
	}
	al.LogToolInvocation(ti)

	out := buf.String()
	if !strings.Contains(out, "tool_executed") {
		t.Errorf("expected tool_executed log entry, got %q", out)
	}
	if strings.Contains(out, "jane@example.com") {
		t.Error("PII must not leak into logs when IncludePII is disabled")
	}
}

func TestAuditLogger_IncludePII(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true, IncludePII: true})

	ti := &ToolInvocation{
		Tool:      "create_event",
		UserEmail: "jane@example.com",
		Success:   false,
		Error:     "boom",
	}
	al.LogToolInvocation(ti)

	out := buf.String()
	if !strings.Contains(out, "tool_failed") {
		t.Errorf("expected tool_failed log entry, got %q", out)
	}
	if !strings.Contains(out, "jane@example.com") {
		t.Error("expected full email when IncludePII is enabled")
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: false})

	al.LogToolInvocation(&ToolInvocation{Tool: "create_event", Success: true})

	if buf.Len() != 0 {
		t.Errorf("expected no output from disabled audit logger, got %q", buf.String())
	}
}
