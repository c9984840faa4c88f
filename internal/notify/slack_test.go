package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// capture starts a webhook that decodes every message it receives.
func capture(t *testing.T) (*Notifier, *SlackMessage) {
	t.Helper()
	var received SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return New(&SlackConfig{Enabled: true, WebhookURL: server.URL, Channel: "#birds", Username: "migrate-bot"}), &received
}

func field(m *SlackMessage, title string) (string, bool) {
	if len(m.Attachments) == 0 {
		return "", false
	}
	for _, f := range m.Attachments[0].Fields {
		if f.Title == title {
			return f.Value, true
		}
	}
	return "", false
}

func TestIsEnabled(t *testing.T) {
	tests := []struct {
		name     string
		config   *SlackConfig
		expected bool
	}{
		{"nil config", nil, false},
		{"disabled explicitly", &SlackConfig{Enabled: false, WebhookURL: "https://test"}, false},
		{"missing webhook", &SlackConfig{Enabled: true}, false},
		{"enabled", &SlackConfig{Enabled: true, WebhookURL: "https://hooks.slack.com/test"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.config).IsEnabled(); got != tt.expected {
				t.Errorf("IsEnabled() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDisabledNotifierSendsNothing(t *testing.T) {
	n := New(nil)
	if err := n.RunStarted("run-1", "src", "tgt", 6); err != nil {
		t.Errorf("RunStarted: %v", err)
	}
	if err := n.RunFailed("run-1", errors.New("boom"), time.Second); err != nil {
		t.Errorf("RunFailed: %v", err)
	}
	if err := n.TableFailed("run-1", "ncrn.event", nil); err != nil {
		t.Errorf("TableFailed: %v", err)
	}
}

func TestRunStarted(t *testing.T) {
	n, msg := capture(t)
	if err := n.RunStarted("run-123", "NCRN_Landbirds", "landbirds", 6); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Channel != "#birds" || msg.Username != "migrate-bot" {
		t.Errorf("channel/username = %q/%q", msg.Channel, msg.Username)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Title != "Migration Started" {
		t.Fatalf("attachments = %+v", msg.Attachments)
	}
	if v, _ := field(msg, "Tables"); v != "6" {
		t.Errorf("Tables = %q, want 6", v)
	}
}

func TestRunCompleted(t *testing.T) {
	t.Run("clean run is green", func(t *testing.T) {
		n, msg := capture(t)
		if err := n.RunCompleted("run-1", 5*time.Minute, 6, 1234567, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg.Attachments[0].Color != colorGood {
			t.Errorf("color = %q, want green", msg.Attachments[0].Color)
		}
		if v, _ := field(msg, "Rows Loaded"); v != "1,234,567" {
			t.Errorf("Rows Loaded = %q", v)
		}
		if _, ok := field(msg, "Rows Quarantined"); ok {
			t.Error("unexpected quarantine field")
		}
	})

	t.Run("quarantined rows turn it yellow", func(t *testing.T) {
		n, msg := capture(t)
		if err := n.RunCompleted("run-2", time.Minute, 6, 24, 3); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if msg.Attachments[0].Color != colorWarning {
			t.Errorf("color = %q, want yellow", msg.Attachments[0].Color)
		}
		if v, _ := field(msg, "Rows Quarantined"); v != "3" {
			t.Errorf("Rows Quarantined = %q, want 3", v)
		}
	})
}

func TestRunCompletedWithErrors(t *testing.T) {
	n, msg := capture(t)
	failed := make([]string, 12)
	for i := range failed {
		failed[i] = "t" + string(rune('a'+i))
	}
	err := n.RunCompletedWithErrors("run-3", time.Minute, 2, 12, 1, 10, failed, []string{"ncrn.detection"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Attachments[0].Color != colorWarning {
		t.Errorf("color = %q, want yellow", msg.Attachments[0].Color)
	}
	v, _ := field(msg, "Failed Tables")
	if !strings.HasSuffix(v, "and 2 more") {
		t.Errorf("Failed Tables = %q", v)
	}
	if v, _ := field(msg, "Remaining Tables"); v != "ncrn.detection" {
		t.Errorf("Remaining Tables = %q", v)
	}
}

func TestRunFailed(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		n, msg := capture(t)
		if err := n.RunFailed("run-1", nil, time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v, _ := field(msg, "Error"); v != "Unknown error" {
			t.Errorf("Error = %q, want Unknown error", v)
		}
		if msg.Attachments[0].Color != colorDanger {
			t.Errorf("color = %q, want red", msg.Attachments[0].Color)
		}
	})

	t.Run("long error truncated", func(t *testing.T) {
		n, msg := capture(t)
		if err := n.RunFailed("run-1", errors.New(strings.Repeat("a", 600)), time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		v, _ := field(msg, "Error")
		if len(v) > maxErrorLen || !strings.HasSuffix(v, "...") {
			t.Errorf("error not truncated: len=%d", len(v))
		}
	})
}

func TestTableFailed(t *testing.T) {
	n, msg := capture(t)
	if err := n.TableFailed("run-1", "ncrn.event", errors.New("duplicate key")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Attachments[0].Title != "Table Load Failed" {
		t.Errorf("title = %q", msg.Attachments[0].Title)
	}
	if v, _ := field(msg, "Table"); v != "ncrn.event" {
		t.Errorf("Table = %q", v)
	}
}

func TestSend(t *testing.T) {
	t.Run("HTTP error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		n := New(&SlackConfig{Enabled: true, WebhookURL: server.URL})
		if err := n.RunStarted("run-123", "src", "tgt", 5); err == nil {
			t.Error("expected error for non-200 response")
		}
	})

	t.Run("connection error", func(t *testing.T) {
		n := New(&SlackConfig{Enabled: true, WebhookURL: "http://localhost:99999"})
		if err := n.RunStarted("run-123", "src", "tgt", 5); err == nil {
			t.Error("expected error for connection failure")
		}
	})
}

func TestGetUsername(t *testing.T) {
	if got := New(&SlackConfig{Username: "custom-bot"}).getUsername(); got != "custom-bot" {
		t.Errorf("getUsername() = %q, want %q", got, "custom-bot")
	}
	if got := New(&SlackConfig{}).getUsername(); got != defaultUsername {
		t.Errorf("getUsername() = %q, want %q", got, defaultUsername)
	}
}

func TestFormatNumberWithCommas(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{123, "123"},
		{1234, "1,234"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
		{1000000000, "1,000,000,000"},
		{-1234567, "-1,234,567"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatNumberWithCommas(tt.input); got != tt.expected {
				t.Errorf("formatNumberWithCommas(%d) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{0, "0s"},
		{59 * time.Second, "59s"},
		{61 * time.Second, "1m 1s"},
		{60 * time.Minute, "1h 0m 0s"},
		{25*time.Hour + 5*time.Minute + 10*time.Second, "25h 5m 10s"},
		{1*time.Second + 500*time.Millisecond, "2s"},
		{1*time.Second + 499*time.Millisecond, "1s"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDuration(tt.input); got != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
