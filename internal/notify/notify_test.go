package notify

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type sent struct {
	title   string
	message string
}

func newRecordingNotifier(enabled bool) (*Notifier, *[]sent) {
	var got []sent
	n := NewNotifier(enabled, nil)
	n.send = func(title, message string) error {
		got = append(got, sent{title, message})
		return nil
	}
	return n, &got
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a long string", 10, "this is..."},
		{"", 10, ""},
		{"abc", 3, "abc"},
		{"abcd", 3, "..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestShortenPath(t *testing.T) {
	if got := shortenPath("/short/path"); got != "/short/path" {
		t.Errorf("short path changed: %q", got)
	}

	long := "/a/very/long/path/that/exceeds/the/maximum/length/for/notification/display/file.txt"
	if got := shortenPath(long); len(got) >= len(long) {
		t.Errorf("shortenPath(%q) was not shortened: %q", long, got)
	}
}

func TestSetEnabled(t *testing.T) {
	n := NewNotifier(true, nil)
	if !n.IsEnabled() {
		t.Error("Expected initially enabled")
	}

	n.SetEnabled(false)
	if n.IsEnabled() {
		t.Error("Expected disabled after SetEnabled(false)")
	}
}

func TestBatchComplete(t *testing.T) {
	n, got := newRecordingNotifier(true)

	n.BatchComplete(3, 3, 0, 2*time.Second)
	n.BatchComplete(3, 2, 1, time.Second)
	n.BatchComplete(0, 0, 0, 0)

	if len(*got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(*got))
	}
	if (*got)[0].title != "Upload Complete" {
		t.Errorf("unexpected title %q", (*got)[0].title)
	}
	if (*got)[1].title != "Upload Finished With Errors" || !strings.Contains((*got)[1].message, "1 failed") {
		t.Errorf("unexpected failure notification %+v", (*got)[1])
	}
}

func TestMirrorComplete(t *testing.T) {
	n, got := newRecordingNotifier(true)
	n.MirrorComplete("s3://bucket/prefix", 4, 0)

	if len(*got) != 1 || !strings.Contains((*got)[0].message, "s3://bucket/prefix") {
		t.Errorf("unexpected notifications %+v", *got)
	}
}

func TestNotifierDisabled_NoSend(t *testing.T) {
	n, got := newRecordingNotifier(false)

	n.BatchComplete(1, 1, 0, time.Second)
	n.MirrorComplete("/tmp/out", 1, 0)
	n.SessionExpired()

	if len(*got) != 0 {
		t.Errorf("disabled notifier sent %d notifications", len(*got))
	}
}

func TestSendFailureIsLogged(t *testing.T) {
	n := NewNotifier(true, nil)
	n.send = func(title, message string) error { return errors.New("no dbus") }

	// Must not panic or propagate
	n.BatchComplete(1, 0, 1, time.Second)
}
