package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/user/telecode/internal/types"
)

func TestSplitMessage(t *testing.T) {
	short := "hello"
	parts := splitMessage(short)
	if len(parts) != 1 || parts[0] != short {
		t.Errorf("expected single part, got %v", parts)
	}

	long := strings.Repeat("x", maxTelegramMessage*2+10)
	parts = splitMessage(long)
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	total := 0
	for _, p := range parts {
		if len(p) > maxTelegramMessage {
			t.Errorf("part exceeds limit: %d", len(p))
		}
		total += len(p)
	}
	if total != len(long) {
		t.Errorf("expected parts to cover %d bytes, got %d", len(long), total)
	}
}

func TestSplitMessageRuneBoundary(t *testing.T) {
	// 3-byte runes so the byte limit never falls on a rune boundary
	long := strings.Repeat("界", maxTelegramMessage)
	parts := splitMessage(long)
	if len(parts) < 2 {
		t.Fatalf("expected multiple parts, got %d", len(parts))
	}
	var rejoined strings.Builder
	for _, p := range parts {
		if len(p) > maxTelegramMessage {
			t.Errorf("part exceeds limit: %d", len(p))
		}
		if !utf8.ValidString(p) {
			t.Error("expected split to fall on a rune boundary")
		}
		rejoined.WriteString(p)
	}
	if rejoined.String() != long {
		t.Error("expected parts to reassemble the original message")
	}
}

func TestFormatResultSuccess(t *testing.T) {
	got := FormatResult(&types.CommandResult{ExitCode: 0, Stdout: "ok\n", DurationMs: 12})
	if !strings.Contains(got, "Done in 12ms") {
		t.Errorf("expected success header, got %q", got)
	}
	if !strings.Contains(got, "ok") {
		t.Errorf("expected stdout in output, got %q", got)
	}
}

func TestFormatResultFailure(t *testing.T) {
	got := FormatResult(&types.CommandResult{ExitCode: 2, Stderr: "boom", DurationMs: 5})
	if !strings.Contains(got, "Exit code 2") {
		t.Errorf("expected exit code header, got %q", got)
	}
	if !strings.Contains(got, "boom") {
		t.Errorf("expected stderr in output, got %q", got)
	}
}

func TestFormatResultTimeout(t *testing.T) {
	got := FormatResult(&types.CommandResult{ExitCode: types.TimeoutExitCode, TimedOut: true, DurationMs: 180000})
	if !strings.Contains(got, "Timed out") {
		t.Errorf("expected timeout header, got %q", got)
	}
}

func TestFormatResultNoOutput(t *testing.T) {
	got := FormatResult(&types.CommandResult{ExitCode: 0})
	if !strings.Contains(got, "(no output)") {
		t.Errorf("expected no-output marker, got %q", got)
	}
}

func TestIsAllowed(t *testing.T) {
	open := &Adapter{allowed: toSet(nil)}
	if !open.isAllowed(123) {
		t.Error("expected empty allow-list to admit everyone")
	}

	restricted := &Adapter{allowed: toSet([]int64{42})}
	if !restricted.isAllowed(42) {
		t.Error("expected listed user to be admitted")
	}
	if restricted.isAllowed(99) {
		t.Error("expected unlisted user to be rejected")
	}
}

func TestFormatSessionList(t *testing.T) {
	if got := formatSessionList(nil); got != "No active sessions." {
		t.Errorf("expected empty list message, got %q", got)
	}

	got := formatSessionList([]*types.Session{
		{ID: "a", Owner: 1, WorkingDir: "/work/1"},
		{ID: "b", Owner: 2, WorkingDir: "/work/2"},
	})
	if !strings.Contains(got, "2 active session(s)") {
		t.Errorf("expected count header, got %q", got)
	}
	if !strings.Contains(got, "/work/1") || !strings.Contains(got, "/work/2") {
		t.Errorf("expected working dirs listed, got %q", got)
	}
}
