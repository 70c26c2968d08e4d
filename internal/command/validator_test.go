package command

import (
	"testing"
)

func newDefaultValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(nil)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestValidateBlocksDangerous(t *testing.T) {
	v := newDefaultValidator(t)

	blocked := []string{
		"rm -rf /",
		"rm -rf /etc",
		"rm -r -f /home",
		"RM -RF /",
		"  rm -rf / ",
		"sudo apt install foo",
		"dd if=/dev/zero of=out bs=1M",
		"cat /dev/sda",
		"mkfs.ext4 /dev/sdb1",
		"echo hi; rm x",
		"true && rm x",
		"false || rm x",
		"echo `whoami`",
		"echo $(whoami)",
		":(){ :|:& };:",
	}
	for _, cmd := range blocked {
		if verdict := v.Validate(cmd); verdict == nil {
			t.Errorf("expected %q to be blocked", cmd)
		}
	}
}

func TestValidateAllowsBenign(t *testing.T) {
	v := newDefaultValidator(t)

	allowed := []string{
		"rm -rf ./build",
		"rm -rf build",
		"ls -la",
		"git status",
		"git diff HEAD~1",
		"go test ./...",
		"grep -r TODO src | head",
		"cat README.md",
	}
	for _, cmd := range allowed {
		if verdict := v.Validate(cmd); verdict != nil {
			t.Errorf("expected %q to be allowed, blocked: %s", cmd, verdict.Reason)
		}
	}
}

func TestValidateEmpty(t *testing.T) {
	v := newDefaultValidator(t)

	for _, cmd := range []string{"", "   ", "\n\t\n"} {
		if verdict := v.Validate(cmd); verdict == nil {
			t.Errorf("expected empty input %q to be blocked", cmd)
		}
	}
}

func TestValidateNewlineSegments(t *testing.T) {
	v := newDefaultValidator(t)

	// Any blocked segment blocks the whole request
	if verdict := v.Validate("ls -la\nsudo reboot"); verdict == nil {
		t.Error("expected blocked segment to block the whole request")
	}
	if verdict := v.Validate("ls -la\ngit status"); verdict != nil {
		t.Errorf("expected benign multi-line request to pass, got %s", verdict.Reason)
	}
}

func TestValidateFirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Pattern: `rm`, Reason: "first"},
		{Pattern: `rm -rf`, Reason: "second"},
	}
	v, err := NewValidator(rules)
	if err != nil {
		t.Fatal(err)
	}
	verdict := v.Validate("rm -rf ./x")
	if verdict == nil {
		t.Fatal("expected blocked")
	}
	if verdict.Reason != "first" {
		t.Errorf("expected first rule to win, got %q", verdict.Reason)
	}
}

func TestValidateIdempotent(t *testing.T) {
	v := newDefaultValidator(t)
	for i := 0; i < 5; i++ {
		if verdict := v.Validate("rm -rf /"); verdict == nil {
			t.Fatalf("call %d: expected blocked", i)
		}
		if verdict := v.Validate("ls"); verdict != nil {
			t.Fatalf("call %d: expected allowed", i)
		}
	}
}

func TestNewValidatorBadPattern(t *testing.T) {
	_, err := NewValidator([]Rule{{Pattern: "(", Reason: "broken"}})
	if err == nil {
		t.Error("expected error for invalid pattern")
	}
}
