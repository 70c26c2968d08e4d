// Package command validates and executes shell-level coding commands on
// behalf of a session.
package command

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one entry of the ordered deny-list: a case-insensitive regular
// expression and the reason shown to the caller when it matches.
type Rule struct {
	Pattern string
	Reason  string
	re      *regexp.Regexp
}

// Blocked reports why a command was rejected. It is returned by Validate,
// not an execution error.
type Blocked struct {
	Rule   string
	Reason string
}

func (b *Blocked) Error() string {
	return fmt.Sprintf("command blocked: %s", b.Reason)
}

// DefaultRules is the built-in deny-list, evaluated top to bottom. The
// executor hands commands to a shell, so chaining and substitution
// metacharacters are rejected here rather than sandboxed there.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: `rm\s+(-\S+\s+)*-\S*r\S*(\s+-\S+)*\s+/\S*`, Reason: "recursive delete of a root-level path"},
		{Pattern: `\bsudo\b|^\s*su\b`, Reason: "privilege escalation"},
		{Pattern: `:\(\)\s*\{.*\|.*&.*\}`, Reason: "fork bomb"},
		{Pattern: `\bdd\s+\S*if=/dev/`, Reason: "raw device read"},
		{Pattern: `/dev/(sd|hd|nvme|vd|disk)`, Reason: "raw disk access"},
		{Pattern: `\bmkfs\b`, Reason: "filesystem format"},
		{Pattern: ";", Reason: "command chaining"},
		{Pattern: `&&|\|\|`, Reason: "command chaining"},
		{Pattern: "`", Reason: "command substitution"},
		{Pattern: `\$\(`, Reason: "command substitution"},
	}
}

// Validator classifies command strings against an ordered rule set. It is
// stateless, deterministic, and does no I/O.
type Validator struct {
	rules []Rule
}

// NewValidator compiles the given rules; empty input falls back to
// DefaultRules. Patterns are matched case-insensitively.
func NewValidator(rules []Rule) (*Validator, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	compiled := make([]Rule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile deny rule %q: %w", r.Pattern, err)
		}
		compiled[i] = Rule{Pattern: r.Pattern, Reason: r.Reason, re: re}
	}
	return &Validator{rules: compiled}, nil
}

// Validate returns nil if the command is allowed, or a Blocked verdict with
// the first matching rule. Embedded newlines are treated as command
// separators: each segment is validated independently and any blocked
// segment blocks the whole request.
func (v *Validator) Validate(text string) *Blocked {
	if strings.TrimSpace(text) == "" {
		return &Blocked{Reason: "empty command"}
	}

	for _, segment := range strings.Split(text, "\n") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		for _, rule := range v.rules {
			if rule.re.MatchString(segment) {
				return &Blocked{Rule: rule.Pattern, Reason: rule.Reason}
			}
		}
	}
	return nil
}
