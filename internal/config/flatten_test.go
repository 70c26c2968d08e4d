package config

import (
	"reflect"
	"testing"
)

func TestFlattenUnflatten(t *testing.T) {
	nested := map[string]any{
		"data_dir": "/tmp/telecode",
		"exec": map[string]any{
			"timeout_seconds": float64(180),
			"env_allowlist":   []any{"PATH", "HOME"},
		},
		"telegram": map[string]any{
			"token": "secret",
		},
	}

	flat := Flatten(nested)

	expected := map[string]any{
		"data_dir":             "/tmp/telecode",
		"exec.timeout_seconds": float64(180),
		"exec.env_allowlist":   []any{"PATH", "HOME"},
		"telegram.token":       "secret",
	}
	if !reflect.DeepEqual(flat, expected) {
		t.Errorf("flatten mismatch:\ngot  %v\nwant %v", flat, expected)
	}

	back := Unflatten(flat)
	if !reflect.DeepEqual(back, nested) {
		t.Errorf("unflatten mismatch:\ngot  %v\nwant %v", back, nested)
	}
}

func TestMaskSecrets(t *testing.T) {
	flat := map[string]any{
		"telegram.token": "1234567890:ABCDEF",
		"git.token":      "abc",
		"data_dir":       "/tmp",
	}
	masked := MaskSecrets(flat)

	if masked["telegram.token"] != "***CDEF" {
		t.Errorf("expected masked telegram token, got %v", masked["telegram.token"])
	}
	if masked["git.token"] != "***abc" {
		t.Errorf("expected short secret masked in full, got %v", masked["git.token"])
	}
	if masked["data_dir"] != "/tmp" {
		t.Errorf("expected non-secret untouched, got %v", masked["data_dir"])
	}
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"false", false},
		{"42", int64(42)},
		{"1.5", 1.5},
		{"hello", "hello"},
		{"1,2", []any{int64(1), int64(2)}},
	}
	for _, c := range cases {
		got := coerce(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("coerce(%q) = %v (%T), want %v (%T)", c.in, got, got, c.want, c.want)
		}
	}
}
