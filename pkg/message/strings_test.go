package message

import (
	"errors"
	"strings"
	"testing"
)

func stringBoard(t *testing.T, key, value string) Reader {
	t.Helper()
	b := NewBoard()
	if err := Define(b.Manager(), key, value); err != nil {
		t.Fatal(err)
	}
	return b.Reader()
}

func TestStringPrepAndValid(t *testing.T) {
	r := stringBoard(t, "mode", "  Fast  ")
	got, err := String(r, "mode", WithPrep(strings.TrimSpace), WithPrep(strings.ToLower))
	if err != nil || got != "fast" {
		t.Fatalf("preps: got %q, %v", got, err)
	}

	_, err = String(r, "mode",
		WithPrep(strings.TrimSpace),
		WithValid(func(s string) bool { return s == "slow" }))
	if !errors.Is(err, ErrValue) {
		t.Fatalf("validator reject: got %v, want ErrValue", err)
	}
}

func TestStringToInt(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0x10", 16, false},
		{"0o17", 15, false},
		{"-7", -7, false},
		{"4.2", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		r := stringBoard(t, "n", tc.raw)
		got, err := StringToInt(r, "n")
		if tc.wantErr {
			if !errors.Is(err, ErrValue) {
				t.Fatalf("%q: got %v, want ErrValue", tc.raw, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %v, %v", tc.raw, got, err)
		}
	}
}

func TestStringToFloat(t *testing.T) {
	r := stringBoard(t, "rate", "0.25")
	got, err := StringToFloat(r, "rate")
	if err != nil || got != 0.25 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestStringToBool(t *testing.T) {
	boolOf := func(raw string, opts ...StringOpt) (bool, error) {
		b := NewBoard()
		if err := Define(b.Manager(), "flag", raw); err != nil {
			t.Fatal(err)
		}
		return StringToBool(b.Reader(), "flag", opts...)
	}

	// No sets: non-empty is true.
	if got, err := boolOf("anything"); err != nil || !got {
		t.Fatalf("default non-empty: got %v, %v", got, err)
	}
	if got, err := boolOf(""); err != nil || got {
		t.Fatalf("default empty: got %v, %v", got, err)
	}

	// Only a true set: membership decides.
	if got, err := boolOf("yes", WithTrueStrings("yes", "on")); err != nil || !got {
		t.Fatalf("true set member: got %v, %v", got, err)
	}
	if got, err := boolOf("maybe", WithTrueStrings("yes", "on")); err != nil || got {
		t.Fatalf("true set outsider: got %v, %v", got, err)
	}

	// Only a false set: non-membership is true.
	if got, err := boolOf("no", WithFalseStrings("no", "off")); err != nil || got {
		t.Fatalf("false set member: got %v, %v", got, err)
	}

	// Both sets: outsiders are an error.
	_, err := boolOf("maybe", WithTrueStrings("yes"), WithFalseStrings("no"))
	if !errors.Is(err, ErrValue) {
		t.Fatalf("both sets outsider: got %v, want ErrValue", err)
	}

	// Preps apply before membership.
	got, err := boolOf(" YES ",
		WithPrep(strings.TrimSpace), WithPrep(strings.ToLower),
		WithTrueStrings("yes"))
	if err != nil || !got {
		t.Fatalf("prepped membership: got %v, %v", got, err)
	}
}
