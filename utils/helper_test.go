package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"123.45", "123.45", true},
		{" 10 ", "10", true},
		{"", "0", true},
		{"abc", "0", false},
		{"12,5", "0", false},
		{"-50", "0", false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		want, _ := decimal.NewFromString(tc.want)
		if !got.Equal(want) || ok != tc.ok {
			t.Fatalf("ParseAmount(%q) = %s, %v, want %s, %v", tc.in, got, ok, want, tc.ok)
		}
	}
}

func TestRoundMoney(t *testing.T) {
	in, _ := decimal.NewFromString("7.005")
	if got := RoundMoney(in); got.String() != "7.01" {
		t.Fatalf("RoundMoney(7.005) = %s, want 7.01", got)
	}
	in, _ = decimal.NewFromString("7")
	if got := RoundMoney(in); !got.Equal(in) {
		t.Fatalf("RoundMoney(7) = %s, want 7", got)
	}
}

func TestSanitizeAmount(t *testing.T) {
	neg, _ := decimal.NewFromString("-3")
	if got := SanitizeAmount(neg); !got.IsZero() {
		t.Fatalf("SanitizeAmount(-3) = %s, want 0", got)
	}
	pos, _ := decimal.NewFromString("3")
	if got := SanitizeAmount(pos); !got.Equal(pos) {
		t.Fatalf("SanitizeAmount(3) = %s, want 3", got)
	}
}

func TestValidationErrorFormatting(t *testing.T) {
	err := NewValidationError(2, "rate", "must be numeric")
	if err.Error() != "line 2: rate must be numeric" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if !IsValidationError(err) {
		t.Fatal("IsValidationError should match")
	}
	headerErr := NewValidationError(-1, "vendor_id", "not found")
	if headerErr.Error() != "vendor_id not found" {
		t.Fatalf("header-level error message: %q", headerErr.Error())
	}
}
