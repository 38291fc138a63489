package dedupe

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/mailspend/internal/domain"
)

var testDate = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func TestBuildHashDeterministic(t *testing.T) {
	a := BuildHash("u1", "e1", "Swiggy Bangalore", 450.50, "INR", testDate, domain.TypeDebited, domain.ModeUPI)
	b := BuildHash("u1", "e1", "Swiggy Bangalore", 450.50, "INR", testDate, domain.TypeDebited, domain.ModeUPI)
	if a != b {
		t.Errorf("same inputs produced different hashes: %s vs %s", a, b)
	}
}

func TestBuildHashNormalization(t *testing.T) {
	base := BuildHash("u1", "e1", "Swiggy Bangalore", 450.50, "INR", testDate, domain.TypeDebited, domain.ModeUPI)

	tests := []struct {
		name     string
		merchant string
		amount   float64
		currency string
	}{
		{"merchant case", "SWIGGY BANGALORE", 450.50, "INR"},
		{"merchant whitespace", "  Swiggy   Bangalore  ", 450.50, "INR"},
		{"merchant trailing punctuation", "Swiggy Bangalore.", 450.50, "INR"},
		{"amount formatting", "", 450.500000001, "INR"},
		{"currency case", "Swiggy Bangalore", 450.50, "inr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merchant := tt.merchant
			if merchant == "" {
				merchant = "Swiggy Bangalore"
			}
			got := BuildHash("u1", "e1", merchant, tt.amount, tt.currency, testDate, domain.TypeDebited, domain.ModeUPI)
			if got != base {
				t.Errorf("normalization-only change altered hash: %s", tt.name)
			}
		})
	}
}

func TestBuildHashSensitivity(t *testing.T) {
	base := BuildHash("u1", "e1", "Swiggy", 450.50, "INR", testDate, domain.TypeDebited, domain.ModeUPI)

	tests := []struct {
		name string
		got  string
	}{
		{"amount", BuildHash("u1", "e1", "Swiggy", 451.00, "INR", testDate, domain.TypeDebited, domain.ModeUPI)},
		{"date", BuildHash("u1", "e1", "Swiggy", 450.50, "INR", testDate.AddDate(0, 0, 1), domain.TypeDebited, domain.ModeUPI)},
		{"type", BuildHash("u1", "e1", "Swiggy", 450.50, "INR", testDate, domain.TypeCredited, domain.ModeUPI)},
		{"mode", BuildHash("u1", "e1", "Swiggy", 450.50, "INR", testDate, domain.TypeDebited, domain.ModeIMPS)},
		{"user", BuildHash("u2", "e1", "Swiggy", 450.50, "INR", testDate, domain.TypeDebited, domain.ModeUPI)},
		{"source email", BuildHash("u1", "e2", "Swiggy", 450.50, "INR", testDate, domain.TypeDebited, domain.ModeUPI)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got == base {
				t.Errorf("changing %s did not change the hash", tt.name)
			}
		})
	}
}

var uuidShape = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestDeriveID(t *testing.T) {
	hash := BuildHash("u1", "e1", "Swiggy", 450.50, "INR", testDate, domain.TypeDebited, domain.ModeUPI)

	id := DeriveID(hash)
	if !uuidShape.MatchString(id) {
		t.Errorf("DeriveID(%q) = %q, not a v4-shaped UUID", hash, id)
	}

	if again := DeriveID(hash); again != id {
		t.Errorf("DeriveID not stable: %q vs %q", id, again)
	}

	// Identity must follow the hash, not randomness.
	other := DeriveID(BuildHash("u1", "e1", "Swiggy", 999.99, "INR", testDate, domain.TypeDebited, domain.ModeUPI))
	if other == id {
		t.Errorf("distinct hashes derived the same id %q", id)
	}
}

func TestDeriveIDShortHash(t *testing.T) {
	id := DeriveID("abc")
	if !uuidShape.MatchString(id) {
		t.Errorf("DeriveID short input = %q, not UUID shaped", id)
	}
	if !strings.HasPrefix(id, "abc00000") {
		t.Errorf("short hash not zero padded: %q", id)
	}
}

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Amazon  Pay  ", "amazon pay"},
		{"SWIGGY.", "swiggy"},
		{"Uber-", "uber"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeMerchant(tt.in); got != tt.want {
				t.Errorf("NormalizeMerchant(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
