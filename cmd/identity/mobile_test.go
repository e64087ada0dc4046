package identity

import (
	"errors"
	"testing"
)

func TestNormalizeMobile_E164PassThrough(t *testing.T) {
	got, err := NormalizeMobile("+919876543210", "IN")
	if err != nil {
		t.Fatalf("NormalizeMobile: %v", err)
	}
	if got != "+919876543210" {
		t.Fatalf("expected canonical form unchanged, got %q", got)
	}
}

func TestNormalizeMobile_NationalFormatUsesRegion(t *testing.T) {
	got, err := NormalizeMobile("98765 43210", "IN")
	if err != nil {
		t.Fatalf("NormalizeMobile: %v", err)
	}
	if got != "+919876543210" {
		t.Fatalf("expected region-resolved E.164, got %q", got)
	}
}

func TestNormalizeMobile_ForeignPrefixBeatsRegion(t *testing.T) {
	// An explicit country code wins over the parse region.
	got, err := NormalizeMobile("+14155552671", "IN")
	if err != nil {
		t.Fatalf("NormalizeMobile: %v", err)
	}
	if got != "+14155552671" {
		t.Fatalf("expected US number preserved, got %q", got)
	}
}

func TestNormalizeMobile_Invalid(t *testing.T) {
	cases := []struct {
		name, raw, region string
	}{
		{"empty", "", "IN"},
		{"letters", "not-a-number", "IN"},
		{"too short", "12345", "IN"},
		{"invalid for region", "+91123", "IN"},
	}
	for _, tc := range cases {
		if _, err := NormalizeMobile(tc.raw, tc.region); !errors.Is(err, ErrInvalidMobile) {
			t.Fatalf("%s: expected ErrInvalidMobile, got %v", tc.name, err)
		}
	}
}

func TestDefaultRegion(t *testing.T) {
	t.Setenv("RIPPLE_DEFAULT_REGION", "")
	if got := DefaultRegion(); got != "IN" {
		t.Fatalf("default region mismatch: %q", got)
	}

	t.Setenv("RIPPLE_DEFAULT_REGION", "us")
	if got := DefaultRegion(); got != "US" {
		t.Fatalf("expected uppercased override, got %q", got)
	}
}
