package session

import (
	"errors"
	"testing"
	"time"
)

func testCodecConfig() Config {
	cfg := DefaultConfig()
	cfg.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Leeway = 0
	return cfg
}

func TestHS256Codec_AccessRoundTrip(t *testing.T) {
	codec, err := NewHS256Codec(testCodecConfig())
	if err != nil {
		t.Fatalf("NewHS256Codec: %v", err)
	}

	now := time.Now().UTC()
	tok, exp, err := codec.IssueAccess("+919876543210", now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if !exp.After(now) {
		t.Fatalf("expected exp after now")
	}

	claims, err := codec.Decode(tok)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Subject != "+919876543210" {
		t.Fatalf("subject mismatch: %q", claims.Subject)
	}
	if claims.Kind != KindAccess {
		t.Fatalf("kind mismatch: %q", claims.Kind)
	}
	if claims.JTI != "" {
		t.Fatalf("access tokens carry no jti, got %q", claims.JTI)
	}
}

func TestHS256Codec_RefreshJTIUnique(t *testing.T) {
	codec, err := NewHS256Codec(testCodecConfig())
	if err != nil {
		t.Fatalf("NewHS256Codec: %v", err)
	}

	now := time.Now().UTC()
	tok1, jti1, _, err := codec.IssueRefresh("+919876543210", now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	tok2, jti2, _, err := codec.IssueRefresh("+919876543210", now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if jti1 == jti2 {
		t.Fatalf("expected unique jti per token")
	}
	if tok1 == tok2 {
		t.Fatalf("expected distinct token strings")
	}

	claims, err := codec.Decode(tok1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Kind != KindRefresh || claims.JTI != jti1 {
		t.Fatalf("claims mismatch: kind=%q jti=%q", claims.Kind, claims.JTI)
	}
}

func TestHS256Codec_TamperedToken(t *testing.T) {
	codec, err := NewHS256Codec(testCodecConfig())
	if err != nil {
		t.Fatalf("NewHS256Codec: %v", err)
	}

	tok, _, err := codec.IssueAccess("+919876543210", time.Now().UTC())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	tampered := tok[:len(tok)-2] + "xx"
	if _, err := codec.Decode(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestHS256Codec_WrongSecret(t *testing.T) {
	codecA, err := NewHS256Codec(testCodecConfig())
	if err != nil {
		t.Fatalf("NewHS256Codec: %v", err)
	}

	cfgB := testCodecConfig()
	cfgB.Secret = []byte("ffffffffffffffffffffffffffffffff")
	codecB, err := NewHS256Codec(cfgB)
	if err != nil {
		t.Fatalf("NewHS256Codec: %v", err)
	}

	tok, _, err := codecA.IssueAccess("+919876543210", time.Now().UTC())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := codecB.Decode(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestHS256Codec_WrongIssuer(t *testing.T) {
	cfgA := testCodecConfig()
	cfgA.Issuer = "ripple"
	codecA, err := NewHS256Codec(cfgA)
	if err != nil {
		t.Fatalf("NewHS256Codec: %v", err)
	}

	cfgB := testCodecConfig()
	cfgB.Issuer = "other"
	codecB, err := NewHS256Codec(cfgB)
	if err != nil {
		t.Fatalf("NewHS256Codec: %v", err)
	}

	tok, _, err := codecA.IssueAccess("+919876543210", time.Now().UTC())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := codecB.Decode(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for issuer mismatch, got %v", err)
	}
}

func TestHS256Codec_ExpiredToken(t *testing.T) {
	cfg := testCodecConfig()
	cfg.AccessTokenTTL = time.Minute
	codec, err := NewHS256Codec(cfg)
	if err != nil {
		t.Fatalf("NewHS256Codec: %v", err)
	}

	// Issue in the past so the embedded exp has already lapsed.
	tok, _, err := codec.IssueAccess("+919876543210", time.Now().UTC().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := codec.Decode(tok); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestHS256Codec_LeewayAcceptsRecentExpiry(t *testing.T) {
	cfg := testCodecConfig()
	cfg.AccessTokenTTL = time.Minute
	cfg.Leeway = 2 * time.Minute
	codec, err := NewHS256Codec(cfg)
	if err != nil {
		t.Fatalf("NewHS256Codec: %v", err)
	}

	tok, _, err := codec.IssueAccess("+919876543210", time.Now().UTC().Add(-90*time.Second))
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := codec.Decode(tok); err != nil {
		t.Fatalf("expected leeway to accept token, got %v", err)
	}
}

func TestNewHS256Codec_ShortSecret(t *testing.T) {
	cfg := testCodecConfig()
	cfg.Secret = []byte("too-short")
	if _, err := NewHS256Codec(cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
