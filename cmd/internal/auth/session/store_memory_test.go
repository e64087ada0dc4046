package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func mustCreate(t *testing.T, s *MemoryStore, rec Record) {
	t.Helper()
	if err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestMemoryStore_RotateFillsChainFields(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()

	root := Record{
		JTI:       "jti-root",
		TokenHash: HashTokenHex("root-token"),
		UserID:    "user-1",
		SessionID: "sess-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	mustCreate(t, s, root)

	child := Record{
		JTI:       "jti-child",
		TokenHash: HashTokenHex("child-token"),
		IssuedAt:  now.Add(time.Minute),
		ExpiresAt: now.Add(time.Hour + time.Minute),
	}

	stored, err := s.Rotate(context.Background(), now.Add(time.Minute), root.JTI, root.TokenHash, child)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if stored.UserID != "user-1" || stored.SessionID != "sess-1" {
		t.Fatalf("chain fields not inherited: %+v", stored)
	}
	if stored.ParentJTI == nil || *stored.ParentJTI != root.JTI {
		t.Fatalf("parent jti not set: %+v", stored.ParentJTI)
	}

	old, err := s.GetByJTI(context.Background(), root.JTI)
	if err != nil {
		t.Fatalf("GetByJTI: %v", err)
	}
	if !old.Revoked {
		t.Fatalf("parent must be revoked after rotation")
	}
	if old.LastUsedAt == nil {
		t.Fatalf("parent last_used_at must be stamped")
	}
}

func TestMemoryStore_RotateRevokedIsReplay(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()

	root := Record{
		JTI:       "jti-root",
		TokenHash: HashTokenHex("root-token"),
		UserID:    "user-1",
		SessionID: "sess-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	mustCreate(t, s, root)

	child := Record{JTI: "jti-c1", TokenHash: HashTokenHex("c1"), IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	if _, err := s.Rotate(context.Background(), now, root.JTI, root.TokenHash, child); err != nil {
		t.Fatalf("first Rotate: %v", err)
	}

	again := Record{JTI: "jti-c2", TokenHash: HashTokenHex("c2"), IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	_, err := s.Rotate(context.Background(), now, root.JTI, root.TokenHash, again)

	var revoked RevokedRecordError
	if !errors.As(err, &revoked) {
		t.Fatalf("expected RevokedRecordError, got %v", err)
	}
	if revoked.SessionID != "sess-1" {
		t.Fatalf("session id mismatch: %q", revoked.SessionID)
	}
	if !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("replay must unwrap to ErrRefreshRejected")
	}
}

func TestMemoryStore_RotateHashMismatch(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()

	mustCreate(t, s, Record{
		JTI:       "jti-root",
		TokenHash: HashTokenHex("real-token"),
		UserID:    "user-1",
		SessionID: "sess-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})

	child := Record{JTI: "jti-c1", TokenHash: HashTokenHex("c1"), IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	_, err := s.Rotate(context.Background(), now, "jti-root", HashTokenHex("forged-token"), child)
	if !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected, got %v", err)
	}
}

func TestMemoryStore_RotateExpiryBoundaryInclusive(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	deadline := now.Add(time.Hour)

	mustCreate(t, s, Record{
		JTI:       "jti-root",
		TokenHash: HashTokenHex("root-token"),
		UserID:    "user-1",
		SessionID: "sess-1",
		IssuedAt:  now,
		ExpiresAt: deadline,
	})

	child := Record{JTI: "jti-c1", TokenHash: HashTokenHex("c1"), IssuedAt: deadline, ExpiresAt: deadline.Add(time.Hour)}

	// Exactly at the deadline the record counts as expired.
	_, err := s.Rotate(context.Background(), deadline, "jti-root", HashTokenHex("root-token"), child)
	if !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired at boundary, got %v", err)
	}

	// One instant earlier it is still alive.
	_, err = s.Rotate(context.Background(), deadline.Add(-time.Nanosecond), "jti-root", HashTokenHex("root-token"), child)
	if err != nil {
		t.Fatalf("expected success before boundary, got %v", err)
	}
}

func TestMemoryStore_RevokeSessionIdempotent(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()

	for _, jti := range []string{"a", "b", "c"} {
		mustCreate(t, s, Record{
			JTI:       jti,
			TokenHash: HashTokenHex(jti),
			UserID:    "user-1",
			SessionID: "sess-1",
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
		})
	}

	if err := s.RevokeSession(context.Background(), now, "sess-1"); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if err := s.RevokeSession(context.Background(), now, "sess-1"); err != nil {
		t.Fatalf("RevokeSession (repeat): %v", err)
	}
	if err := s.RevokeSession(context.Background(), now, "no-such-session"); err != nil {
		t.Fatalf("RevokeSession (absent): %v", err)
	}

	for _, jti := range []string{"a", "b", "c"} {
		rec, err := s.GetByJTI(context.Background(), jti)
		if err != nil {
			t.Fatalf("GetByJTI(%s): %v", jti, err)
		}
		if !rec.Revoked {
			t.Fatalf("record %s not revoked", jti)
		}
	}
}

func TestMemoryStore_DeleteExpired(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()

	mustCreate(t, s, Record{JTI: "dead", TokenHash: "h", UserID: "u", SessionID: "s1", IssuedAt: now, ExpiresAt: now.Add(-time.Hour)})
	mustCreate(t, s, Record{JTI: "alive", TokenHash: "h", UserID: "u", SessionID: "s2", IssuedAt: now, ExpiresAt: now.Add(time.Hour)})

	n, err := s.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}

	if _, err := s.GetByJTI(context.Background(), "dead"); !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected purged record to be gone, got %v", err)
	}
	if _, err := s.GetByJTI(context.Background(), "alive"); err != nil {
		t.Fatalf("live record must survive: %v", err)
	}
}
