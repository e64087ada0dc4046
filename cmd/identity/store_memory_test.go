package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func createTestUser(t *testing.T, s *MemoryStore, mobile string, now time.Time) User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), CreateUserInput{
		Name:         "Test User",
		Mobile:       mobile,
		PasswordHash: "hash",
		Now:          now,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", mobile, err)
	}
	return u
}

func TestMemoryStore_CreateAndLookup(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()

	u := createTestUser(t, s, "+919876543210", now)
	if u.ID == "" {
		t.Fatalf("expected generated id")
	}

	byID, err := s.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	byMobile, err := s.GetByMobile(context.Background(), "+919876543210")
	if err != nil {
		t.Fatalf("GetByMobile: %v", err)
	}
	if byID.ID != byMobile.ID {
		t.Fatalf("lookups disagree: %q vs %q", byID.ID, byMobile.ID)
	}

	if _, err := s.GetByID(context.Background(), "missing"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_DuplicateMobile(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	createTestUser(t, s, "+919876543210", now)

	_, err := s.CreateUser(context.Background(), CreateUserInput{
		Name:         "Other",
		Mobile:       "+919876543210",
		PasswordHash: "hash",
		Now:          now,
	})
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	var opErr OpError
	if !errors.As(err, &opErr) || opErr.Op != "identity.CreateUser" {
		t.Fatalf("expected typed OpError, got %v", err)
	}
}

func TestMemoryStore_CreateUserInvalidInput(t *testing.T) {
	s := NewMemoryStore()

	cases := []CreateUserInput{
		{Name: "", Mobile: "+919876543210", PasswordHash: "hash"},
		{Name: "A", Mobile: "", PasswordHash: "hash"},
		{Name: "A", Mobile: "+919876543210", PasswordHash: ""},
	}
	for i, in := range cases {
		if _, err := s.CreateUser(context.Background(), in); !IsInvalidInput(err) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestMemoryStore_LifecycleStamps(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	u := createTestUser(t, s, "+919876543210", now)

	logout := now.Add(time.Hour)
	if err := s.MarkLogout(context.Background(), u.ID, logout); err != nil {
		t.Fatalf("MarkLogout: %v", err)
	}

	login := now.Add(2 * time.Hour)
	if err := s.MarkLogin(context.Background(), u.ID, login); err != nil {
		t.Fatalf("MarkLogin: %v", err)
	}

	got, err := s.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(login) {
		t.Fatalf("login stamp mismatch: %v", got.LastLoginAt)
	}
	if got.LastActivityAt == nil || !got.LastActivityAt.Equal(login) {
		t.Fatalf("login must bump activity: %v", got.LastActivityAt)
	}
	if got.LastLogoutAt != nil {
		t.Fatalf("login must clear the logout stamp")
	}

	if err := s.MarkActivity(context.Background(), u.ID, login.Add(time.Minute)); err != nil {
		t.Fatalf("MarkActivity: %v", err)
	}
	if err := s.MarkLogin(context.Background(), "missing", login); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
}

func TestMemoryStore_SoftDeleteStale(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC().Add(-365 * 24 * time.Hour)
	cutoff := base.Add(200 * 24 * time.Hour)

	// Logged out long ago, never came back: stale.
	stale := createTestUser(t, s, "+919876543210", base)
	if err := s.MarkLogin(context.Background(), stale.ID, base); err != nil {
		t.Fatalf("MarkLogin: %v", err)
	}
	if err := s.MarkLogout(context.Background(), stale.ID, base.Add(time.Hour)); err != nil {
		t.Fatalf("MarkLogout: %v", err)
	}

	// Logged out, then logged back in: protected.
	returned := createTestUser(t, s, "+919876543211", base)
	if err := s.MarkLogout(context.Background(), returned.ID, base.Add(time.Hour)); err != nil {
		t.Fatalf("MarkLogout: %v", err)
	}
	if err := s.MarkLogin(context.Background(), returned.ID, base.Add(2*time.Hour)); err != nil {
		t.Fatalf("MarkLogin: %v", err)
	}

	// Never logged out: protected.
	active := createTestUser(t, s, "+919876543212", base)
	if err := s.MarkLogin(context.Background(), active.ID, base); err != nil {
		t.Fatalf("MarkLogin: %v", err)
	}

	// Logged out recently, after the cutoff: protected.
	recent := createTestUser(t, s, "+919876543213", base)
	if err := s.MarkLogout(context.Background(), recent.ID, cutoff.Add(time.Hour)); err != nil {
		t.Fatalf("MarkLogout: %v", err)
	}

	n, err := s.SoftDeleteStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("SoftDeleteStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 account flagged, got %d", n)
	}

	got, err := s.GetByID(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Deleted {
		t.Fatalf("stale account not flagged")
	}

	// Repeat pass flags nothing new.
	n, err = s.SoftDeleteStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("SoftDeleteStale: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected idempotent pass, got %d", n)
	}
}

func TestMemoryStore_ListActiveHidesDeleted(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC().Add(-time.Hour)

	first := createTestUser(t, s, "+919876543210", base)
	second := createTestUser(t, s, "+919876543211", base.Add(time.Minute))

	// Soft delete the first via the janitor path.
	if err := s.MarkLogout(context.Background(), first.ID, base); err != nil {
		t.Fatalf("MarkLogout: %v", err)
	}
	if _, err := s.SoftDeleteStale(context.Background(), base.Add(time.Minute)); err != nil {
		t.Fatalf("SoftDeleteStale: %v", err)
	}

	users, err := s.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(users) != 1 || users[0].ID != second.ID {
		t.Fatalf("expected only the live user, got %+v", users)
	}
}
