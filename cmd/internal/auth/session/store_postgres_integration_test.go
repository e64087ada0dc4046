package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ripple/cmd/identity/ids"
)

// Integration tests run only when RIPPLE_TEST_DATABASE_URL is set and the
// schema has been migrated (go run ./cmd/migrate).

func mustIntegrationPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("RIPPLE_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("RIPPLE_TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func mustSeedUser(ctx context.Context, t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	now := time.Now().UTC()
	userID, err := ids.NewULID(now)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}
	mobile := fmt.Sprintf("+91%010d", now.UnixNano()%1e10)

	_, err = pool.Exec(ctx, `
		INSERT INTO ripple.users (id, name, mobile, password_hash, created_at)
		VALUES ($1, 'Integration User', $2, 'x', $3)
	`, userID, mobile, now)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM ripple.refresh_tokens WHERE user_id = $1`, userID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM ripple.users WHERE id = $1`, userID)
	})
	return userID
}

func TestPostgresStore_RotateLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := mustIntegrationPool(ctx, t)
	store := NewPostgresStore(pool)

	userID := mustSeedUser(ctx, t, pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	sessionID, err := ids.NewULID(now)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}

	root := Record{
		JTI:       "it-" + sessionID + "-root",
		TokenHash: HashTokenHex("root-token"),
		UserID:    userID,
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := store.Create(ctx, root); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.GetByJTI(ctx, root.JTI)
	if err != nil {
		t.Fatalf("GetByJTI: %v", err)
	}
	if got.UserID != userID || got.Revoked {
		t.Fatalf("unexpected record: %+v", got)
	}

	child := Record{
		JTI:       "it-" + sessionID + "-child",
		TokenHash: HashTokenHex("child-token"),
		IssuedAt:  now.Add(time.Minute),
		ExpiresAt: now.Add(time.Hour + time.Minute),
	}
	stored, err := store.Rotate(ctx, now.Add(time.Minute), root.JTI, root.TokenHash, child)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if stored.SessionID != sessionID || stored.ParentJTI == nil || *stored.ParentJTI != root.JTI {
		t.Fatalf("chain fields mismatch: %+v", stored)
	}

	// Replay of the rotated record.
	again := Record{JTI: "it-" + sessionID + "-x", TokenHash: HashTokenHex("x"), IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	_, err = store.Rotate(ctx, now.Add(2*time.Minute), root.JTI, root.TokenHash, again)
	var revoked RevokedRecordError
	if !errors.As(err, &revoked) || revoked.SessionID != sessionID {
		t.Fatalf("expected RevokedRecordError for replay, got %v", err)
	}

	if err := store.RevokeSession(ctx, now.Add(3*time.Minute), sessionID); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	latest, err := store.GetByJTI(ctx, child.JTI)
	if err != nil {
		t.Fatalf("GetByJTI: %v", err)
	}
	if !latest.Revoked {
		t.Fatalf("chain revocation missed the child record")
	}
}

func TestPostgresStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	pool := mustIntegrationPool(ctx, t)
	store := NewPostgresStore(pool)

	userID := mustSeedUser(ctx, t, pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	sessionID, err := ids.NewULID(now)
	if err != nil {
		t.Fatalf("NewULID: %v", err)
	}

	dead := Record{
		JTI:       "it-" + sessionID + "-dead",
		TokenHash: HashTokenHex("dead"),
		UserID:    userID,
		SessionID: sessionID,
		IssuedAt:  now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	alive := Record{
		JTI:       "it-" + sessionID + "-alive",
		TokenHash: HashTokenHex("alive"),
		UserID:    userID,
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := store.Create(ctx, dead); err != nil {
		t.Fatalf("Create dead: %v", err)
	}
	if err := store.Create(ctx, alive); err != nil {
		t.Fatalf("Create alive: %v", err)
	}

	n, err := store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n < 1 {
		t.Fatalf("expected at least the seeded dead record purged, got %d", n)
	}

	if _, err := store.GetByJTI(ctx, dead.JTI); !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("dead record must be gone, got %v", err)
	}
	if _, err := store.GetByJTI(ctx, alive.JTI); err != nil {
		t.Fatalf("live record must survive: %v", err)
	}
}
