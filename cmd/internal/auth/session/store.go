package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Record mirrors one ripple.refresh_tokens row. Records form a chain per
// session via ParentJTI; at most one record per session is active
// (non-revoked) at any time.
type Record struct {
	JTI       string
	TokenHash string // SHA-256 hex of the token string; plaintext is never stored
	UserID    string
	SessionID string
	ParentJTI *string

	IssuedAt   time.Time
	LastUsedAt *time.Time
	ExpiresAt  time.Time // sliding deadline, moved forward on every rotation
	Revoked    bool
}

// Expired reports whether the sliding window has lapsed at now.
// The boundary is inclusive: expires_at == now counts as expired.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// RevokedRecordError is returned by Rotate when the presented jti resolves
// to an already-revoked record. It carries the session id so the caller can
// apply the replay policy (chain revocation).
type RevokedRecordError struct {
	SessionID string
}

func (e RevokedRecordError) Error() string { return "refresh record revoked" }

// Unwrap ties replay presentation to the indistinguishable rejection.
func (e RevokedRecordError) Unwrap() error { return ErrRefreshRejected }

// Store abstracts persistence for refresh-token records.
//
// Rotate is the one operation with hard atomicity requirements: revoking
// the old record and creating its child must be a single unit, and two
// concurrent rotations on the same jti must produce exactly one winner.
type Store interface {
	// Create inserts a new record (login; root of a chain).
	Create(ctx context.Context, rec Record) error

	// GetByJTI loads a record. Returns ErrRefreshRejected when absent.
	GetByJTI(ctx context.Context, jti string) (Record, error)

	// Rotate atomically revokes the record identified by oldJTI and inserts
	// child in its place. The child is passed with jti/token-hash/timestamps
	// filled in; user id, session id and parent_jti are completed from the
	// locked parent row, and the stored child is returned. Failure kinds:
	//   - ErrRefreshRejected: jti unknown, or token hash mismatch
	//   - RevokedRecordError: record already revoked (possible replay)
	//   - ErrRefreshExpired: sliding window lapsed (even if not revoked)
	//   - ErrRotationConflict: a concurrent rotation won the race
	// On any failure no partial state is persisted.
	Rotate(ctx context.Context, now time.Time, oldJTI string, oldTokenHash string, child Record) (Record, error)

	// RevokeSession revokes every record sharing sessionID (idempotent).
	RevokeSession(ctx context.Context, now time.Time, sessionID string) error

	// DeleteExpired removes records whose expires_at is before cutoff.
	// Used by the janitor; returns the number of rows removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// HashTokenHex returns the SHA-256 hex digest stored in place of the token
// string.
func HashTokenHex(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
