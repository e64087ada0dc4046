package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over ripple.refresh_tokens.
//
// Rotation safety comes from a SELECT ... FOR UPDATE lock on the presented
// record followed by a conditional revoke (compare-and-swap on revoked)
// inside one transaction; the losing side of a race observes zero affected
// rows and fails with ErrRotationConflict.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed refresh-token store.
// The pool is owned by the caller and is not closed here.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordColumns = `
	jti, token_hash, user_id, session_id, parent_jti,
	issued_at, last_used_at, expires_at, revoked`

// Create inserts a new refresh-token record.
func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ripple.refresh_tokens (
			jti, token_hash, user_id, session_id, parent_jti,
			issued_at, last_used_at, expires_at, revoked
		) VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, FALSE)
	`, rec.JTI, rec.TokenHash, rec.UserID, rec.SessionID, rec.ParentJTI, rec.IssuedAt, rec.ExpiresAt)
	return err
}

// GetByJTI loads a record by its jti.
func (s *PostgresStore) GetByJTI(ctx context.Context, jti string) (Record, error) {
	return scanRecord(s.pool.QueryRow(ctx, `
		SELECT`+recordColumns+`
		FROM ripple.refresh_tokens
		WHERE jti = $1
	`, jti))
}

// Rotate revokes the old record and inserts its child in one transaction.
func (s *PostgresStore) Rotate(ctx context.Context, now time.Time, oldJTI string, oldTokenHash string, child Record) (Record, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Record{}, err
	}
	// Rollback after commit is a no-op; this guarantees no partial rotation
	// survives a cancellation or failure on any path below.
	defer func() { _ = tx.Rollback(ctx) }()

	row, err := getByJTIForUpdateTx(ctx, tx, oldJTI)
	if err != nil {
		return Record{}, err
	}

	if row.Revoked {
		return Record{}, RevokedRecordError{SessionID: row.SessionID}
	}
	if row.Expired(now) {
		// Expired-but-not-yet-revoked authorizes nothing.
		return Record{}, ErrRefreshExpired
	}
	if !ctEqHex64(row.TokenHash, oldTokenHash) {
		return Record{}, ErrRefreshRejected
	}

	ct, err := tx.Exec(ctx, `
		UPDATE ripple.refresh_tokens
		SET revoked = TRUE,
		    last_used_at = $2
		WHERE jti = $1
		  AND revoked = FALSE
	`, oldJTI, now)
	if err != nil {
		return Record{}, err
	}
	if ct.RowsAffected() != 1 {
		return Record{}, ErrRotationConflict
	}

	parent := row.JTI
	child.UserID = row.UserID
	child.SessionID = row.SessionID
	child.ParentJTI = &parent

	_, err = tx.Exec(ctx, `
		INSERT INTO ripple.refresh_tokens (
			jti, token_hash, user_id, session_id, parent_jti,
			issued_at, last_used_at, expires_at, revoked
		) VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, FALSE)
	`, child.JTI, child.TokenHash, child.UserID, child.SessionID, child.ParentJTI, child.IssuedAt, child.ExpiresAt)
	if err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return child, nil
}

// RevokeSession revokes every record in a session chain (idempotent).
func (s *PostgresStore) RevokeSession(ctx context.Context, now time.Time, sessionID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE ripple.refresh_tokens
		SET revoked = TRUE,
		    last_used_at = COALESCE(last_used_at, $2)
		WHERE session_id = $1
		  AND revoked = FALSE
	`, sessionID, now)
	return err
}

// DeleteExpired removes records whose sliding deadline passed before cutoff.
func (s *PostgresStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM ripple.refresh_tokens
		WHERE expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func getByJTIForUpdateTx(ctx context.Context, tx pgx.Tx, jti string) (Record, error) {
	return scanRecord(tx.QueryRow(ctx, `
		SELECT`+recordColumns+`
		FROM ripple.refresh_tokens
		WHERE jti = $1
		FOR UPDATE
	`, jti))
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record

	err := row.Scan(
		&rec.JTI,
		&rec.TokenHash,
		&rec.UserID,
		&rec.SessionID,
		&rec.ParentJTI,
		&rec.IssuedAt,
		&rec.LastUsedAt,
		&rec.ExpiresAt,
		&rec.Revoked,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRefreshRejected
	}
	if err != nil {
		return Record{}, err
	}

	return rec, nil
}

// ctEqHex64 compares two expected 64-char hex digests in constant time.
// Rejecting on length keeps timing stable for malformed inputs.
func ctEqHex64(a, b string) bool {
	if len(a) != 64 || len(b) != 64 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
