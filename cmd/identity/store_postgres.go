package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"ripple/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over ripple.users.
//
// The pgx pool is owned by the caller; this store never closes it. Unique
// violations on the mobile handle map to ErrConflict.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed identity store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, OpError{Op: "identity.NewPostgresStore", Kind: ErrInvalidInput, Msg: "nil pool"}
	}
	return &PostgresStore{pool: pool}, nil
}

const userColumns = `
	id, name, mobile, age, gender, password_hash,
	created_at, last_login_at, last_logout_at, last_activity_at, is_deleted`

// CreateUser inserts a new user row.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Mobile) == "" || in.PasswordHash == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "name, mobile and password hash are required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	userID, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ripple.users (
			id, name, mobile, age, gender, password_hash,
			created_at, last_login_at, last_logout_at, last_activity_at, is_deleted
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL, NULL, FALSE)
	`, userID, name, in.Mobile, in.Age, in.Gender, in.PasswordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, OpError{Op: op, Kind: ErrConflict, Msg: "mobile"}
		}
		return User{}, err
	}

	return User{
		ID:           userID,
		Name:         name,
		Mobile:       in.Mobile,
		Age:          in.Age,
		Gender:       in.Gender,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
	}, nil
}

// GetByID loads a user by id.
func (s *PostgresStore) GetByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM ripple.users
		WHERE id = $1
	`, userID))
}

// GetByMobile loads a user by its normalized mobile handle.
func (s *PostgresStore) GetByMobile(ctx context.Context, mobile string) (User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM ripple.users
		WHERE mobile = $1
	`, mobile))
}

// ListActive returns all non-deleted users, newest first.
func (s *PostgresStore) ListActive(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+userColumns+`
		FROM ripple.users
		WHERE is_deleted = FALSE
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// MarkLogin stamps a successful login.
func (s *PostgresStore) MarkLogin(ctx context.Context, userID string, now time.Time) error {
	return s.stamp(ctx, userID, `
		UPDATE ripple.users
		SET last_login_at = $2,
		    last_activity_at = $2,
		    last_logout_at = NULL
		WHERE id = $1
	`, now)
}

// MarkLogout stamps a logout.
func (s *PostgresStore) MarkLogout(ctx context.Context, userID string, now time.Time) error {
	return s.stamp(ctx, userID, `
		UPDATE ripple.users
		SET last_logout_at = $2
		WHERE id = $1
	`, now)
}

// MarkActivity bumps last_activity_at.
func (s *PostgresStore) MarkActivity(ctx context.Context, userID string, now time.Time) error {
	return s.stamp(ctx, userID, `
		UPDATE ripple.users
		SET last_activity_at = $2
		WHERE id = $1
	`, now)
}

// SoftDeleteStale flags accounts that logged out before cutoff and never
// logged back in.
func (s *PostgresStore) SoftDeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		UPDATE ripple.users
		SET is_deleted = TRUE
		WHERE is_deleted = FALSE
		  AND last_logout_at IS NOT NULL
		  AND (last_login_at IS NULL OR last_login_at <= last_logout_at)
		  AND last_logout_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *PostgresStore) stamp(ctx context.Context, userID, query string, now time.Time) error {
	ct, err := s.pool.Exec(ctx, query, userID, now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Mobile,
		&u.Age,
		&u.Gender,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.LastLoginAt,
		&u.LastLogoutAt,
		&u.LastActivityAt,
		&u.Deleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}

	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}
