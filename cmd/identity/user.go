package identity

import (
	"context"
	"time"
)

// User is Ripple's canonical security principal. Mobile is the unique
// normalized E.164 handle; uniqueness is enforced at the store level.
type User struct {
	ID     string
	Name   string
	Mobile string

	Age    *int
	Gender *string

	PasswordHash string

	CreatedAt      time.Time
	LastLoginAt    *time.Time
	LastLogoutAt   *time.Time
	LastActivityAt *time.Time

	// Deleted is the soft-delete flag. Deleted users cannot authenticate
	// and are hidden from listings; the row survives for message history.
	Deleted bool
}

// CreateUserInput describes a registration request. Mobile must already be
// normalized (NormalizeMobile) and PasswordHash already computed.
type CreateUserInput struct {
	Name         string
	Mobile       string
	Age          *int
	Gender       *string
	PasswordHash string
	Now          time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	GetByID(ctx context.Context, userID string) (User, error)
	GetByMobile(ctx context.Context, mobile string) (User, error)

	// ListActive returns all non-deleted users (contact picker).
	ListActive(ctx context.Context) ([]User, error)

	// MarkLogin sets last_login_at and last_activity_at, clears
	// last_logout_at.
	MarkLogin(ctx context.Context, userID string, now time.Time) error
	// MarkLogout stamps last_logout_at.
	MarkLogout(ctx context.Context, userID string, now time.Time) error
	// MarkActivity bumps last_activity_at.
	MarkActivity(ctx context.Context, userID string, now time.Time) error

	// SoftDeleteStale flags accounts whose last logout predates cutoff with
	// no later login. Returns the number of accounts flagged.
	SoftDeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}
