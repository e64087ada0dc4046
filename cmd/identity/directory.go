package identity

import (
	"context"
	"errors"
	"time"

	"ripple/cmd/internal/auth/session"
)

// Directory adapts a Store to the session subsystem's identity view. The
// session package stays ignorant of the full user schema; it only sees
// principals and lifecycle stamps.
type Directory struct {
	store Store
}

// NewDirectory wraps store for use by the session service.
func NewDirectory(store Store) *Directory {
	return &Directory{store: store}
}

var _ session.IdentityDirectory = (*Directory)(nil)

func (d *Directory) CredentialByHandle(ctx context.Context, handle string) (session.Credential, error) {
	u, err := d.store.GetByMobile(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return session.Credential{}, session.ErrUnknownPrincipal
		}
		return session.Credential{}, err
	}
	return session.Credential{
		Principal:    principalOf(u),
		PasswordHash: u.PasswordHash,
	}, nil
}

func (d *Directory) PrincipalByHandle(ctx context.Context, handle string) (session.Principal, error) {
	u, err := d.store.GetByMobile(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return session.Principal{}, session.ErrUnknownPrincipal
		}
		return session.Principal{}, err
	}
	return principalOf(u), nil
}

func (d *Directory) MarkLogin(ctx context.Context, userID string, now time.Time) error {
	return d.store.MarkLogin(ctx, userID, now)
}

func (d *Directory) MarkLogout(ctx context.Context, userID string, now time.Time) error {
	return d.store.MarkLogout(ctx, userID, now)
}

func (d *Directory) MarkActivity(ctx context.Context, userID string, now time.Time) error {
	return d.store.MarkActivity(ctx, userID, now)
}

func principalOf(u User) session.Principal {
	return session.Principal{
		ID:      u.ID,
		Handle:  u.Mobile,
		Deleted: u.Deleted,
	}
}
