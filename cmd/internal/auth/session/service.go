package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ripple/cmd/identity/ids"

	"github.com/jackc/pgx/v5/pgconn"
)

// Principal is the resolved identity behind a validated token.
type Principal struct {
	ID      string
	Handle  string
	Deleted bool
}

// Credential is a principal plus its stored password hash, used only
// during login.
type Credential struct {
	Principal
	PasswordHash string
}

// ErrUnknownPrincipal is returned by IdentityDirectory implementations when
// no principal matches the handle. The Service never surfaces it directly.
var ErrUnknownPrincipal = errors.New("unknown principal")

// IdentityDirectory is the narrow view of the identity store the session
// subsystem needs: handle resolution and lifecycle timestamp stamps.
type IdentityDirectory interface {
	CredentialByHandle(ctx context.Context, handle string) (Credential, error)
	PrincipalByHandle(ctx context.Context, handle string) (Principal, error)

	// MarkLogin sets last_login_at and last_activity_at and clears
	// last_logout_at.
	MarkLogin(ctx context.Context, userID string, now time.Time) error
	// MarkLogout stamps last_logout_at.
	MarkLogout(ctx context.Context, userID string, now time.Time) error
	// MarkActivity bumps last_activity_at.
	MarkActivity(ctx context.Context, userID string, now time.Time) error
}

// CredentialVerifier hashes and verifies passwords. Hashing is delegated to
// a dedicated library; the session subsystem never sees hash internals.
type CredentialVerifier interface {
	Hash(password string) (string, error)
	Verify(encodedHash, password string) (bool, error)
}

// Issued is the result of login or rotation: a fresh token pair bound to a
// session chain.
type Issued struct {
	SessionID    string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// Service implements the high-level session operations for Ripple: login,
// refresh rotation, access validation and logout. It is the only component
// with business rules; codec and store stay mechanism-only.
type Service struct {
	cfg      Config
	codec    Codec
	store    Store
	dir      IdentityDirectory
	verifier CredentialVerifier
	log      *slog.Logger

	// dummyHash absorbs password verification time when the handle is
	// unknown, so login failures stay indistinguishable.
	dummyHash string
}

// NewService constructs a Service from its collaborators.
func NewService(cfg Config, store Store, dir IdentityDirectory, codec Codec, verifier CredentialVerifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		cfg:      cfg,
		codec:    codec,
		store:    store,
		dir:      dir,
		verifier: verifier,
		log:      log,
	}

	if hash, err := verifier.Hash("ripple-dummy-timing-password"); err == nil {
		s.dummyHash = hash
	}

	return s
}

// Login verifies credentials and opens a new session chain.
//
// Unknown handle, deleted account and wrong password all fail with the same
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, now time.Time, handle, password string) (Issued, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || password == "" {
		return Issued{}, ErrInvalidCredentials
	}

	cred, err := s.credentialByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrUnknownPrincipal) {
			if s.dummyHash != "" {
				_, _ = s.verifier.Verify(s.dummyHash, password)
			}
			return Issued{}, ErrInvalidCredentials
		}
		return Issued{}, err
	}
	if cred.Deleted {
		if s.dummyHash != "" {
			_, _ = s.verifier.Verify(s.dummyHash, password)
		}
		return Issued{}, ErrInvalidCredentials
	}

	ok, err := s.verifier.Verify(cred.PasswordHash, password)
	if err != nil || !ok {
		return Issued{}, ErrInvalidCredentials
	}

	sessionID, err := ids.NewULID(now)
	if err != nil {
		return Issued{}, err
	}

	refreshToken, jti, refreshExp, err := s.codec.IssueRefresh(cred.Handle, now)
	if err != nil {
		return Issued{}, err
	}

	rec := Record{
		JTI:       jti,
		TokenHash: HashTokenHex(refreshToken),
		UserID:    cred.ID,
		SessionID: sessionID,
		IssuedAt:  now,
		ExpiresAt: refreshExp,
	}
	if err := s.createRecord(ctx, rec); err != nil {
		return Issued{}, err
	}

	accessToken, accessExp, err := s.codec.IssueAccess(cred.Handle, now)
	if err != nil {
		return Issued{}, err
	}

	// Timestamp stamps must not undo a successful login.
	if err := s.markLogin(ctx, cred.ID, now); err != nil {
		s.log.Error("session.login.stamp.fail", "err", err, "user_id", cred.ID)
	}

	return Issued{
		SessionID:    sessionID,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
	}, nil
}

// Rotate exchanges a refresh token for a new pair: the presented record is
// revoked and exactly one child is appended to the chain, with the sliding
// window reset to now + window. The old pair is never returned again.
func (s *Service) Rotate(ctx context.Context, now time.Time, refreshToken string) (Issued, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	// Sanity bounds against pathological inputs.
	if refreshToken == "" || len(refreshToken) > 4096 {
		return Issued{}, ErrRefreshRejected
	}

	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		// Codec-level failures are not distinguishable to the caller.
		return Issued{}, ErrRefreshRejected
	}
	if claims.Kind != KindRefresh {
		return Issued{}, ErrRefreshRejected
	}

	newToken, newJTI, newExp, err := s.codec.IssueRefresh(claims.Subject, now)
	if err != nil {
		return Issued{}, err
	}

	child := Record{
		JTI:       newJTI,
		TokenHash: HashTokenHex(newToken),
		IssuedAt:  now,
		ExpiresAt: newExp,
	}

	stored, err := s.rotateRecord(ctx, now, claims.JTI, HashTokenHex(refreshToken), child)
	if err != nil {
		var revoked RevokedRecordError
		if errors.As(err, &revoked) {
			// Replay: a rotated token came back. Optionally burn the whole
			// chain before rejecting.
			s.log.Warn("session.rotate.replay", "session_id", revoked.SessionID, "jti", claims.JTI)
			if s.cfg.RevokeChainOnReuse {
				if rerr := s.revokeSession(ctx, now, revoked.SessionID); rerr != nil {
					s.log.Error("session.rotate.replay.revoke.fail", "err", rerr, "session_id", revoked.SessionID)
				}
			}
			return Issued{}, ErrRefreshRejected
		}
		return Issued{}, err
	}

	accessToken, accessExp, err := s.codec.IssueAccess(claims.Subject, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID:    stored.SessionID,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: newToken,
		RefreshExp:   newExp,
	}, nil
}

// Validate checks an access token and resolves its principal. Every failure
// mode collapses into ErrUnauthorized; only infrastructure faults surface
// as ErrStoreUnavailable.
func (s *Service) Validate(ctx context.Context, now time.Time, accessToken string) (Principal, error) {
	claims, err := s.codec.Decode(strings.TrimSpace(accessToken))
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	if claims.Kind != KindAccess {
		return Principal{}, ErrUnauthorized
	}

	p, err := s.principalByHandle(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUnknownPrincipal) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	if p.Deleted {
		return Principal{}, ErrUnauthorized
	}

	s.bumpActivity(p.ID, now)

	return p, nil
}

// Logout revokes the whole session chain behind the presented refresh
// token. It is idempotent and never fails observably: an unknown or
// already-dead token still returns success, so logout cannot be used as a
// token-validity oracle.
func (s *Service) Logout(ctx context.Context, now time.Time, refreshToken string) {
	claims, err := s.codec.Decode(strings.TrimSpace(refreshToken))
	if err != nil || claims.Kind != KindRefresh {
		return
	}

	sctx, cancel := s.storeCtx(ctx)
	rec, err := s.store.GetByJTI(sctx, claims.JTI)
	cancel()
	if err != nil {
		if !errors.Is(err, ErrRefreshRejected) {
			s.log.Error("session.logout.lookup.fail", "err", err)
		}
		return
	}

	// Revoke every record in the chain, not just the presented one: a stale
	// token must still kill the whole device session.
	if err := s.revokeSession(ctx, now, rec.SessionID); err != nil {
		s.log.Error("session.logout.revoke.fail", "err", err, "session_id", rec.SessionID)
		return
	}

	if err := s.markLogout(ctx, rec.UserID, now); err != nil {
		s.log.Error("session.logout.stamp.fail", "err", err, "user_id", rec.UserID)
	}
}

// PurgeExpired removes refresh records whose sliding deadline passed before
// cutoff. Called by the janitor.
func (s *Service) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.store.DeleteExpired(sctx, cutoff)
	if err != nil {
		return 0, s.translate(err)
	}
	return n, nil
}

// ---- bounded store access ----

func (s *Service) storeCtx(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.StoreTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

func (s *Service) createRecord(ctx context.Context, rec Record) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.Create(sctx, rec); err != nil {
		return s.translate(err)
	}
	return nil
}

func (s *Service) rotateRecord(ctx context.Context, now time.Time, oldJTI, oldHash string, child Record) (Record, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	stored, err := s.store.Rotate(sctx, now, oldJTI, oldHash, child)
	if err != nil {
		return Record{}, s.translate(err)
	}
	return stored, nil
}

func (s *Service) revokeSession(ctx context.Context, now time.Time, sessionID string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.RevokeSession(sctx, now, sessionID); err != nil {
		return s.translate(err)
	}
	return nil
}

func (s *Service) credentialByHandle(ctx context.Context, handle string) (Credential, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	cred, err := s.dir.CredentialByHandle(sctx, handle)
	if err != nil {
		return Credential{}, s.translate(err)
	}
	return cred, nil
}

func (s *Service) principalByHandle(ctx context.Context, handle string) (Principal, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	p, err := s.dir.PrincipalByHandle(sctx, handle)
	if err != nil {
		return Principal{}, s.translate(err)
	}
	return p, nil
}

func (s *Service) markLogin(ctx context.Context, userID string, now time.Time) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.dir.MarkLogin(sctx, userID, now)
}

func (s *Service) markLogout(ctx context.Context, userID string, now time.Time) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.dir.MarkLogout(sctx, userID, now)
}

// bumpActivity is fire-and-forget: it runs detached from the caller's
// context so a slow or failing write can never affect the validate path.
func (s *Service) bumpActivity(userID string, now time.Time) {
	go func() {
		ctx, cancel := s.storeCtx(context.Background())
		defer cancel()

		if err := s.dir.MarkActivity(ctx, userID, now); err != nil {
			s.log.Debug("session.validate.activity.fail", "err", err, "user_id", userID)
		}
	}()
}

// translate maps infrastructure faults to ErrStoreUnavailable while passing
// the session taxonomy through untouched. Raw store errors never escape.
func (s *Service) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRefreshRejected),
		errors.Is(err, ErrRefreshExpired),
		errors.Is(err, ErrRotationConflict),
		errors.Is(err, ErrUnknownPrincipal):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrStoreUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		s.log.Error("session.store.fail", "code", pgErr.Code, "err", err)
	} else {
		s.log.Error("session.store.fail", "err", err)
	}
	return ErrStoreUnavailable
}
