package session

import "errors"

var (
	// ErrInvalidCredentials is returned by Login for an unknown handle or a
	// password mismatch. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is the codec-level failure for a malformed token or a
	// bad signature.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is the codec-level failure for a well-signed token
	// past its embedded expiry.
	ErrExpiredToken = errors.New("expired token")

	// ErrRefreshRejected is returned by Rotate and covers unknown, revoked
	// and malformed refresh tokens. Callers must not be able to tell which.
	ErrRefreshRejected = errors.New("refresh rejected")

	// ErrRefreshExpired is returned by Rotate when the sliding inactivity
	// window has lapsed.
	ErrRefreshExpired = errors.New("refresh expired")

	// ErrRotationConflict is returned to the loser of a concurrent rotation
	// race on the same jti. Clients should treat it exactly like
	// ErrRefreshRejected; retrying with the same token cannot succeed.
	ErrRotationConflict = errors.New("rotation conflict")

	// ErrUnauthorized is returned by Validate for any access-token failure:
	// decode error, wrong kind, unknown or deleted identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStoreUnavailable signals a transient persistence fault. Safe to
	// retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
