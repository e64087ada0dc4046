// Package session implements the Ripple session and token lifecycle.
//
// A session is a chain of refresh-token records linked by parent_jti:
// login creates the root record, every refresh atomically revokes the
// presented record and appends exactly one child, and logout revokes the
// whole chain. Access tokens are short-lived, self-contained and never
// individually revocable; refresh tokens are single-use and carry a jti
// correlating to a persisted record with a sliding expiry window.
package session
