// Package identity owns Ripple's registered principals: users keyed by a
// normalized E.164 mobile handle, their credential hashes, and the
// lifecycle timestamps (last login/logout/activity) the session subsystem
// and the stale-account janitor depend on.
package identity
