package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls the token signing secret, access-token lifetime, the sliding
// refresh window, store-call timeouts and the replay-response policy.
//
// All values are environment-driven so production deployments can tune
// security parameters without code changes. The secret has no default.
type Config struct {
	// Issuer is the value set in the "iss" claim of issued tokens.
	Issuer string

	// Secret is the shared HMAC signing secret for access and refresh
	// tokens. Required; minimum 32 bytes.
	Secret []byte

	// AccessTokenTTL is the fixed lifetime of access tokens. No sliding
	// extension applies to access tokens.
	AccessTokenTTL time.Duration

	// RefreshWindow is the sliding inactivity window for refresh tokens.
	// Every successful rotation resets the chain deadline to now + window.
	RefreshWindow time.Duration

	// StoreTimeout bounds every persistence call made by the Service.
	// Exceeding it surfaces as ErrStoreUnavailable.
	StoreTimeout time.Duration

	// RevokeChainOnReuse controls the replay response: when a revoked
	// refresh token is presented again, revoke the whole session chain
	// before rejecting. Disabling it reverts to plain rejection.
	RevokeChainOnReuse bool

	// Leeway is the clock-skew tolerance applied when verifying token
	// expiry claims.
	Leeway time.Duration
}

// DefaultConfig returns defaults suitable for development. The secret is
// intentionally absent and must be supplied.
func DefaultConfig() Config {
	return Config{
		Issuer:             "ripple",
		AccessTokenTTL:     15 * time.Minute,
		RefreshWindow:      30 * 24 * time.Hour,
		StoreTimeout:       5 * time.Second,
		RevokeChainOnReuse: true,
		Leeway:             30 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - RIPPLE_AUTH_SECRET (>= 32 bytes)
//
// Optional:
//   - RIPPLE_AUTH_ISSUER
//   - RIPPLE_AUTH_ACCESS_TTL_MIN        (integer minutes)
//   - RIPPLE_AUTH_REFRESH_WINDOW_DAYS   (integer days)
//   - RIPPLE_AUTH_STORE_TIMEOUT         (Go duration)
//   - RIPPLE_AUTH_REVOKE_CHAIN_ON_REUSE (bool)
//   - RIPPLE_AUTH_LEEWAY                (Go duration)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("RIPPLE_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	if v := strings.TrimSpace(os.Getenv("RIPPLE_AUTH_ACCESS_TTL_MIN")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = time.Duration(n) * time.Minute
	}

	if v := strings.TrimSpace(os.Getenv("RIPPLE_AUTH_REFRESH_WINDOW_DAYS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshWindow = time.Duration(n) * 24 * time.Hour
	}

	if v := strings.TrimSpace(os.Getenv("RIPPLE_AUTH_STORE_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.StoreTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("RIPPLE_AUTH_REVOKE_CHAIN_ON_REUSE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.RevokeChainOnReuse = b
	}

	if v := strings.TrimSpace(os.Getenv("RIPPLE_AUTH_LEEWAY")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.Leeway = d
	}

	secret := strings.TrimSpace(os.Getenv("RIPPLE_AUTH_SECRET"))
	if len(secret) < 32 {
		return Config{}, ErrConfig
	}
	cfg.Secret = []byte(secret)

	return cfg, nil
}
