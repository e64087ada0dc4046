package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the two bearer-token flavors.
type Kind string

const (
	// KindAccess is a short-lived token presented on regular requests.
	KindAccess Kind = "access"
	// KindRefresh is a single-use token presented only to mint a new pair.
	KindRefresh Kind = "refresh"
)

// Claims is the decoded envelope of a Ripple bearer token.
type Claims struct {
	Subject   string
	Kind      Kind
	JTI       string // set for refresh tokens only
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec encodes and decodes signed, expiring bearer tokens. It is a pure
// function of the shared secret and the clock: no storage, no side effects.
type Codec interface {
	IssueAccess(subject string, now time.Time) (token string, exp time.Time, err error)
	IssueRefresh(subject string, now time.Time) (token string, jti string, exp time.Time, err error)

	// Decode verifies signature and expiry together. Callers can distinguish
	// ErrExpiredToken (good signature, past exp) from ErrInvalidToken
	// (anything else).
	Decode(token string) (Claims, error)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Kind string `json:"type"`
}

type hs256Codec struct {
	issuer     string
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
}

// NewHS256Codec builds a Codec signing with HMAC-SHA256 over the shared
// secret from cfg. The refresh jti is a fresh UUIDv4 per token, never
// reused.
func NewHS256Codec(cfg Config) (Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, ErrConfig
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshWindow <= 0 {
		return nil, ErrConfig
	}

	return &hs256Codec{
		issuer:     cfg.Issuer,
		secret:     cfg.Secret,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshWindow,
		leeway:     cfg.Leeway,
	}, nil
}

func (c *hs256Codec) IssueAccess(subject string, now time.Time) (string, time.Time, error) {
	exp := now.Add(c.accessTTL)

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Kind: string(KindAccess),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (c *hs256Codec) IssueRefresh(subject string, now time.Time) (string, string, time.Time, error) {
	// The embedded exp mirrors the record's initial sliding deadline; the
	// persisted record stays authoritative as the window moves forward.
	exp := now.Add(c.refreshTTL)
	jti := uuid.NewString()

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Kind: string(KindRefresh),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, jti, exp, nil
}

func (c *hs256Codec) Decode(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithLeeway(c.leeway),
	)
	if err != nil {
		// Signature is checked before claim validation, so ErrTokenExpired
		// here always means a genuine token past its expiry.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}

	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	kind := Kind(tc.Kind)
	switch kind {
	case KindAccess, KindRefresh:
	default:
		return Claims{}, ErrInvalidToken
	}
	if tc.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	if kind == KindRefresh && tc.ID == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Subject: tc.Subject,
		Kind:    kind,
		JTI:     tc.ID,
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}
	return out, nil
}
