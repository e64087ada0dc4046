package app

import (
	"context"
	"time"

	"ripple/cmd/identity"
	"ripple/cmd/internal/auth/session"
)

// Janitor runs the periodic cleanup sweep: stale accounts are soft
// deleted and dead refresh records are purged.
type Janitor struct {
	log      Logger
	users    identity.Store
	sessions *session.Service

	interval    time.Duration
	staleCutoff time.Duration
}

// NewJanitor constructs a Janitor from config and collaborators.
func NewJanitor(log Logger, cfg Config, users identity.Store, sessions *session.Service) *Janitor {
	interval := cfg.JanitorInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	cutoff := cfg.AccountDeleteAfterLogout
	if cutoff <= 0 {
		cutoff = 180 * 24 * time.Hour
	}

	return &Janitor{
		log:         log,
		users:       users,
		sessions:    sessions,
		interval:    interval,
		staleCutoff: cutoff,
	}
}

// Run sweeps once at startup, then on every tick, until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	j.Sweep(ctx, time.Now().UTC())

	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.Sweep(ctx, time.Now().UTC())
		}
	}
}

// Sweep performs one cleanup pass. Failures are logged, never fatal; the
// next tick retries.
func (j *Janitor) Sweep(ctx context.Context, now time.Time) {
	deleted, err := j.users.SoftDeleteStale(ctx, now.Add(-j.staleCutoff))
	if err != nil {
		j.log.Error("janitor.accounts.fail", "err", err)
	} else if deleted > 0 {
		j.log.Info("janitor.accounts.deleted", "count", deleted)
	}

	purged, err := j.sessions.PurgeExpired(ctx, now)
	if err != nil {
		j.log.Error("janitor.tokens.fail", "err", err)
	} else if purged > 0 {
		j.log.Info("janitor.tokens.purged", "count", purged)
	}
}
