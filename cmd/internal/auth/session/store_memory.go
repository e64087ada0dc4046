package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured
// (dev mode) and by tests. Records live in an arena indexed by jti with a
// session-id secondary index for bulk revocation; the single mutex gives
// the same one-winner rotation guarantee the Postgres store gets from row
// locks.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]*Record
	bySession map[string][]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*Record),
		bySession: make(map[string][]string),
	}
}

// Create inserts a new record.
func (s *MemoryStore) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := rec
	s.records[rec.JTI] = &cp
	s.bySession[rec.SessionID] = append(s.bySession[rec.SessionID], rec.JTI)
	return nil
}

// GetByJTI loads a record copy by jti.
func (s *MemoryStore) GetByJTI(ctx context.Context, jti string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[jti]
	if !ok {
		return Record{}, ErrRefreshRejected
	}
	return *rec, nil
}

// Rotate revokes the old record and inserts its child under one lock.
func (s *MemoryStore) Rotate(ctx context.Context, now time.Time, oldJTI string, oldTokenHash string, child Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[oldJTI]
	if !ok {
		return Record{}, ErrRefreshRejected
	}
	if old.Revoked {
		return Record{}, RevokedRecordError{SessionID: old.SessionID}
	}
	if old.Expired(now) {
		return Record{}, ErrRefreshExpired
	}
	if old.TokenHash != oldTokenHash {
		return Record{}, ErrRefreshRejected
	}

	used := now
	old.Revoked = true
	old.LastUsedAt = &used

	parent := old.JTI
	child.UserID = old.UserID
	child.SessionID = old.SessionID
	child.ParentJTI = &parent

	cp := child
	s.records[child.JTI] = &cp
	s.bySession[child.SessionID] = append(s.bySession[child.SessionID], child.JTI)
	return cp, nil
}

// RevokeSession revokes every record in a session chain.
func (s *MemoryStore) RevokeSession(ctx context.Context, now time.Time, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, jti := range s.bySession[sessionID] {
		rec, ok := s.records[jti]
		if !ok || rec.Revoked {
			continue
		}
		rec.Revoked = true
		if rec.LastUsedAt == nil {
			used := now
			rec.LastUsedAt = &used
		}
	}
	return nil
}

// DeleteExpired removes records whose sliding deadline passed before cutoff.
func (s *MemoryStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for jti, rec := range s.records {
		if rec.ExpiresAt.Before(cutoff) {
			delete(s.records, jti)
			n++
		}
	}

	for sid, jtis := range s.bySession {
		kept := jtis[:0]
		for _, jti := range jtis {
			if _, ok := s.records[jti]; ok {
				kept = append(kept, jti)
			}
		}
		if len(kept) == 0 {
			delete(s.bySession, sid)
			continue
		}
		s.bySession[sid] = kept
	}

	return n, nil
}
