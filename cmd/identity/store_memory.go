package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ripple/cmd/identity/ids"
)

// MemoryStore is an in-memory Store for development mode and tests. It
// mirrors the Postgres semantics, including conflict detection on the
// mobile handle.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[string]*User
	byMobile map[string]string
}

// NewMemoryStore constructs an empty in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*User),
		byMobile: make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Mobile) == "" || in.PasswordHash == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "name, mobile and password hash are required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byMobile[in.Mobile]; exists {
		return User{}, OpError{Op: op, Kind: ErrConflict, Msg: "mobile"}
	}

	userID, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:           userID,
		Name:         name,
		Mobile:       in.Mobile,
		Age:          in.Age,
		Gender:       in.Gender,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
	}
	s.byID[userID] = &u
	s.byMobile[in.Mobile] = userID

	return u, nil
}

func (s *MemoryStore) GetByID(_ context.Context, userID string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (s *MemoryStore) GetByMobile(_ context.Context, mobile string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byMobile[mobile]
	if !ok {
		return User{}, ErrNotFound
	}
	return *s.byID[userID], nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []User
	for _, u := range s.byID {
		if !u.Deleted {
			out = append(out, *u)
		}
	}
	// Newest first; ULIDs sort lexicographically by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) MarkLogin(_ context.Context, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return ErrNotFound
	}
	t := now
	u.LastLoginAt = &t
	u.LastActivityAt = &t
	u.LastLogoutAt = nil
	return nil
}

func (s *MemoryStore) MarkLogout(_ context.Context, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return ErrNotFound
	}
	t := now
	u.LastLogoutAt = &t
	return nil
}

func (s *MemoryStore) MarkActivity(_ context.Context, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return ErrNotFound
	}
	t := now
	u.LastActivityAt = &t
	return nil
}

func (s *MemoryStore) SoftDeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, u := range s.byID {
		if u.Deleted || u.LastLogoutAt == nil {
			continue
		}
		if u.LastLoginAt != nil && u.LastLoginAt.After(*u.LastLogoutAt) {
			continue
		}
		if u.LastLogoutAt.Before(cutoff) {
			u.Deleted = true
			n++
		}
	}
	return n, nil
}
