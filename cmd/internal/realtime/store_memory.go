package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"ripple/cmd/identity/ids"
)

const memMaxMessages = 50_000

// InMemoryStore is a dev-only fallback when the DB is not configured.
type InMemoryStore struct {
	mu     sync.Mutex
	msgs   []StoredMessage
	dedupe map[string]StoredMessage // sender_id + "\x00" + client_msg_id
}

// NewInMemoryStore constructs an in-memory MessageStore implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		dedupe: make(map[string]StoredMessage),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// Append persists a message with idempotency per (sender, client_msg_id).
func (s *InMemoryStore) Append(ctx context.Context, in AppendInput) (AppendResult, error) {
	if in.SenderID == "" || in.RecipientID == "" || in.ClientMsgID == "" {
		return AppendResult{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return AppendResult{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := in.SenderID + "\x00" + in.ClientMsgID
	if existing, ok := s.dedupe[key]; ok {
		return AppendResult{Stored: existing, Duplicated: true}, nil
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return AppendResult{}, err
	}

	msg := StoredMessage{
		ID:          id,
		ClientMsgID: in.ClientMsgID,
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Text:        in.Text,
		FileID:      in.FileID,
		FileName:    in.FileName,
		FileMime:    in.FileMime,
		FileSize:    in.FileSize,
		ServerTS:    now,
	}
	s.dedupe[key] = msg
	s.msgs = append(s.msgs, msg)

	// Bound memory to avoid unbounded growth in dev.
	if len(s.msgs) > memMaxMessages {
		s.msgs = s.msgs[len(s.msgs)-memMaxMessages:]
	}

	return AppendResult{Stored: msg, Duplicated: false}, nil
}

// History returns the backlog between two users ordered by id ASC with
// paging via after_id.
func (s *InMemoryStore) History(ctx context.Context, in HistoryInput) (HistoryResult, error) {
	if in.UserID == "" || in.PeerID == "" {
		return HistoryResult{}, errors.New("invalid input")
	}
	if err := ctx.Err(); err != nil {
		return HistoryResult{}, err
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	fetch := limit + 1

	s.mu.Lock()
	var snap []StoredMessage
	for _, m := range s.msgs {
		if (m.SenderID == in.UserID && m.RecipientID == in.PeerID) ||
			(m.SenderID == in.PeerID && m.RecipientID == in.UserID) {
			snap = append(snap, m)
		}
	}
	s.mu.Unlock()

	if len(snap) == 0 {
		return HistoryResult{}, nil
	}

	// ULIDs order lexicographically by creation time.
	sort.Slice(snap, func(i, j int) bool { return snap[i].ID < snap[j].ID })

	start := 0
	if in.AfterID != nil {
		after := *in.AfterID
		start = sort.Search(len(snap), func(i int) bool { return snap[i].ID > after })
		if start >= len(snap) {
			return HistoryResult{}, nil
		}
	}

	end := start + fetch
	if end > len(snap) {
		end = len(snap)
	}
	out := snap[start:end]

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}

	return HistoryResult{Messages: out, HasMore: hasMore}, nil
}
