package realtime

import (
	"context"
	"time"
)

// StoredMessage is the canonical persisted direct message.
//
// Attachment fields carry metadata only; upload and download live behind a
// separate file service.
type StoredMessage struct {
	ID          string
	ClientMsgID string
	SenderID    string
	RecipientID string
	Text        string

	FileID   *string
	FileName *string
	FileMime *string
	FileSize *int64

	ServerTS time.Time
}

// MessageStore persists and queries direct messages.
//
// Requirements:
//   - Idempotency per (sender_id, client_msg_id)
//   - History ordered by message id ASC (ULIDs order by creation time)
type MessageStore interface {
	Append(ctx context.Context, in AppendInput) (AppendResult, error)
	History(ctx context.Context, in HistoryInput) (HistoryResult, error)
	Close() error
}

// AppendInput describes a message append request.
type AppendInput struct {
	ClientMsgID string
	SenderID    string
	RecipientID string
	Text        string

	FileID   *string
	FileName *string
	FileMime *string
	FileSize *int64

	Now time.Time
}

// AppendResult is the append operation result.
type AppendResult struct {
	Stored     StoredMessage
	Duplicated bool
}

// HistoryInput describes a backlog query between UserID and PeerID.
type HistoryInput struct {
	UserID  string
	PeerID  string
	AfterID *string
	Limit   int
}

// HistoryResult contains the retrieved backlog window.
type HistoryResult struct {
	Messages []StoredMessage
	HasMore  bool
}
