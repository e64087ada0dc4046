package realtime

import (
	"context"
	"errors"
	"time"

	"ripple/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a MessageStore backed by PostgreSQL.
//
// The pgx pool is owned by the caller; Close is therefore a no-op.
// Idempotency rides on the (sender_id, client_msg_id) unique constraint:
// a duplicate append returns the already-stored row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed MessageStore.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("realtime: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

const messageColumns = `
	id, client_msg_id, sender_id, recipient_id, body,
	file_id, file_name, file_mime, file_size, server_ts`

// Append persists a message with idempotency per (sender, client_msg_id).
func (s *PostgresStore) Append(ctx context.Context, in AppendInput) (AppendResult, error) {
	if in.SenderID == "" || in.RecipientID == "" || in.ClientMsgID == "" {
		return AppendResult{}, errors.New("invalid input")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	msgID, err := ids.NewULID(now)
	if err != nil {
		return AppendResult{}, err
	}

	ct, err := s.pool.Exec(ctx, `
		INSERT INTO ripple.messages (
			id, client_msg_id, sender_id, recipient_id, body,
			file_id, file_name, file_mime, file_size, server_ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (sender_id, client_msg_id) DO NOTHING
	`, msgID, in.ClientMsgID, in.SenderID, in.RecipientID, in.Text,
		in.FileID, in.FileName, in.FileMime, in.FileSize, now)
	if err != nil {
		return AppendResult{}, err
	}

	if ct.RowsAffected() == 0 {
		// Duplicate: return the winner of the first append.
		stored, err := s.getByClientMsgID(ctx, in.SenderID, in.ClientMsgID)
		if err != nil {
			return AppendResult{}, err
		}
		return AppendResult{Stored: stored, Duplicated: true}, nil
	}

	return AppendResult{
		Stored: StoredMessage{
			ID:          msgID,
			ClientMsgID: in.ClientMsgID,
			SenderID:    in.SenderID,
			RecipientID: in.RecipientID,
			Text:        in.Text,
			FileID:      in.FileID,
			FileName:    in.FileName,
			FileMime:    in.FileMime,
			FileSize:    in.FileSize,
			ServerTS:    now,
		},
	}, nil
}

// History returns the backlog between two users ordered by id ASC with
// paging via after_id. ULIDs order lexicographically by creation time.
func (s *PostgresStore) History(ctx context.Context, in HistoryInput) (HistoryResult, error) {
	if in.UserID == "" || in.PeerID == "" {
		return HistoryResult{}, errors.New("invalid input")
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	fetch := limit + 1

	after := ""
	if in.AfterID != nil {
		after = *in.AfterID
	}

	rows, err := s.pool.Query(ctx, `
		SELECT`+messageColumns+`
		FROM ripple.messages
		WHERE ((sender_id = $1 AND recipient_id = $2)
		    OR (sender_id = $2 AND recipient_id = $1))
		  AND id > $3
		ORDER BY id ASC
		LIMIT $4
	`, in.UserID, in.PeerID, after, fetch)
	if err != nil {
		return HistoryResult{}, err
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return HistoryResult{}, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return HistoryResult{}, err
	}

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}

	return HistoryResult{Messages: out, HasMore: hasMore}, nil
}

func (s *PostgresStore) getByClientMsgID(ctx context.Context, senderID, clientMsgID string) (StoredMessage, error) {
	return scanMessage(s.pool.QueryRow(ctx, `
		SELECT`+messageColumns+`
		FROM ripple.messages
		WHERE sender_id = $1 AND client_msg_id = $2
	`, senderID, clientMsgID))
}

func scanMessage(row pgx.Row) (StoredMessage, error) {
	var m StoredMessage
	err := row.Scan(
		&m.ID,
		&m.ClientMsgID,
		&m.SenderID,
		&m.RecipientID,
		&m.Text,
		&m.FileID,
		&m.FileName,
		&m.FileMime,
		&m.FileSize,
		&m.ServerTS,
	)
	if err != nil {
		return StoredMessage{}, err
	}
	return m, nil
}
