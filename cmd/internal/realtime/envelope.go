package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the wire protocol version carried in every envelope.
const Version = 1

// Envelope types.
const (
	TypeHello        = "hello"
	TypeHelloAck     = "hello.ack"
	TypeMessageSend  = "message.send"
	TypeMessageAck   = "message.ack"
	TypeMessageNew   = "message.new"
	TypeHistoryFetch = "history.fetch"
	TypeHistoryChunk = "history.chunk"
	TypeError        = "error"
)

// Envelope is the framing for every websocket message, inbound and
// outbound.
type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks framing invariants, not payload contents.
func (e Envelope) Validate() error {
	if e.V != Version {
		return fmt.Errorf("unsupported version: %d", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing type")
	}
	return nil
}

// NewEnvelope frames payload as typ. Non-raw payloads are marshaled to
// JSON; marshal failures yield an empty payload, which the peer rejects.
func NewEnvelope(typ string, payload any, ts time.Time) Envelope {
	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		raw, _ = json.Marshal(p)
	}
	return Envelope{
		V:       Version,
		Type:    typ,
		ID:      NewRandomHex(10),
		TS:      ts,
		Payload: raw,
	}
}

// HelloAckPayload acknowledges admission and echoes the resolved identity.
type HelloAckPayload struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
}

// MessageSendPayload is an inbound direct message.
type MessageSendPayload struct {
	To          string `json:"to"`
	ClientMsgID string `json:"client_msg_id"`
	Text        string `json:"text"`
}

// MessageAckPayload confirms persistence to the sender.
type MessageAckPayload struct {
	ClientMsgID string    `json:"client_msg_id"`
	MessageID   string    `json:"message_id"`
	ServerTS    time.Time `json:"server_ts"`
}

// MessageNewPayload delivers a stored message to its recipient (and to
// history fetches).
type MessageNewPayload struct {
	MessageID   string    `json:"message_id"`
	ClientMsgID string    `json:"client_msg_id,omitempty"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Text        string    `json:"text"`
	ServerTS    time.Time `json:"server_ts"`
}

// HistoryFetchPayload asks for the message backlog with one peer.
type HistoryFetchPayload struct {
	Peer    string  `json:"peer"`
	AfterID *string `json:"after_id,omitempty"`
	Limit   int     `json:"limit,omitempty"`
}

// HistoryChunkPayload returns one page of backlog.
type HistoryChunkPayload struct {
	Peer     string              `json:"peer"`
	Messages []MessageNewPayload `json:"messages"`
	HasMore  bool                `json:"has_more"`
}

// ErrorPayload reports a recoverable protocol-level failure.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
