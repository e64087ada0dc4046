package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"ripple/cmd/internal/auth/session"

	"github.com/coder/websocket"
)

const (
	wsSubprotocol = "ripple.chat.v1"

	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsDefaultHistoryLimit = 50
	wsMaxHistoryLimit     = 200

	wsMaxPingFailures = 3

	// Origin is required by default and only localhost is allowed,
	// secure-by-default for dev.
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// TokenValidator admits websocket clients. Implemented by
// session.Service.
type TokenValidator interface {
	Validate(ctx context.Context, now time.Time, accessToken string) (session.Principal, error)
}

// WSGateway is the websocket entrypoint for Ripple chat.
//
// It enforces origin policy, access-token admission, rate limits and
// heartbeats, and routes direct messages through the Registry after
// persisting them.
type WSGateway struct {
	log      *slog.Logger
	registry *Registry
	store    MessageStore
	tokens   TokenValidator

	devInsecure    bool
	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept origin checks: Accept authorizes
	// same-host origins by default but cross-origin needs OriginPatterns.
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
	sendQueueSize   int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration

	rateEvents int
	rateWindow time.Duration
}

// NewWSGateway constructs a gateway with secure defaults. When registry or
// store are nil, in-memory implementations are used for dev.
func NewWSGateway(log *slog.Logger, registry *Registry, store MessageStore, tokens TokenValidator) *WSGateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if registry == nil {
		registry = NewRegistry(log)
	}
	if store == nil {
		store = NewInMemoryStore()
	}

	g := &WSGateway{log: log, registry: registry, store: store, tokens: tokens}

	// InsecureSkipVerify is a dev-only knob, not an origin policy.
	g.devInsecure = envBoolWS("RIPPLE_WS_DEV_INSECURE", false)

	g.originRequired = envBoolWS("RIPPLE_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	g.allowedOrigins = envCSVWS("RIPPLE_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)
	g.originPatterns = deriveOriginPatterns(g.allowedOrigins)

	g.writeTimeout = envDurationWS("RIPPLE_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	g.readIdleTimeout = envDurationWS("RIPPLE_WS_READ_IDLE_TIMEOUT", wsDefaultReadIdle)

	g.sendQueueSize = envIntWS("RIPPLE_WS_SEND_QUEUE", wsDefaultSendQueueSize)
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}

	g.heartbeatEvery = envDurationWS("RIPPLE_WS_HEARTBEAT_INTERVAL", heartbeatInterval)
	g.heartbeatTimeout = envDurationWS("RIPPLE_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout)

	g.rateEvents = envIntWS("RIPPLE_WS_RATE_EVENTS", rateLimitEvents)
	g.rateWindow = envDurationWS("RIPPLE_WS_RATE_WINDOW", rateLimitWindow)

	return g
}

// ServeHTTP adapter so the gateway can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS validates the access token, upgrades the request and runs the
// chat loop until the peer leaves or the connection dies.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	// Admission happens before the upgrade so a bad token costs one HTTP
	// round trip, not a websocket handshake.
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	principal, err := g.tokens.Validate(r.Context(), time.Now().UTC(), token)
	if err != nil {
		g.log.Info("ws.reject.auth", "err", err, "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{wsSubprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(maxFrameBytes)

	client := NewClient(principal.ID, principal.Handle, g.sendQueueSize)
	g.registry.Connect(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once

	// shutdown is idempotent. It does NOT close client.Send; registry
	// removal happens before client.Close so SendTo never races a closed
	// client it still maps.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.registry.Disconnect(client.UserID, client)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	rl := NewRateLimiter(g.rateEvents, g.rateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "user_id", client.UserID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "user_id", client.UserID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	g.sendHelloAck(ctx, client, principal)
	g.log.Info("ws.connect", "user_id", client.UserID)

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(ctx, client, "bad_json", "invalid JSON")
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "user_id", client.UserID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		now := time.Now().UTC()
		if !rl.Allow(now) {
			g.trySendError(ctx, client, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(ctx, client, "bad_envelope", err.Error())
			continue readLoop
		}

		switch env.Type {
		case TypeHello:
			g.sendHelloAck(ctx, client, principal)

		case TypeMessageSend:
			if err := g.onMessageSend(ctx, client, env, now); err != nil {
				g.trySendError(ctx, client, "send_failed", err.Error())
				continue readLoop
			}

		case TypeHistoryFetch:
			if err := g.onHistoryFetch(ctx, client, env); err != nil {
				g.trySendError(ctx, client, "history_failed", err.Error())
				continue readLoop
			}

		default:
			g.trySendError(ctx, client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	g.log.Info("ws.disconnect", "user_id", client.UserID)
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// ---- handlers ----

func (g *WSGateway) sendHelloAck(ctx context.Context, client *Client, p session.Principal) {
	payload, _ := json.Marshal(HelloAckPayload{UserID: p.ID, Handle: p.Handle})
	ack := NewEnvelope(TypeHelloAck, payload, time.Now().UTC())
	_ = g.enqueue(ctx, client, ack)
}

func (g *WSGateway) onMessageSend(ctx context.Context, client *Client, env Envelope, now time.Time) error {
	var p MessageSendPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	to := strings.TrimSpace(p.To)
	if to == "" {
		return errors.New("missing to")
	}
	if to == client.UserID {
		return errors.New("cannot message yourself")
	}
	if strings.TrimSpace(p.ClientMsgID) == "" {
		return errors.New("missing client_msg_id")
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		return errors.New("empty text")
	}
	if len([]rune(text)) > maxMessageChars {
		return fmt.Errorf("message too long: max=%d chars", maxMessageChars)
	}

	res, err := g.store.Append(ctx, AppendInput{
		ClientMsgID: p.ClientMsgID,
		SenderID:    client.UserID,
		RecipientID: to,
		Text:        text,
		Now:         now,
	})
	if err != nil {
		return fmt.Errorf("store append: %w", err)
	}

	stored := res.Stored

	ackPayload, _ := json.Marshal(MessageAckPayload{
		ClientMsgID: stored.ClientMsgID,
		MessageID:   stored.ID,
		ServerTS:    stored.ServerTS,
	})
	if !g.enqueue(ctx, client, NewEnvelope(TypeMessageAck, ackPayload, now)) {
		return errors.New("backpressure: ack")
	}

	if res.Duplicated {
		return nil
	}

	// Delivery is best effort: an offline recipient catches up via
	// history.fetch.
	newPayload, _ := json.Marshal(messagePayload(stored))
	g.registry.SendTo(stored.RecipientID, NewEnvelope(TypeMessageNew, newPayload, now))
	return nil
}

func (g *WSGateway) onHistoryFetch(ctx context.Context, client *Client, env Envelope) error {
	var p HistoryFetchPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	peer := strings.TrimSpace(p.Peer)
	if peer == "" {
		return errors.New("missing peer")
	}

	limit := p.Limit
	if limit <= 0 {
		limit = wsDefaultHistoryLimit
	}
	if limit > wsMaxHistoryLimit {
		limit = wsMaxHistoryLimit
	}

	out, err := g.store.History(ctx, HistoryInput{
		UserID:  client.UserID,
		PeerID:  peer,
		AfterID: p.AfterID,
		Limit:   limit,
	})
	if err != nil {
		return err
	}

	msgs := make([]MessageNewPayload, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, messagePayload(m))
	}

	chunkPayload, _ := json.Marshal(HistoryChunkPayload{
		Peer:     peer,
		Messages: msgs,
		HasMore:  out.HasMore,
	})
	chunk := NewEnvelope(TypeHistoryChunk, chunkPayload, time.Now().UTC())

	if !g.enqueue(ctx, client, chunk) {
		return errors.New("backpressure: history chunk")
	}
	return nil
}

func messagePayload(m StoredMessage) MessageNewPayload {
	return MessageNewPayload{
		MessageID:   m.ID,
		ClientMsgID: m.ClientMsgID,
		From:        m.SenderID,
		To:          m.RecipientID,
		Text:        m.Text,
		ServerTS:    m.ServerTS,
	}
}

// ---- send helpers ----

func (g *WSGateway) trySendError(ctx context.Context, client *Client, code, msg string) {
	p, _ := json.Marshal(ErrorPayload{Code: code, Message: msg})
	env := NewEnvelope(TypeError, p, time.Now().UTC())
	_ = g.enqueue(ctx, client, env)
}

func (g *WSGateway) enqueue(ctx context.Context, client *Client, env Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- env:
		return true
	default:
		return false
	}
}

// ---- envelope IO ----

func readEnvelope(ctx context.Context, conn *websocket.Conn) (Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	// JSON decode errors normally come from json.Unmarshal, not conn.Read.
	// This fallback exists for robustness when error strings are propagated.
	s := err.Error()
	if strings.Contains(s, "unexpected end of JSON input") || strings.Contains(s, "invalid character") {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}

		// Full origin match (scheme + host + optional port).
		if origin == a {
			return nil
		}

		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// URL form.
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	// host[:port] form.
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatterns(allowed []string) []string {
	// websocket.Accept matches OriginPatterns against the origin host.
	// Keep this strict: only hosts extracted from the allowlist pass.
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	// Stable in-file sort (avoid importing sort just for this).
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
