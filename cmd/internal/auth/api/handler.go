// Package authapi wires Ripple's HTTP endpoints to the identity, session
// and messaging services.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"ripple/cmd/identity"
	"ripple/cmd/internal/auth/session"
	"ripple/cmd/internal/realtime"
)

const maxMessageChars = 4000

// Observer receives auth lifecycle outcomes for metrics. Optional.
type Observer interface {
	ObserveAuth(op, result string)
}

// Handler serves the REST surface: registration, the token lifecycle,
// user lookups and direct messages.
type Handler struct {
	log *slog.Logger
	cfg Config

	users     identity.Store
	sessions  *session.Service
	passwords session.CredentialVerifier
	registry  *realtime.Registry
	messages  realtime.MessageStore

	region string
	obs    Observer
}

// SetObserver attaches the metrics observer. Must be called before
// Register; a nil observer disables counting.
func (h *Handler) SetObserver(o Observer) { h.obs = o }

func (h *Handler) observe(op, result string) {
	if h.obs != nil {
		h.obs.ObserveAuth(op, result)
	}
}

// NewHandler constructs the API handler. All collaborators are required.
func NewHandler(
	log *slog.Logger,
	cfg Config,
	users identity.Store,
	sessions *session.Service,
	passwords session.CredentialVerifier,
	registry *realtime.Registry,
	messages realtime.MessageStore,
) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || sessions == nil || passwords == nil || registry == nil || messages == nil {
		return nil, errors.New("authapi: missing collaborator")
	}

	return &Handler{
		log:       log,
		cfg:       cfg,
		users:     users,
		sessions:  sessions,
		passwords: passwords,
		registry:  registry,
		messages:  messages,
		region:    identity.DefaultRegion(),
	}, nil
}

// Register wires routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/me", h.handleMe)
	mux.HandleFunc("/users", h.handleUsers)
	mux.HandleFunc("/messages/send", h.handleSendMessage)
	mux.HandleFunc("/messages/history", h.handleHistory)
}

// ---- auth lifecycle ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	if req.ConfirmPassword != nil && *req.ConfirmPassword != req.Password {
		writeError(w, http.StatusBadRequest, "password_mismatch", "passwords do not match")
		return
	}
	if req.Age != nil && (*req.Age < 0 || *req.Age > 150) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid age")
		return
	}

	mobile, err := identity.NormalizeMobile(req.Mobile, h.region)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_mobile", "invalid mobile number")
		return
	}

	hash, err := h.passwords.Hash(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "weak_password", "password does not meet requirements")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Name:         name,
		Mobile:       mobile,
		Age:          req.Age,
		Gender:       req.Gender,
		PasswordHash: hash,
		Now:          now,
	})
	if err != nil {
		if identity.IsConflict(err) {
			writeError(w, http.StatusConflict, "mobile_taken", "mobile already registered")
			return
		}
		if identity.IsInvalidInput(err) {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid registration data")
			return
		}
		h.log.Error("auth.register.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.observe("register", "ok")
	h.log.Info("auth.register.ok", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, registerResponse{User: toUserResponse(u)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.ConfirmPassword != nil && *req.ConfirmPassword != req.Password {
		writeError(w, http.StatusBadRequest, "password_mismatch", "passwords do not match")
		return
	}

	// A malformed mobile cannot match any account; keep the failure shape
	// identical to a wrong password.
	mobile, err := identity.NormalizeMobile(req.Mobile, h.region)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	issued, err := h.sessions.Login(ctx, now, mobile, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidCredentials):
			h.observe("login", "invalid_credentials")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		case errors.Is(err, session.ErrStoreUnavailable):
			h.observe("login", "store_unavailable")
			writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		default:
			h.observe("login", "error")
			h.log.Error("auth.login.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.observe("login", "ok")
	h.log.Info("auth.login.ok", "session_id", issued.SessionID)
	writeJSON(w, http.StatusOK, toTokenPairResponse(issued))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	issued, err := h.sessions.Rotate(ctx, now, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshExpired):
			h.observe("refresh", "expired")
			writeError(w, http.StatusUnauthorized, "session_expired", "session expired, log in again")
		case errors.Is(err, session.ErrRefreshRejected), errors.Is(err, session.ErrRotationConflict):
			h.observe("refresh", "rejected")
			writeError(w, http.StatusUnauthorized, "refresh_rejected", "refresh token rejected")
		case errors.Is(err, session.ErrStoreUnavailable):
			h.observe("refresh", "store_unavailable")
			writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		default:
			h.observe("refresh", "error")
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.observe("refresh", "ok")
	writeJSON(w, http.StatusOK, toTokenPairResponse(issued))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req logoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	// Logout never fails observably: even a garbage token gets 204.
	h.sessions.Logout(r.Context(), time.Now().UTC(), req.RefreshToken)
	h.observe("logout", "ok")
	w.WriteHeader(http.StatusNoContent)
}

// ---- protected resources ----

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	principal, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	u, err := h.users.GetByID(r.Context(), principal.ID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	users, err := h.users.ListActive(r.Context())
	if err != nil {
		h.log.Error("users.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: out})
}

// ---- messages ----

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	principal, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	to := strings.TrimSpace(req.To)
	text := strings.TrimSpace(req.Text)
	switch {
	case to == "" || strings.TrimSpace(req.ClientMsgID) == "":
		writeError(w, http.StatusBadRequest, "invalid_request", "to and client_msg_id are required")
		return
	case to == principal.ID:
		writeError(w, http.StatusBadRequest, "invalid_request", "cannot message yourself")
		return
	case text == "" && req.FileID == nil:
		writeError(w, http.StatusBadRequest, "invalid_request", "message needs text or a file")
		return
	case utf8.RuneCountInString(text) > maxMessageChars:
		writeError(w, http.StatusBadRequest, "message_too_long", "message too long")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	recipient, err := h.users.GetByID(ctx, to)
	if err != nil || recipient.Deleted {
		if err != nil && !identity.IsNotFound(err) {
			h.log.Error("messages.send.lookup.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		writeError(w, http.StatusNotFound, "unknown_recipient", "recipient not found")
		return
	}

	res, err := h.messages.Append(ctx, realtime.AppendInput{
		ClientMsgID: req.ClientMsgID,
		SenderID:    principal.ID,
		RecipientID: to,
		Text:        text,
		FileID:      req.FileID,
		FileName:    req.FileName,
		FileMime:    req.FileMime,
		FileSize:    req.FileSize,
		Now:         now,
	})
	if err != nil {
		h.log.Error("messages.send.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	// Realtime delivery is best effort; an offline recipient catches up
	// over history.
	delivered := false
	if !res.Duplicated {
		payload := realtime.MessageNewPayload{
			MessageID:   res.Stored.ID,
			ClientMsgID: res.Stored.ClientMsgID,
			From:        res.Stored.SenderID,
			To:          res.Stored.RecipientID,
			Text:        res.Stored.Text,
			ServerTS:    res.Stored.ServerTS,
		}
		delivered = h.registry.SendTo(to, realtime.NewEnvelope(realtime.TypeMessageNew, payload, now))
	}

	status := http.StatusCreated
	if res.Duplicated {
		status = http.StatusOK
	}
	writeJSON(w, status, toMessageResponse(res.Stored, delivered))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	principal, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	peer := strings.TrimSpace(q.Get("peer"))
	if peer == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "peer is required")
		return
	}

	limit := h.cfg.HistoryDefaultLimit
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := parsePositiveInt(raw); err == nil {
			limit = n
		}
	}
	if limit > h.cfg.HistoryMaxLimit {
		limit = h.cfg.HistoryMaxLimit
	}

	var afterID *string
	if raw := strings.TrimSpace(q.Get("after_id")); raw != "" {
		afterID = &raw
	}

	out, err := h.messages.History(r.Context(), realtime.HistoryInput{
		UserID:  principal.ID,
		PeerID:  peer,
		AfterID: afterID,
		Limit:   limit,
	})
	if err != nil {
		h.log.Error("messages.history.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	msgs := make([]messageResponse, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, toMessageResponse(m, true))
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: msgs, HasMore: out.HasMore})
}

// ---- auth plumbing ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.Principal, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return session.Principal{}, false
	}

	principal, err := h.sessions.Validate(r.Context(), time.Now().UTC(), token)
	if err != nil {
		if errors.Is(err, session.ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
			return session.Principal{}, false
		}
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return session.Principal{}, false
	}
	return principal, true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(raw, prefix) {
		return ""
	}
	return strings.TrimSpace(raw[len(prefix):])
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errors.New("not a number")
		}
		n = n*10 + int(c-'0')
		if n > 1_000_000 {
			return 0, errors.New("too large")
		}
	}
	if n <= 0 {
		return 0, errors.New("not positive")
	}
	return n, nil
}
