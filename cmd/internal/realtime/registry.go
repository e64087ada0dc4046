package realtime

import (
	"log/slog"
	"sync"
)

// Registry tracks at most one live websocket client per user. It is
// process-local; delivery to users connected elsewhere is out of scope.
type Registry struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:     log,
		clients: make(map[string]*Client),
	}
}

// Connect registers c as the live client for its user. A previous client
// for the same user is closed and returned; last connect wins.
func (r *Registry) Connect(c *Client) *Client {
	r.mu.Lock()
	prev := r.clients[c.UserID]
	r.clients[c.UserID] = c
	r.mu.Unlock()

	if prev != nil && prev != c {
		prev.Close()
		r.log.Debug("ws.registry.replace", "user_id", c.UserID)
	}
	return prev
}

// Disconnect removes the mapping only while c is still the registered
// client. A replaced connection's teardown must not evict its successor.
func (r *Registry) Disconnect(userID string, c *Client) {
	r.mu.Lock()
	if r.clients[userID] == c {
		delete(r.clients, userID)
	}
	r.mu.Unlock()
}

// SendTo enqueues env for userID's live client without blocking. It
// reports false when the user has no client here or the queue is full;
// callers treat that as "recipient offline".
func (r *Registry) SendTo(userID string, env Envelope) bool {
	r.mu.RLock()
	c := r.clients[userID]
	r.mu.RUnlock()

	if c == nil {
		return false
	}

	select {
	case <-c.Done():
		return false
	case c.Send <- env:
		return true
	default:
		r.log.Debug("ws.registry.drop", "user_id", userID, "type", env.Type)
		return false
	}
}

// Len returns the number of connected users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
