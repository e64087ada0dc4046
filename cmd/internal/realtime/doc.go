// Package realtime contains Ripple's websocket gateway, the per-user
// connection registry and the direct-message persistence primitives.
package realtime
