package realtime

import (
	"encoding/json"
	"testing"
	"time"
)

func testEnvelope(t *testing.T, typ string) Envelope {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return NewEnvelope(typ, payload, time.Now().UTC())
}

func TestRegistry_ConnectAndSendTo(t *testing.T) {
	r := NewRegistry(nil)

	c := NewClient("u1", "+15550001111", 4)
	if prev := r.Connect(c); prev != nil {
		t.Fatalf("expected no previous client")
	}
	if r.Len() != 1 {
		t.Fatalf("expected len 1, got %d", r.Len())
	}

	if !r.SendTo("u1", testEnvelope(t, TypeMessageNew)) {
		t.Fatalf("expected delivery")
	}
	select {
	case env := <-c.Send:
		if env.Type != TypeMessageNew {
			t.Fatalf("unexpected type: %s", env.Type)
		}
	default:
		t.Fatalf("expected queued envelope")
	}
}

func TestRegistry_SendToAbsentUser(t *testing.T) {
	r := NewRegistry(nil)

	if r.SendTo("nobody", testEnvelope(t, TypeMessageNew)) {
		t.Fatalf("expected no delivery for absent user")
	}
}

func TestRegistry_SendToFullQueueDrops(t *testing.T) {
	r := NewRegistry(nil)

	// Queue capacity is clamped up to 64 in NewClient for sizes <= 0, so
	// use an explicit tiny queue.
	c := NewClient("u1", "+15550001111", 1)
	r.Connect(c)

	if !r.SendTo("u1", testEnvelope(t, TypeMessageNew)) {
		t.Fatalf("first send should fit")
	}
	if r.SendTo("u1", testEnvelope(t, TypeMessageNew)) {
		t.Fatalf("second send should drop, queue full")
	}
}

func TestRegistry_LastConnectWins(t *testing.T) {
	r := NewRegistry(nil)

	old := NewClient("u1", "+15550001111", 4)
	r.Connect(old)

	fresh := NewClient("u1", "+15550001111", 4)
	prev := r.Connect(fresh)
	if prev != old {
		t.Fatalf("expected previous client returned")
	}

	// The replaced client must be closed.
	select {
	case <-old.Done():
	default:
		t.Fatalf("expected old client closed")
	}

	// The replaced client's teardown must not evict the successor.
	r.Disconnect("u1", old)
	if r.Len() != 1 {
		t.Fatalf("stale disconnect evicted the live client")
	}
	if !r.SendTo("u1", testEnvelope(t, TypeMessageNew)) {
		t.Fatalf("expected delivery to the fresh client")
	}

	r.Disconnect("u1", fresh)
	if r.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestRegistry_SendToClosedClient(t *testing.T) {
	r := NewRegistry(nil)

	c := NewClient("u1", "+15550001111", 4)
	r.Connect(c)
	c.Close()

	if r.SendTo("u1", testEnvelope(t, TypeMessageNew)) {
		t.Fatalf("expected no delivery to closed client")
	}
}
