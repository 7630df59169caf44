package realtime

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(0, 8, zerolog.Nop())
	t.Cleanup(r.Close)
	return r
}

// receiveEvent pulls the next event off a session or fails the test.
func receiveEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case event := <-s.Events():
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, s *Session) {
	t.Helper()
	select {
	case event := <-s.Events():
		t.Fatalf("unexpected event %s for user %s", event.Type, s.UserID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegisterEmitsConnected(t *testing.T) {
	registry := newTestRegistry(t)

	first := registry.Register("user-a")
	second := registry.Register("user-a")

	// CONNECTED goes only to the connection that just registered
	event := receiveEvent(t, first)
	assert.Equal(t, EventConnected, event.Type)
	assert.Equal(t, "user-a", event.UserID)

	event = receiveEvent(t, second)
	assert.Equal(t, EventConnected, event.Type)

	assertNoEvent(t, first)
	assert.Equal(t, 2, registry.ConnectionCount())
}

func TestPushTargetsOnlyThatUser(t *testing.T) {
	registry := newTestRegistry(t)

	// user A with two sessions, user B with one
	a1 := registry.Register("user-a")
	a2 := registry.Register("user-a")
	b1 := registry.Register("user-b")
	receiveEvent(t, a1)
	receiveEvent(t, a2)
	receiveEvent(t, b1)

	registry.Push("user-a", Event{Type: EventUserBanned, UserID: "user-a", Timestamp: time.Now()})

	for _, session := range []*Session{a1, a2} {
		event := receiveEvent(t, session)
		assert.Equal(t, EventUserBanned, event.Type)
		assert.Equal(t, "user-a", event.UserID)
		assertNoEvent(t, session)
	}
	assertNoEvent(t, b1)
}

func TestBroadcastReachesEverySession(t *testing.T) {
	registry := newTestRegistry(t)

	sessions := []*Session{
		registry.Register("user-a"),
		registry.Register("user-a"),
		registry.Register("user-b"),
		registry.Register("user-c"),
	}
	for _, session := range sessions {
		receiveEvent(t, session)
	}

	registry.Broadcast(Event{Type: EventAnnouncementCreated, Timestamp: time.Now()})

	for _, session := range sessions {
		event := receiveEvent(t, session)
		assert.Equal(t, EventAnnouncementCreated, event.Type)
	}

	// a session registered after the broadcast sees nothing of it
	late := registry.Register("user-d")
	event := receiveEvent(t, late)
	assert.Equal(t, EventConnected, event.Type)
	assertNoEvent(t, late)
}

func TestUnregisterIdempotent(t *testing.T) {
	registry := newTestRegistry(t)

	session := registry.Register("user-a")
	receiveEvent(t, session)

	registry.Unregister(session)
	registry.Unregister(session)

	select {
	case <-session.Done():
	default:
		t.Fatal("Done must be closed after unregister")
	}
	assert.Equal(t, 0, registry.ConnectionCount())

	// pushes after unregister are dropped, not delivered
	registry.Push("user-a", Event{Type: EventUserBanned, Timestamp: time.Now()})
	assertNoEvent(t, session)
}

func TestStalledSessionIsPrunedAlone(t *testing.T) {
	registry := NewRegistry(0, 1, zerolog.Nop())
	t.Cleanup(registry.Close)

	stalled := registry.Register("user-a")
	healthy := registry.Register("user-a")
	receiveEvent(t, healthy) // drain CONNECTED; stalled keeps its buffer full

	// the stalled session's buffer holds CONNECTED; the next delivery
	// cannot be accepted and must prune only that session
	registry.Push("user-a", Event{Type: EventUserBanned, UserID: "user-a", Timestamp: time.Now()})

	select {
	case <-stalled.Done():
	case <-time.After(time.Second):
		t.Fatal("stalled session was not pruned")
	}

	event := receiveEvent(t, healthy)
	assert.Equal(t, EventUserBanned, event.Type)
	assert.Equal(t, 1, registry.ConnectionCount())
}

func TestHeartbeat(t *testing.T) {
	registry := NewRegistry(20*time.Millisecond, 8, zerolog.Nop())
	t.Cleanup(registry.Close)

	session := registry.Register("user-a")
	receiveEvent(t, session)

	event := receiveEvent(t, session)
	require.Equal(t, EventHeartbeat, event.Type)

	// unregister stops the timer; nothing new arrives afterwards
	registry.Unregister(session)
	time.Sleep(30 * time.Millisecond) // let any in-flight tick settle
	for drained := false; !drained; {
		select {
		case <-session.Events():
		default:
			drained = true
		}
	}
	time.Sleep(60 * time.Millisecond)
	select {
	case event := <-session.Events():
		t.Fatalf("heartbeat %s delivered after unregister", event.Type)
	default:
	}
}

func TestCloseUnregistersAll(t *testing.T) {
	registry := NewRegistry(0, 8, zerolog.Nop())

	a := registry.Register("user-a")
	b := registry.Register("user-b")
	registry.Close()

	for _, session := range []*Session{a, b} {
		select {
		case <-session.Done():
		default:
			t.Fatal("Close must unregister every session")
		}
	}
	assert.Equal(t, 0, registry.ConnectionCount())
}
