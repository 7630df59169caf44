package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openatelier/server/internal/metrics"
)

// Session is one registered push connection. The stream handler drains
// Events() and writes each one to the wire; Done() closes when the session
// has been unregistered and no further events will arrive.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *Session) Events() <-chan Event { return s.events }
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}

// Registry owns the userID -> sessions map for this process. All access to
// the map goes through Register/Push/Broadcast/Unregister; the map itself
// is never exposed. Safe for concurrent use from request handlers, timers,
// and subscriber callbacks.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]map[string]*Session

	heartbeat time.Duration
	buffer    int
	logger    zerolog.Logger
}

func NewRegistry(heartbeat time.Duration, buffer int, logger zerolog.Logger) *Registry {
	if buffer < 1 {
		buffer = 1
	}
	return &Registry{
		sessions:  make(map[string]map[string]*Session),
		heartbeat: heartbeat,
		buffer:    buffer,
		logger:    logger.With().Str("component", "registry").Logger(),
	}
}

// Register adds a connection for userID, emits a CONNECTED event on that
// connection only, and starts its heartbeat timer.
func (r *Registry) Register(userID string) *Session {
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now(),
		events:    make(chan Event, r.buffer),
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	userSessions, ok := r.sessions[userID]
	if !ok {
		userSessions = make(map[string]*Session)
		r.sessions[userID] = userSessions
	}
	userSessions[session.ID] = session
	r.mu.Unlock()

	metrics.ActiveConnections.Inc()
	r.logger.Debug().Str("user_id", userID).Str("connection_id", session.ID).Msg("connection registered")

	r.deliver(session, Event{Type: EventConnected, UserID: userID, Timestamp: time.Now()})

	if r.heartbeat > 0 {
		go r.runHeartbeat(session)
	}
	return session
}

// Push delivers an event to every session of userID, best-effort. A session
// that cannot accept the event is pruned; the user's other sessions and the
// caller are unaffected.
func (r *Registry) Push(userID string, event Event) {
	r.mu.Lock()
	targets := make([]*Session, 0, len(r.sessions[userID]))
	for _, session := range r.sessions[userID] {
		targets = append(targets, session)
	}
	r.mu.Unlock()

	for _, session := range targets {
		r.deliver(session, event)
	}
}

// Broadcast delivers an event to every session of every user registered on
// this process.
func (r *Registry) Broadcast(event Event) {
	r.mu.Lock()
	targets := make([]*Session, 0)
	for _, userSessions := range r.sessions {
		for _, session := range userSessions {
			targets = append(targets, session)
		}
	}
	r.mu.Unlock()

	for _, session := range targets {
		r.deliver(session, event)
	}
}

// Unregister removes a session and stops its heartbeat. Idempotent.
func (r *Registry) Unregister(session *Session) {
	if session == nil {
		return
	}

	r.mu.Lock()
	userSessions := r.sessions[session.UserID]
	_, present := userSessions[session.ID]
	if present {
		delete(userSessions, session.ID)
		if len(userSessions) == 0 {
			delete(r.sessions, session.UserID)
		}
	}
	r.mu.Unlock()

	if present {
		metrics.ActiveConnections.Dec()
		r.logger.Debug().Str("user_id", session.UserID).Str("connection_id", session.ID).Msg("connection unregistered")
	}
	session.close()
}

// Close unregisters every session, used on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	targets := make([]*Session, 0)
	for _, userSessions := range r.sessions {
		for _, session := range userSessions {
			targets = append(targets, session)
		}
	}
	r.mu.Unlock()

	for _, session := range targets {
		r.Unregister(session)
	}
}

// ConnectionCount reports how many sessions are currently registered.
func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, userSessions := range r.sessions {
		count += len(userSessions)
	}
	return count
}

// deliver hands an event to one session without blocking. A full buffer
// means the consumer is dead or too slow to keep up; the session is pruned
// so one stuck connection cannot stall fan-out to the rest.
func (r *Registry) deliver(session *Session, event Event) {
	select {
	case <-session.done:
		return
	default:
	}

	select {
	case session.events <- event:
		metrics.EventsDelivered.WithLabelValues(string(event.Type)).Inc()
	default:
		metrics.ConnectionsPruned.Inc()
		r.logger.Warn().
			Str("user_id", session.UserID).
			Str("connection_id", session.ID).
			Str("event_type", string(event.Type)).
			Msg("connection stalled, pruning")
		r.Unregister(session)
	}
}

func (r *Registry) runHeartbeat(session *Session) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-session.done:
			return
		case <-ticker.C:
			r.deliver(session, Event{Type: EventHeartbeat, Timestamp: time.Now()})
		}
	}
}
