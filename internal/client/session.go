package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"bustrack/internal/contracts"
	"bustrack/internal/jwt"
)

var (
	// ErrBadServerURL is a fatal configuration error: retrying a malformed
	// endpoint cannot succeed, so the session lands in StateErrored and
	// never dials.
	ErrBadServerURL = errors.New("malformed realtime server URL")
	ErrAuthRejected = errors.New("server rejected auth handshake")
)

// Session owns one logical connection to the realtime server, abstracting
// reconnection from its callers. Exactly one Session should be live per
// logical actor; create it when the owning context starts and Close it on
// every exit path.
type Session struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	state    State
	conn     Conn
	queue    *offlineQueue
	rooms    membership
	everLive bool
	running  bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}

	nextSub   int
	stateSubs map[int]func(State)
	eventSubs map[string]map[int]func(json.RawMessage)
}

// Open creates a Session and starts connecting. A malformed URL yields an
// inert session in StateErrored together with ErrBadServerURL; every other
// failure mode is handled by the retry policy and surfaced via state, never
// as an error.
func Open(ctx context.Context, opts Options) (*Session, error) {
	opts.withDefaults()

	s := &Session{
		opts:      opts,
		log:       opts.Logger,
		state:     StateConnecting,
		queue:     newOfflineQueue(opts.QueueCapacity),
		stateSubs: make(map[int]func(State)),
		eventSubs: make(map[string]map[int]func(json.RawMessage)),
	}

	if u, err := url.Parse(opts.URL); err != nil || u.Host == "" ||
		(u.Scheme != "ws" && u.Scheme != "wss") {
		s.state = StateErrored
		s.log.Error("session_bad_url", "url", opts.URL)
		return s, ErrBadServerURL
	}

	// fleet observers are always subscribed to the admin-fleet room,
	// without explicit caller action
	if opts.Role.IsFleetObserver() {
		s.rooms.add(RoomAdminFleet, "")
	}

	s.Connect(ctx)
	return s, nil
}

// Connect starts the connection manager. Calling it while the session is
// already connecting or live is a no-op; at most one underlying connection
// is ever managed per Session.
func (s *Session) Connect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.closed || s.state == StateErrored {
		return
	}
	s.running = true
	if !s.everLive {
		s.state = StateConnecting
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx)
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueueLen reports how many samples are waiting for reconnect.
func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// OnStateChange subscribes to state transitions. The returned disposer must
// be called on every exit path of the subscriber's scope.
func (s *Session) OnStateChange(fn func(State)) (dispose func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.stateSubs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.stateSubs, id)
	}
}

// Close is the scoped teardown: it stops the manager, closes the socket and
// drops every registered listener, so an abandoned session can never keep
// firing callbacks into a dead owner.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	conn := s.conn
	done := s.done
	s.conn = nil
	s.stateSubs = make(map[int]func(State))
	s.eventSubs = make(map[string]map[int]func(json.RawMessage))
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}

	s.mu.Lock()
	// Errored is terminal; closing an errored session must not relabel it
	if s.state != StateErrored {
		s.state = StateDisconnected
	}
	s.running = false
	s.mu.Unlock()
}

// run is the connection manager loop. It dials, authenticates, promotes the
// session to Live and pumps inbound frames until the transport drops, then
// backs off and dials again. Server-initiated closes land here like any
// other drop: the transport is never assumed to self-heal them.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	delay := s.opts.ReconnectInitialDelay
	attempts := 0

	for {
		conn, err := s.dialAndAuth(ctx)
		if ctx.Err() != nil {
			if conn != nil {
				_ = conn.Close()
			}
			s.finish(StateDisconnected)
			return
		}
		if err != nil {
			attempts++
			s.log.Warn("session_connect_error", "error", err, "attempt", attempts)
			if s.opts.MaxAttempts > 0 && attempts >= s.opts.MaxAttempts {
				s.log.Error("session_attempts_exhausted", "attempts", attempts)
				s.finish(StateDisconnected)
				return
			}
			s.setState(s.retryState())
			select {
			case <-ctx.Done():
				s.finish(StateDisconnected)
				return
			case <-time.After(jitter(delay)):
			}
			delay = min(delay*2, s.opts.ReconnectMaxDelay)
			continue
		}

		attempts = 0
		delay = s.opts.ReconnectInitialDelay

		s.becomeLive(conn)
		readErr := s.readLoop(conn)
		s.dropConn(conn)

		if ctx.Err() != nil || s.isClosed() {
			s.finish(StateDisconnected)
			return
		}
		s.log.Warn("session_disconnected", "error", readErr)
		s.setState(StateReconnecting)
	}
}

// dialAndAuth establishes the transport and completes the first-frame auth
// handshake within the handshake timeout.
func (s *Session) dialAndAuth(ctx context.Context) (Conn, error) {
	conn, err := s.opts.Dialer(ctx, s.opts.URL)
	if err != nil {
		return nil, err
	}

	auth := jwt.ClientAuthMessage{Type: contracts.EventAuth, Token: "Bearer " + s.opts.Token}
	if err := conn.WriteJSON(auth); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send auth frame: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.opts.HandshakeTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read auth reply: %w", err)
	}
	var reply contracts.Frame
	if err := json.Unmarshal(payload, &reply); err != nil || reply.Type != contracts.EventAuthSuccess {
		_ = conn.Close()
		return nil, ErrAuthRejected
	}
	_ = conn.SetReadDeadline(time.Time{})

	return conn, nil
}

// becomeLive installs the connection and performs the mandatory
// connect-success sequence in order, all under the session lock:
// re-issue every room intent, replay the offline backlog oldest-first, only
// then flip to Live. Observers are notified after the lock is released, so
// a consumer reacting to Live can assume its memberships already exist and
// no fresh sample can overtake the replayed backlog.
func (s *Session) becomeLive(conn Conn) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.everLive = true

	for _, it := range s.rooms.intents {
		frame, err := it.joinFrame()
		if err == nil {
			_ = conn.WriteJSON(json.RawMessage(frame))
		}
	}

	if n := s.queue.len(); n > 0 {
		s.log.Info("session_flush_queue", "pending", n)
	}
	s.queue.drain(func(qs QueuedSample) bool {
		return s.writeLocked(contracts.EventDriverLocationUpdate, updatePayload(qs.Sample)) == nil
	})

	s.state = StateLive
	subs := s.snapshotStateSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(StateLive)
	}
}

// readLoop pumps inbound frames and dispatches them to subscribers until
// the transport errors out.
func (s *Session) readLoop(conn Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame contracts.Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			s.log.Warn("session_bad_frame", "error", err)
			continue
		}
		s.dispatch(frame)
	}
}

func (s *Session) dispatch(frame contracts.Frame) {
	s.mu.Lock()
	var fns []func(json.RawMessage)
	for _, fn := range s.eventSubs[frame.Type] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(frame.Data)
	}
}

// on registers a raw inbound-event handler and returns its disposer.
func (s *Session) on(event string, fn func(json.RawMessage)) (dispose func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	if s.eventSubs[event] == nil {
		s.eventSubs[event] = make(map[int]func(json.RawMessage))
	}
	s.eventSubs[event][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.eventSubs[event], id)
	}
}

// writeLocked sends one frame on the current connection. Callers hold s.mu.
func (s *Session) writeLocked(event string, data any) error {
	if s.conn == nil {
		return errors.New("no live connection")
	}
	frame, err := contracts.NewFrame(event, data)
	if err != nil {
		return err
	}
	return s.conn.WriteJSON(json.RawMessage(frame))
}

func (s *Session) dropConn(conn Conn) {
	_ = conn.Close()
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.state == st || s.closed {
		s.mu.Unlock()
		return
	}
	s.state = st
	subs := s.snapshotStateSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

func (s *Session) finish(st State) {
	s.setState(st)
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Session) retryState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.everLive {
		return StateReconnecting
	}
	return StateConnecting
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) snapshotStateSubs() []func(State) {
	subs := make([]func(State), 0, len(s.stateSubs))
	for _, fn := range s.stateSubs {
		subs = append(subs, fn)
	}
	return subs
}

func jitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(250*time.Millisecond)))
}
