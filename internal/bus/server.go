package bus

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"desk-overlay/internal/overlay"
)

const (
	// Path is the websocket endpoint
	Path = "/ws"

	writeTimeout = 5 * time.Second
	maxPending   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// peers are local widget processes, authenticated by token
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// peer is one connected widget process
type peer struct {
	kind    overlay.Kind
	session string
	conn    *websocket.Conn

	writeMu sync.Mutex
}

func (p *peer) write(m Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteJSON(m)
}

// Server accepts one websocket connection per widget kind on loopback and
// feeds inbound messages into a Router.
//
// Each widget launch is announced with Expect, which hands out a session
// id. Only that session may connect for the kind, and queued messages,
// Disconnect and the disconnect callback are all scoped to it, so a
// replaced launch can never touch its successor. A kind with no expected
// session accepts a connection without one.
type Server struct {
	router *Router
	token  string
	log    *zap.Logger

	mu       sync.Mutex
	peers    map[overlay.Kind]*peer
	sessions map[overlay.Kind]string
	pending  map[overlay.Kind][]Message
	listener net.Listener
	http     *http.Server
	closed   bool

	onConnect    func(overlay.Kind)
	onDisconnect func(kind overlay.Kind, session string)
}

// NewServer creates a server with a fresh per-run token
func NewServer(router *Router, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		router:  router,
		token:   uuid.NewString(),
		log:     log.Named("bus"),
		peers:    make(map[overlay.Kind]*peer),
		sessions: make(map[overlay.Kind]string),
		pending:  make(map[overlay.Kind][]Message),
	}
}

// OnConnect registers a callback run after a widget connects
func (s *Server) OnConnect(fn func(overlay.Kind)) {
	s.mu.Lock()
	s.onConnect = fn
	s.mu.Unlock()
}

// OnDisconnect registers a callback run when the connection of the current
// session drops without Disconnect being called
func (s *Server) OnDisconnect(fn func(kind overlay.Kind, session string)) {
	s.mu.Lock()
	s.onDisconnect = fn
	s.mu.Unlock()
}

// Token returns the secret widget processes must present
func (s *Server) Token() string { return s.token }

// Expect starts a new session for kind and returns its id. The previous
// session's connection and queued messages are dropped.
func (s *Server) Expect(kind overlay.Kind) string {
	session := uuid.NewString()

	s.mu.Lock()
	s.sessions[kind] = session
	delete(s.pending, kind)
	old := s.peers[kind]
	delete(s.peers, kind)
	s.mu.Unlock()

	if old != nil {
		old.conn.Close()
	}
	return session
}

// Start listens on addr and serves in the background
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleConnection)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrClosed
	}
	s.listener = ln
	s.http = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("bus server stopped", zap.Error(err))
		}
	}()

	s.log.Info("bus listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the listen address, empty before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := overlay.ParseKind(q.Get("kind"))
	if err != nil || kind == overlay.KindMain {
		http.Error(w, "unknown kind", http.StatusBadRequest)
		return
	}
	if subtle.ConstantTimeCompare([]byte(q.Get("token")), []byte(s.token)) != 1 {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	session := q.Get("session")
	if !s.expected(kind, session) {
		s.log.Debug("rejecting stale widget session", zap.String("kind", string(kind)))
		http.Error(w, "stale session", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.String("kind", string(kind)), zap.Error(err))
		return
	}

	p := &peer{kind: kind, session: session, conn: conn}
	queued, onConnect, ok := s.register(p)
	if !ok {
		conn.Close()
		return
	}

	for _, m := range queued {
		if err := p.write(m); err != nil {
			s.log.Warn("failed to flush queued message", zap.String("kind", string(kind)), zap.Error(err))
			break
		}
	}
	// queued messages go out before anything the callback triggers
	if onConnect != nil {
		onConnect(kind)
	}

	s.readLoop(p)
}

func (s *Server) expected(kind overlay.Kind, session string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[kind] == session
}

// register installs p as the peer for its kind, replacing any older
// connection of the same session
func (s *Server) register(p *peer) ([]Message, func(overlay.Kind), bool) {
	s.mu.Lock()
	// Expect may have replaced the session during the upgrade
	if s.closed || s.sessions[p.kind] != p.session {
		s.mu.Unlock()
		return nil, nil, false
	}
	old := s.peers[p.kind]
	s.peers[p.kind] = p
	queued := s.pending[p.kind]
	delete(s.pending, p.kind)
	onConnect := s.onConnect
	s.mu.Unlock()

	if old != nil {
		old.conn.Close()
	}
	s.log.Info("widget connected", zap.String("kind", string(p.kind)))
	return queued, onConnect, true
}

func (s *Server) readLoop(p *peer) {
	defer s.unregister(p)

	for {
		var m Message
		if err := p.conn.ReadJSON(&m); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket read error", zap.String("kind", string(p.kind)), zap.Error(err))
			}
			return
		}
		// the connection decides the sender, not the payload
		m.Kind = p.kind
		s.router.Dispatch(m)
	}
}

func (s *Server) unregister(p *peer) {
	p.conn.Close()

	s.mu.Lock()
	current := s.peers[p.kind] == p
	if current {
		delete(s.peers, p.kind)
	}
	onDisconnect := s.onDisconnect
	closed := s.closed
	s.mu.Unlock()

	if !current || closed {
		return
	}
	s.log.Info("widget disconnected", zap.String("kind", string(p.kind)))
	if onDisconnect != nil {
		onDisconnect(p.kind, p.session)
	}
}

// Send delivers a message to the current widget of the given kind.
// Messages for a widget that has not connected yet are queued until it
// does.
func (s *Server) Send(kind overlay.Kind, channel string, payload interface{}) error {
	return s.send(kind, "", false, channel, payload)
}

// SendTo is Send scoped to one session. It fails with ErrStaleSession once
// the session has been replaced or disconnected.
func (s *Server) SendTo(kind overlay.Kind, session, channel string, payload interface{}) error {
	return s.send(kind, session, true, channel, payload)
}

func (s *Server) send(kind overlay.Kind, session string, scoped bool, channel string, payload interface{}) error {
	m, err := NewMessage(channel, kind, payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if scoped && s.sessions[kind] != session {
		s.mu.Unlock()
		return fmt.Errorf("failed to send %s to %s: %w", channel, kind, ErrStaleSession)
	}
	p, ok := s.peers[kind]
	if !ok {
		q := s.pending[kind]
		if len(q) >= maxPending {
			q = q[1:]
		}
		s.pending[kind] = append(q, m)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := p.write(m); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", channel, kind, err)
	}
	return nil
}

// Connected reports whether a widget of the given kind is connected
func (s *Server) Connected(kind overlay.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.peers[kind]
	return ok
}

// SessionConnected reports whether session is the connected widget of kind
func (s *Server) SessionConnected(kind overlay.Kind, session string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[kind]
	return ok && p.session == session
}

// Disconnect ends session: its connection and queued messages are dropped
// and it may not connect again. Sessions that are no longer current are
// left alone. The disconnect callback does not run.
func (s *Server) Disconnect(kind overlay.Kind, session string) {
	s.mu.Lock()
	if s.sessions[kind] != session {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, kind)
	delete(s.pending, kind)
	p := s.peers[kind]
	delete(s.peers, kind)
	s.mu.Unlock()

	if p != nil {
		p.conn.Close()
	}
}

// Close stops the listener and drops every connection
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.http
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.pending = make(map[overlay.Kind][]Message)
	s.mu.Unlock()

	for _, p := range peers {
		p.writeMu.Lock()
		p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "host exiting"),
			time.Now().Add(time.Second))
		p.writeMu.Unlock()
		p.conn.Close()
	}

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
