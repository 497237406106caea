package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	callrelay "github.com/BrownNPC/CallRelay"
	"github.com/BrownNPC/CallRelay/internal"
	"github.com/coder/websocket"
	"github.com/go4org/hashtriemap"
	"golang.org/x/time/rate"
)

// ServerConfig holds the per-connection limits of the websocket transport.
type ServerConfig struct {
	// Close if a single write takes longer than this.
	WriteTimeout time.Duration
	PingInterval time.Duration
	// Inbound messages per second per connection. Exceeding it closes the connection.
	MessagesPerSecond float64
	MessageBurst      int
	// Outbound messages buffered per connection before new ones are dropped.
	SendQueueSize int
	ReadLimit     int64
}

func (c ServerConfig) WithDefaults() ServerConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 2 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 10 * time.Second
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = 10
	}
	if c.MessageBurst <= 0 {
		c.MessageBurst = 20
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 32
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 << 10
	}
	return c
}

// peer is one accepted websocket and the handle the core knows it by.
type peer struct {
	conn  *Conn
	ws    *websocket.Conn
	codec Codec
	send  chan []byte
	// closed when the read loop exits. send is never closed.
	done chan struct{}
}

// enqueue hands b to the write loop without blocking. It reports false when the
// peer is gone or its queue is full.
func (p *peer) enqueue(b []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- b:
		return true
	default:
		return false
	}
}

// Serverside implementation of the websocket call signaling relay.
type WebsocketSignalingServer struct {
	opts websocket.AcceptOptions
	cfg  ServerConfig
	// map connection id to live peer. Every accepted socket is here, registered or not.
	peers    hashtriemap.HashTrieMap[callrelay.ConnID, *peer]
	registry *Registry
	router   *Router
	Mux      *http.ServeMux
	log      *slog.Logger
}

// Uses Default logger if logger is nil.
// opts.Subprotocols defaults to Subprotocols().
func NewWebsocketSignalingServer(log *slog.Logger, registry *Registry, cfg ServerConfig, opts websocket.AcceptOptions) *WebsocketSignalingServer {
	if log == nil {
		log = slog.Default()
	}
	if len(opts.Subprotocols) == 0 {
		opts.Subprotocols = Subprotocols()
	}
	s := new(WebsocketSignalingServer)
	s.log = log
	s.opts = opts
	s.cfg = cfg.WithDefaults()
	s.registry = registry
	s.router = NewRouter(registry, s, log)
	s.Mux = new(http.ServeMux)
	s.Mux.HandleFunc("GET /ws", s.serve)
	s.Mux.HandleFunc("GET /healthz", s.healthz)
	return s
}

func (s *WebsocketSignalingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Mux.ServeHTTP(w, r)
}

// GET /ws
func (s *WebsocketSignalingServer) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &s.opts)
	if err != nil {
		s.log.Debug("Failed to accept conn", "error", err)
		return
	}
	// incase it leaks somehow
	defer ws.CloseNow()

	codec, err := CodecFor(ws.Subprotocol())
	if err != nil {
		ws.Close(websocket.StatusPolicyViolation, "unsupported subprotocol")
		s.log.Debug("closing conn", "error", err)
		return
	}
	ws.SetReadLimit(s.cfg.ReadLimit)

	id := internal.GenerateUniqueConnID(s.isUnique)
	p := &peer{
		conn:  NewConn(id),
		ws:    ws,
		codec: codec,
		send:  make(chan []byte, s.cfg.SendQueueSize),
		done:  make(chan struct{}),
	}
	s.peers.Store(id, p)
	s.log.Debug("conn opened", "conn", id, "subprotocol", codec.Subprotocol())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// stop routing to the peer before the registry broadcasts its departure.
	defer func() {
		close(p.done)
		s.peers.Delete(id)
		s.router.Dispatch(p.conn, Closed{})
		s.log.Debug("conn closed", "conn", id)
	}()

	go s.writeLoop(ctx, p)
	go s.pingLoop(ctx, p)

	lim := rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.MessageBurst)
	for {
		if !lim.Allow() {
			ws.Close(websocket.StatusPolicyViolation, "rate limit")
			s.log.Debug("conn closed for ratelimit hit", "conn", id)
			return
		}
		f, err := ReadMsg(ctx, ws, codec)
		if errors.Is(err, ErrMalformedFrame) {
			s.log.Debug("dropping malformed frame", "conn", id, "error", err)
			continue
		} else if err != nil {
			s.log.Debug("conn shutting down", "conn", id, "error", err)
			return
		}
		ev, err := ParseEvent(f)
		if err != nil {
			s.log.Debug("dropping frame", "conn", id, "error", err)
			continue
		}
		s.router.Dispatch(p.conn, ev)
	}
}

// Drains the peer's send queue. A failed write closes the socket, which ends the read loop.
func (s *WebsocketSignalingServer) writeLoop(ctx context.Context, p *peer) {
	for {
		select {
		case b := <-p.send:
			if err := writeRaw(ctx, p.ws, p.codec, b, s.cfg.WriteTimeout); err != nil {
				s.log.Debug("write failed, closing", "conn", p.conn.ID(), "error", err)
				p.ws.CloseNow()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Ping loop
func (s *WebsocketSignalingServer) pingLoop(ctx context.Context, p *peer) {
	t := time.NewTicker(s.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
		pctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
		err := p.ws.Ping(pctx)
		cancel()
		if err != nil {
			s.log.Debug("ping failed, closing", "conn", p.conn.ID(), "error", err)
			p.ws.CloseNow()
			return
		}
	}
}

// Deliver implements Transport.
func (s *WebsocketSignalingServer) Deliver(conn *Conn, event string, payload any) {
	p, ok := s.peers.Load(conn.ID())
	if !ok {
		s.log.Debug("deliver to closed conn, dropping", "event", event, "conn", conn.ID())
		return
	}
	b, err := p.codec.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		s.log.Error("failed to encode event", "event", event, "error", err)
		return
	}
	if !p.enqueue(b) {
		s.log.Debug("send queue full, dropping", "event", event, "conn", conn.ID())
	}
}

// Broadcast implements Transport. The frame is encoded once per codec in use.
func (s *WebsocketSignalingServer) Broadcast(event string, payload any) {
	f := Frame{Event: event, Data: payload}
	encoded := make(map[string][]byte, 2)
	s.peers.Range(func(id callrelay.ConnID, p *peer) bool {
		b, ok := encoded[p.codec.Subprotocol()]
		if !ok {
			var err error
			b, err = p.codec.Marshal(f)
			if err != nil {
				s.log.Error("failed to encode event", "event", event, "error", err)
				return true
			}
			encoded[p.codec.Subprotocol()] = b
		}
		if !p.enqueue(b) {
			s.log.Debug("send queue full, dropping", "event", event, "conn", id)
		}
		return true
	})
}

// CloseAll closes every live connection with StatusGoingAway and waits for the
// close handshakes.
func (s *WebsocketSignalingServer) CloseAll(reason string) {
	var wg sync.WaitGroup
	s.peers.Range(func(_ callrelay.ConnID, p *peer) bool {
		wg.Go(func() { p.ws.Close(websocket.StatusGoingAway, reason) })
		return true
	})
	wg.Wait()
}

// Connections returns the number of live connections, registered or not.
func (s *WebsocketSignalingServer) Connections() int {
	n := 0
	s.peers.Range(func(callrelay.ConnID, *peer) bool {
		n++
		return true
	})
	return n
}

type healthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Users       int    `json:"users"`
}

// GET /healthz
func (s *WebsocketSignalingServer) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:      "ok",
		Connections: s.Connections(),
		Users:       s.registry.Len(),
	})
}

// Returns false if a peer with id exists.
func (s *WebsocketSignalingServer) isUnique(id callrelay.ConnID) bool {
	if _, ok := s.peers.Load(id); ok {
		return false
	}
	return true
}
