// Package gateway is the WebSocket bridge between renderer processes and the
// core: renderers call RPC methods and receive pushed events, each connection
// bound to the window hosting it.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"noelle/internal/domain"
	"noelle/internal/infra/config"
	"noelle/internal/infra/middleware"
)

// RPCHandler handles a single RPC method call.
type RPCHandler func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error)

// clientConn tracks a single WebSocket connection.
type clientConn struct {
	id        uint64
	info      *ClientInfo
	ws        *websocket.Conn
	sendCh    chan Frame // buffered outbound queue
	limiter   *rate.Limiter
	done      chan struct{}
	closeOnce sync.Once
}

// Server is the WebSocket gateway that exposes RPC methods and pushes events.
type Server struct {
	bus        domain.EventBus
	clients    sync.Map // connID (uint64) -> *clientConn
	auth       Authenticator
	handlersMu sync.RWMutex
	handlers   map[string]RPCHandler
	logger     *slog.Logger
	cfg        config.GatewayConfig
	boundAddr  atomic.Value
	nextID     atomic.Uint64

	lifeMu   sync.Mutex // guards httpSrv, unsubAll and stopped
	httpSrv  *http.Server
	unsubAll func()
	stopped  bool

	httpRoutes []httpRoute // additional HTTP routes
	onLeave    []func(*ClientInfo)
}

type httpRoute struct {
	pattern string
	handler http.HandlerFunc
}

// NewServer creates a gateway server. bus may be nil.
func NewServer(bus domain.EventBus, auth Authenticator, cfg config.GatewayConfig, logger *slog.Logger) *Server {
	return &Server{
		bus:      bus,
		auth:     auth,
		handlers: make(map[string]RPCHandler),
		logger:   logger,
		cfg:      cfg,
	}
}

// RegisterHandler adds an RPC handler for the given method name.
// Safe to call concurrently with active connections.
func (s *Server) RegisterHandler(method string, handler RPCHandler) {
	s.handlersMu.Lock()
	s.handlers[method] = handler
	s.handlersMu.Unlock()
}

// RegisterHTTPRoute adds an HTTP handler to the gateway's mux.
// Must be called before Start().
func (s *Server) RegisterHTTPRoute(pattern string, handler http.HandlerFunc) {
	s.httpRoutes = append(s.httpRoutes, httpRoute{pattern: pattern, handler: handler})
}

// OnDisconnect registers fn to run after a connection goes away.
// Must be called before Start().
func (s *Server) OnDisconnect(fn func(*ClientInfo)) {
	s.onLeave = append(s.onLeave, fn)
}

// Start begins accepting WebSocket connections. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	for _, route := range s.httpRoutes {
		mux.HandleFunc(route.pattern, route.handler)
	}
	handler := middleware.Recover(s.logger)(middleware.LoopbackOnly(middleware.SecurityHeaders(mux)))

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	s.lifeMu.Lock()
	if s.stopped {
		s.lifeMu.Unlock()
		listener.Close()
		return nil
	}
	s.httpSrv = srv
	if s.bus != nil {
		s.unsubAll = s.bus.SubscribeAll(s.forwardEvent)
	}
	s.lifeMu.Unlock()

	// Published last: a caller that sees the address can Stop safely.
	s.boundAddr.Store(listener.Addr().String())
	s.logger.Info("gateway started", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the gateway server. A Start that has not yet
// begun serving returns without serving.
func (s *Server) Stop(ctx context.Context) error {
	s.lifeMu.Lock()
	s.stopped = true
	srv, unsub := s.httpSrv, s.unsubAll
	s.unsubAll = nil
	s.lifeMu.Unlock()

	if unsub != nil {
		unsub()
	}

	// Close all client connections.
	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.closeOnce.Do(func() { close(cc.done) })
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string {
	v, _ := s.boundAddr.Load().(string)
	return v
}

// SendTo pushes an event to every connection bound to contentID.
func (s *Server) SendTo(contentID, channel string, payload any) {
	frame, ok := s.eventFrame(channel, payload)
	if !ok {
		return
	}
	s.clients.Range(func(_, value any) bool {
		cc := value.(*clientConn)
		if cc.info.ContentID == contentID {
			s.enqueue(cc, frame)
		}
		return true
	})
}

// Broadcast pushes an event to every connection.
func (s *Server) Broadcast(channel string, payload any) {
	frame, ok := s.eventFrame(channel, payload)
	if !ok {
		return
	}
	s.clients.Range(func(_, value any) bool {
		s.enqueue(value.(*clientConn), frame)
		return true
	})
}

// Connected counts open connections.
func (s *Server) Connected() int {
	n := 0
	s.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *Server) eventFrame(channel string, payload any) (Frame, bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("gateway: event not encodable", "channel", channel, "error", err)
		return Frame{}, false
	}
	return Frame{Type: FrameTypeEvent, Method: channel, Payload: raw}, true
}

func (s *Server) enqueue(cc *clientConn, frame Frame) {
	select {
	case cc.sendCh <- frame:
	default:
		s.logger.Warn("gateway: dropped event for slow client", "conn_id", cc.id, "channel", frame.Method)
	}
}

func (s *Server) newLimiter() *rate.Limiter {
	rl := s.cfg.RateLimit
	if rl.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := rl.Burst
	if burst <= 0 {
		burst = int(rl.RequestsPerSecond)
	}
	return rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), max(burst, 1))
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	// Authenticate via query param.
	token := r.URL.Query().Get("token")
	clientInfo, err := s.auth.Authenticate(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	clientInfo.ContentID = r.URL.Query().Get("content")

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: append([]string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		}, s.cfg.AllowedOrigins...),
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	connID := s.nextID.Add(1)
	cc := &clientConn{
		id:      connID,
		info:    clientInfo,
		ws:      ws,
		sendCh:  make(chan Frame, 256),
		limiter: s.newLimiter(),
		done:    make(chan struct{}),
	}
	s.clients.Store(connID, cc)

	s.logger.Info("gateway client connected", "conn_id", connID, "client", clientInfo.Name, "content_id", clientInfo.ContentID)

	// Start write loop.
	go s.writeLoop(cc)

	// Read loop (blocking).
	s.readLoop(r.Context(), cc)

	// Cleanup.
	cc.closeOnce.Do(func() { close(cc.done) })
	s.clients.Delete(connID)
	ws.Close(websocket.StatusNormalClosure, "")
	for _, fn := range s.onLeave {
		fn(clientInfo)
	}
	s.logger.Info("gateway client disconnected", "conn_id", connID)
}

func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		var frame Frame
		err := wsjson.Read(ctx, cc.ws, &frame)
		if err != nil {
			return // connection closed or error
		}

		if frame.Type != FrameTypeRequest {
			continue
		}
		if !cc.limiter.Allow() {
			s.sendResponse(cc, frame.ID, nil, domain.ErrRateLimit)
			continue
		}

		go s.dispatchRPC(ctx, cc, frame)
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, cc.ws, frame)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatchRPC(ctx context.Context, cc *clientConn, req Frame) {
	defer func() {
		if v := recover(); v != nil {
			s.logger.Error("gateway: rpc handler panic", "method", req.Method, "panic", v, "stack", string(debug.Stack()))
			s.sendResponse(cc, req.ID, nil, fmt.Errorf("internal error in %s", req.Method))
		}
	}()

	s.handlersMu.RLock()
	handler, ok := s.handlers[req.Method]
	s.handlersMu.RUnlock()
	if !ok {
		s.sendResponse(cc, req.ID, nil, domain.ErrRPCMethodNotFound)
		return
	}

	result, err := handler(ctx, cc.info, req.Payload)
	s.sendResponse(cc, req.ID, result, err)
}

func (s *Server) sendResponse(cc *clientConn, id uint64, result json.RawMessage, err error) {
	resp := Frame{
		Type:    FrameTypeResponse,
		ID:      id,
		Payload: result,
	}
	if err != nil {
		resp.Error = err.Error()
		resp.Code = string(domain.ErrorCodeOf(err))
	}
	select {
	case cc.sendCh <- resp:
	default:
		s.logger.Warn("gateway: dropped RPC response for slow client", "frame_id", id)
	}
}
