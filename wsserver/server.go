// Package wsserver implements the listen server and per-connection drivers:
// it owns the URL registry and WebSocket endpoint metadata, accepts TCP
// connections, and drives each one through the HTTP request cycle and, on
// upgrade, the WebSocket frame cycle.
//
// The Server struct holding a route map and a hub of connections follows
// the shape of internal/server in a typical Go HTTP service; the accept
// loop handing each connection to its own goroutine follows a classic
// net.Listener server, generalized here to a goroutine per accepted
// connection rather than a fixed worker pool.
package wsserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/pepnova/wsserver/httpmsg"
	"github.com/pepnova/wsserver/wsframe"
)

// ReceiveFunc is invoked on every complete WebSocket message received for a
// registered endpoint. It carries no client id; an embedder that must
// address a specific client back tracks the id it was given by JoinedFunc
// itself (see cmd/demo).
type ReceiveFunc func(payload []byte, opcode wsframe.OpCode)

// JoinedFunc is invoked once a WebSocket client completes its handshake.
type JoinedFunc func(url string, clientID uint64)

// Server is the embeddable listen server: it owns the URL registry, the set
// of registered WebSocket endpoints, and the accept loop. The zero value is
// not usable; construct with New.
type Server struct {
	logger *slog.Logger

	mu          sync.RWMutex
	registry    map[string]*httpmsg.Response
	wsEndpoints map[string]*wsEndpoint

	nextClientID atomic.Uint64

	ln     net.Listener
	port   int
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// New constructs a Server listening on port, with every non-Invalid status
// code's canned response (plus the websocket-success-base template)
// prebuilt. It does not start accepting connections; call StartAsync for
// that.
func New(port int, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("wsserver: listen on port %d: %w", port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		logger:      logger,
		registry:    httpmsg.BuildStatusCatalog(),
		wsEndpoints: make(map[string]*wsEndpoint),
		ln:          ln,
		port:        port,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// RegisterStatic registers a canned response for url. It may be called
// either before StartAsync or while the server is running; registry access
// is mutex-guarded, though in practice registrations happen once during
// embedder setup.
func (s *Server) RegisterStatic(url string, content []byte, contentType string, headers map[string]string) error {
	resp := httpmsg.NewResponse(httpmsg.Status200)
	resp.AddContent(content, contentType)
	if len(headers) > 0 {
		resp.AddMessageHeaders(headers)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[url] = resp
	return nil
}

// RegisterWebSocket registers url as a WebSocket endpoint. It also installs
// a clone of the websocket-success-base template under url in the plain URL
// registry, since dispatch checks registry membership before it checks for
// upgrade headers.
func (s *Server) RegisterWebSocket(url string, onReceive ReceiveFunc, onJoined JoinedFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base, ok := s.registry[httpmsg.WebSocketSuccessBaseKey]
	if !ok {
		return errors.New("wsserver: websocket-success-base template missing")
	}

	s.registry[url] = base.Clone()
	s.wsEndpoints[url] = &wsEndpoint{
		onReceive: onReceive,
		onJoined:  onJoined,
		clients:   make(map[uint64]*clientConn),
	}
	return nil
}

// SendWebSocket enqueues payload for delivery to clientID on url's
// WebSocket endpoint. It returns an error if url is not a registered
// WebSocket endpoint or clientID is not currently connected.
func (s *Server) SendWebSocket(url string, clientID uint64, payload []byte, opcode wsframe.OpCode) error {
	s.mu.RLock()
	ep, ok := s.wsEndpoints[url]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("wsserver: %q is not a registered WebSocket endpoint", url)
	}

	ep.mu.RLock()
	client, ok := ep.clients[clientID]
	ep.mu.RUnlock()
	if !ok {
		return fmt.Errorf("wsserver: client %d is not connected on %q", clientID, url)
	}

	return client.queue.Push(s.ctx, wsframe.Frame{Fin: true, Opcode: opcode, Payload: payload})
}

// Addr returns the listener's bound address, useful for tests and for
// embedders that pass port 0 to let the OS choose one.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// StartAsync begins accepting connections on a background goroutine. It
// returns immediately.
func (s *Server) StartAsync() {
	s.wg.Add(1)
	go s.acceptLoop()
}

// acceptLoop runs on its own goroutine. Listener.Accept already blocks
// without spinning, so this goroutine never busy-waits. Each accepted
// connection is handed to its own goroutine.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", slog.Any("error", err))
			continue
		}

		connID := uuid.NewString()
		log := s.logger.With(slog.String("conn_id", connID), slog.String("remote_addr", conn.RemoteAddr().String()))
		log.Info("accepted connection")

		s.wg.Add(1)
		go s.serveHTTPConnection(conn, log)
	}
}

// Stop signals the accept loop and every live connection/driver goroutine to
// exit, closes the listener, and waits (bounded by ctx) for all goroutines
// to finish, including active WebSocket drivers.
func (s *Server) Stop(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.ln.Close()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wsserver: stop: %w", ctx.Err())
	}
}
