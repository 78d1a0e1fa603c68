package wsserver

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/pepnova/wsserver/buffer"
	"github.com/pepnova/wsserver/handshake"
	"github.com/pepnova/wsserver/httpmsg"
	"github.com/pepnova/wsserver/stopwatch"
)

const (
	// httpHeartbeatInterval is both the read-deadline granularity and the
	// "awaiting data" heartbeat threshold.
	httpHeartbeatInterval = 250 * time.Millisecond
	// httpIdleTimeout is how long a connection may sit with no bytes
	// received before it is answered with 408 and dropped.
	httpIdleTimeout = 5 * time.Second
)

// serveHTTPConnection is the HTTP receive loop for one accepted TCP
// connection: it loops on conn.Read under a short read deadline,
// accumulating bytes into a Buffer, dispatching complete requests, and
// closing (or handing the socket off to a WebSocket driver) when it decides
// the connection is finished.
func (s *Server) serveHTTPConnection(conn net.Conn, log *slog.Logger) {
	defer s.wg.Done()

	buf := buffer.New()
	idle := stopwatch.New(time.Now(), httpIdleTimeout)
	heartbeat := stopwatch.New(time.Now(), httpHeartbeatInterval)
	scratch := make([]byte, 4096)

	handedOff := false
	defer func() {
		if !handedOff {
			conn.Close()
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(httpHeartbeatInterval)); err != nil {
			log.Warn("set read deadline failed", slog.Any("error", err))
			return
		}

		n, err := conn.Read(scratch)
		now := time.Now()

		if n > 0 {
			buf.Append(scratch[:n])
			idle.Reset(now)

			if httpmsg.IsComplete(buf.Data()) {
				req := httpmsg.Parse(buf.Data())
				buf.Reset() // no pipelining: any bytes after a complete request are discarded

				keepOpen, keepAlive := s.dispatch(conn, req, log)
				if keepOpen {
					handedOff = true
					return
				}
				if !keepAlive {
					return
				}
				idle.Reset(time.Now())
			}
		}

		if err == nil {
			continue
		}

		if isTimeout(err) {
			if heartbeat.DurationReached(now) {
				log.Debug("awaiting data")
			}
			if idle.DurationReached(now) {
				log.Info("receive timeout, sending 408")
				s.writeCatalog(conn, httpmsg.Status408)
				return
			}
			continue
		}

		if !errors.Is(err, io.EOF) {
			log.Error("recv error", slog.Any("error", err))
			s.writeCatalog(conn, httpmsg.Status500)
		}
		return
	}
}

// dispatch runs the method/registry/upgrade checks in order, then either
// performs the WebSocket handshake hand-off or writes the looked-up
// response. It reports whether the socket was handed off to a WebSocket
// driver (keepOpen) and, if not, whether the caller should keep servicing
// the same connection for further requests (keepAlive).
func (s *Server) dispatch(conn net.Conn, req *httpmsg.Request, log *slog.Logger) (keepOpen, keepAlive bool) {
	if req.Method != httpmsg.Get {
		s.writeCatalog(conn, httpmsg.Status501)
		return false, false
	}

	resp, ep, registered := s.lookup(req.URL)
	if !registered {
		s.writeCatalog(conn, httpmsg.Status404)
		return false, false
	}

	if ep != nil && req.HeaderEquals("Connection", "Upgrade") && req.HeaderEquals("Upgrade", "websocket") {
		return s.performHandshake(conn, req, ep, req.URL, log), false
	}

	conn.Write(resp.Bytes())
	keepAlive = req.HeaderEquals("Connection", "keep-alive")
	if !keepAlive {
		closeWrite(conn)
	}
	return false, keepAlive
}

// performHandshake rejects a missing Sec-WebSocket-Key with 400; otherwise
// it writes the 101 response, registers a new client id, starts that
// client's WebSocket driver goroutine, and invokes the endpoint's joined
// callback. It reports whether the socket was handed off to the driver.
func (s *Server) performHandshake(conn net.Conn, req *httpmsg.Request, ep *wsEndpoint, url string, log *slog.Logger) bool {
	key, ok := req.Headers["Sec-WebSocket-Key"]
	if !ok || key == "" {
		s.writeCatalog(conn, httpmsg.Status400)
		return false
	}

	s.mu.RLock()
	base := s.registry[httpmsg.WebSocketSuccessBaseKey]
	s.mu.RUnlock()

	resp := base.Clone()
	resp.AddMessageHeaders(map[string]string{"Sec-WebSocket-Accept": handshake.AcceptKey(key)})
	if _, err := conn.Write(resp.Bytes()); err != nil {
		log.Warn("failed writing handshake response", slog.Any("error", err))
		return false
	}

	clientID := s.nextClientID.Add(1)
	log = log.With(slog.String("url", url), slog.Uint64("client_id", clientID))
	log.Info("websocket handshake complete")

	s.startWebSocketDriver(conn, clientID, url, ep, log)
	ep.onJoined(url, clientID)
	return true
}

func (s *Server) lookup(url string) (*httpmsg.Response, *wsEndpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.registry[url]
	return resp, s.wsEndpoints[url], ok
}

func (s *Server) writeCatalog(conn net.Conn, code httpmsg.StatusCode) {
	s.mu.RLock()
	resp, ok := s.registry[code.ReasonPhrase()]
	s.mu.RUnlock()
	if !ok {
		return
	}
	conn.Write(resp.Bytes())
	closeWrite(conn)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// closeWrite half-closes the send side when the underlying conn supports
// it, giving the peer a clean EOF before the full Close a caller's defer
// will perform; on conn types without CloseWrite it's a no-op.
func closeWrite(conn net.Conn) {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		wc.CloseWrite()
	}
}
