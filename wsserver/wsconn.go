package wsserver

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/pepnova/wsserver/buffer"
	"github.com/pepnova/wsserver/sendqueue"
	"github.com/pepnova/wsserver/stopwatch"
	"github.com/pepnova/wsserver/wsframe"
)

const (
	// wsHeartbeatInterval is the read-deadline granularity for the
	// WebSocket driver goroutine.
	wsHeartbeatInterval = 250 * time.Millisecond
	// wsIdleTimeout ends the driver if no complete message is reassembled
	// within this window.
	wsIdleTimeout = 600 * time.Second
)

// startWebSocketDriver registers clientID on ep and launches its driver
// goroutine. Called with the handshake response already written to conn.
func (s *Server) startWebSocketDriver(conn net.Conn, clientID uint64, url string, ep *wsEndpoint, log *slog.Logger) {
	queue := sendqueue.New[wsframe.Frame](0)
	ep.addClient(clientID, &clientConn{queue: queue})

	s.wg.Add(1)
	go s.runWebSocketDriver(conn, clientID, url, ep, queue, log)
}

// runWebSocketDriver runs on its own goroutine for one connected client:
// each iteration drains the client's outbound queue, then reads available
// bytes under a short deadline, decoding and reassembling as many frames as
// the buffer currently holds. Close frames end the driver; Ping frames are
// answered with Pong. onReceive fires once per reassembled logical message.
func (s *Server) runWebSocketDriver(conn net.Conn, clientID uint64, url string, ep *wsEndpoint, queue *sendqueue.Queue[wsframe.Frame], log *slog.Logger) {
	defer s.wg.Done()
	defer conn.Close()
	defer ep.removeClient(clientID)
	defer queue.Close()

	buf := buffer.New()
	reassembler := wsframe.NewReassembler()
	idle := stopwatch.New(time.Now(), wsIdleTimeout)
	scratch := make([]byte, 4096)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		for {
			frame, ok := queue.TryPop()
			if !ok {
				break
			}
			if _, err := conn.Write(wsframe.Encode(frame.Fin, frame.Opcode, frame.Payload)); err != nil {
				log.Warn("write frame failed", slog.Any("error", err))
				return
			}
		}

		if err := conn.SetReadDeadline(time.Now().Add(wsHeartbeatInterval)); err != nil {
			return
		}

		n, err := conn.Read(scratch)
		now := time.Now()

		if n > 0 {
			buf.Append(scratch[:n])

			for {
				frame, consumed, derr := wsframe.Decode(buf.Data())
				if derr != nil {
					break
				}
				remainder := append([]byte(nil), buf.Data()[consumed:]...)
				buf.Reset()
				buf.Append(remainder)

				switch frame.Opcode {
				case wsframe.OpClose:
					log.Info("client sent close frame")
					return
				case wsframe.OpPing:
					if _, werr := conn.Write(wsframe.Encode(true, wsframe.OpPong, frame.Payload)); werr != nil {
						log.Warn("failed to send pong", slog.Any("error", werr))
						return
					}
					continue
				case wsframe.OpPong:
					continue
				}

				if msg, ok := reassembler.Add(frame); ok {
					idle.Reset(now)
					ep.onReceive(msg.Content, msg.Opcode)
				}
			}
		}

		if err == nil {
			continue
		}

		if isTimeout(err) {
			if idle.DurationReached(now) {
				log.Info("websocket idle timeout")
				return
			}
			continue
		}

		if !errors.Is(err, io.EOF) {
			log.Warn("websocket recv error", slog.Any("error", err))
		}
		return
	}
}
