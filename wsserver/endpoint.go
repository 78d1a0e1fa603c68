package wsserver

import (
	"sync"

	"github.com/pepnova/wsserver/sendqueue"
	"github.com/pepnova/wsserver/wsframe"
)

// wsEndpoint holds the callbacks an embedder registered for a URL, plus the
// set of currently connected clients keyed by client id.
type wsEndpoint struct {
	onReceive ReceiveFunc
	onJoined  JoinedFunc

	mu      sync.RWMutex
	clients map[uint64]*clientConn
}

// clientConn is the per-client handle an endpoint keeps so SendWebSocket can
// reach a specific connected client's outbound queue.
type clientConn struct {
	queue *sendqueue.Queue[wsframe.Frame]
}

func (ep *wsEndpoint) addClient(id uint64, c *clientConn) {
	ep.mu.Lock()
	ep.clients[id] = c
	ep.mu.Unlock()
}

func (ep *wsEndpoint) removeClient(id uint64) {
	ep.mu.Lock()
	delete(ep.clients, id)
	ep.mu.Unlock()
}
