package notify

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsBroadcastServer fans out wsEvents to every connected client. It is
// the server-side mirror of the teacher's ws/user.go client: same
// upgrade-then-loop shape, same ping/pong keepalive, running the
// opposite direction (accept connections instead of dialing out).
type wsBroadcastServer struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex

	srv *http.Server
}

const wsPingInterval = 30 * time.Second

func newWSBroadcastServer() *wsBroadcastServer {
	return &wsBroadcastServer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// AttachWebSocket starts a local HTTP server at addr exposing a single
// "/" websocket endpoint clients can connect to in order to tail wallet
// activity (transaction/error/state events), repurposing the teacher's
// gorilla/websocket dependency for a push feed the mixer contract itself
// has no analogue of (see DESIGN.md).
func (h *Hub) AttachWebSocket(addr string) error {
	ws := newWSBroadcastServer()
	mux := http.NewServeMux()
	mux.HandleFunc("/", ws.handleConn)
	ws.srv = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		if serveErr := ws.srv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Printf("[notify] websocket server stopped: %v", serveErr)
		}
	}()

	h.mu.Lock()
	h.ws = ws
	h.mu.Unlock()
	return nil
}

// DetachWebSocket shuts down the broadcast server started by
// AttachWebSocket, if any.
func (h *Hub) DetachWebSocket(ctx context.Context) error {
	h.mu.Lock()
	ws := h.ws
	h.ws = nil
	h.mu.Unlock()
	if ws == nil || ws.srv == nil {
		return nil
	}
	return ws.srv.Shutdown(ctx)
}

func (ws *wsBroadcastServer) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	writeMu := &sync.Mutex{}
	ws.mu.Lock()
	ws.clients[conn] = writeMu
	ws.mu.Unlock()

	defer func() {
		ws.mu.Lock()
		delete(ws.clients, conn)
		ws.mu.Unlock()
		_ = conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(2 * wsPingInterval))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(2 * wsPingInterval))
		return nil
	})

	stopPing := make(chan struct{})
	go func() {
		tick := time.NewTicker(wsPingInterval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-stopPing:
				return
			}
		}
	}()
	defer close(stopPing)

	// Clients are read-only subscribers; drain and discard anything they
	// send until the connection closes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (ws *wsBroadcastServer) broadcast(ev wsEvent) {
	payload := ev.mustJSON()
	ws.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(ws.clients))
	for conn, writeMu := range ws.clients {
		targets[conn] = writeMu
	}
	ws.mu.Unlock()

	for conn, writeMu := range targets {
		writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, payload)
		writeMu.Unlock()
		if err != nil {
			_ = conn.Close()
			ws.mu.Lock()
			delete(ws.clients, conn)
			ws.mu.Unlock()
		}
	}
}
