package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/noodles-scene/noodles-server/internal/core/observability/log"
)

// upgrader is shared across every connection, matching the teacher's
// single package-level websocket.Upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// transport owns the websocket listener. It does nothing with decoded
// frames itself — every accepted connection is handed to the core loop
// through Runtime.connCh, and all protocol logic lives there.
type transport struct {
	rt         *Runtime
	httpServer *http.Server
	listener   net.Listener
	accepting  atomic.Bool
}

func newTransport(rt *Runtime) (*transport, error) {
	addr := fmt.Sprintf(":%d", rt.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListenerFailed, err)
	}

	t := &transport{rt: rt, listener: ln}
	t.accepting.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/", t.handleUpgrade)
	t.httpServer = &http.Server{Handler: mux}

	go func() {
		if err := t.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			rt.logger.Error("websocket listener stopped", log.Error(err))
		}
	}()

	return t, nil
}

// stopAccepting rejects new connections without tearing down the ones
// already handed off to the core loop; called from Runtime.Shutdown.
func (t *transport) stopAccepting() {
	t.accepting.Store(false)
}

func (t *transport) close(ctx context.Context) error {
	return t.httpServer.Shutdown(ctx)
}

func (t *transport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !t.accepting.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.rt.logger.Debug("websocket upgrade failed")
		return
	}

	select {
	case t.rt.connCh <- conn:
	case <-r.Context().Done():
		_ = conn.Close()
	}
}
