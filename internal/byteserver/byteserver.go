// Package byteserver implements the auxiliary HTTP server that serves
// large byte blobs (buffer/image contents) by URI instead of inlining
// them into a CBOR frame, for clients that created a Buffer or Image
// with a uri_bytes/uri_source reference rather than inline bytes.
// [EXPANSION] grounded on original_source/rigatoni/byte_server.py,
// reimplemented on net/http instead of a hand-rolled socket loop.
package byteserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/noodles-scene/noodles-server/internal/core/observability/log"
)

// Server hosts byte blobs under sequentially tagged paths and serves
// them as application/octet-stream.
type Server struct {
	addr   string
	logger log.Log

	httpServer *http.Server

	mu      sync.RWMutex
	buffers map[string][]byte
	nextTag atomic.Uint64
}

// New returns a Server that will listen on addr once Start is called.
func New(addr string, logger log.Log) *Server {
	s := &Server{addr: addr, logger: logger, buffers: make(map[string][]byte)}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins listening in the background. It returns once the
// listener is ready to accept or an error starting it occurs.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("byteserver: listen on %s: %w", s.addr, err)
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("byte server stopped", log.Error(err))
		}
	}()
	s.logger.Info("byte server listening", log.String("addr", s.addr))
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// AddBuffer registers data under a fresh tag and returns the URL
// clients should fetch it from, for use as a Buffer's uri_bytes or an
// Image's uri_source.
func (s *Server) AddBuffer(data []byte) string {
	tag := strconv.FormatUint(s.nextTag.Add(1)-1, 10)

	s.mu.Lock()
	s.buffers[tag] = data
	s.mu.Unlock()

	url := fmt.Sprintf("http://%s/%s", s.addr, tag)
	s.logger.Info("byte server buffer added", log.String("url", url), log.Int("bytes", len(data)))
	return url
}

// RemoveBuffer drops a previously added buffer, once nothing on the
// scene graph references its URI anymore.
func (s *Server) RemoveBuffer(tag string) {
	s.mu.Lock()
	delete(s.buffers, tag)
	s.mu.Unlock()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Path[1:]

	s.mu.RLock()
	data, ok := s.buffers[tag]
	s.mu.RUnlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
