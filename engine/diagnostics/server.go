package diagnostics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spaghettifunk/anima-ar/engine/core"
)

const writeTimeout = time.Second

var upgrader = websocket.Upgrader{
	// debugging tool bound to a local address
	CheckOrigin: func(r *http.Request) bool { return true },
}

/**
 * @brief Serves the collector snapshots over a websocket at /ws and as a
 * plain JSON document at /snapshot.
 */
type Server struct {
	collector *Collector
	http      *http.Server
	listener  net.Listener

	clientsMutex sync.RWMutex
	clients      map[*websocket.Conn]*sync.Mutex
}

func NewServer(collector *Collector) *Server {
	s := &Server{
		collector: collector,
		clients:   make(map[*websocket.Conn]*sync.Mutex),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Start listens on address and serves in the background.
func (s *Server) Start(address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.listener = l
	go func() {
		if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			core.LogError("diagnostics server stopped: %s", err.Error())
		}
	}()
	core.LogInfo("diagnostics listening on %s", l.Addr().String())
	return nil
}

// Addr is the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := s.collector.JSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		core.LogWarn("diagnostics websocket upgrade: %s", err.Error())
		return
	}
	defer conn.Close()

	connMutex := &sync.Mutex{}
	s.clientsMutex.Lock()
	s.clients[conn] = connMutex
	s.clientsMutex.Unlock()
	defer func() {
		s.clientsMutex.Lock()
		delete(s.clients, conn)
		s.clientsMutex.Unlock()
	}()

	// initial state for the new client
	connMutex.Lock()
	err = writeSnapshot(conn, s.collector.Snapshot())
	connMutex.Unlock()
	if err != nil {
		return
	}

	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snapshot Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(snapshot)
}

// Broadcast sends the current snapshot to every client. Clients failing the
// write are dropped.
func (s *Server) Broadcast() {
	snapshot := s.collector.Snapshot()

	s.clientsMutex.RLock()
	var failed []*websocket.Conn
	for client, mutex := range s.clients {
		mutex.Lock()
		err := writeSnapshot(client, snapshot)
		mutex.Unlock()
		if err != nil {
			core.LogDebug("diagnostics client dropped: %s", err.Error())
			client.Close()
			failed = append(failed, client)
		}
	}
	s.clientsMutex.RUnlock()

	if len(failed) > 0 {
		s.clientsMutex.Lock()
		for _, client := range failed {
			delete(s.clients, client)
		}
		s.clientsMutex.Unlock()
	}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.clientsMutex.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clientsMutex.Unlock()
	return s.http.Shutdown(ctx)
}
