package matchd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/omochice/stranger-chat/internal/transport/ws"
	"github.com/omochice/stranger-chat/pkg/protocol"
)

// Server handles WebSocket connections and delegates to Hub.
type Server struct {
	address string
	hub     *Hub
	logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	stopping bool
	wg       sync.WaitGroup
}

// New creates a matching server that uses the provided Hub.
func New(address string, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address: address,
		hub:     hub,
		logger:  logger,
	}
}

// Handler returns the HTTP routes: /ws for clients and /healthz for probes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)
	return r
}

// Start starts accepting connections and blocks until Stop.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start matching server: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.server = &http.Server{Handler: s.Handler()}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("matching server started", "addr", listener.Addr().String())

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the server and closes every client connection.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.stopping = true
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	// hijacked websocket connections are not tracked by http.Server
	s.hub.CloseAll()
	s.wg.Wait()
	return err
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "ok clients=%d queued=%d rooms=%d\n",
		s.hub.ClientCount(), s.hub.QueueLen(), s.hub.RoomCount())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.isStopping() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := ws.Upgrade(w, r)
	if err != nil {
		s.logger.Warn("failed to accept websocket connection", "error", err)
		return
	}

	// Stop may have started during the upgrade. The peer is registered under
	// s.mu so that Stop's CloseAll sees every peer its Wait counts.
	peer := NewPeer(conn)
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.wg.Add(2)
	s.hub.Register(peer)
	s.mu.Unlock()

	s.logger.Info("peer connected", "peer", peer.ID, "remote", conn.RemoteAddr())

	go s.handlePeer(peer)
	go s.writeLoop(peer)
}

func (s *Server) handlePeer(peer *Peer) {
	defer s.wg.Done()
	defer close(peer.Outgoing)
	defer s.hub.Unregister(peer)

	for {
		data, err := peer.Conn.Read(context.Background())
		if err != nil {
			s.logger.Info("peer disconnected", "peer", peer.ID, "reason", err)
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			s.logger.Warn("dropping undecodable frame", "peer", peer.ID, "error", err)
			continue
		}

		switch ev.Name {
		case protocol.EventJoinQueue:
			s.hub.Join(peer)
		case protocol.EventSendMessage:
			if ev.Chat == nil {
				continue
			}
			s.hub.Relay(peer, ev.Chat.RoomID, ev.Chat.Message)
		default:
			s.logger.Debug("ignoring unknown event", "peer", peer.ID, "event", ev.Name)
		}
	}
}

func (s *Server) writeLoop(peer *Peer) {
	defer s.wg.Done()
	defer peer.Conn.Close()
	for data := range peer.Outgoing {
		if err := peer.Conn.Write(context.Background(), data); err != nil {
			s.logger.Warn("failed to write to peer", "peer", peer.ID, "error", err)
			return
		}
	}
}
