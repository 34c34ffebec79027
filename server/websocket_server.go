package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/room4-2/voicerag/config"
	"github.com/room4-2/voicerag/relay"
)

// Server accepts client WebSocket connections and hands them to the relay
type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	manager    *relay.Manager
	config     *config.Config
	logger     *zap.Logger
}

// New creates the HTTP server with the /ws and /health routes
func New(cfg *config.Config, manager *relay.Manager, logger *zap.Logger) *Server {
	s := &Server{
		manager: manager,
		config:  cfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024, // 64KB for audio frames
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return OriginAllowed(cfg.AllowedOrigins, origin)
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	return s
}

// OriginAllowed checks an Origin header against the configured allow list
func OriginAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// Start begins listening for connections
func (s *Server) Start() error {
	s.logger.Info("relay server starting",
		zap.Int("port", s.config.Port),
		zap.String("upstream", s.config.UpstreamEndpoint),
	)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.manager.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session, err := s.manager.CreateSession(r.Context(), conn)
	if err != nil {
		s.logger.Error("failed to create session", zap.Error(err))
		_ = conn.WriteJSON(map[string]any{
			"type": "error",
			"error": map[string]any{
				"code":    "session_failed",
				"message": err.Error(),
			},
		})
		conn.Close()
		return
	}

	s.logger.Info("session created", zap.String("session", session.ID))
	session.Start()

	// Wait for session to close, then clean up
	<-session.CloseChan
	_ = s.manager.RemoveSession(context.Background(), session.ID)
	s.logger.Info("session closed", zap.String("session", session.ID))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.manager.ActiveSessionCount())
}
