package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/room4-2/voicerag/config"
	"github.com/room4-2/voicerag/tool"
)

// ErrMaxSessions is returned when the session cap is reached
var ErrMaxSessions = errors.New("maximum sessions reached")

// Manager owns all live relay sessions. Redis, when reachable, carries
// session bookkeeping for observability; the relay works without it.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	redis    *redis.Client
	config   *config.Config
	registry *tool.Registry
	dialer   *Dialer
	logger   *zap.Logger
}

// NewManager creates a session manager. The registry must be fully attached
// before the first session is created.
func NewManager(cfg *config.Config, registry *tool.Registry, dialer *Dialer, logger *zap.Logger) *Manager {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, continuing without session bookkeeping", zap.Error(err))
		redisClient = nil
	}

	return &Manager{
		sessions: make(map[string]*Session),
		redis:    redisClient,
		config:   cfg,
		registry: registry,
		dialer:   dialer,
		logger:   logger,
	}
}

// CreateSession dials upstream, sends the configuration frame and registers
// a new session for the given client connection
func (m *Manager) CreateSession(ctx context.Context, clientConn *websocket.Conn) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.config.MaxSessions {
		return nil, ErrMaxSessions
	}

	sessionID := uuid.New().String()

	upstreamConn, err := m.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}

	configurator := &SessionConfigurator{
		Instructions: m.config.Instructions,
		Voice:        m.config.Voice,
		Registry:     m.registry,
	}
	if err := configurator.Configure(upstreamConn); err != nil {
		upstreamConn.Close()
		return nil, err
	}

	session := NewSession(sessionID, clientConn, upstreamConn, m.registry, m.config.Instructions, m.config.Voice, m.logger)
	m.storeSession(ctx, sessionID, session)
	return session, nil
}

// storeSession saves a session to memory and Redis
func (m *Manager) storeSession(ctx context.Context, sessionID string, session *Session) {
	m.sessions[sessionID] = session

	if m.redis != nil {
		m.redis.HSet(ctx, "session:"+sessionID, map[string]interface{}{
			"created_at":    session.CreatedAt.Format(time.RFC3339),
			"last_activity": session.LastActivity().Format(time.RFC3339),
			"status":        "active",
		})
		m.redis.SAdd(ctx, "active_sessions", sessionID)
		m.redis.Expire(ctx, "session:"+sessionID, m.config.SessionTimeout)
	}
}

// GetSession retrieves a session by ID
func (m *Manager) GetSession(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	return session, exists
}

// RemoveSession cleans up and removes a session
func (m *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil
	}

	session.Close()
	delete(m.sessions, sessionID)

	if m.redis != nil {
		m.redis.Del(ctx, "session:"+sessionID)
		m.redis.SRem(ctx, "active_sessions", sessionID)
	}
	return nil
}

// ActiveSessionCount returns the current session count
func (m *Manager) ActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupInactiveSessions removes sessions that have seen no frames for
// longer than the configured timeout
func (m *Manager) CleanupInactiveSessions(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, session := range m.sessions {
		if now.Sub(session.LastActivity()) > m.config.SessionTimeout {
			m.logger.Info("closing inactive session", zap.String("session", shortID(id)))
			session.Close()
			delete(m.sessions, id)

			if m.redis != nil {
				m.redis.Del(ctx, "session:"+id)
				m.redis.SRem(ctx, "active_sessions", id)
			}
		}
	}
}

// StartCleanupRoutine runs periodic cleanup until the context ends
func (m *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown closes all sessions
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		session.Close()
		delete(m.sessions, id)
	}
	if m.redis != nil {
		m.redis.Close()
	}
}
