package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/room4-2/voicerag/protocol"
	"github.com/room4-2/voicerag/tool"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
	// graceWait bounds how long one forwarding loop outlives the other
	graceWait = 5 * time.Second
)

// ErrSessionClosed is returned when a frame is queued after teardown began
var ErrSessionClosed = errors.New("session closed")

// Session relays frames between one client connection and its upstream
// connection. Two loops run per session, one per direction: each reads a
// frame, applies its direction's rewrite and forwards through a write pump.
type Session struct {
	ID           string
	clientConn   *websocket.Conn
	upstreamConn *websocket.Conn
	tracker      *FunctionCallTracker
	dispatcher   *ToolDispatcher
	instructions string
	voice        string
	logger       *zap.Logger

	clientWrite   chan []byte
	upstreamWrite chan []byte

	CreatedAt time.Time

	mu           sync.RWMutex
	lastActivity time.Time
	closed       bool
	CloseChan    chan struct{}
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewSession creates a session over an established pair of connections.
// The registry must already be attached and the configuration frame sent.
func NewSession(id string, clientConn, upstreamConn *websocket.Conn, registry *tool.Registry, instructions, voice string, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	clientConn.SetReadLimit(512 * 1024)

	s := &Session{
		ID:            id,
		clientConn:    clientConn,
		upstreamConn:  upstreamConn,
		tracker:       NewFunctionCallTracker(),
		instructions:  instructions,
		voice:         voice,
		logger:        logger.With(zap.String("session", shortID(id))),
		clientWrite:   make(chan []byte, writeBufferSize),
		upstreamWrite: make(chan []byte, writeBufferSize),
		CreatedAt:     time.Now(),
		lastActivity:  time.Now(),
		CloseChan:     make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
	s.dispatcher = NewToolDispatcher(registry, s.tracker, s.sendUpstream, s.sendClient, s.logger)
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Start launches the write pumps and forwarding loops
func (s *Session) Start() {
	go s.writePump(s.clientConn, s.clientWrite, "client")
	go s.writePump(s.upstreamConn, s.upstreamWrite, "upstream")
	go s.run()
}

// run supervises the two forwarding loops: when one ends, the other gets a
// bounded grace period, then both connections are torn down
func (s *Session) run() {
	defer s.Close()

	done := make(chan string, 2)
	go func() {
		s.forwardClientToUpstream()
		done <- "client"
	}()
	go func() {
		s.forwardUpstreamToClient()
		done <- "upstream"
	}()

	leg := <-done
	s.logger.Info("forwarding loop ended", zap.String("leg", leg))
	select {
	case <-done:
	case <-time.After(graceWait):
		s.logger.Warn("peer loop still running after grace period, forcing teardown")
	}
}

// forwardClientToUpstream relays frames from the client leg. Client traffic
// passes through, except session.update frames which get their privileged
// fields re-pinned to the server-side configuration.
func (s *Session) forwardClientToUpstream() {
	for {
		select {
		case <-s.CloseChan:
			return
		default:
		}

		_, data, err := s.clientConn.ReadMessage()
		if err != nil {
			if !s.IsClosed() {
				s.logger.Warn("client read failed", zap.Error(err))
			}
			return
		}
		s.touch()

		frame, err := protocol.Parse(data)
		if err != nil {
			s.logger.Warn("dropping undecodable client frame", zap.Error(err))
			continue
		}

		out := data
		if frame.Type == protocol.TypeSessionUpdate {
			s.pinSessionConfig(frame)
			out, err = frame.Marshal()
			if err != nil {
				s.logger.Warn("dropping unmarshalable session.update", zap.Error(err))
				continue
			}
		}
		if !s.queue(s.upstreamWrite, out) {
			s.logger.Warn("upstream connection no longer open, ending client loop")
			return
		}
	}
}

// forwardUpstreamToClient relays frames from the upstream leg, redacting
// privileged session fields and consuming function-call frames
func (s *Session) forwardUpstreamToClient() {
	for {
		select {
		case <-s.CloseChan:
			return
		default:
		}

		_, data, err := s.upstreamConn.ReadMessage()
		if err != nil {
			if !s.IsClosed() {
				s.logger.Warn("upstream read failed", zap.Error(err))
			}
			return
		}
		s.touch()

		frame, err := protocol.Parse(data)
		if err != nil {
			s.logger.Warn("dropping undecodable upstream frame", zap.Error(err))
			continue
		}

		out, err := s.rewriteToClient(frame, data)
		if err != nil {
			s.logger.Warn("dropping unrewritable upstream frame", zap.String("type", string(frame.Type)), zap.Error(err))
			continue
		}
		if out == nil {
			continue
		}
		if !s.queue(s.clientWrite, out) {
			s.logger.Warn("client connection no longer open, ending upstream loop")
			return
		}
	}
}

// rewriteToClient applies the downstream rewrite for one frame. A nil
// result with nil error means the frame is consumed, not forwarded.
func (s *Session) rewriteToClient(frame *protocol.Frame, raw []byte) ([]byte, error) {
	switch frame.Type {
	case protocol.TypeSessionCreated:
		s.redactSession(frame)
		return frame.Marshal()

	case protocol.TypeConversationItemCreated:
		if fc, ok := frame.AsFunctionCall(); ok {
			s.tracker.Track(fc)
			return nil, nil
		}
		if frame.ItemType() == protocol.ItemTypeFunctionCallOutput {
			return nil, nil
		}
		return raw, nil

	case protocol.TypeResponseOutputItemAdded:
		if _, ok := frame.AsFunctionCall(); ok {
			return nil, nil
		}
		return raw, nil

	case protocol.TypeFunctionCallArgsDelta:
		return nil, nil

	case protocol.TypeFunctionCallArgsDone:
		s.dispatcher.Dispatch(s.ctx, frame.AsArgumentsDone())
		return nil, nil

	default:
		// response.done, error frames, audio and transcript deltas all
		// reach the client verbatim
		return raw, nil
	}
}

// redactSession strips privileged fields from a session acknowledgment so
// system prompts and tool internals never reach the client
func (s *Session) redactSession(frame *protocol.Frame) {
	sess := frame.Session()
	if sess == nil {
		return
	}
	sess["instructions"] = ""
	sess["tools"] = []any{}
	sess["tool_choice"] = "none"
	sess["max_response_output_tokens"] = nil
	sess["voice"] = s.voice
}

// pinSessionConfig overrides privileged fields on a client-sent
// session.update with the server-side configuration
func (s *Session) pinSessionConfig(frame *protocol.Frame) {
	sess := frame.Session()
	if sess == nil {
		sess = map[string]any{}
		frame.Set("session", sess)
	}
	if s.instructions != "" {
		sess["instructions"] = s.instructions
	}
	if s.voice != "" {
		sess["voice"] = s.voice
	}
	schemas := s.dispatcher.registry.Schemas()
	if len(schemas) > 0 {
		sess["tools"] = schemas
		sess["tool_choice"] = "auto"
	} else {
		delete(sess, "tools")
		sess["tool_choice"] = "none"
	}
}

// writePump is the single writer for one connection
func (s *Session) writePump(conn *websocket.Conn, ch chan []byte, leg string) {
	defer func() {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	write := func(data []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			if !s.IsClosed() {
				s.logger.Warn("write failed", zap.String("leg", leg), zap.Error(err))
			}
			return false
		}
		return true
	}

	for {
		select {
		case <-s.CloseChan:
			return
		case data := <-ch:
			if !write(data) {
				return
			}
			// drain whatever queued up while we were writing
			n := len(ch)
			for i := 0; i < n; i++ {
				select {
				case data := <-ch:
					if !write(data) {
						return
					}
				default:
				}
			}
		}
	}
}

// queue hands a frame to a write pump without blocking the read loop
func (s *Session) queue(ch chan []byte, data []byte) bool {
	if s.IsClosed() {
		return false
	}
	select {
	case ch <- data:
		return true
	default:
		s.logger.Warn("write queue full, dropping frame")
		return true
	}
}

// sendUpstream marshals and queues a synthesized frame for the upstream leg
func (s *Session) sendUpstream(f *protocol.Frame) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	if !s.queue(s.upstreamWrite, data) {
		return ErrSessionClosed
	}
	return nil
}

// sendClient marshals and queues a synthesized frame for the client leg
func (s *Session) sendClient(f *protocol.Frame) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	if !s.queue(s.clientWrite, data) {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity reports when the session last saw a frame
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// IsClosed reports whether teardown has begun
func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close tears down both connections and stops all session goroutines.
// In-flight tool handlers run to completion; their results are dropped.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	close(s.CloseChan)

	if s.upstreamConn != nil {
		s.upstreamConn.Close()
	}
	if s.clientConn != nil {
		s.clientConn.Close()
	}
	return nil
}
