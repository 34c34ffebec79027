package relay

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/room4-2/voicerag/protocol"
	"github.com/room4-2/voicerag/tool"
)

// ErrUpstreamNotConnected means Configure was called before the upstream
// connection existed. That is a wiring bug, not a runtime condition.
var ErrUpstreamNotConnected = errors.New("upstream connection is not sendable")

// frameWriter is the slice of *websocket.Conn the configurator needs
type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// SessionConfigurator sends the one-time session.update frame: system
// instructions, voice and the full registered tool schema list. It runs
// after connection establishment and before the forwarding loops.
type SessionConfigurator struct {
	Instructions string
	Voice        string
	Registry     *tool.Registry
}

// Configure builds and sends the configuration frame
func (c *SessionConfigurator) Configure(conn frameWriter) error {
	if conn == nil {
		return ErrUpstreamNotConnected
	}
	frame := protocol.NewSessionUpdate(c.Instructions, c.Voice, c.Registry.Schemas())
	data, err := frame.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling session configuration: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("sending session configuration: %w", err)
	}
	return nil
}
