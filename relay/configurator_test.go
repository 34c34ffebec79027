package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/voicerag/tool"
)

type recordingWriter struct {
	messageTypes []int
	payloads     [][]byte
	err          error
}

func (w *recordingWriter) WriteMessage(messageType int, data []byte) error {
	if w.err != nil {
		return w.err
	}
	w.messageTypes = append(w.messageTypes, messageType)
	w.payloads = append(w.payloads, data)
	return nil
}

func TestConfigureSendsSessionUpdate(t *testing.T) {
	registry := tool.NewRegistry()
	require.NoError(t, registry.Register(tool.Descriptor{
		Name:    "search",
		Schema:  map[string]any{"type": "function", "name": "search"},
		Handler: func(context.Context, string) (tool.Result, error) { return tool.Result{}, nil },
	}))
	require.NoError(t, registry.Register(tool.Descriptor{
		Name:    "report_grounding",
		Schema:  map[string]any{"type": "function", "name": "report_grounding"},
		Handler: func(context.Context, string) (tool.Result, error) { return tool.Result{}, nil },
	}))

	c := &SessionConfigurator{
		Instructions: "Answer briefly.",
		Voice:        "alloy",
		Registry:     registry,
	}
	w := &recordingWriter{}
	require.NoError(t, c.Configure(w))

	require.Len(t, w.payloads, 1)
	assert.Equal(t, []int{websocket.TextMessage}, w.messageTypes)

	var frame map[string]any
	require.NoError(t, sonic.Unmarshal(w.payloads[0], &frame))
	require.Equal(t, "session.update", frame["type"])
	sess, ok := frame["session"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Answer briefly.", sess["instructions"])
	assert.Equal(t, "alloy", sess["voice"])
	assert.Equal(t, "auto", sess["tool_choice"])
	tools, ok := sess["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 2)
	// name order
	assert.Equal(t, "report_grounding", tools[0].(map[string]any)["name"])
	assert.Equal(t, "search", tools[1].(map[string]any)["name"])
}

func TestConfigureOmitsEmptyToolList(t *testing.T) {
	c := &SessionConfigurator{Instructions: "hi", Registry: tool.NewRegistry()}
	w := &recordingWriter{}
	require.NoError(t, c.Configure(w))

	var frame map[string]any
	require.NoError(t, sonic.Unmarshal(w.payloads[0], &frame))
	sess := frame["session"].(map[string]any)
	_, hasTools := sess["tools"]
	assert.False(t, hasTools)
	_, hasVoice := sess["voice"]
	assert.False(t, hasVoice)
}

func TestConfigureNilConnection(t *testing.T) {
	c := &SessionConfigurator{Registry: tool.NewRegistry()}
	assert.ErrorIs(t, c.Configure(nil), ErrUpstreamNotConnected)
}

func TestConfigureWriteFailure(t *testing.T) {
	c := &SessionConfigurator{Registry: tool.NewRegistry()}
	w := &recordingWriter{err: errors.New("broken pipe")}
	err := c.Configure(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending session configuration")
}
