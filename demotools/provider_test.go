package demotools

import (
	"context"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/room4-2/voicerag/tool"
)

func newAttached(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	require.NoError(t, NewProvider(zap.NewNop()).Attach(r))
	return r
}

func call(t *testing.T, r *tool.Registry, name, args string) tool.Result {
	t.Helper()
	d, ok := r.Get(name)
	require.True(t, ok, "tool %q not registered", name)
	result, err := d.Handler(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, tool.ToUpstream, result.Direction)
	return result
}

func TestAttachRegistersAllTools(t *testing.T) {
	r := newAttached(t)
	assert.Equal(t, 6, r.Len())
}

func TestProfileRoundTrip(t *testing.T) {
	r := newAttached(t)

	result := call(t, r, "get_profile", "{}")
	assert.JSONEq(t, `{}`, result.Payload)

	result = call(t, r, "set_profile_field", `{"field":"name","value":"Ada"}`)
	assert.Equal(t, `Set name to "Ada".`, result.Payload)
	call(t, r, "set_profile_field", `{"field":"plan","value":"gold"}`)

	result = call(t, r, "get_profile", "{}")
	assert.JSONEq(t, `{"name":"Ada","plan":"gold"}`, result.Payload)
}

func TestSetProfileFieldRequiresField(t *testing.T) {
	r := newAttached(t)
	d, _ := r.Get("set_profile_field")
	_, err := d.Handler(context.Background(), `{"value":"x"}`)
	assert.ErrorContains(t, err, "field is required")
}

func TestTodoLifecycle(t *testing.T) {
	r := newAttached(t)

	result := call(t, r, "list_todos", "{}")
	assert.JSONEq(t, `[]`, result.Payload)

	result = call(t, r, "add_todo", `{"text":"renew policy"}`)
	assert.Equal(t, "Added todo 1: renew policy", result.Payload)
	call(t, r, "add_todo", `{"text":"call dentist"}`)

	result = call(t, r, "complete_todo", `{"id":1}`)
	assert.Equal(t, "Completed todo 1.", result.Payload)

	result = call(t, r, "list_todos", "{}")
	var todos []map[string]any
	require.NoError(t, sonic.Unmarshal([]byte(result.Payload), &todos))
	require.Len(t, todos, 2)
	assert.Equal(t, true, todos[0]["done"])
	assert.Equal(t, "call dentist", todos[1]["text"])
	assert.Equal(t, false, todos[1]["done"])
}

func TestCompleteTodoUnknownID(t *testing.T) {
	r := newAttached(t)
	d, _ := r.Get("complete_todo")
	_, err := d.Handler(context.Background(), `{"id":42}`)
	assert.ErrorContains(t, err, "no todo with id 42")
}

func TestAddTodoRequiresText(t *testing.T) {
	r := newAttached(t)
	d, _ := r.Get("add_todo")
	_, err := d.Handler(context.Background(), `{}`)
	assert.ErrorContains(t, err, "text is required")
}

func TestStatsCountTodosAndCalls(t *testing.T) {
	r := newAttached(t)

	call(t, r, "add_todo", `{"text":"a"}`)
	call(t, r, "add_todo", `{"text":"b"}`)
	call(t, r, "complete_todo", `{"id":1}`)

	result := call(t, r, "get_stats", "{}")
	var s map[string]any
	require.NoError(t, sonic.Unmarshal([]byte(result.Payload), &s))
	// the stats call itself is the fourth
	assert.EqualValues(t, 4, s["tool_calls"])
	assert.EqualValues(t, 1, s["open_todos"])
	assert.EqualValues(t, 1, s["done_todos"])
	assert.NotEmpty(t, s["started_at"])
}

func TestBadArgumentsAreErrors(t *testing.T) {
	r := newAttached(t)
	for _, name := range []string{"set_profile_field", "add_todo", "complete_todo"} {
		d, _ := r.Get(name)
		_, err := d.Handler(context.Background(), `{broken`)
		assert.Error(t, err, name)
	}
}
