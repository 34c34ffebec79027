// Package demotools registers a handful of small stateful tools the model
// can exercise without any external collaborator: user profile fields, a
// todo list and a read-only stats snapshot.
package demotools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/room4-2/voicerag/tool"
)

// Provider holds the demo state. State lives here, not in package globals,
// so callers decide whether it is shared across sessions.
type Provider struct {
	logger *zap.Logger

	mu        sync.Mutex
	profile   map[string]string
	todos     []todoItem
	nextID    int
	startedAt time.Time
	calls     int
}

type todoItem struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// NewProvider creates a provider with empty state
func NewProvider(logger *zap.Logger) *Provider {
	return &Provider{
		logger:    logger,
		profile:   make(map[string]string),
		nextID:    1,
		startedAt: time.Now(),
	}
}

// Attach registers all demo tools
func (p *Provider) Attach(r *tool.Registry) error {
	descriptors := []tool.Descriptor{
		{Name: "get_profile", Schema: noArgSchema("get_profile", "Get all fields of the user profile."), Handler: p.getProfile},
		{Name: "set_profile_field", Schema: setProfileSchema(), Handler: p.setProfileField},
		{Name: "list_todos", Schema: noArgSchema("list_todos", "List all todo items with their ids and completion state."), Handler: p.listTodos},
		{Name: "add_todo", Schema: addTodoSchema(), Handler: p.addTodo},
		{Name: "complete_todo", Schema: completeTodoSchema(), Handler: p.completeTodo},
		{Name: "get_stats", Schema: noArgSchema("get_stats", "Get a read-only snapshot of session statistics."), Handler: p.getStats},
	}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) result(payload string) tool.Result {
	return tool.Result{Payload: payload, Direction: tool.ToUpstream}
}

func (p *Provider) getProfile(_ context.Context, _ string) (tool.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	payload, err := sonic.Marshal(p.profile)
	if err != nil {
		return tool.Result{}, fmt.Errorf("marshaling profile: %w", err)
	}
	return p.result(string(payload)), nil
}

type setFieldArgs struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (p *Provider) setProfileField(_ context.Context, args string) (tool.Result, error) {
	var parsed setFieldArgs
	if err := sonic.Unmarshal([]byte(args), &parsed); err != nil {
		return tool.Result{}, fmt.Errorf("parsing set_profile_field arguments: %w", err)
	}
	if parsed.Field == "" {
		return tool.Result{}, fmt.Errorf("set_profile_field: field is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.profile[parsed.Field] = parsed.Value
	p.logger.Info("profile field updated", zap.String("field", parsed.Field))
	return p.result(fmt.Sprintf("Set %s to %q.", parsed.Field, parsed.Value)), nil
}

func (p *Provider) listTodos(_ context.Context, _ string) (tool.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	items := p.todos
	if items == nil {
		items = []todoItem{}
	}
	payload, err := sonic.Marshal(items)
	if err != nil {
		return tool.Result{}, fmt.Errorf("marshaling todos: %w", err)
	}
	return p.result(string(payload)), nil
}

type addTodoArgs struct {
	Text string `json:"text"`
}

func (p *Provider) addTodo(_ context.Context, args string) (tool.Result, error) {
	var parsed addTodoArgs
	if err := sonic.Unmarshal([]byte(args), &parsed); err != nil {
		return tool.Result{}, fmt.Errorf("parsing add_todo arguments: %w", err)
	}
	if parsed.Text == "" {
		return tool.Result{}, fmt.Errorf("add_todo: text is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	item := todoItem{ID: p.nextID, Text: parsed.Text}
	p.nextID++
	p.todos = append(p.todos, item)
	return p.result(fmt.Sprintf("Added todo %d: %s", item.ID, item.Text)), nil
}

type completeTodoArgs struct {
	ID int `json:"id"`
}

func (p *Provider) completeTodo(_ context.Context, args string) (tool.Result, error) {
	var parsed completeTodoArgs
	if err := sonic.Unmarshal([]byte(args), &parsed); err != nil {
		return tool.Result{}, fmt.Errorf("parsing complete_todo arguments: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	for i := range p.todos {
		if p.todos[i].ID == parsed.ID {
			p.todos[i].Done = true
			return p.result(fmt.Sprintf("Completed todo %d.", parsed.ID)), nil
		}
	}
	return tool.Result{}, fmt.Errorf("complete_todo: no todo with id %d", parsed.ID)
}

type stats struct {
	ToolCalls  int    `json:"tool_calls"`
	OpenTodos  int    `json:"open_todos"`
	DoneTodos  int    `json:"done_todos"`
	UptimeSecs int    `json:"uptime_seconds"`
	StartedAt  string `json:"started_at"`
}

func (p *Provider) getStats(_ context.Context, _ string) (tool.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	s := stats{
		ToolCalls:  p.calls,
		UptimeSecs: int(time.Since(p.startedAt).Seconds()),
		StartedAt:  p.startedAt.Format(time.RFC3339),
	}
	for _, t := range p.todos {
		if t.Done {
			s.DoneTodos++
		} else {
			s.OpenTodos++
		}
	}
	payload, err := sonic.Marshal(s)
	if err != nil {
		return tool.Result{}, fmt.Errorf("marshaling stats: %w", err)
	}
	return p.result(string(payload)), nil
}

func noArgSchema(name, description string) map[string]any {
	return map[string]any{
		"type":        "function",
		"name":        name,
		"description": description,
		"parameters": map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
	}
}

func setProfileSchema() map[string]any {
	return map[string]any{
		"type":        "function",
		"name":        "set_profile_field",
		"description": "Set one field of the user profile.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"field": map[string]any{"type": "string", "description": "Field name"},
				"value": map[string]any{"type": "string", "description": "Field value"},
			},
			"required":             []string{"field", "value"},
			"additionalProperties": false,
		},
	}
}

func addTodoSchema() map[string]any {
	return map[string]any{
		"type":        "function",
		"name":        "add_todo",
		"description": "Add an item to the todo list.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string", "description": "Todo text"},
			},
			"required":             []string{"text"},
			"additionalProperties": false,
		},
	}
}

func completeTodoSchema() map[string]any {
	return map[string]any{
		"type":        "function",
		"name":        "complete_todo",
		"description": "Mark a todo item as done by id.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{"type": "integer", "description": "Todo id"},
			},
			"required":             []string{"id"},
			"additionalProperties": false,
		},
	}
}
