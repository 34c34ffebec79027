package tool

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNilHandler is returned when a descriptor is registered without a handler
var ErrNilHandler = errors.New("tool handler is nil")

// Registry maps tool names to descriptors. It is populated by providers at
// startup and must not change once the session configuration has been sent;
// after that it is read-only and safe to share across sessions.
type Registry struct {
	tools map[string]Descriptor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Descriptor)}
}

// Register adds a tool. A duplicate name is a configuration error, never a
// silent overwrite.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.New("tool name is empty")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q: %w", d.Name, ErrNilHandler)
	}
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %q already registered", d.Name)
	}
	r.tools[d.Name] = d
	return nil
}

// Get looks up a tool by name
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.tools[name]
	return d, ok
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	return len(r.tools)
}

// Schemas returns the parameter schemas of all registered tools in name
// order, ready for the session configuration frame
func (r *Registry) Schemas() []map[string]any {
	if len(r.tools) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	schemas := make([]map[string]any, 0, len(names))
	for _, name := range names {
		schemas = append(schemas, r.tools[name].Schema)
	}
	return schemas
}

// Provider registers one or more tools onto a registry
type Provider interface {
	Attach(r *Registry) error
}
