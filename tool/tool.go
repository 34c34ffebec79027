package tool

import (
	"context"
	"fmt"
)

// Direction controls where a tool's result goes: back into the model's turn
// or straight to the client with no further model involvement.
type Direction int

const (
	// ToUpstream feeds the result back to the model and asks it to continue
	ToUpstream Direction = iota
	// ToClient surfaces the result to the client only
	ToClient
)

func (d Direction) String() string {
	switch d {
	case ToUpstream:
		return "to_upstream"
	case ToClient:
		return "to_client"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Result is a successful tool invocation: an opaque payload and exactly one
// delivery direction.
type Result struct {
	Payload   string
	Direction Direction
}

// Handler executes one tool call. Arguments arrive as the raw string the
// model produced; the handler owns parsing them.
type Handler func(ctx context.Context, args string) (Result, error)

// Descriptor describes one registered tool. Schema is the parameter
// description forwarded to the upstream service unmodified.
type Descriptor struct {
	Name    string
	Schema  map[string]any
	Handler Handler
}
