package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrMissingType is returned when a frame has no type discriminator
var ErrMissingType = errors.New("frame missing type field")

// Type discriminates how a frame is rewritten and interpreted
type Type string

// Frame types produced by the upstream service
const (
	TypeSessionCreated          Type = "session.created"
	TypeSessionUpdated          Type = "session.updated"
	TypeConversationItemCreated Type = "conversation.item.created"
	TypeResponseOutputItemAdded Type = "response.output_item.added"
	TypeFunctionCallArgsDelta   Type = "response.function_call_arguments.delta"
	TypeFunctionCallArgsDone    Type = "response.function_call_arguments.done"
	TypeResponseAudioDelta      Type = "response.audio.delta"
	TypeResponseAudioTranscript Type = "response.audio_transcript.delta"
	TypeResponseDone            Type = "response.done"
	TypeError                   Type = "error"
)

// Frame types sent to the upstream service
const (
	TypeSessionUpdate          Type = "session.update"
	TypeConversationItemCreate Type = "conversation.item.create"
	TypeResponseCreate         Type = "response.create"
)

// TypeToolResponse is synthesized by the relay for client-bound tool results
const TypeToolResponse Type = "extension.middle_tier_tool_response"

// Conversation item types the relay inspects
const (
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"
)

// Frame is one structured message unit on either leg of the relay.
// Only the type discriminator is lifted out; every other field stays in the
// raw map so unmodeled keys survive a parse/marshal round trip untouched.
type Frame struct {
	Type   Type
	fields map[string]any
}

// Parse decodes a frame from wire bytes
func Parse(data []byte) (*Frame, error) {
	var fields map[string]any
	if err := sonic.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	t, _ := fields["type"].(string)
	if t == "" {
		return nil, ErrMissingType
	}
	return &Frame{Type: Type(t), fields: fields}, nil
}

// New creates an empty frame of the given type
func New(t Type) *Frame {
	return &Frame{
		Type:   t,
		fields: map[string]any{"type": string(t)},
	}
}

// Marshal encodes the frame back to wire bytes
func (f *Frame) Marshal() ([]byte, error) {
	return sonic.Marshal(f.fields)
}

// Set writes a top-level field
func (f *Frame) Set(key string, value any) {
	f.fields[key] = value
}

// StringField reads a top-level string field, "" if absent or not a string
func (f *Frame) StringField(key string) string {
	s, _ := f.fields[key].(string)
	return s
}

// Object reads a top-level object field, nil if absent or not an object
func (f *Frame) Object(key string) map[string]any {
	m, _ := f.fields[key].(map[string]any)
	return m
}

// Session returns the frame's "session" object, nil if absent
func (f *Frame) Session() map[string]any {
	return f.Object("session")
}

// Item returns the frame's "item" object, nil if absent
func (f *Frame) Item() map[string]any {
	return f.Object("item")
}

// ItemType returns the "type" of the frame's item, "" if there is none
func (f *Frame) ItemType() string {
	item := f.Item()
	if item == nil {
		return ""
	}
	t, _ := item["type"].(string)
	return t
}
