package protocol

// NewSessionUpdate builds the one-time upstream configuration frame.
// Empty instructions/voice and an empty tool list are omitted rather than
// sent as zero values.
func NewSessionUpdate(instructions, voice string, tools []map[string]any) *Frame {
	session := map[string]any{}
	if instructions != "" {
		session["instructions"] = instructions
	}
	if voice != "" {
		session["voice"] = voice
	}
	if len(tools) > 0 {
		session["tools"] = tools
		session["tool_choice"] = "auto"
	}
	f := New(TypeSessionUpdate)
	f.Set("session", session)
	return f
}

// NewFunctionCallOutput builds the upstream item-creation frame carrying a
// tool result back to the model
func NewFunctionCallOutput(callID, output string) *Frame {
	f := New(TypeConversationItemCreate)
	f.Set("item", map[string]any{
		"type":    ItemTypeFunctionCallOutput,
		"call_id": callID,
		"output":  output,
	})
	return f
}

// NewResponseCreate builds the generation-continuation request that follows
// a function_call_output item
func NewResponseCreate() *Frame {
	return New(TypeResponseCreate)
}

// NewToolResponse builds the client-bound extension frame for a tool whose
// result bypasses the model
func NewToolResponse(previousItemID, toolName, toolResult string) *Frame {
	f := New(TypeToolResponse)
	f.Set("previous_item_id", previousItemID)
	f.Set("tool_name", toolName)
	f.Set("tool_result", toolResult)
	return f
}
