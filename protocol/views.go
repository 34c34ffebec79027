package protocol

// FunctionCall is the typed view of a function_call conversation item
type FunctionCall struct {
	CallID         string
	Name           string
	PreviousItemID string
}

// AsFunctionCall extracts the function_call item from a
// conversation.item.created or response.output_item.added frame.
// Returns false when the frame carries no function_call item.
func (f *Frame) AsFunctionCall() (FunctionCall, bool) {
	item := f.Item()
	if item == nil {
		return FunctionCall{}, false
	}
	if t, _ := item["type"].(string); t != ItemTypeFunctionCall {
		return FunctionCall{}, false
	}
	callID, _ := item["call_id"].(string)
	name, _ := item["name"].(string)
	return FunctionCall{
		CallID:         callID,
		Name:           name,
		PreviousItemID: f.StringField("previous_item_id"),
	}, true
}

// ArgumentsDone is the typed view of response.function_call_arguments.done.
// Arguments stay an opaque string; the handler owns their shape.
type ArgumentsDone struct {
	CallID    string
	Name      string
	Arguments string
}

// AsArgumentsDone extracts the completion fields from a
// response.function_call_arguments.done frame
func (f *Frame) AsArgumentsDone() ArgumentsDone {
	return ArgumentsDone{
		CallID:    f.StringField("call_id"),
		Name:      f.StringField("name"),
		Arguments: f.StringField("arguments"),
	}
}
