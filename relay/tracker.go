package relay

import (
	"sync"

	"github.com/room4-2/voicerag/protocol"
)

// pendingCall correlates a call-creation frame with its later completion.
// previousItemID is the conversation position the call was created at; the
// client-bound tool response is anchored to it.
type pendingCall struct {
	callID         string
	name           string
	previousItemID string
}

// FunctionCallTracker holds the calls created during the current model turn
// until their arguments complete (or the session ends)
type FunctionCallTracker struct {
	mu      sync.Mutex
	pending map[string]pendingCall
}

// NewFunctionCallTracker creates an empty tracker
func NewFunctionCallTracker() *FunctionCallTracker {
	return &FunctionCallTracker{pending: make(map[string]pendingCall)}
}

// Track records a created function call. The first creation frame for a
// call id wins; repeats keep the original conversation link.
func (t *FunctionCallTracker) Track(fc protocol.FunctionCall) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.pending[fc.CallID]; exists {
		return
	}
	t.pending[fc.CallID] = pendingCall{
		callID:         fc.CallID,
		name:           fc.Name,
		previousItemID: fc.PreviousItemID,
	}
}

// Take removes and returns the pending call for the given id. The protocol
// allows completions for ids never created; ok is false then.
func (t *FunctionCallTracker) Take(callID string) (pendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	call, ok := t.pending[callID]
	if ok {
		delete(t.pending, callID)
	}
	return call, ok
}

// Len returns the number of calls still awaiting completion
func (t *FunctionCallTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
