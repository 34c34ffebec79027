package relay

import (
	"context"

	"go.uber.org/zap"

	"github.com/room4-2/voicerag/protocol"
	"github.com/room4-2/voicerag/tool"
)

// sendFunc delivers a synthesized frame to one leg of the relay
type sendFunc func(f *protocol.Frame) error

// ToolDispatcher invokes the handler matched to a completed function call
// and routes the result by its direction. A failed or unmatched call emits
// nothing in either direction; the session continues.
type ToolDispatcher struct {
	registry   *tool.Registry
	tracker    *FunctionCallTracker
	toUpstream sendFunc
	toClient   sendFunc
	logger     *zap.Logger
}

// NewToolDispatcher wires a dispatcher to its registry, tracker and the two
// delivery legs
func NewToolDispatcher(registry *tool.Registry, tracker *FunctionCallTracker, toUpstream, toClient sendFunc, logger *zap.Logger) *ToolDispatcher {
	return &ToolDispatcher{
		registry:   registry,
		tracker:    tracker,
		toUpstream: toUpstream,
		toClient:   toClient,
		logger:     logger,
	}
}

// Dispatch handles one response.function_call_arguments.done frame
func (d *ToolDispatcher) Dispatch(ctx context.Context, done protocol.ArgumentsDone) {
	call, ok := d.tracker.Take(done.CallID)
	if !ok {
		// the upstream protocol permits completions for calls we never
		// saw created; ignore them
		d.logger.Warn("completion for unknown call id",
			zap.String("call_id", done.CallID),
			zap.String("name", done.Name),
		)
		return
	}

	desc, ok := d.registry.Get(done.Name)
	if !ok {
		d.logger.Warn("completion for unregistered tool",
			zap.String("call_id", done.CallID),
			zap.String("name", done.Name),
		)
		return
	}

	d.logger.Info("invoking tool",
		zap.String("call_id", done.CallID),
		zap.String("name", done.Name),
	)
	result, err := desc.Handler(ctx, done.Arguments)
	if err != nil {
		// the model proceeds without this result
		d.logger.Error("tool handler failed",
			zap.String("call_id", done.CallID),
			zap.String("name", done.Name),
			zap.Error(err),
		)
		return
	}

	switch result.Direction {
	case tool.ToUpstream:
		if err := d.toUpstream(protocol.NewFunctionCallOutput(done.CallID, result.Payload)); err != nil {
			d.logger.Warn("dropping tool output, session closing", zap.String("call_id", done.CallID), zap.Error(err))
			return
		}
		if err := d.toUpstream(protocol.NewResponseCreate()); err != nil {
			d.logger.Warn("dropping continuation request, session closing", zap.String("call_id", done.CallID), zap.Error(err))
		}
	case tool.ToClient:
		if err := d.toClient(protocol.NewToolResponse(call.previousItemID, done.Name, result.Payload)); err != nil {
			d.logger.Warn("dropping tool response, session closing", zap.String("call_id", done.CallID), zap.Error(err))
		}
	default:
		d.logger.Error("tool returned unknown result direction",
			zap.String("name", done.Name),
			zap.Stringer("direction", result.Direction),
		)
	}
}
