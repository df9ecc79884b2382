package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
	toolx "github.com/tanpawarit/claims-responder-agent/agent/tool"
)

type ToolDispatcher interface {
	Dispatch(ctx context.Context, st *statex.ConversationState, calls []statex.ToolCall, commit toolx.CommitFunc) (*statex.ConversationState, error)
}

// DispatchTools runs the unanswered tool calls of the last assistant message. On
// failure the conversation still holds every tier merged before the error.
func DispatchTools(ctx context.Context, in *GraphState, dispatcher ToolDispatcher, commit toolx.CommitFunc) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	calls := in.Conversation.PendingToolCalls()
	if len(calls) == 0 {
		return in, nil
	}

	st, err := dispatcher.Dispatch(ctx, in.Conversation, calls, commit)
	if st != nil {
		in.Conversation = st
	}
	if err != nil {
		return in, err
	}
	return in, nil
}
