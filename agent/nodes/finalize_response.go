package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

// FinalizeResponse validates the trailing assistant answer and stores it as the
// conversation's structured response.
func FinalizeResponse(ctx context.Context, in *GraphState, finalizer contractx.Finalizer) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	last := in.Conversation.LastMessage()
	if last == nil || last.Role != statex.RoleAssistant {
		return nil, fmt.Errorf("%w: no candidate answer to finalize", contractx.ErrValidation)
	}
	candidate := strings.TrimSpace(last.Content)
	if candidate == "" {
		return nil, fmt.Errorf("%w: candidate answer is empty", contractx.ErrSchemaValidation)
	}

	resp, err := finalizer.Finalize(ctx, contractx.FinalizeRequest{
		ConversationID: in.ConversationID,
		Candidate:      candidate,
	})
	if err != nil {
		return nil, err
	}

	st, err := statex.Merge(in.Conversation, statex.Patch{StructuredResponse: &resp})
	if err != nil {
		return nil, err
	}
	in.Conversation = st
	return in, nil
}
