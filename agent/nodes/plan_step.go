package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
	toolx "github.com/tanpawarit/claims-responder-agent/agent/tool"
)

// PlanStep sends the assembled context to the planner and appends its message
// to the conversation.
func PlanStep(ctx context.Context, in *GraphState, planner contractx.Planner) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	if len(in.Context) == 0 {
		return nil, fmt.Errorf("%w: planner context was not assembled", contractx.ErrValidation)
	}

	resp, err := planner.Plan(ctx, contractx.PlannerRequest{
		ConversationID: in.ConversationID,
		Step:           in.Conversation.Step,
		Messages:       in.Context,
	})
	if err != nil {
		return nil, err
	}
	resp.Message.Role = statex.RoleAssistant
	resp.Message.ToolCalls = toolx.NormalizeCalls(resp.Message.ToolCalls)

	st, err := statex.Merge(in.Conversation, statex.AppendMessages(resp.Message))
	if err != nil {
		return nil, err
	}
	in.Conversation = st
	in.PlanResp = resp
	in.Context = nil
	return in, nil
}
