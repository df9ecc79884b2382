package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

func ValidateAndSaveState(
	ctx context.Context,
	in *GraphState,
	ckpt *statex.CheckpointManager,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}

	in.Conversation.Touch(in.Now)
	if err := ckpt.Save(ctx, in.Conversation); err != nil {
		return nil, err
	}
	return in, nil
}
