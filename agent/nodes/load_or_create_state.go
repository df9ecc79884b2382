package orchestratornode

import (
	"context"
	"encoding/json"
	"fmt"

	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

// LoadOrCreateState takes the conversation lease, then restores the checkpoint
// or starts a new conversation seeded with the drafting request. The lease is
// released again when this node fails.
func LoadOrCreateState(
	ctx context.Context,
	in *GraphState,
	ckpt *statex.CheckpointManager,
	draftRequest func(ticketJSON string) string,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	lease, err := ckpt.Acquire(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}

	st, err := loadOrCreateState(ctx, ckpt, in, draftRequest)
	if err != nil {
		_ = lease.Release(context.WithoutCancel(ctx))
		return nil, err
	}

	in.Lease = lease
	in.Conversation = st
	in.Phase = ResumePhase(st)
	return in, nil
}

func loadOrCreateState(
	ctx context.Context,
	ckpt *statex.CheckpointManager,
	in *GraphState,
	draftRequest func(ticketJSON string) string,
) (*statex.ConversationState, error) {
	st, err := ckpt.Load(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if st != nil {
		if st.IncomingTicket != in.Ticket {
			return nil, fmt.Errorf("%w: conversation=%s already holds ticket=%s", statex.ErrTicketImmutable, in.ConversationID, st.IncomingTicket.ID)
		}
		return st, nil
	}

	ticketJSON, err := json.Marshal(in.Ticket)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal ticket: %v", contractx.ErrValidation, err)
	}
	st = statex.NewConversationState(in.ConversationID, in.Ticket, in.Now)
	st, err = statex.Merge(st, statex.AppendMessages(statex.Message{
		Role:    statex.RoleUser,
		Content: draftRequest(string(ticketJSON)),
	}))
	if err != nil {
		return nil, err
	}
	if err := ckpt.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}
