package orchestratornode

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
)

// FinalizeOutcome releases the lease and builds the caller-facing outcome.
func FinalizeOutcome(ctx context.Context, in *GraphState, now func() time.Time) GraphOutput {
	if in.Lease != nil {
		if err := in.Lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("release conversation lease")
		}
		in.Lease = nil
	}

	out := contractx.Outcome{
		ConversationID: in.ConversationID,
		Duration:       now().Sub(in.Started),
	}
	if st := in.Conversation; st != nil {
		out.Status = st.Status
		out.Messages = slices.Clone(st.Messages)
		out.StructuredResponse = st.StructuredResponse
		out.Steps = st.Step
	}
	if in.Err != nil {
		out.Code = contractx.ErrorCode(in.Err)
		out.Error = in.Err.Error()
	}
	return GraphOutput{Outcome: out, Err: in.Err}
}
