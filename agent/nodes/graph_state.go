package orchestratornode

import (
	"time"

	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

// Phase is a routing state of the agent loop.
type Phase string

const (
	PhaseAssemble Phase = "assemble"
	PhasePlan     Phase = "plan"
	PhaseDispatch Phase = "dispatch"
	PhaseFinalize Phase = "finalize"
	PhaseEnd      Phase = "end"
	PhaseFailed   Phase = "failed"
)

func (p Phase) Terminal() bool {
	return p == PhaseEnd || p == PhaseFailed
}

type GraphInput struct {
	ConversationID string
	Ticket         statex.Ticket
}

// GraphOutput always carries the outcome. Err is set when the run ended in
// PhaseFailed.
type GraphOutput struct {
	Outcome contractx.Outcome
	Err     error
}

type GraphState struct {
	ConversationID string
	Ticket         statex.Ticket
	Now            time.Time
	Started        time.Time

	Conversation *statex.ConversationState
	Lease        statex.Lease

	Phase    Phase
	Context  []statex.Message
	PlanResp contractx.PlannerResponse

	Err error
}

// Fail moves the run to PhaseFailed and records err on the conversation.
func (g *GraphState) Fail(err error) {
	g.Phase = PhaseFailed
	g.Err = err
	if g.Conversation != nil {
		g.Conversation.Status = statex.StatusFailed
		g.Conversation.LastError = err.Error()
	}
}
