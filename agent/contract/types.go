package contract

import (
	"time"

	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

type AgentType string

const (
	AgentTypePlanner   AgentType = "planner"
	AgentTypeFinalizer AgentType = "finalizer"
)

type PlannerRequest struct {
	ConversationID string           `json:"conversation_id"`
	Step           int              `json:"step"`
	Messages       []statex.Message `json:"messages"`
}

// PlannerResponse carries one assistant message. A message without tool calls is
// the candidate final answer.
type PlannerResponse struct {
	Message statex.Message `json:"message"`
}

func (r PlannerResponse) WantsTools() bool {
	return len(r.Message.ToolCalls) > 0
}

type FinalizeRequest struct {
	ConversationID string `json:"conversation_id"`
	Candidate      string `json:"candidate"`
}

// Outcome is the caller-facing result of one ticket turn.
type Outcome struct {
	ConversationID     string                     `json:"conversation_id"`
	Status             statex.Status              `json:"status"`
	Messages           []statex.Message           `json:"messages"`
	StructuredResponse *statex.StructuredResponse `json:"structured_response,omitempty"`
	Code               string                     `json:"code,omitempty"`
	Error              string                     `json:"error,omitempty"`
	Steps              int                        `json:"steps"`
	Duration           time.Duration              `json:"-"`
}
