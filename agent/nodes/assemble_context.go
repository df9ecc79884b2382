package orchestratornode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

const currentDataHeader = "Following are the CURRENT DATA provided by the tools and user: \n"

type currentData struct {
	IncomingTicket    statex.Ticket             `json:"incoming_ticket"`
	Customer          *statex.Customer          `json:"customer"`
	ConsumptionPoints []statex.ConsumptionPoint `json:"consumption_points"`
	Contracts         []statex.Contract         `json:"contracts"`
	Payments          []statex.ContractPayments `json:"payments"`
	SimilarTickets    []statex.Ticket           `json:"similar_tickets"`
}

// AssembleContext returns a copy of the message log followed by the CURRENT DATA
// system message. The conversation is not modified.
func AssembleContext(st *statex.ConversationState) ([]statex.Message, error) {
	if st == nil {
		return nil, statex.ErrNilConversation
	}

	var buf bytes.Buffer
	buf.WriteString(currentDataHeader)
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(currentData{
		IncomingTicket:    st.IncomingTicket,
		Customer:          st.Customer,
		ConsumptionPoints: st.ConsumptionPoints,
		Contracts:         st.Contracts,
		Payments:          st.Payments,
		SimilarTickets:    st.SimilarTickets,
	}); err != nil {
		return nil, fmt.Errorf("%w: encode current data: %v", contractx.ErrValidation, err)
	}

	msgs := make([]statex.Message, 0, len(st.Messages)+1)
	for _, m := range st.Messages {
		m.ToolCalls = slices.Clone(m.ToolCalls)
		msgs = append(msgs, m)
	}
	msgs = append(msgs, statex.Message{
		Role:    statex.RoleSystem,
		Content: string(bytes.TrimRight(buf.Bytes(), "\n")),
	})
	return msgs, nil
}

func AssembleContextNode(in *GraphState) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	msgs, err := AssembleContext(in.Conversation)
	if err != nil {
		return nil, err
	}
	in.Context = msgs
	return in, nil
}
