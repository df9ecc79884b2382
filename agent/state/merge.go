package state

import (
	"fmt"
	"slices"
)

// Patch is a partial update produced by a tool result or a planner turn.
// Nil fields are absent and leave the state untouched. Slice fields are pointers so
// that "replace with an empty list" differs from "absent".
type Patch struct {
	Customer           *Customer
	ConsumptionPoints  *[]ConsumptionPoint
	Contracts          *[]Contract
	Payments           *[]ContractPayments
	SimilarTickets     *[]Ticket
	Messages           []Message
	StructuredResponse *StructuredResponse
}

func (p Patch) Empty() bool {
	return p.Customer == nil &&
		p.ConsumptionPoints == nil &&
		p.Contracts == nil &&
		p.Payments == nil &&
		p.SimilarTickets == nil &&
		len(p.Messages) == 0 &&
		p.StructuredResponse == nil
}

// AppendMessages returns a patch that only extends the message log.
func AppendMessages(msgs ...Message) Patch {
	return Patch{Messages: msgs}
}

// Merge applies patch to st and returns the resulting state. st itself is never
// modified and the result shares no mutable memory with st or patch.
//
// Replacement fields are swapped wholesale. Messages are appended. The customer is
// set once; a later patch only refreshes it when it carries the same customer id.
// StructuredResponse is write-once.
func Merge(st *ConversationState, patch Patch) (*ConversationState, error) {
	if st == nil {
		return nil, ErrNilConversation
	}
	if patch.StructuredResponse != nil && st.StructuredResponse != nil {
		return nil, ErrResponseWriteOnce
	}

	out := st.Clone()

	if patch.Customer != nil {
		if out.Customer == nil || out.Customer.CustomerID == patch.Customer.CustomerID {
			c := *patch.Customer
			if patch.Customer.ContactAddress != nil {
				addr := *patch.Customer.ContactAddress
				c.ContactAddress = &addr
			}
			out.Customer = &c
		}
	}
	if patch.ConsumptionPoints != nil {
		out.ConsumptionPoints = replaceList(*patch.ConsumptionPoints)
	}
	if patch.Contracts != nil {
		out.Contracts = replaceList(*patch.Contracts)
	}
	if patch.Payments != nil {
		payments := make([]ContractPayments, len(*patch.Payments))
		for i, p := range *patch.Payments {
			payments[i] = ContractPayments{ContractID: p.ContractID, Payments: replaceList(p.Payments)}
		}
		out.Payments = payments
	}
	if patch.SimilarTickets != nil {
		out.SimilarTickets = replaceList(*patch.SimilarTickets)
	}
	if len(patch.Messages) > 0 {
		msgs := make([]Message, 0, len(out.Messages)+len(patch.Messages))
		msgs = append(msgs, out.Messages...)
		for _, m := range patch.Messages {
			m.ToolCalls = slices.Clone(m.ToolCalls)
			msgs = append(msgs, m)
		}
		out.Messages = msgs
	}
	if patch.StructuredResponse != nil {
		r := *patch.StructuredResponse
		r.SimilarClaims = slices.Clone(patch.StructuredResponse.SimilarClaims)
		out.StructuredResponse = &r
		out.Status = StatusCompleted
		out.LastError = ""
	}

	if (out.ConsumptionPoints != nil || out.Contracts != nil) && out.Customer == nil {
		return nil, fmt.Errorf("%w: customer-scoped data merged before customer", ErrInvalidState)
	}
	return out, nil
}

// MergeAll applies patches in order.
func MergeAll(st *ConversationState, patches ...Patch) (*ConversationState, error) {
	cur := st
	for i, p := range patches {
		next, err := Merge(cur, p)
		if err != nil {
			return nil, fmt.Errorf("merge patch %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

// replaceList copies src, turning nil into an empty list so that a completed fetch
// is never mistaken for a missing one.
func replaceList[T any](src []T) []T {
	out := make([]T, len(src))
	copy(out, src)
	return out
}
