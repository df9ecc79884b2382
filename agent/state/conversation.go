package state

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ConversationState is the persistent source-of-truth for one claim conversation.
// - Accumulated data: Customer, ConsumptionPoints, Contracts, Payments, SimilarTickets
// - Control: Messages (append-only), Step, Status, StructuredResponse (write-once)
//
// A nil slice means the data was never fetched; an empty slice means it was fetched
// and came back empty. The slice fields therefore carry no omitempty.
type ConversationState struct {
	ConversationID string `json:"conversation_id"`
	IncomingTicket Ticket `json:"incoming_ticket"`

	Customer          *Customer          `json:"customer"`
	ConsumptionPoints []ConsumptionPoint `json:"consumption_points"`
	Contracts         []Contract         `json:"contracts"`
	Payments          []ContractPayments `json:"payments"`
	SimilarTickets    []Ticket           `json:"similar_tickets"`

	Messages           []Message           `json:"messages"`
	StructuredResponse *StructuredResponse `json:"structured_response,omitempty"`

	Step      int    `json:"step"`
	Status    Status `json:"status"`
	LastError string `json:"last_error,omitempty"`
	// Version counts persisted saves. A store only accepts the version that
	// directly follows the one it holds.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolCall is a tool invocation as emitted by the planner. Arguments is raw JSON.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

var (
	ErrNilConversation   = errors.New("conversation state is nil")
	ErrTicketImmutable   = errors.New("incoming ticket is immutable")
	ErrResponseWriteOnce = errors.New("structured response is already set")
)

func NewConversationState(conversationID string, ticket Ticket, now time.Time) *ConversationState {
	return &ConversationState{
		ConversationID: conversationID,
		IncomingTicket: ticket,
		Messages:       make([]Message, 0, 16),
		Status:         StatusRunning,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// IsTerminal reports whether the conversation reached END.
func (s *ConversationState) IsTerminal() bool {
	return s != nil && s.StructuredResponse != nil
}

func (s *ConversationState) HasCustomer() bool {
	return s != nil && s.Customer != nil
}

func (s *ConversationState) HasContracts() bool {
	return s != nil && s.Contracts != nil
}

// HasContract reports whether contractID was returned by the last contracts fetch.
func (s *ConversationState) HasContract(contractID string) bool {
	if !s.HasContracts() {
		return false
	}
	return slices.ContainsFunc(s.Contracts, func(c Contract) bool {
		return c.ContractID == contractID
	})
}

// LastMessage returns the tail of the log, or nil when it is empty.
func (s *ConversationState) LastMessage() *Message {
	if s == nil || len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// PendingToolCalls returns the tool calls of the last assistant message that have
// no tool message answering them yet, in call order.
func (s *ConversationState) PendingToolCalls() []ToolCall {
	if s == nil {
		return nil
	}
	idx := -1
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	answered := make(map[string]struct{}, len(s.Messages)-idx)
	for _, m := range s.Messages[idx+1:] {
		if m.Role == RoleTool {
			answered[m.ToolCallID] = struct{}{}
		}
	}

	var pending []ToolCall
	for _, tc := range s.Messages[idx].ToolCalls {
		if _, ok := answered[tc.ID]; !ok {
			pending = append(pending, tc)
		}
	}
	return pending
}

func (s *ConversationState) Validate() error {
	if s == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(s.ConversationID) == "" {
		return ErrInvalidConversation
	}
	if strings.TrimSpace(s.IncomingTicket.Email) == "" {
		return fmt.Errorf("%w: incoming ticket email is empty", ErrInvalidState)
	}
	switch s.Status {
	case StatusRunning, StatusFailed:
		if s.StructuredResponse != nil {
			return fmt.Errorf("%w: status=%s with structured response", ErrInvalidState, s.Status)
		}
	case StatusCompleted:
		if s.StructuredResponse == nil {
			return fmt.Errorf("%w: completed without structured response", ErrInvalidState)
		}
	default:
		return fmt.Errorf("%w: unknown status=%q", ErrInvalidState, s.Status)
	}
	if s.Payments != nil && s.Contracts == nil {
		return fmt.Errorf("%w: payments present without contracts", ErrInvalidState)
	}
	if (s.ConsumptionPoints != nil || s.Contracts != nil) && s.Customer == nil {
		return fmt.Errorf("%w: customer data present without customer", ErrInvalidState)
	}
	for i, m := range s.Messages {
		if m.Role == RoleTool && strings.TrimSpace(m.ToolCallID) == "" {
			return fmt.Errorf("%w: tool message %d has no tool_call_id", ErrInvalidState, i)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hand state across goroutines or stores
// without sharing backing arrays.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	if s.Customer != nil {
		c := *s.Customer
		if s.Customer.ContactAddress != nil {
			addr := *s.Customer.ContactAddress
			c.ContactAddress = &addr
		}
		out.Customer = &c
	}
	out.ConsumptionPoints = slices.Clone(s.ConsumptionPoints)
	out.Contracts = slices.Clone(s.Contracts)
	if s.Payments != nil {
		out.Payments = make([]ContractPayments, len(s.Payments))
		for i, p := range s.Payments {
			out.Payments[i] = ContractPayments{ContractID: p.ContractID, Payments: slices.Clone(p.Payments)}
		}
	}
	out.SimilarTickets = slices.Clone(s.SimilarTickets)
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		for i, m := range s.Messages {
			m.ToolCalls = slices.Clone(m.ToolCalls)
			out.Messages[i] = m
		}
	}
	if s.StructuredResponse != nil {
		r := *s.StructuredResponse
		r.SimilarClaims = slices.Clone(s.StructuredResponse.SimilarClaims)
		out.StructuredResponse = &r
	}
	return &out
}
