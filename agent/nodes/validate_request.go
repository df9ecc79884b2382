package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
)

var ErrInvalidTicket = fmt.Errorf("%w: ticket is invalid", contractx.ErrValidation)

func ValidateRequest(in GraphInput, validate *validator.Validate, nowFn func() time.Time) (*GraphState, error) {
	ticket := in.Ticket
	ticket.ID = strings.TrimSpace(ticket.ID)
	ticket.Email = strings.TrimSpace(ticket.Email)

	if err := validate.Struct(ticket); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTicket, describeValidation(err))
	}

	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		conversationID = ticket.ID
	}

	now := nowFn().UTC()
	return &GraphState{
		ConversationID: conversationID,
		Ticket:         ticket,
		Now:            now,
		Started:        now,
		Phase:          PhaseAssemble,
	}, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
