package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

// TicketService is the agent surface the HTTP layer drives.
type TicketService interface {
	HandleTicket(ctx context.Context, conversationID string, ticket statex.Ticket) (contractx.Outcome, error)
	Conversation(ctx context.Context, conversationID string) (*statex.ConversationState, error)
}

type ticketRequest struct {
	Ticket statex.Ticket `json:"ticket"`
}

type Handler struct {
	svc   TicketService
	queue *Queue
}

type HandlerOption func(*Handler)

// WithQueue enables the queued ticket routes.
func WithQueue(q *Queue) HandlerOption {
	return func(h *Handler) {
		if q != nil && q.Publisher != nil && q.Verifier != nil {
			h.queue = q
		}
	}
}

func NewHandler(svc TicketService, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleTicket serves POST /v1/conversations/:conversation_id/tickets and the
// legacy POST /chat_react_agent, where the ticket id names the conversation.
func (h *Handler) HandleTicket(c *gin.Context) {
	var req ticketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  contractx.CodeValidation,
			"error": "invalid request body: " + err.Error(),
		})
		return
	}

	conversationID := strings.TrimSpace(c.Param("conversation_id"))
	out, err := h.svc.HandleTicket(c.Request.Context(), conversationID, req.Ticket)
	if err != nil {
		c.JSON(statusFor(out.Code), out)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetConversation(c *gin.Context) {
	st, err := h.svc.Conversation(c.Request.Context(), c.Param("conversation_id"))
	switch {
	case errors.Is(err, statex.ErrStateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	case errors.Is(err, statex.ErrInvalidConversation):
		c.JSON(http.StatusBadRequest, gin.H{"code": contractx.CodeValidation, "error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"code": contractx.CodeInternal, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusFor(code string) int {
	switch code {
	case contractx.CodeConversationBusy:
		return http.StatusConflict
	case contractx.CodeValidation, contractx.CodeInvalidArgument:
		return http.StatusBadRequest
	case contractx.CodeSchemaValidation, contractx.CodeLoopLimitExceeded,
		contractx.CodeToolPrecondition, contractx.CodeCustomerNotFound:
		return http.StatusUnprocessableEntity
	case contractx.CodeUpstreamUnavailable, contractx.CodePlannerTimeout, contractx.CodePlannerMalformedOutput:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
