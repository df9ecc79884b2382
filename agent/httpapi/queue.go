package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
)

const (
	signatureHeader  = "Upstash-Signature"
	deliveryBasePath = "/v1/deliveries/conversations/"
	maxDeliveryBytes = 1 << 20
)

// Publisher hands a request body to an external queue for delivery to destination.
type Publisher interface {
	Publish(ctx context.Context, destination string, body []byte) (string, error)
}

// SignatureVerifier authenticates a delivery made by the queue.
type SignatureVerifier interface {
	Verify(signature string, body []byte, destination string) error
}

// Queue routes tickets through an external queue: EnqueueTicket publishes them,
// and the queue posts them back to the signed delivery route.
type Queue struct {
	Publisher   Publisher
	Verifier    SignatureVerifier
	CallbackURL string // public base url the queue delivers to
}

func (q *Queue) deliveryURL(conversationID string) string {
	return strings.TrimRight(q.CallbackURL, "/") + deliveryBasePath + conversationID + "/tickets"
}

// EnqueueTicket serves POST /v1/queue/conversations/:conversation_id/tickets.
func (h *Handler) EnqueueTicket(c *gin.Context) {
	var req ticketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  contractx.CodeValidation,
			"error": "invalid request body: " + err.Error(),
		})
		return
	}

	conversationID := strings.TrimSpace(c.Param("conversation_id"))
	if conversationID == "" {
		conversationID = strings.TrimSpace(req.Ticket.ID)
	}
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": contractx.CodeValidation, "error": "conversation id is required"})
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": contractx.CodeInternal, "error": err.Error()})
		return
	}

	messageID, err := h.queue.Publisher.Publish(c.Request.Context(), h.queue.deliveryURL(conversationID), body)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("enqueue ticket failed")
		c.JSON(http.StatusBadGateway, gin.H{"code": contractx.CodeUpstreamUnavailable, "error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"conversation_id": conversationID,
		"message_id":      messageID,
	})
}

// verifySignature rejects deliveries whose signature does not cover the body
// and the delivery url.
func (q *Queue) verifySignature() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDeliveryBytes))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": contractx.CodeValidation, "error": "read body: " + err.Error()})
			return
		}
		_ = c.Request.Body.Close()

		dest := q.deliveryURL(c.Param("conversation_id"))
		if err := q.Verifier.Verify(c.GetHeader(signatureHeader), body, dest); err != nil {
			log.Warn().Err(err).Str("conversation_id", c.Param("conversation_id")).Msg("rejected queue delivery")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}
