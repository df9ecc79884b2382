package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

type fakePublisher struct {
	err         error
	destination string
	body        string
}

func (f *fakePublisher) Publish(_ context.Context, destination string, body []byte) (string, error) {
	f.destination = destination
	f.body = string(body)
	return "msg_1", f.err
}

type fakeVerifier struct {
	valid       string
	destination string
	body        string
}

func (f *fakeVerifier) Verify(signature string, body []byte, destination string) error {
	f.destination = destination
	f.body = string(body)
	if signature != f.valid {
		return errors.New("bad signature")
	}
	return nil
}

func serveQueue(t *testing.T, svc *fakeService, q *Queue, path, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(NewHandler(svc, WithQueue(q)), "")
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestEnqueueTicket(t *testing.T) {
	pub := &fakePublisher{}
	q := &Queue{Publisher: pub, Verifier: &fakeVerifier{}, CallbackURL: "https://agent.example/"}

	w := serveQueue(t, &fakeService{}, q, "/v1/queue/conversations/conv-1/tickets", ticketBody, "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"message_id":"msg_1"`)
	assert.Equal(t, "https://agent.example/v1/deliveries/conversations/conv-1/tickets", pub.destination)
	assert.Contains(t, pub.body, `"request_content":"billing dispute"`)
}

func TestEnqueueTicket_PublishFailure(t *testing.T) {
	q := &Queue{Publisher: &fakePublisher{err: errors.New("down")}, Verifier: &fakeVerifier{}, CallbackURL: "https://agent.example"}

	w := serveQueue(t, &fakeService{}, q, "/v1/queue/conversations/conv-1/tickets", ticketBody, "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), contractx.CodeUpstreamUnavailable)
}

func TestDelivery_VerifiesSignature(t *testing.T) {
	verifier := &fakeVerifier{valid: "good"}
	q := &Queue{Publisher: &fakePublisher{}, Verifier: verifier, CallbackURL: "https://agent.example"}
	svc := &fakeService{outcome: contractx.Outcome{ConversationID: "conv-1", Status: statex.StatusCompleted}}

	w := serveQueue(t, svc, q, "/v1/deliveries/conversations/conv-1/tickets", ticketBody, "bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.gotConversation)

	w = serveQueue(t, svc, q, "/v1/deliveries/conversations/conv-1/tickets", ticketBody, "good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "conv-1", svc.gotConversation)
	assert.Equal(t, "T-1", svc.gotTicket.ID, "body must be restored after verification")
	assert.Equal(t, ticketBody, verifier.body)
	assert.Equal(t, "https://agent.example/v1/deliveries/conversations/conv-1/tickets", verifier.destination)
}

func TestQueueRoutesDisabledWithoutQueue(t *testing.T) {
	w := serve(t, &fakeService{}, http.MethodPost, "/v1/queue/conversations/conv-1/tickets", ticketBody)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
