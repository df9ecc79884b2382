package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	outcome contractx.Outcome
	err     error
	state   *statex.ConversationState
	stErr   error

	gotConversation string
	gotTicket       statex.Ticket
}

func (f *fakeService) HandleTicket(_ context.Context, conversationID string, ticket statex.Ticket) (contractx.Outcome, error) {
	f.gotConversation = conversationID
	f.gotTicket = ticket
	return f.outcome, f.err
}

func (f *fakeService) Conversation(_ context.Context, conversationID string) (*statex.ConversationState, error) {
	return f.state, f.stErr
}

func serve(t *testing.T, svc *fakeService, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(NewHandler(svc), "")
	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

const ticketBody = `{"ticket":{"id":"T-1","email":"k@x.test","request_content":"billing dispute"}}`

func TestHandleTicket_Success(t *testing.T) {
	svc := &fakeService{outcome: contractx.Outcome{
		ConversationID: "conv-1",
		Status:         statex.StatusCompleted,
		StructuredResponse: &statex.StructuredResponse{
			SuggestedResponse: "Dear customer",
		},
		Steps: 4,
	}}

	w := serve(t, svc, http.MethodPost, "/v1/conversations/conv-1/tickets", ticketBody)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "conv-1", svc.gotConversation)
	assert.Equal(t, "T-1", svc.gotTicket.ID)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "completed", out["status"])
	assert.Contains(t, out, "structured_response")
}

func TestHandleTicket_LegacyRouteUsesTicketID(t *testing.T) {
	svc := &fakeService{outcome: contractx.Outcome{ConversationID: "T-1", Status: statex.StatusCompleted}}

	w := serve(t, svc, http.MethodPost, "/chat_react_agent", ticketBody)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", svc.gotConversation)
}

func TestHandleTicket_ErrorStatusCodes(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{contractx.CodeConversationBusy, http.StatusConflict},
		{contractx.CodeValidation, http.StatusBadRequest},
		{contractx.CodeSchemaValidation, http.StatusUnprocessableEntity},
		{contractx.CodeLoopLimitExceeded, http.StatusUnprocessableEntity},
		{contractx.CodeUpstreamUnavailable, http.StatusBadGateway},
		{contractx.CodePlannerTimeout, http.StatusBadGateway},
		{contractx.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := &fakeService{
				outcome: contractx.Outcome{
					ConversationID: "conv-1",
					Status:         statex.StatusFailed,
					Code:           tc.code,
					Error:          "boom",
					Messages:       []statex.Message{{Role: statex.RoleUser, Content: "draft"}},
				},
				err: fmt.Errorf("boom"),
			}

			w := serve(t, svc, http.MethodPost, "/v1/conversations/conv-1/tickets", ticketBody)

			assert.Equal(t, tc.want, w.Code)
			var out contractx.Outcome
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
			assert.Equal(t, tc.code, out.Code)
			assert.Len(t, out.Messages, 1, "partial transcript must be returned")
		})
	}
}

func TestHandleTicket_BadBody(t *testing.T) {
	w := serve(t, &fakeService{}, http.MethodPost, "/v1/conversations/conv-1/tickets", `{"ticket":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), contractx.CodeValidation)
}

func TestGetConversation(t *testing.T) {
	st := statex.NewConversationState("conv-1", statex.Ticket{ID: "T-1", Email: "k@x.test"}, testNow)

	w := serve(t, &fakeService{state: st}, http.MethodGet, "/v1/conversations/conv-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"conversation_id":"conv-1"`)

	w = serve(t, &fakeService{stErr: statex.ErrStateNotFound}, http.MethodGet, "/v1/conversations/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	w := serve(t, &fakeService{}, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = serve(t, &fakeService{}, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

var testNow = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
