package orchestratornode

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

func testConversation(t *testing.T) *statex.ConversationState {
	t.Helper()
	st := statex.NewConversationState("conv-1", statex.Ticket{
		ID:             "T-1",
		Email:          "k@x.test",
		RequestContent: "billing <dispute> & refund",
	}, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC))
	st, err := statex.MergeAll(st,
		statex.AppendMessages(statex.Message{Role: statex.RoleUser, Content: "draft"}),
		statex.Patch{Customer: &statex.Customer{CustomerID: "C1"}},
		statex.Patch{Contracts: &[]statex.Contract{}},
	)
	if err != nil {
		t.Fatalf("MergeAll() error = %v", err)
	}
	return st
}

func TestAssembleContextDoesNotMutateState(t *testing.T) {
	t.Parallel()

	st := testConversation(t)
	before := st.Clone()

	msgs, err := AssembleContext(st)
	if err != nil {
		t.Fatalf("AssembleContext() error = %v", err)
	}
	if !reflect.DeepEqual(st, before) {
		t.Fatal("AssembleContext mutated the conversation")
	}
	if len(msgs) != len(st.Messages)+1 {
		t.Fatalf("len(msgs) = %d, want %d", len(msgs), len(st.Messages)+1)
	}

	last := msgs[len(msgs)-1]
	if last.Role != statex.RoleSystem || !strings.HasPrefix(last.Content, currentDataHeader) {
		t.Fatalf("context message = %#v", last)
	}
	if strings.Contains(last.Content, `"messages"`) {
		t.Fatal("message log must not be serialized into the context")
	}
}

func TestAssembleContextSerialization(t *testing.T) {
	t.Parallel()

	msgs, err := AssembleContext(testConversation(t))
	if err != nil {
		t.Fatalf("AssembleContext() error = %v", err)
	}
	content := msgs[len(msgs)-1].Content

	for _, want := range []string{
		`"contracts": []`,
		`"consumption_points": null`,
		`"similar_tickets": null`,
		`"customer_id": "C1"`,
		"billing <dispute> & refund",
		"\n    \"incoming_ticket\"",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("context does not contain %q:\n%s", want, content)
		}
	}
}

func TestResumePhase(t *testing.T) {
	t.Parallel()

	base := testConversation(t)

	withCalls, err := statex.Merge(base, statex.AppendMessages(statex.Message{
		Role:      statex.RoleAssistant,
		ToolCalls: []statex.ToolCall{{ID: "c1", Name: "get_customer"}},
	}))
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	answered, err := statex.Merge(withCalls, statex.AppendMessages(statex.Message{
		Role: statex.RoleTool, ToolCallID: "c1", Content: "ok",
	}))
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	candidate, err := statex.Merge(answered, statex.AppendMessages(statex.Message{
		Role: statex.RoleAssistant, Content: "draft answer",
	}))
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	done, err := statex.Merge(candidate, statex.Patch{StructuredResponse: &statex.StructuredResponse{SuggestedResponse: "x"}})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	cases := []struct {
		name string
		st   *statex.ConversationState
		want Phase
	}{
		{"fresh", base, PhaseAssemble},
		{"pending calls", withCalls, PhaseDispatch},
		{"answered calls", answered, PhaseAssemble},
		{"candidate answer", candidate, PhaseFinalize},
		{"completed", done, PhaseEnd},
	}
	for _, tc := range cases {
		if got := ResumePhase(tc.st); got != tc.want {
			t.Errorf("%s: ResumePhase() = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	validate := validator.New(validator.WithRequiredStructEnabled())
	now := func() time.Time { return time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC) }

	gs, err := ValidateRequest(GraphInput{Ticket: statex.Ticket{
		ID:             " T-9 ",
		Email:          "k@x.test",
		RequestContent: "help",
	}}, validate, now)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if gs.ConversationID != "T-9" || gs.Ticket.ID != "T-9" || gs.Phase != PhaseAssemble {
		t.Fatalf("graph state = %#v", gs)
	}

	_, err = ValidateRequest(GraphInput{ConversationID: "c", Ticket: statex.Ticket{ID: "T-9"}}, validate, now)
	if !errors.Is(err, ErrInvalidTicket) || !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("ValidateRequest() error = %v, want ErrInvalidTicket", err)
	}
	if !strings.Contains(err.Error(), "Email failed required") {
		t.Fatalf("error does not name the field: %v", err)
	}
}

func TestFailRecordsError(t *testing.T) {
	t.Parallel()

	gs := &GraphState{Conversation: testConversation(t), Phase: PhasePlan}
	gs.Fail(contractx.ErrPlannerTimeout)

	if gs.Phase != PhaseFailed || !gs.Phase.Terminal() {
		t.Fatalf("phase = %s", gs.Phase)
	}
	if gs.Conversation.Status != statex.StatusFailed || gs.Conversation.LastError == "" {
		t.Fatalf("conversation status=%s last_error=%q", gs.Conversation.Status, gs.Conversation.LastError)
	}
}
