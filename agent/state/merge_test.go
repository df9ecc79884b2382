package state

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func testTicket() Ticket {
	return Ticket{
		ID:             "T-1",
		Category1:      "billing",
		Email:          "k@x.test",
		RequestContent: "billing dispute",
	}
}

func testState() *ConversationState {
	return NewConversationState("conv-1", testTicket(), time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC))
}

func TestMergeReplacesListsWholesale(t *testing.T) {
	t.Parallel()

	st := testState()
	first := []Contract{{ContractID: "K1"}, {ContractID: "K2"}}
	second := []Contract{{ContractID: "K3"}}

	out, err := MergeAll(st,
		Patch{Customer: &Customer{CustomerID: "C1"}},
		Patch{Contracts: &first},
		Patch{Contracts: &second},
	)
	if err != nil {
		t.Fatalf("MergeAll() error = %v", err)
	}
	if len(out.Contracts) != 1 || out.Contracts[0].ContractID != "K3" {
		t.Fatalf("contracts = %#v, want only K3", out.Contracts)
	}
}

func TestMergeAppendsMessages(t *testing.T) {
	t.Parallel()

	st := testState()
	out, err := MergeAll(st,
		AppendMessages(Message{Role: RoleUser, Content: "a"}),
		AppendMessages(Message{Role: RoleAssistant, Content: "b"}, Message{Role: RoleUser, Content: "c"}),
	)
	if err != nil {
		t.Fatalf("MergeAll() error = %v", err)
	}
	if len(out.Messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(out.Messages))
	}
	for i, want := range []string{"a", "b", "c"} {
		if out.Messages[i].Content != want {
			t.Fatalf("messages[%d] = %q, want %q", i, out.Messages[i].Content, want)
		}
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	st := testState()
	st.Messages = append(make([]Message, 0, 8), Message{Role: RoleUser, Content: "start"})
	before := st.Clone()

	a, err := Merge(st, AppendMessages(Message{Role: RoleAssistant, Content: "one"}))
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	b, err := Merge(st, AppendMessages(Message{Role: RoleAssistant, Content: "two"}))
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if !reflect.DeepEqual(st, before) {
		t.Fatalf("input state mutated: %#v", st)
	}
	if a.Messages[1].Content != "one" || b.Messages[1].Content != "two" {
		t.Fatalf("merges share backing arrays: a=%q b=%q", a.Messages[1].Content, b.Messages[1].Content)
	}
}

func TestMergeAbsentFieldsUntouched(t *testing.T) {
	t.Parallel()

	st, err := Merge(testState(), Patch{Customer: &Customer{CustomerID: "C1"}})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	points := []ConsumptionPoint{{ConsumptionPointID: "P1"}}
	st, err = Merge(st, Patch{ConsumptionPoints: &points})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	out, err := Merge(st, AppendMessages(Message{Role: RoleUser, Content: "x"}))
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if out.Customer == nil || out.Customer.CustomerID != "C1" {
		t.Fatalf("customer changed: %#v", out.Customer)
	}
	if len(out.ConsumptionPoints) != 1 {
		t.Fatalf("consumption points changed: %#v", out.ConsumptionPoints)
	}
	if out.Contracts != nil {
		t.Fatalf("contracts should stay unfetched, got %#v", out.Contracts)
	}
}

func TestMergeEmptyListMarksFetched(t *testing.T) {
	t.Parallel()

	st, err := Merge(testState(), Patch{Customer: &Customer{CustomerID: "C1"}})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	out, err := Merge(st, Patch{Contracts: &[]Contract{}})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !out.HasContracts() {
		t.Fatal("empty contracts fetch must count as present")
	}
}

func TestMergeCustomerSetOnce(t *testing.T) {
	t.Parallel()

	st, err := MergeAll(testState(),
		Patch{Customer: &Customer{CustomerID: "C1", Phone: "1"}},
		Patch{Customer: &Customer{CustomerID: "C2", Phone: "2"}},
	)
	if err != nil {
		t.Fatalf("MergeAll() error = %v", err)
	}
	if st.Customer.CustomerID != "C1" {
		t.Fatalf("customer id = %s, want C1", st.Customer.CustomerID)
	}

	st, err = Merge(st, Patch{Customer: &Customer{CustomerID: "C1", Phone: "3"}})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if st.Customer.Phone != "3" {
		t.Fatalf("same-id refresh not applied: %#v", st.Customer)
	}
}

func TestMergeStructuredResponseWriteOnce(t *testing.T) {
	t.Parallel()

	resp := &StructuredResponse{SuggestedResponse: "hello"}
	st, err := Merge(testState(), Patch{StructuredResponse: resp})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if st.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", st.Status)
	}
	if !st.IsTerminal() {
		t.Fatal("expected terminal state")
	}

	_, err = Merge(st, Patch{StructuredResponse: resp})
	if !errors.Is(err, ErrResponseWriteOnce) {
		t.Fatalf("second write error = %v, want ErrResponseWriteOnce", err)
	}
}

func TestMergeRejectsCustomerDataWithoutCustomer(t *testing.T) {
	t.Parallel()

	_, err := Merge(testState(), Patch{Contracts: &[]Contract{{ContractID: "K1"}}})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Merge() error = %v, want ErrInvalidState", err)
	}
}

func TestPendingToolCalls(t *testing.T) {
	t.Parallel()

	st, err := MergeAll(testState(),
		AppendMessages(Message{Role: RoleUser, Content: "draft"}),
		AppendMessages(Message{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "c1", Name: "get_customer"},
			{ID: "c2", Name: "find_relevant_claims"},
		}}),
		AppendMessages(Message{Role: RoleTool, ToolCallID: "c1", Content: "ok"}),
	)
	if err != nil {
		t.Fatalf("MergeAll() error = %v", err)
	}

	pending := st.PendingToolCalls()
	if len(pending) != 1 || pending[0].ID != "c2" {
		t.Fatalf("PendingToolCalls() = %#v, want only c2", pending)
	}
}
