package responder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	promptx "github.com/tanpawarit/claims-responder-agent/agent/prompt"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
	retryx "github.com/tanpawarit/claims-responder-agent/pkg/retry"
)

type fakeToolCallingModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	err       error
	block     bool
	idx       int
	inputs    [][]*schema.Message
	tools     []*schema.ToolInfo
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.tools = tools
	return f, nil
}

func (f *fakeToolCallingModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

var fastRetry = retryx.Config{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func toolCallMsg(id, name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

func planRequest() contractx.PlannerRequest {
	return contractx.PlannerRequest{
		ConversationID: "conv-1",
		Step:           1,
		Messages: []statex.Message{
			{Role: statex.RoleUser, Content: "draft a reply"},
		},
	}
}

func TestPlannerReturnsToolCalls(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{responses: []*schema.Message{
		toolCallMsg("c1", "get_customer", `{}`),
	}}
	planner, err := newPlanner(context.Background(), fake, "system prompt", plannerOptions{retry: fastRetry})
	if err != nil {
		t.Fatalf("newPlanner() error = %v", err)
	}

	out, err := planner.Plan(context.Background(), planRequest())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if !out.WantsTools() {
		t.Fatal("expected tool calls")
	}
	if out.Message.Role != statex.RoleAssistant || out.Message.ToolCalls[0].Name != "get_customer" {
		t.Fatalf("unexpected message: %#v", out.Message)
	}
	if len(fake.tools) != 5 {
		t.Fatalf("bound tools = %d, want 5", len(fake.tools))
	}

	input := fake.inputs[0]
	if len(input) != 2 || input[0].Role != schema.System || input[0].Content != "system prompt" {
		t.Fatalf("planner input = %#v, want system prompt then log", input)
	}
}

func TestPlannerTextIsCandidateAnswer(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{responses: []*schema.Message{
		schema.AssistantMessage("  Dear customer, ...  ", nil),
	}}
	planner, err := newPlanner(context.Background(), fake, "system prompt", plannerOptions{retry: fastRetry})
	if err != nil {
		t.Fatalf("newPlanner() error = %v", err)
	}

	out, err := planner.Plan(context.Background(), planRequest())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if out.WantsTools() {
		t.Fatal("expected no tool calls")
	}
	if out.Message.Content != "Dear customer, ..." {
		t.Fatalf("content = %q", out.Message.Content)
	}
}

func TestPlannerUnknownToolIsMalformedAndRetried(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{responses: []*schema.Message{
		toolCallMsg("c1", "delete_customer", `{}`),
		toolCallMsg("c2", "find_relevant_claims", `{"search_term":"billing","k":5}`),
	}}
	planner, err := newPlanner(context.Background(), fake, "system prompt", plannerOptions{retry: fastRetry})
	if err != nil {
		t.Fatalf("newPlanner() error = %v", err)
	}

	out, err := planner.Plan(context.Background(), planRequest())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if fake.calls() != 2 {
		t.Fatalf("model calls = %d, want 2", fake.calls())
	}
	if out.Message.ToolCalls[0].ID != "c2" {
		t.Fatalf("unexpected calls: %#v", out.Message.ToolCalls)
	}
}

func TestPlannerMalformedExhaustsRetries(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{responses: []*schema.Message{
		toolCallMsg("c1", "find_relevant_claims", `{"k":5}`),
		schema.AssistantMessage("   ", nil),
	}}
	planner, err := newPlanner(context.Background(), fake, "system prompt", plannerOptions{retry: fastRetry})
	if err != nil {
		t.Fatalf("newPlanner() error = %v", err)
	}

	_, err = planner.Plan(context.Background(), planRequest())
	if !errors.Is(err, contractx.ErrPlannerMalformedOutput) {
		t.Fatalf("Plan() error = %v, want ErrPlannerMalformedOutput", err)
	}
	if fake.calls() != 2 {
		t.Fatalf("model calls = %d, want 2", fake.calls())
	}
}

func TestPlannerTimeout(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{block: true}
	planner, err := newPlanner(context.Background(), fake, "system prompt", plannerOptions{
		callTimeout: 10 * time.Millisecond,
		retry:       fastRetry,
	})
	if err != nil {
		t.Fatalf("newPlanner() error = %v", err)
	}

	_, err = planner.Plan(context.Background(), planRequest())
	if !errors.Is(err, contractx.ErrPlannerTimeout) {
		t.Fatalf("Plan() error = %v, want ErrPlannerTimeout", err)
	}
	if contractx.ErrorCode(err) != contractx.CodePlannerTimeout {
		t.Fatalf("code = %s", contractx.ErrorCode(err))
	}
	if fake.calls() != 2 {
		t.Fatalf("model calls = %d, want 2", fake.calls())
	}
}

func TestNewPlannerRequiresPrompt(t *testing.T) {
	t.Parallel()

	_, err := newPlanner(context.Background(), &fakeToolCallingModel{}, " ", plannerOptions{})
	if !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("newPlanner() error = %v, want ErrPromptMissing", err)
	}
}

const validAnswer = `{
  "similar_claims": [
    {"id": "H-1001", "summary": "Double billing", "resolution": "Refunded"},
    {"id": "H-1002", "summary": "Advance too high", "resolution": "Advance lowered"},
    {"id": "H-1003", "summary": "Missed payment", "resolution": "Payment matched"}
  ],
  "suggested_response": "Dear Mr. Vomacka, we reviewed your contract payments."
}`

func newTestFinalizer(t *testing.T, fake *fakeToolCallingModel) *finalizerImpl {
	t.Helper()
	prompts := promptx.LoadPromptSet()
	f, err := newFinalizer(context.Background(), fake, prompts.Finalizer, prompts.CorrectionFor, finalizerOptions{retry: retryx.Disabled})
	if err != nil {
		t.Fatalf("newFinalizer() error = %v", err)
	}
	return f
}

func TestFinalizerTimeoutIsBounded(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{block: true}
	prompts := promptx.LoadPromptSet()
	f, err := newFinalizer(context.Background(), fake, prompts.Finalizer, prompts.CorrectionFor, finalizerOptions{
		callTimeout: 10 * time.Millisecond,
		retry:       fastRetry,
	})
	if err != nil {
		t.Fatalf("newFinalizer() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.Finalize(context.Background(), contractx.FinalizeRequest{ConversationID: "conv-1", Candidate: validAnswer})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, contractx.ErrPlannerTimeout) {
			t.Fatalf("Finalize() error = %v, want ErrPlannerTimeout", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Finalize() did not return with a hanging model")
	}
	if fake.calls() != 2 {
		t.Fatalf("model calls = %d, want 2", fake.calls())
	}
}

func TestFinalizerAcceptsFencedJSON(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{responses: []*schema.Message{
		schema.AssistantMessage("```json\n"+validAnswer+"\n```", nil),
	}}
	f := newTestFinalizer(t, fake)

	resp, err := f.Finalize(context.Background(), contractx.FinalizeRequest{ConversationID: "conv-1", Candidate: "draft"})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if len(resp.SimilarClaims) != 3 || resp.SimilarClaims[0].ID != "H-1001" {
		t.Fatalf("similar claims = %#v", resp.SimilarClaims)
	}
	if !strings.HasPrefix(resp.SuggestedResponse, "Dear") {
		t.Fatalf("suggested response = %q", resp.SuggestedResponse)
	}

	input := fake.inputs[0]
	if len(input) != 2 || input[0].Role != schema.System || !strings.Contains(input[1].Content, `"candidate_answer":"draft"`) {
		t.Fatalf("finalizer input = %#v", input)
	}
}

func TestFinalizerCorrectsOnce(t *testing.T) {
	t.Parallel()

	tooFew := `{"similar_claims":[{"id":"H-1","summary":"s","resolution":"r"}],"suggested_response":"hi"}`
	fake := &fakeToolCallingModel{responses: []*schema.Message{
		schema.AssistantMessage(tooFew, nil),
		schema.AssistantMessage(validAnswer, nil),
	}}
	f := newTestFinalizer(t, fake)

	if _, err := f.Finalize(context.Background(), contractx.FinalizeRequest{Candidate: "draft"}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if fake.calls() != 2 {
		t.Fatalf("model calls = %d, want 2", fake.calls())
	}

	second := fake.inputs[1]
	if len(second) != 4 {
		t.Fatalf("correction input has %d messages, want 4", len(second))
	}
	if second[2].Role != schema.Assistant || second[2].Content != tooFew {
		t.Fatalf("rejected output not replayed: %#v", second[2])
	}
	if !strings.Contains(second[3].Content, "rejected") {
		t.Fatalf("correction prompt = %q", second[3].Content)
	}
}

func TestFinalizerRejectsPlaceholdersTwice(t *testing.T) {
	t.Parallel()

	withPlaceholder := strings.Replace(validAnswer, "Dear Mr. Vomacka", "Dear {{customer_name}}", 1)
	fake := &fakeToolCallingModel{responses: []*schema.Message{
		schema.AssistantMessage(withPlaceholder, nil),
		schema.AssistantMessage(strings.Replace(validAnswer, "Mr. Vomacka", "[NAME]", 1), nil),
	}}
	f := newTestFinalizer(t, fake)

	_, err := f.Finalize(context.Background(), contractx.FinalizeRequest{Candidate: "draft"})
	if !errors.Is(err, contractx.ErrSchemaValidation) {
		t.Fatalf("Finalize() error = %v, want ErrSchemaValidation", err)
	}
	if fake.calls() != finalizeAttempts {
		t.Fatalf("model calls = %d, want %d", fake.calls(), finalizeAttempts)
	}
}

func TestFinalizerEmptyCandidate(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{}
	f := newTestFinalizer(t, fake)

	_, err := f.Finalize(context.Background(), contractx.FinalizeRequest{Candidate: "  "})
	if !errors.Is(err, contractx.ErrSchemaValidation) {
		t.Fatalf("Finalize() error = %v, want ErrSchemaValidation", err)
	}
	if fake.calls() != 0 {
		t.Fatal("model must not be called for an empty candidate")
	}
}

func TestFindPlaceholder(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Dear {{ name }},":        "{{ name }}",
		"Hello <customer_name>!":  "<customer_name>",
		"Contract [CONTRACT_ID].": "[CONTRACT_ID]",
		"Amount 1500 CZK [1].":    "",
		"Plain reply.":            "",
	}
	for in, want := range cases {
		got := findPlaceholder(statex.StructuredResponse{SuggestedResponse: in})
		if got != want {
			t.Errorf("findPlaceholder(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	if got := stripFences("```json\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Fatalf("stripFences() = %q", got)
	}
	if got := stripFences(` {"a":1} `); got != `{"a":1}` {
		t.Fatalf("stripFences() = %q", got)
	}
}
