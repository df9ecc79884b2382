package responder

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v6"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
	toolx "github.com/tanpawarit/claims-responder-agent/agent/tool"
	retryx "github.com/tanpawarit/claims-responder-agent/pkg/retry"
)

//go:embed schemas/final_answer.json
var finalAnswerSchema []byte

// placeholderPattern matches template tokens the model forgot to fill in:
// {{name}}, <name> and [name].
var placeholderPattern = regexp.MustCompile(`\{\{[^{}]*\}\}|<[A-Za-z_][A-Za-z0-9_ ]*>|\[[A-Za-z_][A-Za-z0-9_ ]*\]`)

const (
	// finalizeAttempts is the first call plus one corrective re-prompt.
	finalizeAttempts = 2

	defaultFinalizeCallTimeout = 60 * time.Second
)

type finalizerImpl struct {
	runner      compose.Runnable[map[string]any, finalizeOutput]
	prompt      string
	correction  func(reason string) string
	callTimeout time.Duration
	retry       retryx.Config
}

type finalizerOptions struct {
	callTimeout time.Duration
	retry       retryx.Config
}

// finalizeOutput is what parse_json hands back. Problem is set when the reply
// was rejected; Raw keeps the reply for the corrective turn.
type finalizeOutput struct {
	Raw      string
	Response *statex.StructuredResponse
	Problem  string
}

func newFinalizer(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	prompt string,
	correction func(string) string,
	opts finalizerOptions,
) (*finalizerImpl, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: finalizer prompt", contractx.ErrPromptMissing)
	}
	sch, err := toolx.CompileSchema("final_answer.json", finalAnswerSchema)
	if err != nil {
		return nil, fmt.Errorf("compile final answer schema: %w", err)
	}

	runner, err := compileStructuredLLMGraph(ctx, chatModel, checkFinalAnswer(sch), "responder.finalizer_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile finalizer graph: %v", contractx.ErrModelInvoke, err)
	}
	if opts.callTimeout <= 0 {
		opts.callTimeout = defaultFinalizeCallTimeout
	}
	return &finalizerImpl{
		runner:      runner,
		prompt:      prompt,
		correction:  correction,
		callTimeout: opts.callTimeout,
		retry:       opts.retry,
	}, nil
}

func (f *finalizerImpl) Finalize(ctx context.Context, req contractx.FinalizeRequest) (statex.StructuredResponse, error) {
	candidate := strings.TrimSpace(req.Candidate)
	if candidate == "" {
		return statex.StructuredResponse{}, fmt.Errorf("%w: candidate answer is empty", contractx.ErrSchemaValidation)
	}
	payload, err := json.Marshal(map[string]string{"candidate_answer": candidate})
	if err != nil {
		return statex.StructuredResponse{}, fmt.Errorf("%w: marshal finalize payload: %v", contractx.ErrValidation, err)
	}

	history := []*schema.Message{schema.UserMessage(string(payload))}
	var problem string
	for attempt := 1; attempt <= finalizeAttempts; attempt++ {
		out, err := retryx.Do(ctx, f.retry, "finalizer.finalize", contractx.IsRetryable,
			func(ctx context.Context) (finalizeOutput, error) {
				return f.finalizeOnce(ctx, history)
			})
		if err != nil {
			return statex.StructuredResponse{}, err
		}
		if out.Problem == "" && out.Response != nil {
			return *out.Response, nil
		}

		problem = out.Problem
		log.Warn().
			Str("conversation_id", req.ConversationID).
			Int("attempt", attempt).
			Str("problem", problem).
			Msg("final answer rejected")
		history = append(history,
			schema.AssistantMessage(out.Raw, nil),
			schema.UserMessage(f.correction(problem)),
		)
	}
	return statex.StructuredResponse{}, fmt.Errorf("%w: %s", contractx.ErrSchemaValidation, problem)
}

// finalizeOnce bounds one model call by callTimeout. A deadline is reported as
// ErrPlannerTimeout so it is retried within the budget like a planner call.
func (f *finalizerImpl) finalizeOnce(ctx context.Context, history []*schema.Message) (finalizeOutput, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	out, err := f.runner.Invoke(callCtx, map[string]any{
		"instructions": f.prompt,
		"history":      history,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return finalizeOutput{}, fmt.Errorf("%w: finalizer call exceeded %s: %v", contractx.ErrPlannerTimeout, f.callTimeout, err)
		}
		return finalizeOutput{}, fmt.Errorf("%w: %w: finalizer invoke: %v", contractx.ErrModelInvoke, contractx.ErrUpstreamUnavailable, err)
	}
	return out, nil
}

// checkFinalAnswer validates the model reply against the final answer schema and
// decodes it. Rejections are reported in finalizeOutput.Problem, never as errors,
// so the caller can re-prompt.
func checkFinalAnswer(sch *jsonschema.Schema) func(context.Context, *schema.Message) (finalizeOutput, error) {
	parser := schema.NewMessageJSONParser[statex.StructuredResponse](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	return func(ctx context.Context, msg *schema.Message) (finalizeOutput, error) {
		if msg == nil {
			return finalizeOutput{Problem: "empty response"}, nil
		}
		raw := stripFences(msg.Content)
		out := finalizeOutput{Raw: msg.Content}

		if err := toolx.ValidateJSON(sch, []byte(raw)); err != nil {
			out.Problem = fmt.Sprintf("output does not match the required JSON schema: %v", err)
			return out, nil
		}
		resp, err := parser.Parse(ctx, &schema.Message{Role: schema.Assistant, Content: raw})
		if err != nil {
			out.Problem = fmt.Sprintf("output is not valid JSON: %v", err)
			return out, nil
		}
		if tok := findPlaceholder(resp); tok != "" {
			out.Problem = fmt.Sprintf("output contains the unresolved placeholder %q", tok)
			return out, nil
		}
		out.Response = &resp
		return out, nil
	}
}

func findPlaceholder(resp statex.StructuredResponse) string {
	fields := []string{resp.SuggestedResponse}
	for _, c := range resp.SimilarClaims {
		fields = append(fields, c.ID, c.Summary, c.Resolution)
	}
	for _, f := range fields {
		if tok := placeholderPattern.FindString(f); tok != "" {
			return tok
		}
	}
	return ""
}

func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
