package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
	toolx "github.com/tanpawarit/claims-responder-agent/agent/tool"
	retryx "github.com/tanpawarit/claims-responder-agent/pkg/retry"
	"golang.org/x/time/rate"
)

type plannerImpl struct {
	runner      compose.Runnable[[]*schema.Message, *schema.Message]
	limiter     *rate.Limiter
	callTimeout time.Duration
	retry       retryx.Config
}

type plannerOptions struct {
	limiter     *rate.Limiter
	callTimeout time.Duration
	retry       retryx.Config
}

func newPlanner(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	opts plannerOptions,
) (*plannerImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: planner system prompt", contractx.ErrPromptMissing)
	}
	toolModel, err := chatModel.WithTools(toolx.Catalog())
	if err != nil {
		return nil, fmt.Errorf("%w: bind planner tools: %v", contractx.ErrModelInvoke, err)
	}
	runner, err := compilePlannerGraph(ctx, toolModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile planner graph: %v", contractx.ErrModelInvoke, err)
	}
	if opts.limiter == nil {
		opts.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &plannerImpl{
		runner:      runner,
		limiter:     opts.limiter,
		callTimeout: opts.callTimeout,
		retry:       opts.retry,
	}, nil
}

// Plan produces the next assistant message. Timeouts and malformed output are
// retried within the configured budget before they are reported.
func (p *plannerImpl) Plan(ctx context.Context, req contractx.PlannerRequest) (contractx.PlannerResponse, error) {
	input := toSchemaMessages(req.Messages)

	msg, err := retryx.Do(ctx, p.retry, "planner.plan", contractx.IsRetryable,
		func(ctx context.Context) (statex.Message, error) {
			return p.planOnce(ctx, input)
		})
	if err != nil {
		log.Warn().
			Err(err).
			Str("conversation_id", req.ConversationID).
			Int("step", req.Step).
			Msg("planner failed")
		return contractx.PlannerResponse{}, err
	}
	return contractx.PlannerResponse{Message: msg}, nil
}

func (p *plannerImpl) planOnce(ctx context.Context, input []*schema.Message) (statex.Message, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return statex.Message{}, fmt.Errorf("%w: planner rate limit wait: %v", contractx.ErrPlannerTimeout, err)
	}

	callCtx := ctx
	if p.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}

	out, err := p.runner.Invoke(callCtx, input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return statex.Message{}, fmt.Errorf("%w: %v", contractx.ErrPlannerTimeout, err)
		}
		return statex.Message{}, fmt.Errorf("%w: %w: planner invoke: %v", contractx.ErrModelInvoke, contractx.ErrUpstreamUnavailable, err)
	}
	return toPlannerMessage(out)
}

// toPlannerMessage rejects output the dispatcher could never act on: no content
// and no calls, unknown tool names, or arguments that fail their schema.
func toPlannerMessage(out *schema.Message) (statex.Message, error) {
	if out == nil {
		return statex.Message{}, fmt.Errorf("%w: empty planner response", contractx.ErrPlannerMalformedOutput)
	}

	calls := toolx.NormalizeCalls(fromSchemaToolCalls(out.ToolCalls))
	content := strings.TrimSpace(out.Content)
	if len(calls) == 0 && content == "" {
		return statex.Message{}, fmt.Errorf("%w: planner returned neither content nor tool calls", contractx.ErrPlannerMalformedOutput)
	}
	if _, err := toolx.ParseCalls(calls); err != nil {
		return statex.Message{}, fmt.Errorf("%w: %v", contractx.ErrPlannerMalformedOutput, err)
	}

	return statex.Message{
		Role:      statex.RoleAssistant,
		Content:   content,
		ToolCalls: calls,
	}, nil
}
