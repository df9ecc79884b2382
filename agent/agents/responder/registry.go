package responder

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	llmx "github.com/tanpawarit/claims-responder-agent/agent/llm"
	promptx "github.com/tanpawarit/claims-responder-agent/agent/prompt"
	"golang.org/x/time/rate"
)

type registryImpl struct {
	planner   contractx.Planner
	finalizer contractx.Finalizer
}

func (r *registryImpl) Planner() contractx.Planner {
	return r.planner
}

func (r *registryImpl) Finalizer() contractx.Finalizer {
	return r.finalizer
}

func NewRegistry(ctx context.Context, cfg llmx.Config) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	plannerModelCfg := cfg.ChatModelFor(contractx.AgentTypePlanner)
	plannerModel, err := plannerModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create planner model: %v", contractx.ErrModelInvoke, err)
	}
	finalizerModelCfg := cfg.ChatModelFor(contractx.AgentTypeFinalizer)
	finalizerModel, err := finalizerModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create finalizer model: %v", contractx.ErrModelInvoke, err)
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	planner, err := newPlanner(ctx, plannerModel, prompts.Planner, plannerOptions{
		limiter:     rate.NewLimiter(limit, burst),
		callTimeout: cfg.PlannerCallTimeout,
		retry:       cfg.Retry,
	})
	if err != nil {
		return nil, err
	}
	finalizer, err := newFinalizer(ctx, finalizerModel, prompts.Finalizer, prompts.CorrectionFor, finalizerOptions{
		callTimeout: cfg.FinalizerCallTimeout,
		retry:       cfg.Retry,
	})
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		planner:   planner,
		finalizer: finalizer,
	}, nil
}
