package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	nodex "github.com/tanpawarit/claims-responder-agent/agent/nodes"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
	logx "github.com/tanpawarit/claims-responder-agent/pkg/logger"
)

// runLoop drives ASSEMBLE -> PLAN -> {DISPATCH, FINALIZE} until END or a
// failure. Every merge is checkpointed before the next phase reads state.
func (o *Orchestrator) runLoop(ctx context.Context, in *nodex.GraphState) *nodex.GraphState {
	logger := logx.Component("orchestrator.loop").With().
		Str("conversation_id", in.ConversationID).
		Logger()

	alreadyDone := in.Phase == nodex.PhaseEnd
	if in.Conversation.Status == statex.StatusFailed {
		in.Conversation.Status = statex.StatusRunning
		in.Conversation.LastError = ""
		logger.Info().Str("phase", string(in.Phase)).Msg("resuming failed conversation")
	}

	loopCtx, stop := o.keepLease(ctx, in.Lease, logger)
	defer stop()

	for !in.Phase.Terminal() {
		if err := context.Cause(loopCtx); err != nil {
			o.fail(ctx, in, logger, err)
			break
		}
		if err := o.step(loopCtx, in, logger); err != nil {
			if cause := context.Cause(loopCtx); errors.Is(cause, statex.ErrLeaseLost) {
				err = cause
			}
			o.fail(ctx, in, logger, err)
		}
	}

	if in.Phase == nodex.PhaseEnd && !alreadyDone {
		loopSteps.Observe(float64(in.Conversation.Step))
		logger.Info().Int("steps", in.Conversation.Step).Msg("conversation completed")
	}
	return in
}

func (o *Orchestrator) step(ctx context.Context, in *nodex.GraphState, logger zerolog.Logger) error {
	phase := in.Phase
	logger.Debug().Str("phase", string(phase)).Int("step", in.Conversation.Step).Msg("loop transition")

	switch phase {
	case nodex.PhaseAssemble:
		if in.Conversation.Step >= o.maxSteps {
			return fmt.Errorf("%w: max_steps=%d", contractx.ErrLoopLimitExceeded, o.maxSteps)
		}
		if _, err := nodex.AssembleContextNode(in); err != nil {
			return err
		}
		in.Conversation.Step++
		in.Phase = nodex.PhasePlan

	case nodex.PhasePlan:
		if _, err := nodex.PlanStep(ctx, in, o.models.Planner()); err != nil {
			return err
		}
		if err := o.save(ctx, in); err != nil {
			return err
		}
		if in.PlanResp.WantsTools() {
			in.Phase = nodex.PhaseDispatch
		} else {
			in.Phase = nodex.PhaseFinalize
		}

	case nodex.PhaseDispatch:
		commit := func(ctx context.Context, st *statex.ConversationState) error {
			in.Conversation = st
			return o.save(ctx, in)
		}
		if _, err := nodex.DispatchTools(ctx, in, o.dispatcher, commit); err != nil {
			return err
		}
		in.Phase = nodex.PhaseAssemble

	case nodex.PhaseFinalize:
		if _, err := nodex.FinalizeResponse(ctx, in, o.models.Finalizer()); err != nil {
			return err
		}
		if err := o.save(ctx, in); err != nil {
			return err
		}
		in.Phase = nodex.PhaseEnd

	default:
		return fmt.Errorf("%w: unknown phase %q", contractx.ErrValidation, phase)
	}
	return nil
}

// keepLease refreshes lease every third of its ttl while the loop runs. The
// returned context is cancelled with ErrLeaseLost once another writer owns the
// conversation.
func (o *Orchestrator) keepLease(ctx context.Context, lease statex.Lease, logger zerolog.Logger) (context.Context, func()) {
	interval := o.ckpt.LeaseTTL() / 3
	if lease == nil || interval <= 0 {
		return ctx, func() {}
	}
	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := lease.Refresh(ctx); err != nil {
				if errors.Is(err, statex.ErrLeaseLost) {
					logger.Warn().Err(err).Msg("conversation lease lost")
					cancel(err)
					return
				}
				logger.Warn().Err(err).Msg("refresh conversation lease")
			}
		}
	}()
	return ctx, func() {
		close(done)
		wg.Wait()
		cancel(nil)
	}
}

// save refreshes the lease and checkpoints the conversation. A lost lease stops
// the write so a newer holder is never overwritten.
func (o *Orchestrator) save(ctx context.Context, in *nodex.GraphState) error {
	if in.Lease != nil {
		if err := in.Lease.Refresh(ctx); err != nil {
			return err
		}
	}
	in.Now = o.now().UTC()
	_, err := nodex.ValidateAndSaveState(ctx, in, o.ckpt)
	return err
}

// fail records err on the conversation and checkpoints the failed state so the
// partial transcript survives. Nothing is written once the lease is lost.
func (o *Orchestrator) fail(ctx context.Context, in *nodex.GraphState, logger zerolog.Logger, err error) {
	phase := in.Phase
	in.Fail(err)
	logger.Error().
		Err(err).
		Str("phase", string(phase)).
		Int("step", in.Conversation.Step).
		Str("code", contractx.ErrorCode(err)).
		Msg("conversation failed")

	if errors.Is(err, statex.ErrLeaseLost) {
		return
	}
	if saveErr := o.save(context.WithoutCancel(ctx), in); saveErr != nil {
		logger.Error().Err(saveErr).Msg("checkpoint failed conversation")
	}
}
