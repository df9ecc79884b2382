package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
	logx "github.com/tanpawarit/claims-responder-agent/pkg/logger"
	retryx "github.com/tanpawarit/claims-responder-agent/pkg/retry"
	"golang.org/x/sync/errgroup"
)

const defaultCallTimeout = 30 * time.Second

// CommitFunc persists the state after each merged tier.
type CommitFunc func(ctx context.Context, st *statex.ConversationState) error

type Option func(*Dispatcher)

func WithCallTimeout(d time.Duration) Option {
	return func(x *Dispatcher) {
		if d > 0 {
			x.callTimeout = d
		}
	}
}

func WithRetry(cfg retryx.Config) Option {
	return func(x *Dispatcher) {
		x.retry = cfg
	}
}

// Dispatcher executes planner tool calls against a ToolBackend.
type Dispatcher struct {
	backend     contractx.ToolBackend
	callTimeout time.Duration
	retry       retryx.Config
}

func NewDispatcher(backend contractx.ToolBackend, opts ...Option) (*Dispatcher, error) {
	if backend == nil {
		return nil, errors.New("tool backend is required")
	}
	d := &Dispatcher{
		backend:     backend,
		callTimeout: defaultCallTimeout,
		retry:       retryx.DefaultConfig,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

type pendingCall struct {
	tc       statex.ToolCall
	req      Request
	parseErr error
}

type callResult struct {
	outcome outcome
	err     error
}

// Dispatch runs calls in dependency tiers. A call whose prerequisite is missing
// waits while another pending call provides it; each tier runs concurrently and
// is merged in call order, then committed. Recoverable failures become error tool
// messages. An upstream failure stops the dispatch with the earlier tiers merged
// and the failing tier discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, st *statex.ConversationState, calls []statex.ToolCall, commit CommitFunc) (*statex.ConversationState, error) {
	if st == nil {
		return nil, statex.ErrNilConversation
	}
	logger := logx.Component("tool.dispatcher").With().
		Str("conversation_id", st.ConversationID).
		Int("step", st.Step).
		Logger()

	pending := make([]pendingCall, 0, len(calls))
	for _, tc := range NormalizeCalls(calls) {
		req, err := ParseCall(tc)
		pending = append(pending, pendingCall{tc: tc, req: req, parseErr: err})
	}

	tiers := 0
	for len(pending) > 0 {
		tier, deferred := planTier(st, pending)
		tiers++

		results, err := d.runTier(ctx, logger, st, tier)
		if err != nil {
			dispatchTiers.Observe(float64(tiers))
			return st, err
		}

		for i, pc := range tier {
			patch := results[i].outcome.patch
			patch.Messages = []statex.Message{toolMessage(pc.tc, results[i])}
			next, err := statex.Merge(st, patch)
			if err != nil {
				dispatchTiers.Observe(float64(tiers))
				return st, fmt.Errorf("merge tool=%s call_id=%s: %w", pc.tc.Name, pc.tc.ID, err)
			}
			st = next
		}
		if commit != nil {
			if err := commit(ctx, st); err != nil {
				dispatchTiers.Observe(float64(tiers))
				return st, err
			}
		}
		pending = deferred
	}
	dispatchTiers.Observe(float64(tiers))
	return st, nil
}

// planTier splits pending into the calls that run now and the calls that wait for
// a prerequisite another pending call provides.
func planTier(st *statex.ConversationState, pending []pendingCall) (tier, deferred []pendingCall) {
	for i, pc := range pending {
		if pc.parseErr != nil {
			tier = append(tier, pc)
			continue
		}
		h := handlers[pc.tc.Name]
		if h.requires.satisfied(st) || !providedByOther(pending, i, h.requires) {
			tier = append(tier, pc)
			continue
		}
		deferred = append(deferred, pc)
	}
	if len(tier) == 0 {
		return deferred, nil
	}
	return tier, deferred
}

func providedByOther(pending []pendingCall, self int, need prerequisite) bool {
	for j, other := range pending {
		if j == self || other.parseErr != nil {
			continue
		}
		if handlers[other.tc.Name].provides == need {
			return true
		}
	}
	return false
}

func (d *Dispatcher) runTier(ctx context.Context, logger zerolog.Logger, st *statex.ConversationState, tier []pendingCall) ([]callResult, error) {
	results := make([]callResult, len(tier))
	g, gCtx := errgroup.WithContext(ctx)

	for i, pc := range tier {
		g.Go(func() error {
			if pc.parseErr != nil {
				results[i] = callResult{err: pc.parseErr}
				toolCallsTotal.WithLabelValues(pc.tc.Name, "invalid").Inc()
				return nil
			}

			start := time.Now()
			out, err := d.runOne(gCtx, st, pc)
			elapsed := time.Since(start)
			toolCallDuration.WithLabelValues(pc.tc.Name).Observe(elapsed.Seconds())

			event := logger.Debug()
			switch {
			case err == nil:
				toolCallsTotal.WithLabelValues(pc.tc.Name, "ok").Inc()
			case contractx.IsRecoverable(err):
				toolCallsTotal.WithLabelValues(pc.tc.Name, "rejected").Inc()
				event = logger.Info().Err(err)
			default:
				toolCallsTotal.WithLabelValues(pc.tc.Name, "failed").Inc()
				logger.Error().Err(err).
					Str("tool", pc.tc.Name).
					Str("call_id", pc.tc.ID).
					Dur("duration", elapsed).
					Msg("tool call failed")
				return err
			}
			event.Str("tool", pc.tc.Name).
				Str("call_id", pc.tc.ID).
				Dur("duration", elapsed).
				Msg("tool call finished")

			results[i] = callResult{outcome: out, err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Dispatcher) runOne(ctx context.Context, st *statex.ConversationState, pc pendingCall) (outcome, error) {
	h := handlers[pc.tc.Name]
	if !h.requires.satisfied(st) {
		return outcome{}, preconditionError(pc.tc.Name, h)
	}

	return retryx.Do(ctx, d.retry, pc.tc.Name, contractx.IsRetryable, func(ctx context.Context) (outcome, error) {
		callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
		defer cancel()

		out, err := h.run(callCtx, d.backend, st, pc.req)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return outcome{}, fmt.Errorf("%w: tool=%s timed out after %s", contractx.ErrUpstreamUnavailable, pc.tc.Name, d.callTimeout)
		}
		return out, err
	})
}

func toolMessage(tc statex.ToolCall, res callResult) statex.Message {
	content := res.outcome.status
	if res.err != nil {
		content = fmt.Sprintf("Error [%s]: %v", contractx.ErrorCode(res.err), res.err)
	}
	return statex.Message{
		Role:       statex.RoleTool,
		Content:    content,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
	}
}
