package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/go-playground/validator/v10"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	nodex "github.com/tanpawarit/claims-responder-agent/agent/nodes"
	promptx "github.com/tanpawarit/claims-responder-agent/agent/prompt"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

var ErrInvalidTicket = nodex.ErrInvalidTicket

const defaultMaxSteps = 25

type Config struct {
	// MaxSteps bounds the ASSEMBLE->PLAN cycles of one conversation.
	MaxSteps int           `envconfig:"MAX_STEPS" split_words:"true" default:"25"`
	LeaseTTL time.Duration `envconfig:"LEASE_TTL" split_words:"true" default:"5m"`
}

type Orchestrator struct {
	ckpt       *statex.CheckpointManager
	models     contractx.Registry
	dispatcher nodex.ToolDispatcher
	validate   *validator.Validate
	prompts    promptx.PromptSet

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	maxSteps int
	now      func() time.Time
}

func New(
	ckpt *statex.CheckpointManager,
	models contractx.Registry,
	dispatcher nodex.ToolDispatcher,
	cfg Config,
) (*Orchestrator, error) {
	if ckpt == nil {
		return nil, errors.New("checkpoint manager is required")
	}
	if models == nil || models.Planner() == nil || models.Finalizer() == nil {
		return nil, errors.New("model registry is required")
	}
	if dispatcher == nil {
		return nil, errors.New("tool dispatcher is required")
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	o := &Orchestrator{
		ckpt:       ckpt,
		models:     models,
		dispatcher: dispatcher,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		prompts:    promptx.LoadPromptSet(),
		maxSteps:   maxSteps,
		now:        time.Now,
	}

	graphRunner, err := o.compileHandleTicketGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTicket drives one conversation until it completes or fails. The outcome
// always carries the transcript known at that point; err is non-nil whenever
// the outcome has no structured response.
func (o *Orchestrator) HandleTicket(ctx context.Context, conversationID string, ticket statex.Ticket) (contractx.Outcome, error) {
	started := o.now()
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		ConversationID: conversationID,
		Ticket:         ticket,
	})
	if err != nil {
		outcome := contractx.Outcome{
			ConversationID: strings.TrimSpace(conversationID),
			Code:           contractx.ErrorCode(err),
			Error:          err.Error(),
			Duration:       o.now().Sub(started),
		}
		if outcome.ConversationID == "" {
			outcome.ConversationID = strings.TrimSpace(ticket.ID)
		}
		observeOutcome(outcome)
		return outcome, err
	}
	observeOutcome(out.Outcome)
	return out.Outcome, out.Err
}

// Conversation returns the stored checkpoint, or statex.ErrStateNotFound.
func (o *Orchestrator) Conversation(ctx context.Context, conversationID string) (*statex.ConversationState, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, statex.ErrInvalidConversation
	}
	st, err := o.ckpt.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, statex.ErrStateNotFound
	}
	return st, nil
}
