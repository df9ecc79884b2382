package contract

import (
	"errors"

	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

var (
	ErrModelInvoke   = errors.New("model invoke failed")
	ErrPromptMissing = errors.New("required prompt is missing")
	ErrValidation    = errors.New("validation failed")

	ErrToolPrecondition       = errors.New("tool precondition not met")
	ErrUpstreamUnavailable    = errors.New("upstream unavailable")
	ErrSearchBackend          = errors.New("search backend error")
	ErrCustomerNotFound       = errors.New("customer not found")
	ErrInvalidArgument        = errors.New("invalid tool argument")
	ErrPlannerTimeout         = errors.New("planner timeout")
	ErrPlannerMalformedOutput = errors.New("planner output malformed")
	ErrSchemaValidation       = errors.New("final response failed schema validation")
	ErrLoopLimitExceeded      = errors.New("loop limit exceeded")
	ErrConversationBusy       = statex.ErrConversationBusy
)

// Error codes returned to callers alongside the partial transcript.
const (
	CodeToolPrecondition       = "TOOL_PRECONDITION"
	CodeCustomerNotFound       = "CUSTOMER_NOT_FOUND"
	CodeInvalidArgument        = "INVALID_ARGUMENT"
	CodeUpstreamUnavailable    = "UPSTREAM_UNAVAILABLE"
	CodePlannerTimeout         = "PLANNER_TIMEOUT"
	CodePlannerMalformedOutput = "PLANNER_MALFORMED_OUTPUT"
	CodeSchemaValidation       = "SCHEMA_VALIDATION"
	CodeLoopLimitExceeded      = "LOOP_LIMIT_EXCEEDED"
	CodeConversationBusy       = "CONVERSATION_BUSY"
	CodeValidation             = "VALIDATION"
	CodeInternal               = "INTERNAL"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrConversationBusy, CodeConversationBusy},
	{ErrLoopLimitExceeded, CodeLoopLimitExceeded},
	{ErrSchemaValidation, CodeSchemaValidation},
	{ErrPlannerTimeout, CodePlannerTimeout},
	{ErrPlannerMalformedOutput, CodePlannerMalformedOutput},
	{ErrUpstreamUnavailable, CodeUpstreamUnavailable},
	{ErrSearchBackend, CodeUpstreamUnavailable},
	{ErrToolPrecondition, CodeToolPrecondition},
	{ErrCustomerNotFound, CodeCustomerNotFound},
	{ErrInvalidArgument, CodeInvalidArgument},
	{ErrValidation, CodeValidation},
	{statex.ErrInvalidConversation, CodeValidation},
	{statex.ErrTicketImmutable, CodeValidation},
	{statex.ErrInvalidState, CodeValidation},
}

// ErrorCode maps err onto a stable code. Unknown errors map to CodeInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// IsRecoverable reports whether a tool failure is reported back to the planner as
// an error tool message instead of ending the run.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrToolPrecondition) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrInvalidArgument)
}

// IsRetryable reports whether err is worth another attempt at an adapter boundary.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrSearchBackend) ||
		errors.Is(err, ErrPlannerTimeout) ||
		errors.Is(err, ErrPlannerMalformedOutput)
}
