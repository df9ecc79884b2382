package contract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

func TestErrorCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: step 26", ErrLoopLimitExceeded), CodeLoopLimitExceeded},
		{fmt.Errorf("wrap: %w", ErrConversationBusy), CodeConversationBusy},
		{statex.ErrConversationBusy, CodeConversationBusy},
		{fmt.Errorf("%w: %w: invoke", ErrModelInvoke, ErrUpstreamUnavailable), CodeUpstreamUnavailable},
		{fmt.Errorf("%w: azure search 503", ErrSearchBackend), CodeUpstreamUnavailable},
		{ErrPlannerTimeout, CodePlannerTimeout},
		{ErrPlannerMalformedOutput, CodePlannerMalformedOutput},
		{ErrSchemaValidation, CodeSchemaValidation},
		{ErrToolPrecondition, CodeToolPrecondition},
		{ErrCustomerNotFound, CodeCustomerNotFound},
		{ErrInvalidArgument, CodeInvalidArgument},
		{statex.ErrTicketImmutable, CodeValidation},
		{context.Canceled, CodeInternal},
	}
	for _, tc := range cases {
		if got := ErrorCode(tc.err); got != tc.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestRecoverableAndRetryable(t *testing.T) {
	t.Parallel()

	for _, err := range []error{ErrToolPrecondition, ErrCustomerNotFound, ErrInvalidArgument} {
		if !IsRecoverable(err) {
			t.Errorf("IsRecoverable(%v) = false", err)
		}
		if IsRetryable(err) {
			t.Errorf("IsRetryable(%v) = true", err)
		}
	}
	for _, err := range []error{ErrUpstreamUnavailable, ErrSearchBackend, ErrPlannerTimeout, ErrPlannerMalformedOutput} {
		if !IsRetryable(err) {
			t.Errorf("IsRetryable(%v) = false", err)
		}
		if IsRecoverable(err) {
			t.Errorf("IsRecoverable(%v) = true", err)
		}
	}
	for _, err := range []error{ErrLoopLimitExceeded, ErrConversationBusy, ErrSchemaValidation, errors.New("boom")} {
		if IsRetryable(err) || IsRecoverable(err) {
			t.Errorf("%v must be terminal", err)
		}
	}
}
