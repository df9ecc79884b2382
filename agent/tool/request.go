package tool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

var ErrUnknownTool = fmt.Errorf("%w: unknown tool", contractx.ErrInvalidArgument)

// Request is one typed tool invocation. The set of variants is closed.
type Request interface {
	Call() statex.ToolCall
	isRequest()
}

type call struct {
	tc statex.ToolCall
}

func (c call) Call() statex.ToolCall { return c.tc }
func (call) isRequest()              {}

type FindRelevantClaims struct {
	call
	SearchTerm string `json:"search_term"`
	K          int    `json:"k"`
}

type GetCustomer struct {
	call
}

type GetConsumptionPoints struct {
	call
	ProductFamily statex.ProductFamily `json:"product_family"`
}

type GetContracts struct {
	call
}

type GetContractPayments struct {
	call
	ContractIDs []string `json:"contract_ids"`
}

// NormalizeCalls returns calls with trimmed names and a generated id for every
// call the model left without one.
func NormalizeCalls(calls []statex.ToolCall) []statex.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]statex.ToolCall, len(calls))
	for i, tc := range calls {
		tc.Name = strings.TrimSpace(tc.Name)
		if strings.TrimSpace(tc.ID) == "" {
			tc.ID = "call_" + uuid.NewString()
		}
		if strings.TrimSpace(tc.Arguments) == "" {
			tc.Arguments = "{}"
		}
		out[i] = tc
	}
	return out
}

// ParseCall validates the call arguments against the tool's JSON schema and
// decodes them into the matching Request variant.
func ParseCall(tc statex.ToolCall) (Request, error) {
	tc = NormalizeCalls([]statex.ToolCall{tc})[0]

	h, ok := handlers[tc.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tc.Name)
	}
	raw := []byte(tc.Arguments)
	if err := ValidateJSON(h.schema, raw); err != nil {
		return nil, fmt.Errorf("%w: tool=%s: %v", contractx.ErrInvalidArgument, tc.Name, err)
	}
	req, err := h.decode(call{tc: tc}, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: tool=%s: %v", contractx.ErrInvalidArgument, tc.Name, err)
	}
	return req, nil
}

// ParseCalls parses every call and joins the failures.
func ParseCalls(calls []statex.ToolCall) ([]Request, error) {
	reqs := make([]Request, 0, len(calls))
	var errs []error
	for _, tc := range calls {
		req, err := ParseCall(tc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reqs = append(reqs, req)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return reqs, nil
}
