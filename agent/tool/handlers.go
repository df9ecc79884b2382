package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

const (
	DefaultK = 5
	MinK     = 5
	MaxK     = 50
)

// prerequisite is a piece of conversation data a tool needs or produces.
type prerequisite int

const (
	needsNothing prerequisite = iota
	needsCustomer
	needsContracts
)

func (p prerequisite) satisfied(st *statex.ConversationState) bool {
	switch p {
	case needsCustomer:
		return st.HasCustomer()
	case needsContracts:
		return st.HasContracts()
	default:
		return true
	}
}

func (p prerequisite) String() string {
	switch p {
	case needsCustomer:
		return "customer record"
	case needsContracts:
		return "contract list"
	default:
		return "nothing"
	}
}

type outcome struct {
	patch  statex.Patch
	status string
}

type handler struct {
	requires prerequisite
	provides prerequisite
	// hint names the tool that satisfies requires.
	hint   string
	schema *jsonschema.Schema
	decode func(c call, raw []byte) (Request, error)
	run    func(ctx context.Context, backend contractx.ToolBackend, st *statex.ConversationState, req Request) (outcome, error)
}

var handlers = map[string]handler{
	ToolFindRelevantClaims: {
		requires: needsNothing,
		provides: needsNothing,
		schema:   mustCompileArgs(ToolFindRelevantClaims),
		decode: func(c call, raw []byte) (Request, error) {
			var r FindRelevantClaims
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, err
			}
			r.call = c
			return r, nil
		},
		run: runFindRelevantClaims,
	},
	ToolGetCustomer: {
		requires: needsNothing,
		provides: needsCustomer,
		schema:   mustCompileArgs(ToolGetCustomer),
		decode: func(c call, _ []byte) (Request, error) {
			return GetCustomer{call: c}, nil
		},
		run: runGetCustomer,
	},
	ToolGetConsumptionPoints: {
		requires: needsCustomer,
		provides: needsNothing,
		hint:     ToolGetCustomer,
		schema:   mustCompileArgs(ToolGetConsumptionPoints),
		decode: func(c call, raw []byte) (Request, error) {
			var r GetConsumptionPoints
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, err
			}
			r.call = c
			return r, nil
		},
		run: runGetConsumptionPoints,
	},
	ToolGetContracts: {
		requires: needsCustomer,
		provides: needsContracts,
		hint:     ToolGetCustomer,
		schema:   mustCompileArgs(ToolGetContracts),
		decode: func(c call, _ []byte) (Request, error) {
			return GetContracts{call: c}, nil
		},
		run: runGetContracts,
	},
	ToolGetContractPayments: {
		requires: needsContracts,
		provides: needsNothing,
		hint:     ToolGetContracts,
		schema:   mustCompileArgs(ToolGetContractPayments),
		decode: func(c call, raw []byte) (Request, error) {
			var r GetContractPayments
			if err := json.Unmarshal(raw, &r); err != nil {
				return nil, err
			}
			r.call = c
			return r, nil
		},
		run: runGetContractPayments,
	},
}

func preconditionError(name string, h handler) error {
	return fmt.Errorf("%w: %s requires the %s, call %s first", contractx.ErrToolPrecondition, name, h.requires, h.hint)
}

// normalizeK applies the default and the bounds to a requested result count.
func normalizeK(k int) int {
	switch {
	case k <= 0:
		return DefaultK
	case k < MinK:
		return MinK
	case k > MaxK:
		return MaxK
	default:
		return k
	}
}

func runFindRelevantClaims(ctx context.Context, backend contractx.ToolBackend, _ *statex.ConversationState, req Request) (outcome, error) {
	r := req.(FindRelevantClaims)
	term := strings.TrimSpace(r.SearchTerm)
	if term == "" {
		return outcome{}, fmt.Errorf("%w: search_term is empty", contractx.ErrInvalidArgument)
	}
	k := normalizeK(r.K)

	tickets, err := backend.FindRelevantClaims(ctx, term, k)
	if err != nil {
		return outcome{}, err
	}
	if len(tickets) > k {
		tickets = tickets[:k]
	}
	if tickets == nil {
		tickets = []statex.Ticket{}
	}
	return outcome{
		patch:  statex.Patch{SimilarTickets: &tickets},
		status: "Successfully found similar tickets. See the CURRENT DATA for their contents.",
	}, nil
}

func runGetCustomer(ctx context.Context, backend contractx.ToolBackend, st *statex.ConversationState, _ Request) (outcome, error) {
	email := strings.TrimSpace(st.IncomingTicket.Email)
	customer, err := backend.GetCustomerByEmail(ctx, email)
	if err != nil {
		return outcome{}, err
	}
	if strings.TrimSpace(customer.CustomerID) == "" {
		return outcome{}, fmt.Errorf("%w: email=%s", contractx.ErrCustomerNotFound, email)
	}
	return outcome{
		patch:  statex.Patch{Customer: &customer},
		status: "Successfully loaded customer record. See the CURRENT DATA for the customer record content.",
	}, nil
}

func runGetConsumptionPoints(ctx context.Context, backend contractx.ToolBackend, st *statex.ConversationState, req Request) (outcome, error) {
	r := req.(GetConsumptionPoints)
	family := statex.ProductFamily(strings.ToLower(strings.TrimSpace(string(r.ProductFamily))))
	if family != "" && !family.Valid() {
		return outcome{}, fmt.Errorf("%w: unsupported product_family=%q, use electricity or gas", contractx.ErrInvalidArgument, r.ProductFamily)
	}

	points, err := backend.GetConsumptionPoints(ctx, st.Customer.CustomerID, family)
	if err != nil {
		return outcome{}, err
	}
	if points == nil {
		points = []statex.ConsumptionPoint{}
	}
	return outcome{
		patch:  statex.Patch{ConsumptionPoints: &points},
		status: "Successfully loaded consumption point list. See the CURRENT DATA for the list contents.",
	}, nil
}

func runGetContracts(ctx context.Context, backend contractx.ToolBackend, st *statex.ConversationState, _ Request) (outcome, error) {
	contracts, err := backend.GetContracts(ctx, st.Customer.CustomerID)
	if err != nil {
		return outcome{}, err
	}
	if contracts == nil {
		contracts = []statex.Contract{}
	}
	return outcome{
		patch:  statex.Patch{Contracts: &contracts},
		status: "Successfully loaded contract list. See the CURRENT DATA for the list contents.",
	}, nil
}

func runGetContractPayments(ctx context.Context, backend contractx.ToolBackend, st *statex.ConversationState, req Request) (outcome, error) {
	r := req.(GetContractPayments)

	ids := make([]string, 0, len(r.ContractIDs))
	for _, id := range r.ContractIDs {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return outcome{}, fmt.Errorf("%w: contract_ids is empty", contractx.ErrInvalidArgument)
	}
	for _, id := range ids {
		if !st.HasContract(id) {
			return outcome{}, fmt.Errorf("%w: contract %s is not among the loaded contracts", contractx.ErrToolPrecondition, id)
		}
	}

	payments := make([]statex.ContractPayments, 0, len(ids))
	for _, id := range ids {
		list, err := backend.GetContractPayments(ctx, st.Customer.CustomerID, id)
		if err != nil {
			return outcome{}, err
		}
		if list == nil {
			list = []statex.Payment{}
		}
		payments = append(payments, statex.ContractPayments{ContractID: id, Payments: list})
	}
	return outcome{
		patch:  statex.Patch{Payments: &payments},
		status: "Successfully loaded payment list. See the CURRENT DATA for the list contents.",
	}, nil
}
