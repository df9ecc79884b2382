package contract

import (
	"context"

	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

// Planner produces the next assistant message for an assembled message list.
type Planner interface {
	Plan(ctx context.Context, req PlannerRequest) (PlannerResponse, error)
}

// Finalizer turns the planner's candidate answer into a validated StructuredResponse.
type Finalizer interface {
	Finalize(ctx context.Context, req FinalizeRequest) (statex.StructuredResponse, error)
}

type Registry interface {
	Planner() Planner
	Finalizer() Finalizer
}

// CRM is the customer-records backend. Implementations return ErrCustomerNotFound
// for unknown customers and ErrUpstreamUnavailable for transport or 5xx failures.
type CRM interface {
	GetCustomerByEmail(ctx context.Context, email string) (statex.Customer, error)
	GetConsumptionPoints(ctx context.Context, customerID string, family statex.ProductFamily) ([]statex.ConsumptionPoint, error)
	GetContracts(ctx context.Context, customerID string) ([]statex.Contract, error)
	GetContractPayments(ctx context.Context, customerID, contractID string) ([]statex.Payment, error)
}

// ClaimSearch finds historical tickets similar to a search term.
type ClaimSearch interface {
	FindRelevantClaims(ctx context.Context, searchTerm string, k int) ([]statex.Ticket, error)
}

type ToolBackend interface {
	CRM
	ClaimSearch
}
