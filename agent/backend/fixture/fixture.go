// Package fixture serves CRM records and historical claims from memory. It backs
// the mock CRM server and local runs without external systems.
package fixture

import (
	"context"
	"fmt"
	"slices"
	"strings"

	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

// Dataset is the full content of a fixture backend.
type Dataset struct {
	Customers         []statex.Customer
	ConsumptionPoints []statex.ConsumptionPoint
	Contracts         []statex.Contract
	Payments          map[string][]statex.Payment // by contract id
	Claims            []statex.Ticket
}

// Backend implements contract.ToolBackend over a Dataset.
type Backend struct {
	data Dataset
	// single-customer mode answers every email with the first customer
	single bool
}

var _ contractx.ToolBackend = (*Backend)(nil)

func New(data Dataset) *Backend {
	return &Backend{data: data}
}

// NewSingleCustomer returns a backend that resolves any email to the first
// customer in data.
func NewSingleCustomer(data Dataset) *Backend {
	return &Backend{data: data, single: true}
}

func (b *Backend) GetCustomerByEmail(_ context.Context, email string) (statex.Customer, error) {
	if b.single && len(b.data.Customers) > 0 {
		return b.data.Customers[0], nil
	}
	for _, c := range b.data.Customers {
		if strings.EqualFold(c.Email, strings.TrimSpace(email)) {
			return c, nil
		}
	}
	return statex.Customer{}, fmt.Errorf("%w: email=%s", contractx.ErrCustomerNotFound, email)
}

func (b *Backend) GetConsumptionPoints(_ context.Context, customerID string, family statex.ProductFamily) ([]statex.ConsumptionPoint, error) {
	out := []statex.ConsumptionPoint{}
	for _, p := range b.data.ConsumptionPoints {
		if family != "" && p.ProductFamily != family {
			continue
		}
		p.CustomerID = customerID
		out = append(out, p)
	}
	return out, nil
}

func (b *Backend) GetContracts(_ context.Context, customerID string) ([]statex.Contract, error) {
	out := make([]statex.Contract, 0, len(b.data.Contracts))
	for _, c := range b.data.Contracts {
		c.CustomerID = customerID
		out = append(out, c)
	}
	return out, nil
}

func (b *Backend) GetContractPayments(_ context.Context, _ string, contractID string) ([]statex.Payment, error) {
	payments, ok := b.data.Payments[contractID]
	if !ok {
		return nil, fmt.Errorf("%w: contract=%s", contractx.ErrInvalidArgument, contractID)
	}
	return slices.Clone(payments), nil
}

// FindRelevantClaims ranks claims by the number of search-term words their
// request content shares.
func (b *Backend) FindRelevantClaims(_ context.Context, searchTerm string, k int) ([]statex.Ticket, error) {
	words := strings.Fields(strings.ToLower(searchTerm))
	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, 0, len(b.data.Claims))
	for i, c := range b.data.Claims {
		content := strings.ToLower(c.RequestContent)
		score := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				score++
			}
		}
		ranked = append(ranked, scored{idx: i, score: score})
	}
	slices.SortStableFunc(ranked, func(a, b scored) int { return b.score - a.score })

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]statex.Ticket, 0, k)
	for _, r := range ranked[:k] {
		out = append(out, b.data.Claims[r.idx])
	}
	return out, nil
}
