package backend

import (
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
)

// Combined joins a CRM and a claim search into one ToolBackend.
type Combined struct {
	contractx.CRM
	contractx.ClaimSearch
}

var _ contractx.ToolBackend = Combined{}

func New(crm contractx.CRM, search contractx.ClaimSearch) Combined {
	return Combined{CRM: crm, ClaimSearch: search}
}
