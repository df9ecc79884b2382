package prompt

import (
	_ "embed"
	"fmt"
	"strings"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/finalize.txt
	finalizeRaw string

	//go:embed template/correction.txt
	correctionRaw string

	//go:embed template/request.txt
	requestRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Planner    string
	Finalizer  string
	Correction string
	Request    string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Planner:    strings.TrimSpace(systemRaw),
		Finalizer:  strings.TrimSpace(finalizeRaw),
		Correction: strings.TrimSpace(correctionRaw),
		Request:    strings.TrimSpace(requestRaw),
	}
}

// DraftRequest renders the first user message of a conversation.
func (p PromptSet) DraftRequest(ticketJSON string) string {
	return fmt.Sprintf(p.Request, ticketJSON)
}

// CorrectionFor renders the corrective re-prompt for a rejected output.
func (p PromptSet) CorrectionFor(reason string) string {
	return fmt.Sprintf(p.Correction, reason)
}
