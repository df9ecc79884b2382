package orchestratornode

import statex "github.com/tanpawarit/claims-responder-agent/agent/state"

// ResumePhase derives where the loop continues from a persisted conversation.
func ResumePhase(st *statex.ConversationState) Phase {
	if st.IsTerminal() {
		return PhaseEnd
	}
	if len(st.PendingToolCalls()) > 0 {
		return PhaseDispatch
	}
	if last := st.LastMessage(); last != nil && last.Role == statex.RoleAssistant && len(last.ToolCalls) == 0 {
		return PhaseFinalize
	}
	return PhaseAssemble
}
