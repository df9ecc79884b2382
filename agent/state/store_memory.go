package state

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore keeps checkpoints in process memory. It hands out clones so callers
// never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*ConversationState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*ConversationState)}
}

func (m *MemoryStore) Load(_ context.Context, conversationID string) (*ConversationState, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrInvalidConversation
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[conversationID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return st.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, st *ConversationState) error {
	if st == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(st.ConversationID) == "" {
		return ErrInvalidConversation
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := 0
	if cur, ok := m.states[st.ConversationID]; ok {
		prev = cur.Version
	}
	if st.Version != prev+1 {
		return fmt.Errorf("%w: conversation=%s stored=%d saving=%d", ErrVersionConflict, st.ConversationID, prev, st.Version)
	}
	m.states[st.ConversationID] = st.Clone()
	return nil
}
