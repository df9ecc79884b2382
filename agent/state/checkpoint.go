package state

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const defaultLeaseTTL = 5 * time.Minute

// CheckpointManager persists and restores conversations and enforces the single
// writer per conversation id.
type CheckpointManager struct {
	store    Store
	locker   Locker
	leaseTTL time.Duration
}

func NewCheckpointManager(store Store, locker Locker, leaseTTL time.Duration) (*CheckpointManager, error) {
	if store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}
	return &CheckpointManager{store: store, locker: locker, leaseTTL: leaseTTL}, nil
}

// Load returns the checkpoint for conversationID, or (nil, nil) when none exists.
func (m *CheckpointManager) Load(ctx context.Context, conversationID string) (*ConversationState, error) {
	st, err := m.store.Load(ctx, conversationID)
	if errors.Is(err, ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return st, nil
}

// Save stamps the next version onto st and persists it. A concurrent writer
// surfaces as ErrVersionConflict and leaves st.Version unchanged.
func (m *CheckpointManager) Save(ctx context.Context, st *ConversationState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("state validation failed: %w", err)
	}
	st.Version++
	if err := m.store.Save(ctx, st); err != nil {
		st.Version--
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Acquire takes the write lease for conversationID.
func (m *CheckpointManager) Acquire(ctx context.Context, conversationID string) (Lease, error) {
	return m.locker.Acquire(ctx, conversationID, m.leaseTTL)
}

// LeaseTTL is the lifetime of a lease between refreshes.
func (m *CheckpointManager) LeaseTTL() time.Duration {
	return m.leaseTTL
}
