package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConversationBusy = errors.New("conversation busy")
	// ErrLeaseLost means the lease expired or was taken over before a refresh.
	ErrLeaseLost = fmt.Errorf("%w: lease lost", ErrConversationBusy)
)

// Locker grants the single write lease for a conversation id. Acquire never waits:
// a held lease is reported as ErrConversationBusy.
type Locker interface {
	Acquire(ctx context.Context, conversationID string, ttl time.Duration) (Lease, error)
}

// Lease is held until Release or until its ttl passes without a Refresh.
type Lease interface {
	// Refresh extends the lease by its ttl, or returns ErrLeaseLost.
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

type localEntry struct {
	token   string
	expires time.Time
}

// LocalLocker serializes writers inside one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, conversationID string, ttl time.Duration) (Lease, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrInvalidConversation
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.held[conversationID]; ok && now.Before(cur.expires) {
		return nil, ErrConversationBusy
	}
	token := uuid.NewString()
	l.held[conversationID] = localEntry{token: token, expires: now.Add(ttl)}
	return &localLease{locker: l, id: conversationID, token: token, ttl: ttl}, nil
}

type localLease struct {
	locker *LocalLocker
	id     string
	token  string
	ttl    time.Duration
}

func (l *localLease) Refresh(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	now := l.locker.now()
	cur, ok := l.locker.held[l.id]
	if !ok || cur.token != l.token || !now.Before(cur.expires) {
		return fmt.Errorf("%w: conversation=%s", ErrLeaseLost, l.id)
	}
	cur.expires = now.Add(l.ttl)
	l.locker.held[l.id] = cur
	return nil
}

// Release drops the lease only while it is still ours.
func (l *localLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if cur, ok := l.locker.held[l.id]; ok && cur.token == l.token {
		delete(l.locker.held, l.id)
	}
	return nil
}
