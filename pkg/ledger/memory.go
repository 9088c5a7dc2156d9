package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemory is a Ledger held entirely in process memory. It backs tests and
// deployments that run without a database; balances reset on restart.
type InMemory struct {
	mu       sync.Mutex
	balances map[string]float64
	entries  map[string][]Entry
}

var _ Ledger = (*InMemory)(nil)

// NewInMemory returns an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		balances: map[string]float64{},
		entries:  map[string][]Entry{},
	}
}

// Balance implements Ledger.
func (l *InMemory) Balance(_ context.Context, userID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

// Debit implements Ledger.
func (l *InMemory) Debit(_ context.Context, userID string, amount float64, reason, cycleID string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("ledger: debit amount must be positive, got %g", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[userID]
	if balance < amount {
		return balance, fmt.Errorf("ledger: balance %.2f cannot cover %.2f: %w", balance, amount, ErrInsufficientCredits)
	}
	balance -= amount
	l.balances[userID] = balance
	l.record(Entry{UserID: userID, Delta: -amount, Reason: reason, CycleID: cycleID, At: time.Now()})
	return balance, nil
}

// Credit implements Ledger.
func (l *InMemory) Credit(_ context.Context, userID string, amount float64, reason string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("ledger: credit amount must be positive, got %g", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[userID] + amount
	l.balances[userID] = balance
	l.record(Entry{UserID: userID, Delta: amount, Reason: reason, At: time.Now()})
	return balance, nil
}

// History implements Ledger.
func (l *InMemory) History(_ context.Context, userID string, limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.entries[userID]
	out := make([]Entry, 0, len(all))
	// Entries are appended oldest first; reverse for newest-first output.
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// record appends an entry. Caller holds the lock.
func (l *InMemory) record(e Entry) {
	l.entries[e.UserID] = append(l.entries[e.UserID], e)
}
