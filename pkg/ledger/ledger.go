// Package ledger defines the credit ledger: per-user balances debited as
// translation cycles consume speech, translation, and synthesis services.
//
// Balances are held in credits, a unit that abstracts over the differing
// billing models of the underlying providers (seconds of audio, characters of
// text). The pipeline checks the balance before starting a cycle and debits it
// once the cycle completes.
//
// Implementations must be safe for concurrent use.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrInsufficientCredits is returned by Debit when the balance cannot cover
// the requested amount, and by balance checks that enforce a minimum.
var ErrInsufficientCredits = errors.New("ledger: insufficient credits")

// Entry is one movement on a user's credit balance. Debits carry a negative
// Delta, credits a positive one.
type Entry struct {
	// UserID identifies the account.
	UserID string

	// Delta is the signed credit movement.
	Delta float64

	// Reason describes the movement (e.g. "cycle usage", "top-up").
	Reason string

	// CycleID links a debit to the translation cycle that consumed it.
	// Empty for movements not tied to a cycle.
	CycleID string

	// At is when the movement was recorded.
	At time.Time
}

// Ledger tracks per-user credit balances.
type Ledger interface {
	// Balance returns the current balance for userID. An unknown user has
	// balance zero.
	Balance(ctx context.Context, userID string) (float64, error)

	// Debit atomically subtracts amount from userID's balance and returns
	// the remaining balance. amount must be positive. Returns
	// [ErrInsufficientCredits] without modifying the balance when it would
	// go negative.
	Debit(ctx context.Context, userID string, amount float64, reason, cycleID string) (float64, error)

	// Credit atomically adds amount to userID's balance and returns the new
	// balance. amount must be positive.
	Credit(ctx context.Context, userID string, amount float64, reason string) (float64, error)

	// History returns up to limit entries for userID, newest first.
	// Returns an empty (non-nil) slice when no entries exist.
	History(ctx context.Context, userID string, limit int) ([]Entry, error)
}
