package health

import (
	"context"
)

// Pinger is satisfied by stores that can probe their backing connection,
// such as the postgres store's connection pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreCheck returns a readiness checker named "store" that pings the
// persistence backend.
func StoreCheck(p Pinger) Checker {
	return Checker{
		Name:  "store",
		Check: p.Ping,
	}
}

// BalanceChecker is satisfied by the billing accountant.
type BalanceChecker interface {
	CheckBalance(ctx context.Context, userID string) error
}

// BalanceCheck returns a readiness checker named "credits" that verifies the
// session user still clears the minimum balance. A session that cannot afford
// another utterance is reported as not ready.
func BalanceCheck(b BalanceChecker, userID string) Checker {
	return Checker{
		Name: "credits",
		Check: func(ctx context.Context) error {
			return b.CheckBalance(ctx, userID)
		},
	}
}
