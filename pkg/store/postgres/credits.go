package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bridgit-ai/bridgit/pkg/ledger"
)

// CreditsImpl is the credit ledger layer backed by the credit_balances and
// credit_entries tables.
//
// Obtain one via [Store.Credits] rather than constructing directly.
// All methods are safe for concurrent use; balance movements run inside a
// transaction so concurrent debits cannot overdraw an account.
type CreditsImpl struct {
	pool *pgxpool.Pool
}

// Balance implements [ledger.Ledger]. An unknown user has balance zero.
func (c *CreditsImpl) Balance(ctx context.Context, userID string) (float64, error) {
	const q = `SELECT COALESCE((SELECT balance FROM credit_balances WHERE user_id = $1), 0)`

	var balance float64
	if err := c.pool.QueryRow(ctx, q, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("credit ledger: balance: %w", err)
	}
	return balance, nil
}

// Debit implements [ledger.Ledger]. The conditional UPDATE only fires when the
// balance covers the amount, so the check and the subtraction are one atomic
// statement.
func (c *CreditsImpl) Debit(ctx context.Context, userID string, amount float64, reason, cycleID string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit ledger: debit amount must be positive, got %g", amount)
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("credit ledger: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		UPDATE credit_balances
		SET    balance = balance - $2, updated_at = now()
		WHERE  user_id = $1 AND balance >= $2
		RETURNING balance`

	var remaining float64
	err = tx.QueryRow(ctx, q, userID, amount).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the user is unknown or the balance cannot cover the debit.
		balance, berr := c.Balance(ctx, userID)
		if berr != nil {
			return 0, berr
		}
		return balance, fmt.Errorf("credit ledger: balance %.2f cannot cover %.2f: %w",
			balance, amount, ledger.ErrInsufficientCredits)
	}
	if err != nil {
		return 0, fmt.Errorf("credit ledger: debit: %w", err)
	}

	if err := insertEntry(ctx, tx, ledger.Entry{UserID: userID, Delta: -amount, Reason: reason, CycleID: cycleID}); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("credit ledger: commit debit: %w", err)
	}
	return remaining, nil
}

// Credit implements [ledger.Ledger].
func (c *CreditsImpl) Credit(ctx context.Context, userID string, amount float64, reason string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit ledger: credit amount must be positive, got %g", amount)
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("credit ledger: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO credit_balances (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET balance = credit_balances.balance + EXCLUDED.balance, updated_at = now()
		RETURNING balance`

	var balance float64
	if err := tx.QueryRow(ctx, q, userID, amount).Scan(&balance); err != nil {
		return 0, fmt.Errorf("credit ledger: credit: %w", err)
	}

	if err := insertEntry(ctx, tx, ledger.Entry{UserID: userID, Delta: amount, Reason: reason}); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("credit ledger: commit credit: %w", err)
	}
	return balance, nil
}

// History implements [ledger.Ledger].
func (c *CreditsImpl) History(ctx context.Context, userID string, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT user_id, delta, reason, cycle_id, at
		FROM   credit_entries
		WHERE  user_id = $1
		ORDER  BY at DESC
		LIMIT  $2`

	rows, err := c.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("credit ledger: history: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Entry, error) {
		var e ledger.Entry
		err := row.Scan(&e.UserID, &e.Delta, &e.Reason, &e.CycleID, &e.At)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("credit ledger: scan rows: %w", err)
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	return entries, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, e ledger.Entry) error {
	const q = `
		INSERT INTO credit_entries (user_id, delta, reason, cycle_id)
		VALUES ($1, $2, $3, $4)`

	if _, err := tx.Exec(ctx, q, e.UserID, e.Delta, e.Reason, e.CycleID); err != nil {
		return fmt.Errorf("credit ledger: insert entry: %w", err)
	}
	return nil
}
