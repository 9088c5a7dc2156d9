package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bridgit-ai/bridgit/pkg/ledger"
)

func TestEstimateSTT(t *testing.T) {
	a := New(Rates{}, ledger.NewInMemory(), nil)

	tests := []struct {
		name string
		d    time.Duration
		want float64
	}{
		{"zero", 0, 0},
		{"one second", time.Second, 1},
		{"exactly one block", 30 * time.Second, 1},
		{"just over one block", 31 * time.Second, 2},
		{"two minutes", 2 * time.Minute, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.EstimateSTT(tt.d); got != tt.want {
				t.Fatalf("EstimateSTT(%v) = %v, want %v", tt.d, got, tt.want)
			}
		})
	}
}

func TestEstimateTranslation(t *testing.T) {
	a := New(Rates{}, ledger.NewInMemory(), nil)

	tests := []struct {
		name  string
		chars int
		want  float64
	}{
		{"zero", 0, 0},
		{"short", 12, 0.5},
		{"exactly one block", 500, 0.5},
		{"two blocks", 501, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.EstimateTranslation(tt.chars); got != tt.want {
				t.Fatalf("EstimateTranslation(%d) = %v, want %v", tt.chars, got, tt.want)
			}
		})
	}
}

func TestEstimateTTS(t *testing.T) {
	a := New(Rates{}, ledger.NewInMemory(), nil)

	if got := a.EstimateTTS(999); got != 1 {
		t.Fatalf("EstimateTTS(999) = %v, want 1", got)
	}
	if got := a.EstimateTTS(1001); got != 2 {
		t.Fatalf("EstimateTTS(1001) = %v, want 2", got)
	}
}

func TestCheckBalance(t *testing.T) {
	l := ledger.NewInMemory()
	a := New(Rates{}, l, nil)
	ctx := context.Background()

	// Empty account is below the 2.5 minimum.
	err := a.CheckBalance(ctx, "user-1")
	if !errors.Is(err, ledger.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	if _, err := l.Credit(ctx, "user-1", 10, "top-up"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if err := a.CheckBalance(ctx, "user-1"); err != nil {
		t.Fatalf("CheckBalance after top-up: %v", err)
	}
}

func TestCharge(t *testing.T) {
	l := ledger.NewInMemory()
	a := New(Rates{}, l, nil)
	ctx := context.Background()

	if _, err := l.Credit(ctx, "user-1", 10, "top-up"); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	remaining, err := a.Charge(ctx, "user-1", 2.5, "cycle-1")
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if remaining != 7.5 {
		t.Fatalf("remaining = %v, want 7.5", remaining)
	}

	// Zero-cost charges must not touch the ledger.
	remaining, err = a.Charge(ctx, "user-1", 0, "cycle-1")
	if err != nil {
		t.Fatalf("Charge(0): %v", err)
	}
	if remaining != 7.5 {
		t.Fatalf("remaining = %v, want 7.5 after zero charge", remaining)
	}
	entries, err := l.History(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 { // top-up + one debit
		t.Fatalf("ledger entries = %d, want 2", len(entries))
	}
}

func TestCharge_Insufficient(t *testing.T) {
	l := ledger.NewInMemory()
	a := New(Rates{}, l, nil)
	ctx := context.Background()

	if _, err := l.Credit(ctx, "user-1", 1, "top-up"); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	_, err := a.Charge(ctx, "user-1", 2.5, "cycle-1")
	if !errors.Is(err, ledger.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	// The failed debit must not have moved the balance.
	balance, _ := l.Balance(ctx, "user-1")
	if balance != 1 {
		t.Fatalf("balance = %v, want 1", balance)
	}
}
