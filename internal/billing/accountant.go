// Package billing converts work performed by pipeline stages into credit
// costs and charges them against a [ledger.Ledger].
//
// Costs are unit-based: every started block of work bills one block. A stage
// that performed no work costs nothing, and failed stages are never charged
// because the orchestrator only calls Charge after a stage succeeds.
package billing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bridgit-ai/bridgit/pkg/ledger"
)

// Rates defines the credit cost per unit of work for each stage.
type Rates struct {
	// STTCreditsPerBlock is charged per started STTBlock of transcribed
	// audio.
	STTCreditsPerBlock float64
	STTBlock           time.Duration

	// TranslateCreditsPerBlock is charged per started TranslateBlockChars
	// characters of source text.
	TranslateCreditsPerBlock float64
	TranslateBlockChars      int

	// TTSCreditsPerBlock is charged per started TTSBlockChars characters
	// of synthesised text.
	TTSCreditsPerBlock float64
	TTSBlockChars      int

	// MinimumBalance is the pre-flight floor: a user below it cannot start
	// a new utterance. The default covers one full cycle of minimal work.
	MinimumBalance float64
}

// DefaultRates returns the standard pricing: 1 credit per started 30s of
// transcription, 0.5 credits per started 500 characters of translation, and
// 1 credit per started 1000 characters of synthesis.
func DefaultRates() Rates {
	return Rates{
		STTCreditsPerBlock:       1,
		STTBlock:                 30 * time.Second,
		TranslateCreditsPerBlock: 0.5,
		TranslateBlockChars:      500,
		TTSCreditsPerBlock:       1,
		TTSBlockChars:            1000,
		MinimumBalance:           2.5,
	}
}

// withDefaults fills unset fields from [DefaultRates].
func (r Rates) withDefaults() Rates {
	def := DefaultRates()
	if r.STTCreditsPerBlock <= 0 {
		r.STTCreditsPerBlock = def.STTCreditsPerBlock
	}
	if r.STTBlock <= 0 {
		r.STTBlock = def.STTBlock
	}
	if r.TranslateCreditsPerBlock <= 0 {
		r.TranslateCreditsPerBlock = def.TranslateCreditsPerBlock
	}
	if r.TranslateBlockChars <= 0 {
		r.TranslateBlockChars = def.TranslateBlockChars
	}
	if r.TTSCreditsPerBlock <= 0 {
		r.TTSCreditsPerBlock = def.TTSCreditsPerBlock
	}
	if r.TTSBlockChars <= 0 {
		r.TTSBlockChars = def.TTSBlockChars
	}
	if r.MinimumBalance <= 0 {
		r.MinimumBalance = def.MinimumBalance
	}
	return r
}

// Accountant estimates and charges per-stage credit costs.
// All methods are safe for concurrent use.
type Accountant struct {
	rates  Rates
	ledger ledger.Ledger
	logger *slog.Logger
}

// New creates an Accountant over the given ledger. Zero rate fields take
// defaults; a nil logger falls back to slog.Default.
func New(rates Rates, l ledger.Ledger, logger *slog.Logger) *Accountant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accountant{rates: rates.withDefaults(), ledger: l, logger: logger}
}

// EstimateSTT returns the cost of transcribing the given audio span.
// Zero duration costs nothing; every started block bills one block.
func (a *Accountant) EstimateSTT(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	blocks := math.Ceil(d.Seconds() / a.rates.STTBlock.Seconds())
	return blocks * a.rates.STTCreditsPerBlock
}

// EstimateTranslation returns the cost of translating chars characters of
// source text. Zero characters (including the identity-translation bypass)
// costs nothing.
func (a *Accountant) EstimateTranslation(chars int) float64 {
	if chars <= 0 {
		return 0
	}
	blocks := math.Ceil(float64(chars) / float64(a.rates.TranslateBlockChars))
	return blocks * a.rates.TranslateCreditsPerBlock
}

// EstimateTTS returns the cost of synthesising chars characters of text.
func (a *Accountant) EstimateTTS(chars int) float64 {
	if chars <= 0 {
		return 0
	}
	blocks := math.Ceil(float64(chars) / float64(a.rates.TTSBlockChars))
	return blocks * a.rates.TTSCreditsPerBlock
}

// MinimumBalance returns the pre-flight balance floor.
func (a *Accountant) MinimumBalance() float64 { return a.rates.MinimumBalance }

// CheckBalance verifies that userID can afford to start a new utterance.
// Returns an error wrapping [ledger.ErrInsufficientCredits] when the balance
// is below the configured minimum.
func (a *Accountant) CheckBalance(ctx context.Context, userID string) error {
	balance, err := a.ledger.Balance(ctx, userID)
	if err != nil {
		return fmt.Errorf("billing: check balance: %w", err)
	}
	if balance < a.rates.MinimumBalance {
		return fmt.Errorf("billing: balance %.2f below minimum %.2f: %w",
			balance, a.rates.MinimumBalance, ledger.ErrInsufficientCredits)
	}
	return nil
}

// Charge debits credits from userID for the given cycle and returns the
// remaining balance. Zero-cost charges are a no-op.
func (a *Accountant) Charge(ctx context.Context, userID string, credits float64, cycleID string) (float64, error) {
	if credits <= 0 {
		return a.ledger.Balance(ctx, userID)
	}
	remaining, err := a.ledger.Debit(ctx, userID, credits, "cycle usage", cycleID)
	if err != nil {
		return remaining, fmt.Errorf("billing: charge %.2f credits: %w", credits, err)
	}
	a.logger.Debug("credits charged",
		"user_id", userID, "cycle_id", cycleID, "credits", credits, "remaining", remaining)
	return remaining, nil
}
