package finance

import (
	"fmt"

	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeAbsorptionMode decides the amount booked on the charge line
type ChargeAbsorptionMode string

const (
	// ChargeAbsorptionPlaceholder books the charge line at zero, leaving the residual visible
	// as an imbalance. This is the long-standing behaviour of the point-of-sale form.
	ChargeAbsorptionPlaceholder ChargeAbsorptionMode = "placeholder"
	// ChargeAbsorptionResidual books the true unmatched residual on the charge line.
	ChargeAbsorptionResidual ChargeAbsorptionMode = "residual"
)

// IsValid checks if the mode is known
func (m ChargeAbsorptionMode) IsValid() bool {
	return m == ChargeAbsorptionPlaceholder || m == ChargeAbsorptionResidual
}

// MatchInput is one matching run. Debits and credits are consumed in the order given.
type MatchInput struct {
	Currency          valueobject.Currency
	BusinessPartnerID uuid.UUID
	Debits            []DebitItem
	Credits           []CreditItem
	ChargeID          uuid.UUID       // uuid.Nil when no charge may absorb the residual
	TotalDifference   decimal.Decimal // informational only
}

// MatchResult is the output of a matching run
type MatchResult struct {
	Lines            []AllocationLine
	UnmatchedApplied decimal.Decimal
	Imbalance        decimal.Decimal
}

// IsBalanced reports a zero imbalance
func (r *MatchResult) IsBalanced() bool {
	return r.Imbalance.IsZero()
}

// AllocationMatcher is the greedy, sign-aware matcher of debits against credits
type AllocationMatcher struct {
	chargeMode ChargeAbsorptionMode
}

// MatcherOption configures an AllocationMatcher
type MatcherOption func(*AllocationMatcher)

// WithChargeAbsorptionMode selects how the charge line amount is computed
func WithChargeAbsorptionMode(mode ChargeAbsorptionMode) MatcherOption {
	return func(m *AllocationMatcher) {
		if mode.IsValid() {
			m.chargeMode = mode
		}
	}
}

// NewAllocationMatcher creates a matcher
func NewAllocationMatcher(opts ...MatcherOption) *AllocationMatcher {
	m := &AllocationMatcher{chargeMode: ChargeAbsorptionPlaceholder}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ChargeMode returns the configured charge absorption mode
func (m *AllocationMatcher) ChargeMode() ChargeAbsorptionMode {
	return m.chargeMode
}

// Match pairs debits with credits and returns the resulting lines.
//
// For each debit, credits whose remaining amount has the same sign as the debit's
// applied amount are consumed in order. Discount and write-off ride on the first line
// of a debit only; the debit's over/under is computed once and repeated on each of its
// lines. Whatever a debit cannot settle becomes a debit-only line, whatever a credit
// has left becomes a credit-only line, and a charge may absorb the net of the two.
func (m *AllocationMatcher) Match(in MatchInput) (*MatchResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	remaining := make([]decimal.Decimal, len(in.Credits))
	for i, c := range in.Credits {
		remaining[i] = c.Amount
	}

	lines := make([]AllocationLine, 0, len(in.Debits)+len(in.Credits))
	unmatchedApplied := decimal.Zero

	for _, d := range in.Debits {
		applied := d.AppliedAmount
		discount := d.DiscountAmount
		writeOff := d.WriteOffAmount
		overUnder := d.OverUnderAmount()

		for j := 0; j < len(in.Credits) && !applied.IsZero(); j++ {
			if remaining[j].Sign() != applied.Sign() {
				continue
			}
			matched := applied
			if matched.Abs().GreaterThan(remaining[j].Abs()) {
				matched = remaining[j]
			}
			lines = append(lines, NewMatchedLine(d, in.Credits[j], LineAmounts{
				Amount:    matched,
				Discount:  discount,
				WriteOff:  writeOff,
				OverUnder: overUnder,
			}))
			discount = decimal.Zero
			writeOff = decimal.Zero
			applied = applied.Sub(matched)
			remaining[j] = remaining[j].Sub(matched)
		}

		if applied.IsZero() && discount.IsZero() && writeOff.IsZero() {
			continue
		}
		lines = append(lines, NewDebitLine(d, LineAmounts{
			Amount:    applied,
			Discount:  discount,
			WriteOff:  writeOff,
			OverUnder: overUnder,
		}))
		unmatchedApplied = unmatchedApplied.Add(applied)
	}

	for j, c := range in.Credits {
		if remaining[j].IsZero() {
			continue
		}
		lines = append(lines, NewCreditLine(c, remaining[j]))
		unmatchedApplied = unmatchedApplied.Sub(remaining[j])
	}

	if in.ChargeID != uuid.Nil && !unmatchedApplied.IsZero() {
		chargeAmount := decimal.Zero
		if m.chargeMode == ChargeAbsorptionResidual {
			chargeAmount = unmatchedApplied
		}
		lines = append(lines, NewChargeLine(in.BusinessPartnerID, in.ChargeID, chargeAmount))
		unmatchedApplied = unmatchedApplied.Sub(chargeAmount)
	}

	imbalance := decimal.Zero
	for i := range lines {
		imbalance = imbalance.Add(lines[i].BalanceEffect())
	}

	return &MatchResult{
		Lines:            lines,
		UnmatchedApplied: unmatchedApplied,
		Imbalance:        imbalance,
	}, nil
}

// Validate checks currencies and that no debit consumes more than its open amount
func (in MatchInput) Validate() error {
	if in.Currency == "" {
		return NewValidationError("currency", "is required")
	}
	if len(in.Debits) == 0 && len(in.Credits) == 0 {
		return NewValidationError("selections", "at least one debit or credit is required")
	}
	for _, d := range in.Debits {
		if d.Currency != in.Currency {
			return NewValidationError("debit.currency", fmt.Sprintf("debit %s is in %s, allocation is in %s", d.ID, d.Currency, in.Currency))
		}
		consumed := d.AppliedAmount.Add(d.DiscountAmount).Add(d.WriteOffAmount)
		if consumed.Abs().GreaterThan(d.OpenAmount.Abs()) {
			return NewValidationError("debit.applied_amount",
				fmt.Sprintf("debit %s applies %s against an open amount of %s", d.ID, consumed, d.OpenAmount))
		}
	}
	for _, c := range in.Credits {
		if c.Currency != in.Currency {
			return NewValidationError("credit.currency", fmt.Sprintf("credit %s is in %s, allocation is in %s", c.ID, c.Currency, in.Currency))
		}
	}
	return nil
}
