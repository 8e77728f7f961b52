package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultConversionType is the spot conversion type used when a caller does not name one
const DefaultConversionType = "S"

// rateScale is the number of places an inverted rate is kept at
const rateScale int32 = 12

// ConversionQuery identifies the rate a conversion needs
type ConversionQuery struct {
	From           valueobject.Currency
	To             valueobject.Currency
	AsOf           time.Time
	ConversionType string
	ClientID       uuid.UUID
	OrganizationID uuid.UUID
}

// Inverse returns the query for the opposite direction
func (q ConversionQuery) Inverse() ConversionQuery {
	inv := q
	inv.From, inv.To = q.To, q.From
	return inv
}

// ConversionRate is a multiply rate valid for a date range
type ConversionRate struct {
	ID             uuid.UUID
	ClientID       uuid.UUID
	OrganizationID uuid.UUID // uuid.Nil applies to every organization of the client
	From           valueobject.Currency
	To             valueobject.Currency
	ConversionType string
	ValidFrom      time.Time
	ValidTo        time.Time
	MultiplyRate   decimal.Decimal
}

// CoversDate reports whether the rate is valid on day
func (r *ConversionRate) CoversDate(day time.Time) bool {
	return !day.Before(r.ValidFrom) && !day.After(r.ValidTo)
}

// ConversionRateRepository resolves stored rates. FindRate returns nil, nil when none applies.
type ConversionRateRepository interface {
	FindRate(ctx context.Context, q ConversionQuery) (*ConversionRate, error)
	Save(ctx context.Context, rate *ConversionRate) error
}

// CurrencyConverter converts an amount between currencies for a date and conversion type
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, q ConversionQuery) (valueobject.Money, error)
	ValidateConversion(ctx context.Context, q ConversionQuery) error
}

// RateConverter is the CurrencyConverter backed by a rate repository
type RateConverter struct {
	rates                 ConversionRateRepository
	defaultConversionType string
}

// RateConverterOption configures a RateConverter
type RateConverterOption func(*RateConverter)

// WithDefaultConversionType sets the conversion type used for queries that leave it empty
func WithDefaultConversionType(conversionType string) RateConverterOption {
	return func(c *RateConverter) {
		if conversionType != "" {
			c.defaultConversionType = conversionType
		}
	}
}

// NewRateConverter creates a converter over rates
func NewRateConverter(rates ConversionRateRepository, opts ...RateConverterOption) *RateConverter {
	c := &RateConverter{
		rates:                 rates,
		defaultConversionType: DefaultConversionType,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert returns amount in q.To. Equal currencies or a zero amount return the amount
// unchanged without a lookup; a missing rate fails with ConversionNotFound.
func (c *RateConverter) Convert(ctx context.Context, amount decimal.Decimal, q ConversionQuery) (valueobject.Money, error) {
	if q.From == q.To || amount.IsZero() {
		return valueobject.NewMoney(amount, q.To)
	}
	rate, err := c.resolve(ctx, q)
	if err != nil {
		return valueobject.Money{}, err
	}
	converted := valueobject.RoundHalfUp(amount.Mul(rate), q.To.StandardPrecision())
	return valueobject.NewMoney(converted, q.To)
}

// ValidateConversion fails with ConversionNotFound when Convert would
func (c *RateConverter) ValidateConversion(ctx context.Context, q ConversionQuery) error {
	if q.From == q.To {
		return nil
	}
	_, err := c.resolve(ctx, q)
	return err
}

func (c *RateConverter) resolve(ctx context.Context, q ConversionQuery) (decimal.Decimal, error) {
	if q.ConversionType == "" {
		q.ConversionType = c.defaultConversionType
	}
	direct, err := c.rates.FindRate(ctx, q)
	if err != nil {
		return decimal.Zero, fmt.Errorf("find conversion rate: %w", err)
	}
	if direct != nil && !direct.MultiplyRate.IsZero() {
		return direct.MultiplyRate, nil
	}
	inverse, err := c.rates.FindRate(ctx, q.Inverse())
	if err != nil {
		return decimal.Zero, fmt.Errorf("find inverse conversion rate: %w", err)
	}
	if inverse != nil && !inverse.MultiplyRate.IsZero() {
		return decimal.NewFromInt(1).DivRound(inverse.MultiplyRate, rateScale), nil
	}
	return decimal.Zero, NewConversionNotFoundError(q.From, q.To, q.AsOf, q.ConversionType)
}

// ConvertOrZero converts amount and substitutes zero when no rate exists.
// Order settlement converts this way; the generic allocation validates rates upfront instead.
// found is false when the zero was substituted.
func ConvertOrZero(ctx context.Context, converter CurrencyConverter, amount decimal.Decimal, q ConversionQuery) (converted decimal.Decimal, found bool, err error) {
	m, err := converter.Convert(ctx, amount, q)
	if err != nil {
		if errors.Is(err, ErrConversionNotFound) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	return m.Amount(), true, nil
}
