package models

import (
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BusinessPartnerModel is the persistence model for partner master data.
type BusinessPartnerModel struct {
	BaseModel
	ClientID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"type:varchar(120);not null"`
	IsActive bool      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BusinessPartnerModel) TableName() string {
	return "business_partners"
}

// ToDomain converts the persistence model to a domain BusinessPartner
func (m *BusinessPartnerModel) ToDomain() *finance.BusinessPartner {
	return &finance.BusinessPartner{ID: m.ID, ClientID: m.ClientID, Name: m.Name, IsActive: m.IsActive}
}

// BusinessPartnerModelFromDomain converts a domain BusinessPartner to its model
func BusinessPartnerModelFromDomain(bp *finance.BusinessPartner) *BusinessPartnerModel {
	now := time.Now()
	return &BusinessPartnerModel{
		BaseModel: BaseModel{ID: bp.ID, CreatedAt: now, UpdatedAt: now},
		ClientID:  bp.ClientID,
		Name:      bp.Name,
		IsActive:  bp.IsActive,
	}
}

// ChargeModel is the persistence model for charges.
type ChargeModel struct {
	BaseModel
	ClientID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"type:varchar(120);not null"`
	IsActive bool      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ChargeModel) TableName() string {
	return "charges"
}

// ToDomain converts the persistence model to a domain Charge
func (m *ChargeModel) ToDomain() *finance.Charge {
	return &finance.Charge{ID: m.ID, ClientID: m.ClientID, Name: m.Name, IsActive: m.IsActive}
}

// ChargeModelFromDomain converts a domain Charge to its model
func ChargeModelFromDomain(c *finance.Charge) *ChargeModel {
	now := time.Now()
	return &ChargeModel{
		BaseModel: BaseModel{ID: c.ID, CreatedAt: now, UpdatedAt: now},
		ClientID:  c.ClientID,
		Name:      c.Name,
		IsActive:  c.IsActive,
	}
}

// ConversionRateModel is the persistence model for currency conversion rates.
// A nil-UUID organization applies to every organization of the client.
type ConversionRateModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	ClientID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_rate_lookup,priority:1"`
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null"`
	CurrencyFrom   string          `gorm:"type:varchar(3);not null;index:idx_rate_lookup,priority:2"`
	CurrencyTo     string          `gorm:"type:varchar(3);not null;index:idx_rate_lookup,priority:3"`
	ConversionType string          `gorm:"type:varchar(10);not null;index:idx_rate_lookup,priority:4"`
	ValidFrom      time.Time       `gorm:"not null"`
	ValidTo        time.Time       `gorm:"not null"`
	MultiplyRate   decimal.Decimal `gorm:"type:decimal(24,12);not null"`
}

// TableName returns the table name for GORM
func (ConversionRateModel) TableName() string {
	return "conversion_rates"
}

// ToDomain converts the persistence model to a domain ConversionRate
func (m *ConversionRateModel) ToDomain() *finance.ConversionRate {
	return &finance.ConversionRate{
		ID:             m.ID,
		ClientID:       m.ClientID,
		OrganizationID: m.OrganizationID,
		From:           valueobject.Currency(m.CurrencyFrom),
		To:             valueobject.Currency(m.CurrencyTo),
		ConversionType: m.ConversionType,
		ValidFrom:      m.ValidFrom,
		ValidTo:        m.ValidTo,
		MultiplyRate:   m.MultiplyRate,
	}
}

// ConversionRateModelFromDomain creates a persistence model from a domain rate
func ConversionRateModelFromDomain(r *finance.ConversionRate) *ConversionRateModel {
	return &ConversionRateModel{
		ID:             r.ID,
		ClientID:       r.ClientID,
		OrganizationID: r.OrganizationID,
		CurrencyFrom:   r.From.String(),
		CurrencyTo:     r.To.String(),
		ConversionType: r.ConversionType,
		ValidFrom:      r.ValidFrom,
		ValidTo:        r.ValidTo,
		MultiplyRate:   r.MultiplyRate,
	}
}

// DocumentSequenceModel holds the last number issued per client and document type.
type DocumentSequenceModel struct {
	ClientID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentType string    `gorm:"type:varchar(30);primaryKey"`
	LastValue    int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}

// All lists every model for auto-migration in tests and the sqlite driver
func All() []any {
	return []any{
		&AllocationHeaderModel{},
		&AllocationLineModel{},
		&InvoiceModel{},
		&PaymentModel{},
		&OrderModel{},
		&PaymentReferenceModel{},
		&BusinessPartnerModel{},
		&ChargeModel{},
		&ConversionRateModel{},
		&DocumentSequenceModel{},
	}
}
