package models

import (
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationHeaderModel is the persistence model for the Allocation aggregate root.
type AllocationHeaderModel struct {
	ClientAggregateModel
	DocumentNo        string                `gorm:"type:varchar(30);index"`
	Description       string                `gorm:"type:varchar(255)"`
	DateTrx           time.Time             `gorm:"not null"`
	Currency          string                `gorm:"type:varchar(3);not null"`
	BusinessPartnerID uuid.UUID             `gorm:"type:uuid;index"`
	Status            string                `gorm:"type:varchar(2);not null;default:'DR';index"`
	CompletedAt       *time.Time
	Lines             []AllocationLineModel `gorm:"foreignKey:AllocationID;references:ID"`
}

// TableName returns the table name for GORM
func (AllocationHeaderModel) TableName() string {
	return "allocation_headers"
}

// ToDomain converts the persistence model to a domain Allocation
func (m *AllocationHeaderModel) ToDomain() *finance.Allocation {
	a := &finance.Allocation{
		ClientAggregateRoot: m.ToDomainClientAggregateRoot(),
		DocumentNo:          m.DocumentNo,
		Description:         m.Description,
		DateTrx:             m.DateTrx,
		Currency:            valueobject.Currency(m.Currency),
		BusinessPartnerID:   m.BusinessPartnerID,
		Status:              finance.DocStatus(m.Status),
		CompletedAt:         m.CompletedAt,
		Lines:               make([]finance.AllocationLine, len(m.Lines)),
	}
	for i := range m.Lines {
		a.Lines[i] = m.Lines[i].ToDomain()
	}
	return a
}

// AllocationHeaderModelFromDomain creates a persistence model from the domain aggregate
func AllocationHeaderModelFromDomain(a *finance.Allocation) *AllocationHeaderModel {
	m := &AllocationHeaderModel{
		DocumentNo:        a.DocumentNo,
		Description:       a.Description,
		DateTrx:           a.DateTrx,
		Currency:          a.Currency.String(),
		BusinessPartnerID: a.BusinessPartnerID,
		Status:            a.Status.String(),
		CompletedAt:       a.CompletedAt,
		Lines:             make([]AllocationLineModel, len(a.Lines)),
	}
	m.FromDomainClientAggregateRoot(a.ClientAggregateRoot)
	for i := range a.Lines {
		m.Lines[i] = AllocationLineModelFromDomain(a.Lines[i])
	}
	return m
}

// AllocationLineModel is the persistence model for AllocationLine.
type AllocationLineModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	AllocationID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo            int             `gorm:"not null"`
	Kind              string          `gorm:"type:varchar(10);not null"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	WriteOffAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OverUnderAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BusinessPartnerID uuid.UUID       `gorm:"type:uuid"`
	OrderID           *uuid.UUID      `gorm:"type:uuid;index"`
	InvoiceID         *uuid.UUID      `gorm:"type:uuid;index"`
	PaymentID         *uuid.UUID      `gorm:"type:uuid;index"`
	ChargeID          *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (AllocationLineModel) TableName() string {
	return "allocation_lines"
}

// ToDomain converts the persistence model to a domain AllocationLine
func (m *AllocationLineModel) ToDomain() finance.AllocationLine {
	return finance.AllocationLine{
		ID:                m.ID,
		AllocationID:      m.AllocationID,
		LineNo:            m.LineNo,
		Kind:              finance.LineKind(m.Kind),
		Amount:            m.Amount,
		DiscountAmount:    m.DiscountAmount,
		WriteOffAmount:    m.WriteOffAmount,
		OverUnderAmount:   m.OverUnderAmount,
		BusinessPartnerID: m.BusinessPartnerID,
		OrderID:           m.OrderID,
		InvoiceID:         m.InvoiceID,
		PaymentID:         m.PaymentID,
		ChargeID:          m.ChargeID,
	}
}

// AllocationLineModelFromDomain creates a persistence model from a domain line
func AllocationLineModelFromDomain(l finance.AllocationLine) AllocationLineModel {
	return AllocationLineModel{
		ID:                l.ID,
		AllocationID:      l.AllocationID,
		LineNo:            l.LineNo,
		Kind:              string(l.Kind),
		Amount:            l.Amount,
		DiscountAmount:    l.DiscountAmount,
		WriteOffAmount:    l.WriteOffAmount,
		OverUnderAmount:   l.OverUnderAmount,
		BusinessPartnerID: l.BusinessPartnerID,
		OrderID:           l.OrderID,
		InvoiceID:         l.InvoiceID,
		PaymentID:         l.PaymentID,
		ChargeID:          l.ChargeID,
	}
}
