package models

import (
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice snapshot.
type InvoiceModel struct {
	ClientAggregateModel
	DocumentNo        string          `gorm:"type:varchar(30);index"`
	InvoiceType       string          `gorm:"type:varchar(3);not null"`
	BusinessPartnerID uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderID           *uuid.UUID      `gorm:"type:uuid;index"`
	SourcePaymentID   *uuid.UUID      `gorm:"type:uuid"`
	Currency          string          `gorm:"type:varchar(3);not null"`
	GrandTotal        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	IsSOTrx           bool            `gorm:"not null"`
	IsPaid            bool            `gorm:"not null;default:false"`
	DateInvoiced      time.Time       `gorm:"not null"`
	DocStatus         string          `gorm:"type:varchar(2);not null;default:'DR'"`
	IsActive          bool            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *finance.Invoice {
	return &finance.Invoice{
		ClientAggregateRoot: m.ToDomainClientAggregateRoot(),
		DocumentNo:          m.DocumentNo,
		InvoiceType:         m.InvoiceType,
		BusinessPartnerID:   m.BusinessPartnerID,
		OrderID:             m.OrderID,
		SourcePaymentID:     m.SourcePaymentID,
		Currency:            valueobject.Currency(m.Currency),
		GrandTotal:          m.GrandTotal,
		IsSOTrx:             m.IsSOTrx,
		IsPaid:              m.IsPaid,
		DateInvoiced:        m.DateInvoiced,
		DocStatus:           finance.DocStatus(m.DocStatus),
		IsActive:            m.IsActive,
	}
}

// InvoiceModelFromDomain creates a persistence model from the domain invoice
func InvoiceModelFromDomain(i *finance.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		DocumentNo:        i.DocumentNo,
		InvoiceType:       i.InvoiceType,
		BusinessPartnerID: i.BusinessPartnerID,
		OrderID:           i.OrderID,
		SourcePaymentID:   i.SourcePaymentID,
		Currency:          i.Currency.String(),
		GrandTotal:        i.GrandTotal,
		IsSOTrx:           i.IsSOTrx,
		IsPaid:            i.IsPaid,
		DateInvoiced:      i.DateInvoiced,
		DocStatus:         i.DocStatus.String(),
		IsActive:          i.IsActive,
	}
	m.FromDomainClientAggregateRoot(i.ClientAggregateRoot)
	return m
}

// PaymentModel is the persistence model for the Payment snapshot.
type PaymentModel struct {
	ClientAggregateModel
	DocumentNo        string          `gorm:"type:varchar(30);index"`
	BusinessPartnerID uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderID           *uuid.UUID      `gorm:"type:uuid;index"`
	InvoiceID         *uuid.UUID      `gorm:"type:uuid"`
	ChargeID          *uuid.UUID      `gorm:"type:uuid"`
	Currency          string          `gorm:"type:varchar(3);not null"`
	ConversionType    string          `gorm:"type:varchar(10)"`
	PayAmount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	WriteOffAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OverUnderAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	IsReceipt         bool            `gorm:"not null"`
	IsPrepayment      bool            `gorm:"not null;default:false"`
	IsAllocated       bool            `gorm:"not null;default:false"`
	IsOnline          bool            `gorm:"not null;default:false"`
	IsApproved        bool            `gorm:"not null;default:false"`
	AuthorizationCode string          `gorm:"type:varchar(60)"`
	TenderKind        string          `gorm:"type:varchar(20);not null"`
	DateTrx           time.Time       `gorm:"not null"`
	DocStatus         string          `gorm:"type:varchar(2);not null;default:'DR'"`
	IsActive          bool            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *finance.Payment {
	return &finance.Payment{
		ClientAggregateRoot: m.ToDomainClientAggregateRoot(),
		DocumentNo:          m.DocumentNo,
		BusinessPartnerID:   m.BusinessPartnerID,
		OrderID:             m.OrderID,
		InvoiceID:           m.InvoiceID,
		ChargeID:            m.ChargeID,
		Currency:            valueobject.Currency(m.Currency),
		ConversionType:      m.ConversionType,
		PayAmount:           m.PayAmount,
		DiscountAmount:      m.DiscountAmount,
		WriteOffAmount:      m.WriteOffAmount,
		OverUnderAmount:     m.OverUnderAmount,
		IsReceipt:           m.IsReceipt,
		IsPrepayment:        m.IsPrepayment,
		IsAllocated:         m.IsAllocated,
		IsOnline:            m.IsOnline,
		IsApproved:          m.IsApproved,
		AuthorizationCode:   m.AuthorizationCode,
		TenderKind:          finance.TenderKind(m.TenderKind),
		DateTrx:             m.DateTrx,
		DocStatus:           finance.DocStatus(m.DocStatus),
		IsActive:            m.IsActive,
	}
}

// PaymentModelFromDomain creates a persistence model from the domain payment
func PaymentModelFromDomain(p *finance.Payment) *PaymentModel {
	m := &PaymentModel{
		DocumentNo:        p.DocumentNo,
		BusinessPartnerID: p.BusinessPartnerID,
		OrderID:           p.OrderID,
		InvoiceID:         p.InvoiceID,
		ChargeID:          p.ChargeID,
		Currency:          p.Currency.String(),
		ConversionType:    p.ConversionType,
		PayAmount:         p.PayAmount,
		DiscountAmount:    p.DiscountAmount,
		WriteOffAmount:    p.WriteOffAmount,
		OverUnderAmount:   p.OverUnderAmount,
		IsReceipt:         p.IsReceipt,
		IsPrepayment:      p.IsPrepayment,
		IsAllocated:       p.IsAllocated,
		IsOnline:          p.IsOnline,
		IsApproved:        p.IsApproved,
		AuthorizationCode: p.AuthorizationCode,
		TenderKind:        p.TenderKind.String(),
		DateTrx:           p.DateTrx,
		DocStatus:         p.DocStatus.String(),
		IsActive:          p.IsActive,
	}
	m.FromDomainClientAggregateRoot(p.ClientAggregateRoot)
	return m
}

// OrderModel is the persistence model for the Order snapshot.
type OrderModel struct {
	ClientAggregateModel
	DocumentNo          string          `gorm:"type:varchar(30);index"`
	BusinessPartnerID   uuid.UUID       `gorm:"type:uuid;not null"`
	InvoiceID           *uuid.UUID      `gorm:"type:uuid"`
	Currency            string          `gorm:"type:varchar(3);not null"`
	ConversionType      string          `gorm:"type:varchar(10)"`
	GrandTotal          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PricePrecision      int32           `gorm:"not null;default:2"`
	IsReturnOrder       bool            `gorm:"not null;default:false"`
	OpenAmount          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	WrittenOffAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReconciliationState string          `gorm:"type:varchar(2);not null;default:'NR'"`
	DateOrdered         time.Time       `gorm:"not null"`
	IsActive            bool            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *finance.Order {
	return &finance.Order{
		ClientAggregateRoot: m.ToDomainClientAggregateRoot(),
		DocumentNo:          m.DocumentNo,
		BusinessPartnerID:   m.BusinessPartnerID,
		InvoiceID:           m.InvoiceID,
		Currency:            valueobject.Currency(m.Currency),
		ConversionType:      m.ConversionType,
		GrandTotal:          m.GrandTotal,
		PricePrecision:      m.PricePrecision,
		IsReturnOrder:       m.IsReturnOrder,
		OpenAmount:          m.OpenAmount,
		WrittenOffAmount:    m.WrittenOffAmount,
		ReconciliationState: finance.ReconciliationState(m.ReconciliationState),
		DateOrdered:         m.DateOrdered,
		IsActive:            m.IsActive,
	}
}

// OrderModelFromDomain creates a persistence model from the domain order
func OrderModelFromDomain(o *finance.Order) *OrderModel {
	m := &OrderModel{
		DocumentNo:          o.DocumentNo,
		BusinessPartnerID:   o.BusinessPartnerID,
		InvoiceID:           o.InvoiceID,
		Currency:            o.Currency.String(),
		ConversionType:      o.ConversionType,
		GrandTotal:          o.GrandTotal,
		PricePrecision:      o.PricePrecision,
		IsReturnOrder:       o.IsReturnOrder,
		OpenAmount:          o.OpenAmount,
		WrittenOffAmount:    o.WrittenOffAmount,
		ReconciliationState: o.ReconciliationState.String(),
		DateOrdered:         o.DateOrdered,
		IsActive:            o.IsActive,
	}
	m.FromDomainClientAggregateRoot(o.ClientAggregateRoot)
	return m
}

// PaymentReferenceModel is the persistence model for PaymentReference.
type PaymentReferenceModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	ClientID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	BusinessPartnerID uuid.UUID       `gorm:"type:uuid"`
	Currency          string          `gorm:"type:varchar(3);not null"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TenderKind        string          `gorm:"type:varchar(20)"`
	IsReceipt         bool            `gorm:"not null"`
	IsProcessed       bool            `gorm:"not null;default:false"`
	ProcessedAt       *time.Time
	CreatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentReferenceModel) TableName() string {
	return "payment_references"
}

// ToDomain converts the persistence model to a domain PaymentReference
func (m *PaymentReferenceModel) ToDomain() *finance.PaymentReference {
	return &finance.PaymentReference{
		ID:                m.ID,
		ClientID:          m.ClientID,
		OrderID:           m.OrderID,
		BusinessPartnerID: m.BusinessPartnerID,
		Currency:          valueobject.Currency(m.Currency),
		Amount:            m.Amount,
		TenderKind:        finance.TenderKind(m.TenderKind),
		IsReceipt:         m.IsReceipt,
		IsProcessed:       m.IsProcessed,
		ProcessedAt:       m.ProcessedAt,
		CreatedAt:         m.CreatedAt,
	}
}

// PaymentReferenceModelFromDomain creates a persistence model from the domain reference
func PaymentReferenceModelFromDomain(r *finance.PaymentReference) *PaymentReferenceModel {
	return &PaymentReferenceModel{
		ID:                r.ID,
		ClientID:          r.ClientID,
		OrderID:           r.OrderID,
		BusinessPartnerID: r.BusinessPartnerID,
		Currency:          r.Currency.String(),
		Amount:            r.Amount,
		TenderKind:        r.TenderKind.String(),
		IsReceipt:         r.IsReceipt,
		IsProcessed:       r.IsProcessed,
		ProcessedAt:       r.ProcessedAt,
		CreatedAt:         r.CreatedAt,
	}
}
