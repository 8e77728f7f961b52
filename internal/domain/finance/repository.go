package finance

import (
	"context"

	"github.com/google/uuid"
)

// AllocationRepository persists allocation headers together with their lines
type AllocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Allocation, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*Allocation, error)
	Save(ctx context.Context, allocation *Allocation) error
}

// InvoiceRepository persists invoices
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Save(ctx context.Context, invoice *Invoice) error
}

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// FindByOrder returns the order's payments sorted by creation time, oldest first
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*Payment, error)
	Save(ctx context.Context, payment *Payment) error
}

// OrderRepository persists orders
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	Save(ctx context.Context, order *Order) error
}

// PaymentReferenceRepository persists payment references
type PaymentReferenceRepository interface {
	FindOpenByOrder(ctx context.Context, orderID uuid.UUID) ([]*PaymentReference, error)
	Save(ctx context.Context, ref *PaymentReference) error
}

// MasterDataRepository resolves partner and charge master data
type MasterDataRepository interface {
	FindBusinessPartner(ctx context.Context, id uuid.UUID) (*BusinessPartner, error)
	FindCharge(ctx context.Context, id uuid.UUID) (*Charge, error)
}

// Repositories is the set of stores bound to one transaction.
// Every finder returns nil, nil when the row does not exist.
type Repositories interface {
	Allocations() AllocationRepository
	Invoices() InvoiceRepository
	Payments() PaymentRepository
	Orders() OrderRepository
	PaymentReferences() PaymentReferenceRepository
	MasterData() MasterDataRepository
	ConversionRates() ConversionRateRepository
	InvoiceStatus() InvoiceStatusStore
	PaymentStatus() PaymentStatusStore
	Documents() DocumentProcessor
}
