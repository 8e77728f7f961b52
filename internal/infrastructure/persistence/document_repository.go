package persistence

import (
	"context"
	"errors"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements finance.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).Scopes(ClientScope(ctx)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *finance.Invoice) error {
	return r.db.WithContext(ctx).Save(models.InvoiceModelFromDomain(invoice)).Error
}

// GormPaymentRepository implements finance.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).Scopes(ClientScope(ctx)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrder finds the order's payments, oldest first
func (r *GormPaymentRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*finance.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Scopes(ClientScope(ctx)).
		Where("order_id = ?", orderID).
		Order("created_at, id").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	payments := make([]*finance.Payment, len(paymentModels))
	for i := range paymentModels {
		payments[i] = paymentModels[i].ToDomain()
	}
	return payments, nil
}

// Save creates or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *finance.Payment) error {
	return r.db.WithContext(ctx).Save(models.PaymentModelFromDomain(payment)).Error
}

// GormOrderRepository implements finance.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).Scopes(ClientScope(ctx)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates an order
func (r *GormOrderRepository) Save(ctx context.Context, order *finance.Order) error {
	return r.db.WithContext(ctx).Save(models.OrderModelFromDomain(order)).Error
}

// GormPaymentReferenceRepository implements finance.PaymentReferenceRepository using GORM
type GormPaymentReferenceRepository struct {
	db *gorm.DB
}

// NewGormPaymentReferenceRepository creates a new GormPaymentReferenceRepository
func NewGormPaymentReferenceRepository(db *gorm.DB) *GormPaymentReferenceRepository {
	return &GormPaymentReferenceRepository{db: db}
}

// FindOpenByOrder finds the order's unprocessed references, oldest first
func (r *GormPaymentReferenceRepository) FindOpenByOrder(ctx context.Context, orderID uuid.UUID) ([]*finance.PaymentReference, error) {
	var refModels []models.PaymentReferenceModel
	if err := r.db.WithContext(ctx).
		Scopes(ClientScope(ctx)).
		Where("order_id = ? AND is_processed = ?", orderID, false).
		Order("created_at").
		Find(&refModels).Error; err != nil {
		return nil, err
	}
	refs := make([]*finance.PaymentReference, len(refModels))
	for i := range refModels {
		refs[i] = refModels[i].ToDomain()
	}
	return refs, nil
}

// Save creates or updates a payment reference
func (r *GormPaymentReferenceRepository) Save(ctx context.Context, ref *finance.PaymentReference) error {
	return r.db.WithContext(ctx).Save(models.PaymentReferenceModelFromDomain(ref)).Error
}
