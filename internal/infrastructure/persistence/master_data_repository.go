package persistence

import (
	"context"
	"errors"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMasterDataRepository implements finance.MasterDataRepository using GORM
type GormMasterDataRepository struct {
	db *gorm.DB
}

// NewGormMasterDataRepository creates a new GormMasterDataRepository
func NewGormMasterDataRepository(db *gorm.DB) *GormMasterDataRepository {
	return &GormMasterDataRepository{db: db}
}

// FindBusinessPartner finds a partner of the session client
func (r *GormMasterDataRepository) FindBusinessPartner(ctx context.Context, id uuid.UUID) (*finance.BusinessPartner, error) {
	var model models.BusinessPartnerModel
	if err := r.db.WithContext(ctx).Scopes(ClientScope(ctx)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindCharge finds a charge of the session client
func (r *GormMasterDataRepository) FindCharge(ctx context.Context, id uuid.UUID) (*finance.Charge, error) {
	var model models.ChargeModel
	if err := r.db.WithContext(ctx).Scopes(ClientScope(ctx)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SaveBusinessPartner creates or updates a partner
func (r *GormMasterDataRepository) SaveBusinessPartner(ctx context.Context, bp *finance.BusinessPartner) error {
	if bp.ID == uuid.Nil {
		bp.ID = uuid.New()
	}
	model := models.BusinessPartnerModelFromDomain(bp)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveCharge creates or updates a charge
func (r *GormMasterDataRepository) SaveCharge(ctx context.Context, c *finance.Charge) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	model := models.ChargeModelFromDomain(c)
	return r.db.WithContext(ctx).Save(model).Error
}

// GormConversionRateRepository implements finance.ConversionRateRepository using GORM
type GormConversionRateRepository struct {
	db *gorm.DB
}

// NewGormConversionRateRepository creates a new GormConversionRateRepository
func NewGormConversionRateRepository(db *gorm.DB) *GormConversionRateRepository {
	return &GormConversionRateRepository{db: db}
}

// FindRate finds the rate valid on q.AsOf. Rates of the query's organization win over
// client-wide ones, client rates over system rates (nil client), and among those the
// most recent validity start wins.
func (r *GormConversionRateRepository) FindRate(ctx context.Context, q finance.ConversionQuery) (*finance.ConversionRate, error) {
	var model models.ConversionRateModel
	// First would append a primary key ORDER BY that replaces the precedence expression
	result := r.db.WithContext(ctx).
		Where("client_id IN ?", []uuid.UUID{q.ClientID, uuid.Nil}).
		Where("organization_id IN ?", []uuid.UUID{q.OrganizationID, uuid.Nil}).
		Where("currency_from = ? AND currency_to = ? AND conversion_type = ?", q.From.String(), q.To.String(), q.ConversionType).
		Where("valid_from <= ? AND valid_to >= ?", q.AsOf, q.AsOf).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN organization_id = ? THEN 0 ELSE 1 END, CASE WHEN client_id = ? THEN 0 ELSE 1 END, valid_from DESC",
			Vars:               []any{q.OrganizationID, q.ClientID},
			WithoutParentheses: true,
		}}).
		Limit(1).
		Find(&model)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return model.ToDomain(), nil
}

// Save creates or updates a rate
func (r *GormConversionRateRepository) Save(ctx context.Context, rate *finance.ConversionRate) error {
	if rate.ID == uuid.Nil {
		rate.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(models.ConversionRateModelFromDomain(rate)).Error
}
