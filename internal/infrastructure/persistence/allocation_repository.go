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

// GormAllocationRepository implements finance.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_no")
}

// FindByID finds an allocation with its lines
func (r *GormAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Allocation, error) {
	var model models.AllocationHeaderModel
	if err := r.db.WithContext(ctx).
		Scopes(ClientScope(ctx)).
		Preload("Lines", preloadLines).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrder finds every allocation with at least one line referencing the order
func (r *GormAllocationRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*finance.Allocation, error) {
	lineAllocations := r.db.Model(&models.AllocationLineModel{}).
		Select("allocation_id").
		Where("order_id = ?", orderID)

	var headerModels []models.AllocationHeaderModel
	if err := r.db.WithContext(ctx).
		Scopes(ClientScope(ctx)).
		Where("id IN (?)", lineAllocations).
		Preload("Lines", preloadLines).
		Order("created_at").
		Find(&headerModels).Error; err != nil {
		return nil, err
	}
	allocations := make([]*finance.Allocation, len(headerModels))
	for i := range headerModels {
		allocations[i] = headerModels[i].ToDomain()
	}
	return allocations, nil
}

// Save upserts the header and inserts lines not stored yet. Lines are append-only,
// so existing rows are left untouched.
func (r *GormAllocationRepository) Save(ctx context.Context, allocation *finance.Allocation) error {
	model := models.AllocationHeaderModelFromDomain(allocation)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(model).Error; err != nil {
		return err
	}
	if len(model.Lines) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Lines).Error
}
