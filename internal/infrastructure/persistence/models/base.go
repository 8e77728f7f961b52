package models

import (
	"time"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// ClientAggregateModel carries the ownership columns shared by every client-scoped document
type ClientAggregateModel struct {
	BaseModel
	Version        int        `gorm:"not null;default:1"`
	ClientID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedBy      *uuid.UUID `gorm:"type:uuid"`
}

// FromDomainClientAggregateRoot populates the model from a domain ClientAggregateRoot
func (m *ClientAggregateModel) FromDomainClientAggregateRoot(a shared.ClientAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
	m.ClientID = a.ClientID
	m.OrganizationID = a.OrganizationID
	m.CreatedBy = a.CreatedBy
}

// ToDomainClientAggregateRoot rebuilds the domain root; pending events are not persisted
func (m *ClientAggregateModel) ToDomainClientAggregateRoot() shared.ClientAggregateRoot {
	return shared.ClientAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		ClientID:       m.ClientID,
		OrganizationID: m.OrganizationID,
		CreatedBy:      m.CreatedBy,
	}
}
