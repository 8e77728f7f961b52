package shared

import (
	"github.com/google/uuid"
)

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

// ClientAggregateRoot scopes an aggregate to a client and one of its organizations
type ClientAggregateRoot struct {
	BaseAggregateRoot
	ClientID       uuid.UUID
	OrganizationID uuid.UUID
	CreatedBy      *uuid.UUID
}

// NewClientAggregateRoot creates a new client/organization scoped aggregate root
func NewClientAggregateRoot(clientID, orgID uuid.UUID) ClientAggregateRoot {
	return ClientAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		ClientID:          clientID,
		OrganizationID:    orgID,
	}
}

// NewClientAggregateRootFromSession creates an aggregate root owned by the session's client
func NewClientAggregateRootFromSession(sc SessionContext, orgID uuid.UUID) ClientAggregateRoot {
	root := NewClientAggregateRoot(sc.ClientID, orgID)
	if sc.UserID != uuid.Nil {
		userID := sc.UserID
		root.CreatedBy = &userID
	}
	return root
}
