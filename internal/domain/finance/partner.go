package finance

import "github.com/google/uuid"

// BusinessPartner is the subset of partner master data allocation needs
type BusinessPartner struct {
	ID       uuid.UUID
	ClientID uuid.UUID
	Name     string
	IsActive bool
}

// Charge is a non-invoice ledger bucket used to absorb residual differences
type Charge struct {
	ID       uuid.UUID
	ClientID uuid.UUID
	Name     string
	IsActive bool
}
