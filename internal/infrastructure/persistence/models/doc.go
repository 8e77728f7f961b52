// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free from
// ORM concerns; each model converts with ToDomain and a ...FromDomain constructor.
//
// Structure:
//   - base.go: shared ownership columns (ClientAggregateModel)
//   - allocation.go: allocation headers and lines
//   - document.go: invoices, payments, orders and payment references
//   - master_data.go: partners, charges, conversion rates and document sequences
package models
