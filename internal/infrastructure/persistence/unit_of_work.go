package persistence

import (
	"context"

	"github.com/erp/allocation/internal/domain/finance"
	"gorm.io/gorm"
)

// RepositoriesOption configures the repositories bound to a connection or transaction
type RepositoriesOption func(*repositoriesConfig)

type repositoriesConfig struct {
	rateDecorator func(finance.ConversionRateRepository) finance.ConversionRateRepository
	converterOpts []finance.RateConverterOption
	processorOpts []DocumentProcessorOption
}

// WithRateDecorator wraps the rate repository, e.g. with a cache
func WithRateDecorator(decorate func(finance.ConversionRateRepository) finance.ConversionRateRepository) RepositoriesOption {
	return func(c *repositoriesConfig) {
		c.rateDecorator = decorate
	}
}

// WithConverterOptions configures the converter used by the status stores
func WithConverterOptions(opts ...finance.RateConverterOption) RepositoriesOption {
	return func(c *repositoriesConfig) {
		c.converterOpts = append(c.converterOpts, opts...)
	}
}

// WithProcessorOptions configures the document processor
func WithProcessorOptions(opts ...DocumentProcessorOption) RepositoriesOption {
	return func(c *repositoriesConfig) {
		c.processorOpts = append(c.processorOpts, opts...)
	}
}

// GormRepositories implements finance.Repositories over one *gorm.DB, which is
// usually a transaction handle
type GormRepositories struct {
	db        *gorm.DB
	rates     finance.ConversionRateRepository
	converter *finance.RateConverter
	processor *GormDocumentProcessor
}

// NewGormRepositories binds every store to db
func NewGormRepositories(db *gorm.DB, opts ...RepositoriesOption) *GormRepositories {
	cfg := &repositoriesConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	var rates finance.ConversionRateRepository = NewGormConversionRateRepository(db)
	if cfg.rateDecorator != nil {
		rates = cfg.rateDecorator(rates)
	}
	return &GormRepositories{
		db:        db,
		rates:     rates,
		converter: finance.NewRateConverter(rates, cfg.converterOpts...),
		processor: NewGormDocumentProcessor(db, cfg.processorOpts...),
	}
}

func (r *GormRepositories) Allocations() finance.AllocationRepository {
	return NewGormAllocationRepository(r.db)
}

func (r *GormRepositories) Invoices() finance.InvoiceRepository {
	return NewGormInvoiceRepository(r.db)
}

func (r *GormRepositories) Payments() finance.PaymentRepository {
	return NewGormPaymentRepository(r.db)
}

func (r *GormRepositories) Orders() finance.OrderRepository {
	return NewGormOrderRepository(r.db)
}

func (r *GormRepositories) PaymentReferences() finance.PaymentReferenceRepository {
	return NewGormPaymentReferenceRepository(r.db)
}

func (r *GormRepositories) MasterData() finance.MasterDataRepository {
	return NewGormMasterDataRepository(r.db)
}

func (r *GormRepositories) ConversionRates() finance.ConversionRateRepository {
	return r.rates
}

func (r *GormRepositories) InvoiceStatus() finance.InvoiceStatusStore {
	return NewGormInvoiceStatusStore(r.db, r.converter)
}

func (r *GormRepositories) PaymentStatus() finance.PaymentStatusStore {
	return NewGormPaymentStatusStore(r.db, r.converter)
}

func (r *GormRepositories) Documents() finance.DocumentProcessor {
	return r.processor
}

// Converter returns the rate converter over this connection's rates
func (r *GormRepositories) Converter() *finance.RateConverter {
	return r.converter
}

// GormTransactionRunner runs units of work in a database transaction
type GormTransactionRunner struct {
	db   *gorm.DB
	opts []RepositoriesOption
}

// NewGormTransactionRunner creates a new GormTransactionRunner
func NewGormTransactionRunner(db *gorm.DB, opts ...RepositoriesOption) *GormTransactionRunner {
	return &GormTransactionRunner{db: db, opts: opts}
}

// InTransaction commits when fn returns nil and rolls every write back otherwise
func (r *GormTransactionRunner) InTransaction(ctx context.Context, fn func(ctx context.Context, repos finance.Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewGormRepositories(tx, r.opts...))
	})
}
