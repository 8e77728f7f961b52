package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Default document number prefixes
const (
	DefaultAllocationPrefix = "ALLOC-"
	DefaultPaymentPrefix    = "PAY-"
	DefaultInvoicePrefix    = "INV-"
	DefaultCreditMemoPrefix = "CM-"
)

// GormDocumentProcessor completes documents: it draws the next number from the
// client's sequence, applies the domain transition and persists the result
type GormDocumentProcessor struct {
	db       *gorm.DB
	prefixes map[string]string
	now      func() time.Time
}

// DocumentProcessorOption configures a GormDocumentProcessor
type DocumentProcessorOption func(*GormDocumentProcessor)

// WithDocumentPrefix overrides the number prefix for a sequence name
func WithDocumentPrefix(sequence, prefix string) DocumentProcessorOption {
	return func(p *GormDocumentProcessor) {
		if prefix != "" {
			p.prefixes[sequence] = prefix
		}
	}
}

// WithProcessorClock sets the clock stamped on completed allocations
func WithProcessorClock(now func() time.Time) DocumentProcessorOption {
	return func(p *GormDocumentProcessor) {
		p.now = now
	}
}

// NewGormDocumentProcessor creates a new GormDocumentProcessor
func NewGormDocumentProcessor(db *gorm.DB, opts ...DocumentProcessorOption) *GormDocumentProcessor {
	p := &GormDocumentProcessor{
		db: db,
		prefixes: map[string]string{
			"allocation":  DefaultAllocationPrefix,
			"payment":     DefaultPaymentPrefix,
			"invoice":     DefaultInvoicePrefix,
			"credit_memo": DefaultCreditMemoPrefix,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Complete implements finance.DocumentProcessor. Every failure comes back as ProcessFailed.
func (p *GormDocumentProcessor) Complete(ctx context.Context, doc finance.Document) error {
	if err := p.complete(ctx, doc); err != nil {
		if errors.Is(err, finance.ErrProcessFailed) {
			return err
		}
		return finance.NewProcessFailedError(err.Error()).WithCause(err)
	}
	return nil
}

func (p *GormDocumentProcessor) complete(ctx context.Context, doc finance.Document) error {
	if !doc.GetDocStatus().CanComplete() {
		return fmt.Errorf("%s %s is %s and cannot be completed", doc.DocumentType(), doc.GetDocumentNo(), doc.GetDocStatus())
	}
	switch d := doc.(type) {
	case *finance.Allocation:
		no, err := p.nextNumber(ctx, d.ClientID, "allocation")
		if err != nil {
			return err
		}
		if err := d.MarkCompleted(no, p.now()); err != nil {
			return err
		}
		return NewGormAllocationRepository(p.db).Save(ctx, d)
	case *finance.Payment:
		no, err := p.numberFor(ctx, d.DocumentNo, d.ClientID, "payment")
		if err != nil {
			return err
		}
		if err := d.MarkCompleted(no); err != nil {
			return err
		}
		return NewGormPaymentRepository(p.db).Save(ctx, d)
	case *finance.Invoice:
		sequence := "invoice"
		if d.IsCreditMemo() {
			sequence = "credit_memo"
		}
		no, err := p.numberFor(ctx, d.DocumentNo, d.ClientID, sequence)
		if err != nil {
			return err
		}
		if err := d.MarkCompleted(no); err != nil {
			return err
		}
		return NewGormInvoiceRepository(p.db).Save(ctx, d)
	}
	return fmt.Errorf("unsupported document type %s", doc.DocumentType())
}

// numberFor keeps a number assigned at entry and draws a new one otherwise
func (p *GormDocumentProcessor) numberFor(ctx context.Context, current string, clientID uuid.UUID, sequence string) (string, error) {
	if current != "" {
		return current, nil
	}
	return p.nextNumber(ctx, clientID, sequence)
}

func (p *GormDocumentProcessor) nextNumber(ctx context.Context, clientID uuid.UUID, sequence string) (string, error) {
	db := p.db.WithContext(ctx)
	seq := models.DocumentSequenceModel{ClientID: clientID, DocumentType: sequence}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return "", fmt.Errorf("init %s sequence: %w", sequence, err)
	}
	if err := db.Model(&models.DocumentSequenceModel{}).
		Where("client_id = ? AND document_type = ?", clientID, sequence).
		Update("last_value", gorm.Expr("last_value + 1")).Error; err != nil {
		return "", fmt.Errorf("advance %s sequence: %w", sequence, err)
	}
	if err := db.Where("client_id = ? AND document_type = ?", clientID, sequence).First(&seq).Error; err != nil {
		return "", fmt.Errorf("read %s sequence: %w", sequence, err)
	}
	return fmt.Sprintf("%s%06d", p.prefixes[sequence], seq.LastValue), nil
}
