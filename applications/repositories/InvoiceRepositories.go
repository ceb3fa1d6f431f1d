package repositories

import (
	"context"
	"fmt"
	"wildlife-licensing-backend/config"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

func (r *applicationRepository) CreateInvoice(ctx context.Context, invoice *models.ApplicationInvoice) error {
	if err := r.DB.WithContext(ctx).Create(invoice).Error; err != nil {
		config.Logger.Error("Failed to create invoice",
			zap.Error(err),
			zap.String("applicationID", invoice.ApplicationID.String()),
			zap.String("amount", invoice.Amount.String()))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *applicationRepository) SaveInvoice(ctx context.Context, invoice *models.ApplicationInvoice) error {
	if err := r.DB.WithContext(ctx).Save(invoice).Error; err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	return nil
}

// GetInvoiceByReference locks the invoice row for the rest of the transaction.
func (r *applicationRepository) GetInvoiceByReference(ctx context.Context, reference string) (*models.ApplicationInvoice, error) {
	var invoice models.ApplicationInvoice
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("invoice_reference = ?", reference).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListInvoices returns the application's invoices, newest first.
func (r *applicationRepository) ListInvoices(ctx context.Context, applicationID uuid.UUID) ([]models.ApplicationInvoice, error) {
	var invoices []models.ApplicationInvoice
	err := r.DB.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at DESC").
		Find(&invoices).Error
	return invoices, err
}
