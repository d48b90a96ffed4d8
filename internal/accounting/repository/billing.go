package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"gorm.io/gorm"
)

type billingRepo struct{}

func ProvideBilling() domain.BillingRepository {
	return &billingRepo{}
}

func (r *billingRepo) FindInvoice(ctx context.Context, db *gorm.DB, companyID, invoiceID snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Preload("Customer").
		Preload("LineItems", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position asc, id asc")
		}).
		Preload("Taxes").
		Where("company_id = ? AND id = ?", companyID, invoiceID).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *billingRepo) FindBatch(ctx context.Context, db *gorm.DB, companyID, batchID snowflake.ID) (*domain.Batch, error) {
	var batch domain.Batch
	err := db.WithContext(ctx).
		Preload("Orders", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("id asc")
		}).
		Preload("Orders.Invoices", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("invoice_date asc, id asc")
		}).
		Where("company_id = ? AND id = ?", companyID, batchID).
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}
