package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxbook/internal/ledger/domain"
	"github.com/smallbiznis/taxbook/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func Provide(conn *gorm.DB) domain.Repository {
	return &repo{db: conn}
}

// InsertParticular writes the invoice. The composite unique index on
// (owner_id, tax_reg_no, invoice_no) is the authoritative duplicate guard;
// a violation here means a concurrent request won the race.
func (r *repo) InsertParticular(ctx context.Context, particular *domain.InvoiceParticular) error {
	if err := r.db.WithContext(ctx).Create(particular).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrInvoiceConflict
		}
		return err
	}
	return nil
}

func (r *repo) HasDuplicate(ctx context.Context, ownerID snowflake.ID, taxRegNo, invoiceNo string) (bool, error) {
	var particular domain.InvoiceParticular
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND tax_reg_no = ? AND invoice_no = ?", ownerID, taxRegNo, invoiceNo).
		First(&particular).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AttachToPeriodSheet locates or creates the sheet for the period and
// appends the invoice reference. Both writes ignore conflicts, so the whole
// operation is idempotent under retries and safe under concurrent first
// invoices of a new period.
func (r *repo) AttachToPeriodSheet(ctx context.Context, sheet domain.PeriodSheet, invoiceID snowflake.ID) error {
	conn := r.db.WithContext(ctx)

	err := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "year"}, {Name: "quarter"}},
		DoNothing: true,
	}).Create(&sheet).Error
	if err != nil && !db.IsDuplicateKeyErr(err) {
		return err
	}

	// Re-read: the insert above may have lost the create race.
	var existing domain.PeriodSheet
	err = conn.
		Where("owner_id = ? AND year = ? AND quarter = ?", sheet.OwnerID, sheet.Year, sheet.Quarter).
		First(&existing).Error
	if err != nil {
		return err
	}

	entry := domain.PeriodSheetEntry{
		SheetID:   existing.ID,
		InvoiceID: invoiceID,
		CreatedAt: sheet.CreatedAt,
	}
	err = conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
	if err != nil && !db.IsDuplicateKeyErr(err) {
		return err
	}
	return nil
}

func (r *repo) ListByPeriod(ctx context.Context, ownerID snowflake.ID, year, quarter int) ([]domain.InvoiceParticular, error) {
	var particulars []domain.InvoiceParticular
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND year = ? AND quarter = ?", ownerID, year, quarter).
		Order("invoice_date desc, id desc").
		Find(&particulars).Error
	if err != nil {
		return nil, err
	}
	return particulars, nil
}
