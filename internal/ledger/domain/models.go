// Package domain contains persistence models for the invoice ledger.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceParticular is a single recorded invoice line with its tax
// computation. Business name and registration number are denormalized at
// write time.
type InvoiceParticular struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	OwnerID      snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_particular_owner_regno_invoice" json:"ownerId"`
	BusinessName string          `gorm:"type:text;not null" json:"businessName"`
	TaxRegNo     string          `gorm:"column:tax_reg_no;type:varchar(15);not null;uniqueIndex:ux_particular_owner_regno_invoice" json:"taxRegNo"`
	InvoiceNo    string          `gorm:"column:invoice_no;type:text;not null;uniqueIndex:ux_particular_owner_regno_invoice" json:"invoiceNo"`
	InvoiceDate  time.Time       `gorm:"not null" json:"invoiceDate"`
	TaxableValue decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"taxableValue"`
	TaxRate      decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"taxRate"`
	CGST         decimal.Decimal `gorm:"column:cgst;type:numeric(14,2);not null" json:"cgst"`
	SGST         decimal.Decimal `gorm:"column:sgst;type:numeric(14,2);not null" json:"sgst"`
	TotalBill    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"totalBill"`
	Year         int             `gorm:"not null;index" json:"year"`
	Quarter      int             `gorm:"not null" json:"quarter"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName sets the database table name.
func (InvoiceParticular) TableName() string { return "invoice_particulars" }

// PeriodSheet groups invoice particulars for one fiscal year/quarter.
// Sheets are scoped per owner: one user's filings never aggregate into
// another's sheet. Created lazily on the first invoice of a new period.
type PeriodSheet struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerID   snowflake.ID `gorm:"not null;uniqueIndex:ux_sheet_owner_period" json:"ownerId"`
	Year      int          `gorm:"not null;uniqueIndex:ux_sheet_owner_period" json:"year"`
	Quarter   int          `gorm:"not null;uniqueIndex:ux_sheet_owner_period" json:"quarter"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName sets the database table name.
func (PeriodSheet) TableName() string { return "period_sheets" }

// PeriodSheetEntry links a particular to its sheet. The unique pair makes
// the append idempotent under retries.
type PeriodSheetEntry struct {
	SheetID   snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"sheetId"`
	InvoiceID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"invoiceId"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName sets the database table name.
func (PeriodSheetEntry) TableName() string { return "period_sheet_entries" }

// CreateInvoiceRequest carries caller input for a new invoice. Pointer
// fields distinguish "absent" from zero; explicitly supplied tax components
// and total are trusted, not re-derived.
type CreateInvoiceRequest struct {
	BusinessName string
	TaxRegNo     string
	InvoiceNo    string
	InvoiceDate  *time.Time
	TaxableValue *decimal.Decimal
	TaxRate      *decimal.Decimal
	CGST         *decimal.Decimal
	SGST         *decimal.Decimal
	TotalBill    *decimal.Decimal
	Year         *int
	Quarter      *int
}

type Service interface {
	CreateInvoice(ctx context.Context, ownerID snowflake.ID, req CreateInvoiceRequest) (*InvoiceParticular, error)
	PeriodReport(ctx context.Context, ownerID snowflake.ID, year, quarter int) ([]InvoiceParticular, error)
}

type Repository interface {
	InsertParticular(ctx context.Context, particular *InvoiceParticular) error
	HasDuplicate(ctx context.Context, ownerID snowflake.ID, taxRegNo, invoiceNo string) (bool, error)
	AttachToPeriodSheet(ctx context.Context, sheet PeriodSheet, invoiceID snowflake.ID) error
	ListByPeriod(ctx context.Context, ownerID snowflake.ID, year, quarter int) ([]InvoiceParticular, error)
}

var (
	ErrMissingField = errors.New("missing required field")
	// ErrDuplicateInvoice is the friendly pre-check outcome.
	ErrDuplicateInvoice = errors.New("invoice number already exists for this business")
	// ErrInvoiceConflict is the store-level unique violation raced past the
	// pre-check.
	ErrInvoiceConflict = errors.New("invoice conflict")
	ErrInvalidQuarter  = errors.New("invalid quarter")
	ErrInvalidYear     = errors.New("invalid year")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidTaxRate  = errors.New("invalid tax rate")
)

// MissingFieldError names the first absent required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// NameMismatchError reports a supplied business name that differs from the
// registered name; the registered name is surfaced to aid correction.
type NameMismatchError struct {
	RegisteredName string
}

func (e *NameMismatchError) Error() string {
	return "business name does not match the registered name for this tax registration number"
}
