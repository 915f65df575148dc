// Package domain contains core types for registered businesses.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// TaxRegNoLength is the fixed length of a tax-registration number (GSTIN).
const TaxRegNoLength = 15

// Business is a registered business a user records invoices against.
// Immutable after registration except by administrative correction.
type Business struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerID   snowflake.ID `gorm:"not null;index;uniqueIndex:ux_business_owner_name;uniqueIndex:ux_business_owner_regno" json:"ownerId"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_business_owner_name" json:"businessName"`
	TaxRegNo  string       `gorm:"column:tax_reg_no;type:varchar(15);not null;uniqueIndex:ux_business_owner_regno" json:"taxRegNo"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (Business) TableName() string { return "businesses" }

type RegisterRequest struct {
	Name     string
	TaxRegNo string
}

type Service interface {
	Register(ctx context.Context, ownerID snowflake.ID, req RegisterRequest) (*Business, error)
	List(ctx context.Context, ownerID snowflake.ID) ([]Business, error)
	FindByTaxRegNo(ctx context.Context, ownerID snowflake.ID, taxRegNo string) (*Business, error)
}

type Repository interface {
	Create(ctx context.Context, business *Business) error
	FindConflict(ctx context.Context, ownerID snowflake.ID, name, taxRegNo string) (*Business, error)
	FindByTaxRegNo(ctx context.Context, ownerID snowflake.ID, taxRegNo string) (*Business, error)
	ListByOwner(ctx context.Context, ownerID snowflake.ID) ([]Business, error)
}

var (
	ErrNotFound          = errors.New("business not found")
	ErrInvalidTaxRegNo   = errors.New("invalid tax registration number")
	ErrMissingField      = errors.New("missing required field")
	ErrDuplicateBusiness = errors.New("duplicate business")
)

// MissingFieldError names the first absent required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// DuplicateBusinessError names which field conflicted with an existing
// registration.
type DuplicateBusinessError struct {
	Field string
}

func (e *DuplicateBusinessError) Error() string {
	return fmt.Sprintf("business with this %s already exists", e.Field)
}

func (e *DuplicateBusinessError) Unwrap() error { return ErrDuplicateBusiness }
