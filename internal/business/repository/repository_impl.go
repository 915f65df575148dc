package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxbook/internal/business/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, business *domain.Business) error {
	return r.db.WithContext(ctx).Create(business).Error
}

func (r *repo) FindConflict(ctx context.Context, ownerID snowflake.ID, name, taxRegNo string) (*domain.Business, error) {
	var business domain.Business
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Where("name = ? OR tax_reg_no = ?", name, taxRegNo).
		First(&business).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &business, nil
}

func (r *repo) FindByTaxRegNo(ctx context.Context, ownerID snowflake.ID, taxRegNo string) (*domain.Business, error) {
	var business domain.Business
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND tax_reg_no = ?", ownerID, taxRegNo).
		First(&business).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &business, nil
}

func (r *repo) ListByOwner(ctx context.Context, ownerID snowflake.ID) ([]domain.Business, error) {
	var businesses []domain.Business
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at asc").
		Find(&businesses).Error
	if err != nil {
		return nil, err
	}
	return businesses, nil
}
