package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/taxbook/internal/requestlog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.LogRecord) error {
	if record == nil {
		return nil
	}
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, query domain.ListQuery) ([]domain.LogRecord, int64, error) {
	var total int64
	err := applyFilter(db.WithContext(ctx).Model(&domain.LogRecord{}), query).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var records []domain.LogRecord
	offset := (query.Page - 1) * query.Limit
	err = applyFilter(db.WithContext(ctx).Model(&domain.LogRecord{}), query).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(query.Limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *repo) CountByLevel(ctx context.Context, db *gorm.DB, query domain.ListQuery) (domain.Statistics, error) {
	var rows []struct {
		Level domain.Level
		Count int64
	}

	base := query
	base.Level = ""
	err := applyFilter(db.WithContext(ctx).Model(&domain.LogRecord{}), base).
		Select("level, count(*) as count").
		Group("level").
		Scan(&rows).Error
	if err != nil {
		return domain.Statistics{}, err
	}

	var stats domain.Statistics
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Level {
		case domain.LevelInfo:
			stats.Info = row.Count
		case domain.LevelWarn:
			stats.Warn = row.Count
		case domain.LevelError:
			stats.Error = row.Count
		}
	}
	return stats, nil
}

func (r *repo) DeleteOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&domain.LogRecord{})
	return result.RowsAffected, result.Error
}

func applyFilter(stmt *gorm.DB, query domain.ListQuery) *gorm.DB {
	if query.Level != "" {
		stmt = stmt.Where("level = ?", query.Level)
	}
	if endpoint := strings.TrimSpace(query.Endpoint); endpoint != "" {
		stmt = stmt.Where("lower(endpoint) LIKE ?", "%"+strings.ToLower(endpoint)+"%")
	}
	if query.OwnerID != nil {
		stmt = stmt.Where("owner_id = ?", *query.OwnerID)
	}
	if query.StartDate != nil {
		stmt = stmt.Where("created_at >= ?", query.StartDate.UTC())
	}
	if query.EndDate != nil {
		stmt = stmt.Where("created_at <= ?", query.EndDate.UTC())
	}
	return stmt
}
