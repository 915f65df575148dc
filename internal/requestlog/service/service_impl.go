package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxbook/internal/clock"
	"github.com/smallbiznis/taxbook/internal/requestlog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250

	defaultRetentionDays = 30
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("requestlog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, record *domain.LogRecord) error {
	if record == nil {
		return nil
	}
	if record.ID == 0 {
		record.ID = s.genID.Generate()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.clock.Now()
	}
	if record.Level == "" {
		record.Level = domain.LevelForStatus(record.StatusCode)
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		s.log.Warn("failed to persist request log",
			zap.String("request_id", record.RequestID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, query domain.ListQuery) (domain.ListResult, error) {
	switch query.Level {
	case "", domain.LevelInfo, domain.LevelWarn, domain.LevelError:
	default:
		return domain.ListResult{}, domain.ErrInvalidLevel
	}
	if query.StartDate != nil && query.EndDate != nil && query.StartDate.After(*query.EndDate) {
		return domain.ListResult{}, domain.ErrInvalidTimeRange
	}

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = defaultPageSize
	}
	if query.Limit > maxPageSize {
		query.Limit = maxPageSize
	}

	records, total, err := s.repo.List(ctx, s.db, query)
	if err != nil {
		return domain.ListResult{}, err
	}

	stats, err := s.repo.CountByLevel(ctx, s.db, query)
	if err != nil {
		return domain.ListResult{}, err
	}

	totalPages := int(total) / query.Limit
	if int(total)%query.Limit != 0 {
		totalPages++
	}

	if records == nil {
		records = []domain.LogRecord{}
	}
	return domain.ListResult{
		Records: records,
		Pagination: domain.PageInfo{
			CurrentPage: query.Page,
			TotalPages:  totalPages,
			TotalCount:  total,
			Limit:       query.Limit,
		},
		Statistics: stats,
	}, nil
}

func (s *Service) Purge(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays == 0 {
		olderThanDays = defaultRetentionDays
	}
	if olderThanDays < 0 {
		return 0, domain.ErrInvalidRetention
	}

	cutoff := s.clock.Now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	deleted, err := s.repo.DeleteOlderThan(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}

	s.log.Info("purged request logs",
		zap.Int("older_than_days", olderThanDays),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}
