package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxbook/internal/business/domain"
	"github.com/smallbiznis/taxbook/internal/clock"
	"github.com/smallbiznis/taxbook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("business.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Register(ctx context.Context, ownerID snowflake.ID, req domain.RegisterRequest) (*domain.Business, error) {
	name := strings.TrimSpace(req.Name)
	taxRegNo := strings.TrimSpace(req.TaxRegNo)

	if name == "" {
		return nil, &domain.MissingFieldError{Field: "businessName"}
	}
	if taxRegNo == "" {
		return nil, &domain.MissingFieldError{Field: "taxRegNo"}
	}
	if len(taxRegNo) != domain.TaxRegNoLength {
		return nil, domain.ErrInvalidTaxRegNo
	}

	// Friendly pre-check; the composite unique indexes are the real guard.
	if existing, err := s.repo.FindConflict(ctx, ownerID, name, taxRegNo); err == nil {
		field := "taxRegNo"
		if existing.Name == name {
			field = "businessName"
		}
		return nil, &domain.DuplicateBusinessError{Field: field}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	business := &domain.Business{
		ID:        s.genID.Generate(),
		OwnerID:   ownerID,
		Name:      name,
		TaxRegNo:  taxRegNo,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, business); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, &domain.DuplicateBusinessError{Field: "businessName or taxRegNo"}
		}
		return nil, err
	}

	s.log.Info("business registered",
		zap.String("owner_id", ownerID.String()),
		zap.String("business", name),
	)
	return business, nil
}

func (s *Service) List(ctx context.Context, ownerID snowflake.ID) ([]domain.Business, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *Service) FindByTaxRegNo(ctx context.Context, ownerID snowflake.ID, taxRegNo string) (*domain.Business, error) {
	return s.repo.FindByTaxRegNo(ctx, ownerID, strings.TrimSpace(taxRegNo))
}
