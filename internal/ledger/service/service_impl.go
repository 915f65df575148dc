package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	businessdomain "github.com/smallbiznis/taxbook/internal/business/domain"
	"github.com/smallbiznis/taxbook/internal/clock"
	"github.com/smallbiznis/taxbook/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const minYear = 2000

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Businesses businessdomain.Service
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	businesses businessdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		businesses: p.Businesses,
	}
}

// CreateInvoice validates and writes one invoice particular. Checks run
// fail-fast in a fixed order; no write happens unless every check passes.
func (s *Service) CreateInvoice(ctx context.Context, ownerID snowflake.ID, req domain.CreateInvoiceRequest) (*domain.InvoiceParticular, error) {
	businessName := strings.TrimSpace(req.BusinessName)
	taxRegNo := strings.TrimSpace(req.TaxRegNo)
	invoiceNo := strings.TrimSpace(req.InvoiceNo)

	if field, ok := firstMissingField(businessName, taxRegNo, invoiceNo, req); ok {
		return nil, &domain.MissingFieldError{Field: field}
	}
	if len(taxRegNo) != businessdomain.TaxRegNoLength {
		return nil, businessdomain.ErrInvalidTaxRegNo
	}
	if *req.Quarter < 1 || *req.Quarter > 4 {
		return nil, domain.ErrInvalidQuarter
	}
	if req.TaxableValue.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	if req.TaxRate.IsNegative() || req.TaxRate.GreaterThan(hundred) {
		return nil, domain.ErrInvalidTaxRate
	}

	business, err := s.businesses.FindByTaxRegNo(ctx, ownerID, taxRegNo)
	if err != nil {
		return nil, err
	}
	if business.Name != businessName {
		return nil, &domain.NameMismatchError{RegisteredName: business.Name}
	}

	// Friendly duplicate pre-check; the unique index closes the race.
	duplicate, err := s.repo.HasDuplicate(ctx, ownerID, taxRegNo, invoiceNo)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, domain.ErrDuplicateInvoice
	}

	cgst, sgst := deriveComponents(req)
	total := deriveTotal(req, cgst, sgst)

	particular := &domain.InvoiceParticular{
		ID:           s.genID.Generate(),
		OwnerID:      ownerID,
		BusinessName: business.Name,
		TaxRegNo:     taxRegNo,
		InvoiceNo:    invoiceNo,
		InvoiceDate:  req.InvoiceDate.UTC(),
		TaxableValue: *req.TaxableValue,
		TaxRate:      *req.TaxRate,
		CGST:         cgst,
		SGST:         sgst,
		TotalBill:    total,
		Year:         *req.Year,
		Quarter:      *req.Quarter,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.repo.InsertParticular(ctx, particular); err != nil {
		return nil, err
	}

	sheet := domain.PeriodSheet{
		ID:        s.genID.Generate(),
		OwnerID:   ownerID,
		Year:      particular.Year,
		Quarter:   particular.Quarter,
		CreatedAt: particular.CreatedAt,
	}
	if err := s.repo.AttachToPeriodSheet(ctx, sheet, particular.ID); err != nil {
		return nil, err
	}

	s.log.Info("invoice recorded",
		zap.String("owner_id", ownerID.String()),
		zap.String("business", business.Name),
		zap.String("invoice_no", invoiceNo),
	)
	return particular, nil
}

// PeriodReport returns the owner's particulars for one fiscal period,
// newest invoice date first.
func (s *Service) PeriodReport(ctx context.Context, ownerID snowflake.ID, year, quarter int) ([]domain.InvoiceParticular, error) {
	if year < minYear || year > s.clock.Now().Year() {
		return nil, domain.ErrInvalidYear
	}
	if quarter < 1 || quarter > 4 {
		return nil, domain.ErrInvalidQuarter
	}
	return s.repo.ListByPeriod(ctx, ownerID, year, quarter)
}

func firstMissingField(businessName, taxRegNo, invoiceNo string, req domain.CreateInvoiceRequest) (string, bool) {
	switch {
	case businessName == "":
		return "businessName", true
	case taxRegNo == "":
		return "taxRegNo", true
	case invoiceNo == "":
		return "invoiceNo", true
	case req.InvoiceDate == nil:
		return "invoiceDate", true
	case req.Year == nil:
		return "year", true
	case req.Quarter == nil:
		return "quarter", true
	case req.TaxableValue == nil:
		return "taxableValue", true
	case req.TaxRate == nil:
		return "taxRate", true
	}
	return "", false
}

// deriveComponents trusts caller-supplied components only when both are
// present; otherwise each equals (taxable * rate / 100) / 2.
func deriveComponents(req domain.CreateInvoiceRequest) (decimal.Decimal, decimal.Decimal) {
	if req.CGST != nil && req.SGST != nil {
		return *req.CGST, *req.SGST
	}
	half := req.TaxableValue.Mul(*req.TaxRate).Div(hundred).Div(two).Round(2)
	return half, half
}

func deriveTotal(req domain.CreateInvoiceRequest, cgst, sgst decimal.Decimal) decimal.Decimal {
	if req.TotalBill != nil {
		return *req.TotalBill
	}
	return req.TaxableValue.Add(cgst).Add(sgst)
}
