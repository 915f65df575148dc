package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/taxbook/internal/business/domain"
	"github.com/smallbiznis/taxbook/internal/business/repository"
	"github.com/smallbiznis/taxbook/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (domain.Service, snowflake.ID) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Business{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(conn),
	})
	return svc, node.Generate()
}

func TestRegister(t *testing.T) {
	svc, ownerID := newService(t)

	business, err := svc.Register(context.Background(), ownerID, domain.RegisterRequest{
		Name:     "  Acme Traders  ",
		TaxRegNo: "27AAPFU0939F1ZV",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Traders", business.Name)
	assert.Equal(t, "27AAPFU0939F1ZV", business.TaxRegNo)
	assert.Equal(t, ownerID, business.OwnerID)
	assert.NotZero(t, business.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc, ownerID := newService(t)

	_, err := svc.Register(context.Background(), ownerID, domain.RegisterRequest{TaxRegNo: "27AAPFU0939F1ZV"})
	var missing *domain.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "businessName", missing.Field)

	_, err = svc.Register(context.Background(), ownerID, domain.RegisterRequest{Name: "Acme Traders"})
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "taxRegNo", missing.Field)

	_, err = svc.Register(context.Background(), ownerID, domain.RegisterRequest{
		Name:     "Acme Traders",
		TaxRegNo: "SHORT",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTaxRegNo)
}

func TestRegisterDuplicateNamesField(t *testing.T) {
	svc, ownerID := newService(t)

	_, err := svc.Register(context.Background(), ownerID, domain.RegisterRequest{
		Name:     "Acme Traders",
		TaxRegNo: "27AAPFU0939F1ZV",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), ownerID, domain.RegisterRequest{
		Name:     "Acme Traders",
		TaxRegNo: "07BBQGV1040G2ZW",
	})
	var duplicate *domain.DuplicateBusinessError
	require.ErrorAs(t, err, &duplicate)
	assert.Equal(t, "businessName", duplicate.Field)

	_, err = svc.Register(context.Background(), ownerID, domain.RegisterRequest{
		Name:     "Different Name",
		TaxRegNo: "27AAPFU0939F1ZV",
	})
	require.ErrorAs(t, err, &duplicate)
	assert.Equal(t, "taxRegNo", duplicate.Field)
}

func TestListScopedToOwner(t *testing.T) {
	svc, ownerID := newService(t)

	_, err := svc.Register(context.Background(), ownerID, domain.RegisterRequest{
		Name:     "Acme Traders",
		TaxRegNo: "27AAPFU0939F1ZV",
	})
	require.NoError(t, err)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	otherOwner := node.Generate()

	// A different owner may reuse the same name and registration number.
	_, err = svc.Register(context.Background(), otherOwner, domain.RegisterRequest{
		Name:     "Acme Traders",
		TaxRegNo: "27AAPFU0939F1ZV",
	})
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), ownerID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, ownerID, mine[0].OwnerID)

	theirs, err := svc.List(context.Background(), otherOwner)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, otherOwner, theirs[0].OwnerID)
}

func TestFindByTaxRegNo(t *testing.T) {
	svc, ownerID := newService(t)

	registered, err := svc.Register(context.Background(), ownerID, domain.RegisterRequest{
		Name:     "Acme Traders",
		TaxRegNo: "27AAPFU0939F1ZV",
	})
	require.NoError(t, err)

	found, err := svc.FindByTaxRegNo(context.Background(), ownerID, " 27AAPFU0939F1ZV ")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, found.ID)

	_, err = svc.FindByTaxRegNo(context.Background(), ownerID, "00XXXXX0000X0X0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
