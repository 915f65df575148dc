package migration

import (
	authdomain "github.com/smallbiznis/taxbook/internal/auth/domain"
	businessdomain "github.com/smallbiznis/taxbook/internal/business/domain"
	ledgerdomain "github.com/smallbiznis/taxbook/internal/ledger/domain"
	logdomain "github.com/smallbiznis/taxbook/internal/requestlog/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// Run creates or updates the schema on startup. The composite unique
// indexes declared on the models are part of the correctness story (invoice
// duplicate guard, per-owner sheet singleton), not just performance.
func Run(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&authdomain.Session{},
		&businessdomain.Business{},
		&ledgerdomain.InvoiceParticular{},
		&ledgerdomain.PeriodSheet{},
		&ledgerdomain.PeriodSheetEntry{},
		&logdomain.LogRecord{},
	)
}
