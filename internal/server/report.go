package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/taxbook/internal/ledger/domain"
)

func (s *Server) GeneratePeriodReport(c *gin.Context) {
	year, err := parseOptionalInt(c.Query("year"))
	if err != nil || year == nil {
		AbortWithError(c, ledgerdomain.ErrInvalidYear)
		return
	}
	quarter, err := parseOptionalInt(c.Query("quarter"))
	if err != nil || quarter == nil {
		AbortWithError(c, ledgerdomain.ErrInvalidQuarter)
		return
	}

	particulars, err := s.ledgerSvc.PeriodReport(c.Request.Context(), ownerFrom(c), *year, *quarter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"year":     *year,
		"quarter":  *quarter,
		"invoices": particulars,
	})
}
