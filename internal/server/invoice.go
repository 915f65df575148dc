package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/taxbook/internal/ledger/domain"
)

// createInvoiceRequest mirrors the caller payload. Absent optional fields
// stay nil so the service can distinguish "not supplied" from zero.
type createInvoiceRequest struct {
	BusinessName string           `json:"businessName"`
	TaxRegNo     string           `json:"taxRegNo"`
	InvoiceNo    string           `json:"invoiceNo"`
	InvoiceDate  string           `json:"invoiceDate"`
	TaxableValue *decimal.Decimal `json:"taxableValue"`
	TaxRate      *decimal.Decimal `json:"taxRate"`
	CGST         *decimal.Decimal `json:"cgst"`
	SGST         *decimal.Decimal `json:"sgst"`
	TotalBill    *decimal.Decimal `json:"totalBill"`
	Year         *int             `json:"year"`
	Quarter      *int             `json:"quarter"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	invoiceDate, err := parseOptionalTime(req.InvoiceDate, false)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.ledgerSvc.CreateInvoice(c.Request.Context(), ownerFrom(c), ledgerdomain.CreateInvoiceRequest{
		BusinessName: strings.TrimSpace(req.BusinessName),
		TaxRegNo:     strings.TrimSpace(req.TaxRegNo),
		InvoiceNo:    strings.TrimSpace(req.InvoiceNo),
		InvoiceDate:  invoiceDate,
		TaxableValue: req.TaxableValue,
		TaxRate:      req.TaxRate,
		CGST:         req.CGST,
		SGST:         req.SGST,
		TotalBill:    req.TotalBill,
		Year:         req.Year,
		Quarter:      req.Quarter,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
