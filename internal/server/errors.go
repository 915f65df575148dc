package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/taxbook/internal/auth/domain"
	businessdomain "github.com/smallbiznis/taxbook/internal/business/domain"
	ledgerdomain "github.com/smallbiznis/taxbook/internal/ledger/domain"
	logdomain "github.com/smallbiznis/taxbook/internal/requestlog/domain"
	"gorm.io/gorm"
)

var (
	ErrInvalidRequest = errors.New("invalid request body")
	ErrRateLimited    = errors.New("too many requests")
)

// ErrorHandlingMiddleware converts the last error recorded on the context
// into a structured JSON response. Handlers record failures with
// AbortWithError and never write error bodies themselves.
func ErrorHandlingMiddleware(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, body := mapError(lastErr.Err, production)
		c.AbortWithStatusJSON(status, body)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error, production bool) (int, gin.H) {
	var missingBusiness *businessdomain.MissingFieldError
	var missingInvoice *ledgerdomain.MissingFieldError
	var duplicateBusiness *businessdomain.DuplicateBusinessError
	var nameMismatch *ledgerdomain.NameMismatchError

	switch {
	case errors.As(err, &missingBusiness),
		errors.As(err, &missingInvoice),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, businessdomain.ErrInvalidTaxRegNo),
		errors.Is(err, ledgerdomain.ErrInvalidQuarter),
		errors.Is(err, ledgerdomain.ErrInvalidYear),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidTaxRate),
		errors.Is(err, logdomain.ErrInvalidLevel),
		errors.Is(err, logdomain.ErrInvalidTimeRange),
		errors.Is(err, logdomain.ErrInvalidRetention):
		return http.StatusBadRequest, gin.H{"error": err.Error()}

	case errors.As(err, &nameMismatch):
		return http.StatusBadRequest, gin.H{
			"error":          nameMismatch.Error(),
			"registeredName": nameMismatch.RegisteredName,
		}

	case errors.As(err, &duplicateBusiness),
		errors.Is(err, ledgerdomain.ErrDuplicateInvoice):
		return http.StatusBadRequest, gin.H{"error": err.Error()}

	case errors.Is(err, ledgerdomain.ErrInvoiceConflict):
		return http.StatusConflict, gin.H{"error": ledgerdomain.ErrDuplicateInvoice.Error()}

	case errors.Is(err, businessdomain.ErrNotFound):
		return http.StatusNotFound, gin.H{
			"error": "business with this tax registration number does not exist, register the business first",
		}

	case errors.Is(err, authdomain.ErrNoToken):
		return http.StatusUnauthorized, gin.H{"error": "no authentication token provided, please login"}

	case errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return http.StatusUnauthorized, gin.H{"error": "session expired, please login again"}

	case errors.Is(err, authdomain.ErrInvalidSession):
		return http.StatusUnauthorized, gin.H{"error": "authentication failed, please login again"}

	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"}

	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, gin.H{"error": "not found"}

	default:
		body := gin.H{"error": "internal server error"}
		if !production {
			body["detail"] = err.Error()
		}
		return http.StatusInternalServerError, body
	}
}
