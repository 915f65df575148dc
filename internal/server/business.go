package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	businessdomain "github.com/smallbiznis/taxbook/internal/business/domain"
)

type registerBusinessRequest struct {
	BusinessName string `json:"businessName"`
	TaxRegNo     string `json:"taxRegNo"`
}

func (s *Server) RegisterBusiness(c *gin.Context) {
	var req registerBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.businessSvc.Register(c.Request.Context(), ownerFrom(c), businessdomain.RegisterRequest{
		Name:     strings.TrimSpace(req.BusinessName),
		TaxRegNo: strings.TrimSpace(req.TaxRegNo),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBusinesses(c *gin.Context) {
	resp, err := s.businessSvc.List(c.Request.Context(), ownerFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
