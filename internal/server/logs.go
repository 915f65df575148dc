package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	logdomain "github.com/smallbiznis/taxbook/internal/requestlog/domain"
)

func (s *Server) ListLogs(c *gin.Context) {
	var query struct {
		Page      int    `form:"page"`
		Limit     int    `form:"limit"`
		Level     string `form:"level"`
		Endpoint  string `form:"endpoint"`
		UserID    string `form:"userId"`
		StartDate string `form:"startDate"`
		EndDate   string `form:"endDate"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ownerID, err := parseOptionalSnowflakeID(query.UserID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	startDate, err := parseOptionalTime(query.StartDate, false)
	if err != nil {
		AbortWithError(c, logdomain.ErrInvalidTimeRange)
		return
	}
	endDate, err := parseOptionalTime(query.EndDate, true)
	if err != nil {
		AbortWithError(c, logdomain.ErrInvalidTimeRange)
		return
	}

	resp, err := s.logSvc.List(c.Request.Context(), logdomain.ListQuery{
		Page:      query.Page,
		Limit:     query.Limit,
		Level:     logdomain.Level(strings.ToLower(strings.TrimSpace(query.Level))),
		Endpoint:  strings.TrimSpace(query.Endpoint),
		OwnerID:   ownerID,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) PurgeLogs(c *gin.Context) {
	days, err := parseOptionalInt(c.Query("days"))
	if err != nil {
		AbortWithError(c, logdomain.ErrInvalidRetention)
		return
	}

	olderThanDays := s.cfg.LogRetainDays
	if days != nil {
		olderThanDays = *days
	}

	deleted, err := s.logSvc.Purge(c.Request.Context(), olderThanDays)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":       deleted,
		"olderThanDays": olderThanDays,
	})
}
