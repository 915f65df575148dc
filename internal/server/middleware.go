package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taxbook/internal/monitor"
	"github.com/smallbiznis/taxbook/internal/observability/logger"
	logdomain "github.com/smallbiznis/taxbook/internal/requestlog/domain"
)

const (
	sessionCookieName = "token"

	contextMonitorKey = "request_monitor"
	contextOwnerIDKey = "owner_id"
)

// routeOptions declare, per endpoint, which pipeline stages apply. SkipAudit
// is the recursion guard for the log-administration endpoints: an explicit
// tag, never derived from the path.
type routeOptions struct {
	Endpoint  string
	SkipAudit bool
	RateLimit bool
}

// Monitored is the outermost per-route stage. It begins the observability
// record, recovers panics into generic 500 responses, and on the way out
// classifies the final status and persists exactly one log record.
func (s *Server) Monitored(opts routeOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := s.monitors.Begin(opts.Endpoint, c.Request.Method, monitor.Options{
			SkipPersist: opts.SkipAudit,
			IPAddress:   c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
		})

		ctx := logger.WithRequestID(c.Request.Context(), m.RequestID())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextMonitorKey, m)
		c.Header("X-Request-Id", m.RequestID())

		defer func() {
			if recovered := recover(); recovered != nil {
				detail := fmt.Sprintf("%v", recovered)
				m.FinishError(c.Request.Context(), http.StatusInternalServerError, detail)

				body := gin.H{"error": "internal server error"}
				if !s.cfg.IsProduction() {
					body["detail"] = detail
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, body)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		errDetail := ""
		if lastErr := c.Errors.Last(); lastErr != nil {
			errDetail = lastErr.Err.Error()
			level := logdomain.LevelForStatus(status)
			if level != logdomain.LevelInfo {
				m.Log(level, errDetail, map[string]any{"statusCode": status})
			}
			if status < http.StatusInternalServerError {
				m.Finish(c.Request.Context(), status, false, errDetail)
				return
			}
			m.FinishError(c.Request.Context(), status, errDetail)
			return
		}

		m.Finish(c.Request.Context(), status, status < http.StatusBadRequest, errDetail)
	}
}

// AuthRequired resolves the session token (bearer header or cookie) to an
// owner identity. Failures are classified but never leak store detail.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := readToken(c)

		session, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ownerID := session.UserID
		c.Set(contextOwnerIDKey, ownerID)
		if m := monitorFrom(c); m != nil {
			m.SetOwner(ownerID)
		}
		c.Request = c.Request.WithContext(
			logger.WithOwnerID(c.Request.Context(), ownerID.String()),
		)
		c.Next()
	}
}

// RateLimit admits the request against the per-endpoint sliding window,
// keyed by endpoint plus owner.
func (s *Server) RateLimit(opts routeOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		limitCfg := s.cfg.RateLimit
		if !opts.RateLimit || !limitCfg.Enabled {
			c.Next()
			return
		}

		identifier := opts.Endpoint + ":" + ownerFrom(c).String()
		res := s.limiter.Check(identifier, limitCfg.Limit, limitCfg.Window)
		if !res.Allowed {
			retryAfter := res.RetryAfterSeconds()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			if m := monitorFrom(c); m != nil {
				m.Log(logdomain.LevelWarn, "rate limit exceeded", map[string]any{
					"identifier":        identifier,
					"currentCount":      res.Count,
					"retryAfterSeconds": retryAfter,
				})
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func readToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	if token, err := c.Cookie(sessionCookieName); err == nil {
		return token
	}
	return ""
}

func monitorFrom(c *gin.Context) *monitor.Monitor {
	value, ok := c.Get(contextMonitorKey)
	if !ok {
		return nil
	}
	m, _ := value.(*monitor.Monitor)
	return m
}

func ownerFrom(c *gin.Context) snowflake.ID {
	value, ok := c.Get(contextOwnerIDKey)
	if !ok {
		return 0
	}
	id, _ := value.(snowflake.ID)
	return id
}
