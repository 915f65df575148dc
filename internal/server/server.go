package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/taxbook/internal/auth"
	authdomain "github.com/smallbiznis/taxbook/internal/auth/domain"
	"github.com/smallbiznis/taxbook/internal/business"
	businessdomain "github.com/smallbiznis/taxbook/internal/business/domain"
	"github.com/smallbiznis/taxbook/internal/config"
	"github.com/smallbiznis/taxbook/internal/ledger"
	ledgerdomain "github.com/smallbiznis/taxbook/internal/ledger/domain"
	"github.com/smallbiznis/taxbook/internal/monitor"
	"github.com/smallbiznis/taxbook/internal/ratelimit"
	"github.com/smallbiznis/taxbook/internal/requestlog"
	logdomain "github.com/smallbiznis/taxbook/internal/requestlog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	auth.Module,
	business.Module,
	ledger.Module,
	requestlog.Module,
	monitor.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.HandleMethodNotAllowed = true

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger
	genID  *snowflake.Node

	authSvc     authdomain.Service
	businessSvc businessdomain.Service
	ledgerSvc   ledgerdomain.Service
	logSvc      logdomain.Service

	limiter  *ratelimit.Limiter
	monitors *monitor.Factory
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	Log   *zap.Logger
	GenID *snowflake.Node

	AuthSvc     authdomain.Service
	BusinessSvc businessdomain.Service
	LedgerSvc   ledgerdomain.Service
	LogSvc      logdomain.Service

	Limiter  *ratelimit.Limiter
	Monitors *monitor.Factory
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("server"),
		genID:       p.GenID,
		authSvc:     p.AuthSvc,
		businessSvc: p.BusinessSvc,
		ledgerSvc:   p.LedgerSvc,
		logSvc:      p.LogSvc,
		limiter:     p.Limiter,
		monitors:    p.Monitors,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

// registerAPIRoutes wires every operation through the same pipeline: monitor,
// error mapping, authentication, rate limiting, handler. The log endpoints
// opt out of persistence so inspecting the trail never appends to it.
func (s *Server) registerAPIRoutes() {
	s.handle(http.MethodPost, "/business", routeOptions{Endpoint: "/business", RateLimit: true}, s.RegisterBusiness)
	s.handle(http.MethodGet, "/business", routeOptions{Endpoint: "/business", RateLimit: true}, s.ListBusinesses)
	s.handle(http.MethodPost, "/business/create", routeOptions{Endpoint: "/business/create", RateLimit: true}, s.CreateInvoice)
	s.handle(http.MethodGet, "/generate", routeOptions{Endpoint: "/generate", RateLimit: true}, s.GeneratePeriodReport)

	s.handle(http.MethodGet, "/logs", routeOptions{Endpoint: "/logs", SkipAudit: true}, s.ListLogs)
	s.handle(http.MethodDelete, "/logs", routeOptions{Endpoint: "/logs", SkipAudit: true}, s.PurgeLogs)
}

func (s *Server) handle(method, path string, opts routeOptions, handler gin.HandlerFunc) {
	s.engine.Handle(method, path,
		s.Monitored(opts),
		ErrorHandlingMiddleware(s.cfg.IsProduction()),
		s.AuthRequired(),
		s.RateLimit(opts),
		handler,
	)
}

func (s *Server) registerFallback() {
	// Method rejection happens before the per-route chain, so the fallback
	// carries its own monitor: a 405 is still a completed operation and
	// leaves a record like any other.
	s.engine.NoMethod(func(c *gin.Context) {
		m := s.monitors.Begin(c.Request.URL.Path, c.Request.Method, monitor.Options{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Header("X-Request-Id", m.RequestID())
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
		m.Finish(c.Request.Context(), http.StatusMethodNotAllowed, false, "method not allowed")
	})
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
