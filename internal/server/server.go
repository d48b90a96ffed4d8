package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/caskr/internal/accounting"
	accountingdomain "github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/config"
	"github.com/smallbiznis/caskr/internal/observability"
	obslogger "github.com/smallbiznis/caskr/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/caskr/internal/observability/metrics"
	obstracing "github.com/smallbiznis/caskr/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	accounting.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	ObsConfig observability.Config
	Log       *zap.Logger
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(p.Log, obslogger.MiddlewareConfig{
		Debug:           p.ObsConfig.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(metricsMiddleware(p.Metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(p EngineParams) *gin.Engine {
	return NewEngine(p)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTPShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	authSvc  accountingdomain.AuthService
	invoices accountingdomain.InvoiceSyncService
	costs    accountingdomain.CostTrackingSyncService
	charts   accountingdomain.ChartOfAccountsService
	syncLogs accountingdomain.SyncLogService
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	AuthSvc  accountingdomain.AuthService
	Invoices accountingdomain.InvoiceSyncService
	Costs    accountingdomain.CostTrackingSyncService
	Charts   accountingdomain.ChartOfAccountsService
	SyncLogs accountingdomain.SyncLogService
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		authSvc:  p.AuthSvc,
		invoices: p.Invoices,
		costs:    p.Costs,
		charts:   p.Charts,
		syncLogs: p.SyncLogs,
	}

	svc.registerAccountingRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAccountingRoutes() {
	api := s.engine.Group("/api/accounting")

	// The provider redirects here without our headers; the company comes
	// from the protected state.
	api.GET("/integrations/:provider/callback", s.IntegrationCallback)

	tenant := api.Group("", CompanyContext())
	{
		tenant.GET("/integrations/:provider", s.IntegrationStatus)
		tenant.GET("/integrations/:provider/connect", s.ConnectIntegration)
		tenant.POST("/integrations/:provider/refresh", s.RefreshIntegration)
		tenant.DELETE("/integrations/:provider", s.DisconnectIntegration)

		tenant.POST("/invoices/:id/sync", s.SyncInvoice)
		tenant.POST("/batches/:id/cogs", s.RecordBatchCOGS)

		tenant.GET("/chart-of-accounts", s.GetChartOfAccounts)
		tenant.GET("/sync-logs", s.ListSyncLogs)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func metricsMiddleware(m *obsmetrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.RecordHTTPRequest(c.Request.Context(), route, c.Writer.Status())
	}
}
