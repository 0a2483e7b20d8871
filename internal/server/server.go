package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/leasebook/internal/authorization"
	"github.com/smallbiznis/leasebook/internal/config"
	invoicedomain "github.com/smallbiznis/leasebook/internal/invoice/domain"
	"github.com/smallbiznis/leasebook/internal/observability"
	obslogger "github.com/smallbiznis/leasebook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/leasebook/internal/observability/metrics"
	obstracing "github.com/smallbiznis/leasebook/internal/observability/tracing"
	"github.com/smallbiznis/leasebook/internal/ratelimit"
	recurringdomain "github.com/smallbiznis/leasebook/internal/recurringinvoice/domain"
	"github.com/smallbiznis/leasebook/internal/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, srv *Server, log *zap.Logger) {
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	authzSvc      authorization.Service
	invoiceSvc    invoicedomain.Service
	recurringSvc  recurringdomain.Service
	manualLimiter *ratelimit.ManualTriggerLimiter
	scheduler     *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	AuthzSvc      authorization.Service
	InvoiceSvc    invoicedomain.Service
	RecurringSvc  recurringdomain.Service
	ManualLimiter *ratelimit.ManualTriggerLimiter `optional:"true"`
	Scheduler     *scheduler.Scheduler            `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		authzSvc:      p.AuthzSvc,
		invoiceSvc:    p.InvoiceSvc,
		recurringSvc:  p.RecurringSvc,
		manualLimiter: p.ManualLimiter,
		scheduler:     p.Scheduler,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1", OwnerContext())

	api.POST("/recurring-invoices", s.authorizeOwnerAction(authorization.ObjectRecurringInvoice, authorization.ActionRecurringInvoiceCreate), s.CreateRecurringInvoice)
	api.GET("/recurring-invoices", s.authorizeOwnerAction(authorization.ObjectRecurringInvoice, authorization.ActionRecurringInvoiceView), s.ListRecurringInvoices)
	api.GET("/recurring-invoices/:id", s.authorizeOwnerAction(authorization.ObjectRecurringInvoice, authorization.ActionRecurringInvoiceView), s.GetRecurringInvoice)
	api.PATCH("/recurring-invoices/:id", s.authorizeOwnerAction(authorization.ObjectRecurringInvoice, authorization.ActionRecurringInvoiceUpdate), s.UpdateRecurringInvoice)
	api.POST("/recurring-invoices/:id/pause", s.authorizeOwnerAction(authorization.ObjectRecurringInvoice, authorization.ActionRecurringInvoicePause), s.PauseRecurringInvoice)
	api.POST("/recurring-invoices/:id/resume", s.authorizeOwnerAction(authorization.ObjectRecurringInvoice, authorization.ActionRecurringInvoiceResume), s.ResumeRecurringInvoice)
	api.POST("/recurring-invoices/:id/generate",
		s.authorizeOwnerAction(authorization.ObjectRecurringInvoice, authorization.ActionRecurringInvoiceGenerate),
		s.ManualTriggerRateLimit(),
		s.GenerateRecurringInvoice,
	)

	api.GET("/invoices", s.authorizeOwnerAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListInvoices)
	api.GET("/invoices/:id", s.authorizeOwnerAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoiceByID)
	api.GET("/invoices/:id/pdf", s.authorizeOwnerAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.DownloadInvoicePDF)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AdminTokenRequired())

	admin.POST("/recurring-invoices/run", s.RunRecurringInvoices)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
