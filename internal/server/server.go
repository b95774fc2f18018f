// Package server exposes the billing API over HTTP.
package server

import (
	"context"
	"net/http"

	billingdomain "github.com/clinovia/billing/internal/billing/domain"
	"github.com/clinovia/billing/internal/config"
	"github.com/clinovia/billing/internal/observability/logger"
	"github.com/clinovia/billing/internal/observability/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Params collects the server dependencies from the fx graph.
type Params struct {
	fx.In

	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	BillingSvc  billingdomain.Service
	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`
}

// Server holds the HTTP handlers for the billing API.
type Server struct {
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	billingSvc  billingdomain.Service
	httpMetrics *metrics.HTTPMetrics
}

// NewServer builds the API server.
func NewServer(p Params) *Server {
	return &Server{
		cfg:         p.Cfg,
		db:          p.DB,
		log:         p.Log.Named("server"),
		billingSvc:  p.BillingSvc,
		httpMetrics: p.HTTPMetrics,
	}
}

// NewEngine builds the gin engine with the shared middleware stack.
func NewEngine(cfg config.Config, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(metrics.GinMiddleware(httpMetrics))
	return engine
}

// RegisterRoutes mounts the billing API.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	patient := engine.Group("/api/centers/:center_id/patients/:patient_id")
	{
		patient.GET("/payments", s.ListPayments)
		patient.POST("/payments", s.ProcessPayment)
		patient.GET("/payments/summary", s.GetPaymentSummary)
		patient.GET("/payment-methods", s.ListPaymentMethods)
		patient.POST("/payment-methods/:method_id/default", s.SetDefaultPaymentMethod)
		patient.DELETE("/payment-methods/:method_id", s.DeactivatePaymentMethod)
		patient.GET("/subscription", s.GetActiveSubscription)
		patient.POST("/subscription/cancel", s.CancelSubscription)
		patient.GET("/invoices/:invoice_id", s.GetInvoice)
	}
}

// Healthz reports liveness and database reachability.
func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// Module provides and runs the HTTP server.
var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server, engine *gin.Engine) {
		s.RegisterRoutes(engine)
	}),
	fx.Invoke(RunHTTP),
)
