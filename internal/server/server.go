package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makehaven/paypal-inventory-listener/internal/config"
	ipndomain "github.com/makehaven/paypal-inventory-listener/internal/ipn/domain"
	"github.com/makehaven/paypal-inventory-listener/internal/observability/logger"
	"github.com/makehaven/paypal-inventory-listener/internal/observability/metrics"
	"github.com/makehaven/paypal-inventory-listener/internal/observability/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(Run),
)

type Params struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	DB     *gorm.DB
	IPNSvc ipndomain.Service
}

type Server struct {
	cfg     config.Config
	log     *zap.Logger
	db      *gorm.DB
	ipnSvc  ipndomain.Service
	limiter *rateLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:     p.Cfg,
		log:     p.Log.Named("server"),
		db:      p.DB,
		ipnSvc:  p.IPNSvc,
		limiter: newRateLimiter(120, time.Minute),
	}
}

func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Logger:    s.log,
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(tracing.GinMiddleware(s.cfg.ServiceName))
	r.Use(metrics.GinMiddleware(metrics.HTTP()))

	r.GET("/healthz", s.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/paypal/ipn", s.rateLimit(), s.HandleIPN)

	return r
}

// rateLimit sheds excess notifications without surfacing a failure status.
// The sender treats anything but 200 as a failed delivery and keeps
// retrying; a shed notification is redelivered later and dedup makes the
// replay safe.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			s.log.Warn("shedding notification over rate limit",
				zap.String("client_ip", c.ClientIP()),
			)
			c.Abort()
			c.String(http.StatusOK, "")
			return
		}
		c.Next()
	}
}

func Run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
