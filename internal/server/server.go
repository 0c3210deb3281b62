package server

import (
	"context"
	"net/http"
	"time"

	apikeydomain "github.com/exportflowlabs/exportflow/internal/apikey/domain"
	"github.com/exportflowlabs/exportflow/internal/config"
	exportdomain "github.com/exportflowlabs/exportflow/internal/export/domain"
	historydomain "github.com/exportflowlabs/exportflow/internal/history/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(Register),
)

type Server struct {
	db       *gorm.DB
	log      *zap.Logger
	exports  exportdomain.Service
	history  historydomain.Service
	registry *prometheus.Registry
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Exports  exportdomain.Service
	History  historydomain.Service
	Registry *prometheus.Registry
}

func New(p Params) *Server {
	return &Server{
		db:       p.DB,
		log:      p.Log.Named("http"),
		exports:  p.Exports,
		history:  p.History,
		registry: p.Registry,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/readyz", s.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1", s.APIKeyRequired())

	v1.POST("/exports", s.RequireScope(apikeydomain.ScopeExportsWrite), s.CreateExport)
	v1.PATCH("/exports/:id", s.RequireScope(apikeydomain.ScopeExportsWrite), s.UpdateExport)
	v1.GET("/exports", s.RequireScope(apikeydomain.ScopeExportsRead), s.ListExports)
	v1.GET("/exports/:id", s.RequireScope(apikeydomain.ScopeExportsRead), s.GetExport)
	v1.POST("/exports/:id/actions/:action", s.RequireScope(apikeydomain.ScopeExportsWrite), s.ApplyAction)
	v1.GET("/exports/:id/actions", s.RequireScope(apikeydomain.ScopeExportsRead), s.ListAvailableActions)
	v1.GET("/exports/:id/history", s.RequireScope(apikeydomain.ScopeExportsRead), s.GetExportHistory)

	v1.GET("/audit/history", s.RequireScope(apikeydomain.ScopeAuditRead), s.SearchHistory)
	v1.GET("/audit/export", s.RequireScope(apikeydomain.ScopeAuditRead), s.ComplianceExport)

	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) Readiness(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Register binds the HTTP listener to the fx lifecycle.
func Register(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: s.Router(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.Server.Addr))
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
