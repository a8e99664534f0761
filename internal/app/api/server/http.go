package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rezars19/rz-automedata/docs"
	"github.com/rezars19/rz-automedata/internal/app/api/handlers"
	mw "github.com/rezars19/rz-automedata/internal/app/api/middleware"
	"github.com/rezars19/rz-automedata/internal/app/service/license"
	"github.com/rezars19/rz-automedata/internal/app/service/statistics"
	"github.com/rezars19/rz-automedata/internal/app/store"
	cfgpkg "github.com/rezars19/rz-automedata/pkg/config"
	metrics "github.com/rezars19/rz-automedata/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, cfg *cfgpkg.Config, st *store.Store, mgr license.Manager, stats *statistics.Service) {
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			URLLabelFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Desktop client APIs: API key auth resolving the anonymous principal
	client := r.Group("/api/v1/client")
	client.Use(mw.RequestLoggerMiddleware(log), mw.ClientAuthMiddleware(cfg), mw.AccessLogMiddleware())
	handlers.RegisterClientRoutes(client, st)

	// Admin APIs: login is public, everything else requires a bearer token
	admin := r.Group("/api/v1/admin")
	admin.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	admin.POST("/login", handlers.ApiAdminLogin(cfg))

	protected := admin.Group("/")
	protected.Use(mw.AdminAuthMiddleware(cfg))
	handlers.RegisterAdminRoutes(protected, mgr, st, stats)
}

// isFatalServeError filters the sentinel a graceful Shutdown makes
// ListenAndServe return; only real serve failures should crash the process.
func isFatalServeError(err error) bool {
	return err != nil && !errors.Is(err, http.ErrServerClosed)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); isFatalServeError(err) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
