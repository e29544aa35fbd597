package handlers

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ZanzyTHEbar/scriptmatch/internal/assets"
	"github.com/ZanzyTHEbar/scriptmatch/internal/cache"
	_ "github.com/ZanzyTHEbar/scriptmatch/internal/docs"
	apperrors "github.com/ZanzyTHEbar/scriptmatch/internal/errors"
	"github.com/ZanzyTHEbar/scriptmatch/internal/monitoring"
	"github.com/ZanzyTHEbar/scriptmatch/internal/ratelimit"
	"github.com/ZanzyTHEbar/scriptmatch/internal/security"
	"github.com/ZanzyTHEbar/scriptmatch/internal/storage"
)

// RouterConfig wires the HTTP surface
type RouterConfig struct {
	Handler   *Handler
	Limiter   *ratelimit.RateLimiter
	FontCache *cache.Cache
	Metrics   *monitoring.Metrics
	Logger    *monitoring.Logger
	// Stats adds named sections to /metrics
	Stats    map[string]monitoring.StatsSource
	Security security.SecurityConfig
	Sessions security.TokenValidator

	// UploadsDir is served under /uploads when non-empty
	UploadsDir string
	Assets     fs.FS
}

// NewRouter builds the gin engine with middleware and routes
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	// no reverse proxy is trusted unless configured on the engine later
	_ = r.SetTrustedProxies(nil)

	r.Use(monitoring.RequestID())
	r.Use(monitoring.MonitoringMiddleware(cfg.Metrics, cfg.Logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())
	r.Use(security.SecurityHeadersMiddleware(cfg.Security.EnableHSTS))
	r.Use(security.CSPMiddleware("/swagger/"))
	r.Use(security.CORS(cfg.Security))

	r.GET("/health", cfg.Handler.Health)
	r.GET("/metrics", monitoring.MetricsHandler(cfg.Metrics, cfg.Stats))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	assetFS := cfg.Assets
	if assetFS == nil {
		assetFS = assets.FS()
	}
	r.GET(assets.URLPrefix+"/*filepath", assets.Handler(assetFS))

	if cfg.UploadsDir != "" {
		r.StaticFS(storage.URLPrefix, http.Dir(cfg.UploadsDir))
	}

	api := r.Group("/api")
	api.Use(security.RequestTimeout(requestTimeout(cfg.Security.RequestTimeout)))
	{
		fonts := []gin.HandlerFunc{cfg.Handler.GetFonts}
		if cfg.FontCache != nil {
			fonts = append([]gin.HandlerFunc{cfg.FontCache.Middleware(cfg.Metrics)}, fonts...)
		}
		api.GET("/fonts", fonts...)

		analyze := []gin.HandlerFunc{security.SessionMiddleware(cfg.Sessions)}
		if cfg.Limiter != nil {
			analyze = append(analyze, cfg.Limiter.AnalyzeMiddleware())
		}
		analyze = append(analyze, cfg.Handler.Analyze)
		api.POST("/analyze", analyze...)

		api.GET("/user/:userId/progress", cfg.Handler.GetProgress)
		api.GET("/user/:userId/results", cfg.Handler.GetResults)

		api.POST("/register", security.RequireContentType("application/json"), cfg.Handler.Register)
		api.POST("/login", security.RequireContentType("application/json"), cfg.Handler.Login)
	}

	r.NoRoute(func(c *gin.Context) {
		apperrors.Respond(c, apperrors.NewNotFoundError("Route not found"), "")
	})

	return r
}

func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return security.DefaultSecurityConfig().RequestTimeout
	}
	return d
}
