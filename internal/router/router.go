package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stemsi/examdrill/internal/config"
	"github.com/stemsi/examdrill/internal/handler"
	"github.com/stemsi/examdrill/internal/i18n"
	"github.com/stemsi/examdrill/internal/metrics"
	"github.com/stemsi/examdrill/internal/middleware"
	"github.com/stemsi/examdrill/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── Client IP ─────────────────────────────────────────────────────
	// Forwarding headers count only from configured proxies; the limiter
	// and bot verification both key on ClientIP.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		fmt.Fprintf(gin.DefaultErrorWriter, "[WARNING] ignoring TRUSTED_PROXIES: %v\n", err)
		_ = router.SetTrustedProxies(nil)
	}
	if cfg.BehindCloudflare {
		router.TrustedPlatform = gin.PlatformCloudflare
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept-Language", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(
		response.RequestIDMiddleware(),
		i18n.Middleware(),
		metrics.Middleware(),
		middleware.Brotli(),
	)

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	// The raw question bank, cached by browsers and the edge for an hour.
	if cfg.QuestionBankPath != "" {
		bankGroup := router.Group("/")
		bankGroup.Use(middleware.CacheControl(3600))
		{
			bankGroup.StaticFile("/tk.txt", cfg.QuestionBankPath)
		}
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// ─── Session API ───────────────────────────────────────────────────
	api := router.Group("/api")
	{
		api.GET("/welcome", handlers.Session.Welcome)

		session := api.Group("/session")
		session.Use(middleware.NoStore(), limiter.Middleware())
		{
			session.POST("", handlers.Session.Session)
			session.GET("/:id/export", handlers.Session.Export)
		}
	}

	// ─── Live session feed ─────────────────────────────────────────────
	router.GET("/ws/session/:id", limiter.Middleware(), handlers.WS.SessionStream)

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	return router
}
