// Package httpapi wires the HTTP transport (Gin) to the referral services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// identity, referral-link capture, CORS, compression and security headers.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/fallfest-referrals/docs"
	"github.com/tbourn/fallfest-referrals/internal/auth"
	"github.com/tbourn/fallfest-referrals/internal/config"
	"github.com/tbourn/fallfest-referrals/internal/domain"
	"github.com/tbourn/fallfest-referrals/internal/feed"
	"github.com/tbourn/fallfest-referrals/internal/http/handlers"
	"github.com/tbourn/fallfest-referrals/internal/http/middleware"
	"github.com/tbourn/fallfest-referrals/internal/services"
)

const streamHeartbeat = 15 * time.Second

// Services are the application services behind the API.
type Services struct {
	Codes       *services.CodeGenerator
	Referrals   *services.ReferralService
	Leaderboard *services.LeaderboardService
	Pending     *services.PendingService
	Cache       *services.LeaderboardCache

	// Snapshots carries every cache refresh to stream clients.
	Snapshots *feed.Broker[domain.LeaderboardSnapshot]
}

// NewServices builds the service graph over db. changes receives one event
// per attribution and may be nil.
func NewServices(db *gorm.DB, cfg config.Config, changes *feed.Broker[domain.ChangeEvent]) Services {
	pending := services.NewPendingService(db, cfg.Referral.PendingTTL)
	codes := services.NewCodeGenerator(db, cfg.Referral.CodeMaxAttempts)
	board := &services.LeaderboardService{DB: db}
	snaps := feed.NewBroker[domain.LeaderboardSnapshot](4)

	var pub services.ChangePublisher
	if changes != nil {
		pub = changes
	}
	return Services{
		Codes:       codes,
		Referrals:   services.NewReferralService(db, codes, pending, pub),
		Leaderboard: board,
		Pending:     pending,
		Cache:       services.NewLeaderboardCache(board, cfg.Referral.LeaderboardSize, snaps),
		Snapshots:   snaps,
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID, request-scoped logger, access log, panic recovery
//  3. Body size limiter and metrics
//  4. Identity, then the per-caller rate limiter
//  5. Referral-link capture (?ref= on any route)
//  6. CORS, compression and security headers
func RegisterRoutes(r *gin.Engine, svc Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	base := cfg.APIBasePath
	streamPath := joinPath(base, "/leaderboard/stream")

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	r.Use(middleware.RequestID())
	r.Use(middleware.ContextLogger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())

	r.Use(limitBody(64 << 10))
	r.Use(middleware.Metrics())

	r.Use(middleware.Authenticate(auth.NewVerifier(cfg.Auth.JWTSecret), cfg.Auth.TrustHeaders))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		Skip("/health", "/metrics", streamPath)
	r.Use(rl.Handler())

	r.Use(middleware.ReferralCapture(svc.Pending.Capture))

	r.Use(corsHandlers(cfg.CORS.AllowedOrigins)...)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{streamPath, "/metrics"})))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{joinPath(base, "/me"), joinPath(base, "/referrals/pending")},
		EnablePolicy:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = base
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Deps{
		Codes:        svc.Codes,
		Referrals:    svc.Referrals,
		Leaderboard:  svc.Leaderboard,
		Cache:        svc.Cache,
		Snapshots:    svc.Snapshots,
		Pending:      svc.Pending,
		DefaultLimit: cfg.Referral.LeaderboardSize,
		MaxLimit:     cfg.Referral.LeaderboardMax,
		Heartbeat:    streamHeartbeat,
	})

	api := groupWithPrefix(r, base)
	{
		api.POST("/referral-codes", h.GenerateCode)
		api.GET("/referrals/pending", h.PendingReferral)
		api.GET("/participants/:id/referrals/count", h.CountReferrals)

		api.GET("/leaderboard", h.Leaderboard)
		api.GET("/leaderboard/summary", h.Summary)
		api.GET("/leaderboard/stream", h.StreamLeaderboard)
	}

	authed := api.Group("", middleware.RequireIdentity())
	{
		authed.POST("/registrations", h.Register)
		authed.GET("/me", h.Me)
		authed.POST("/me/referral", h.ApplyReferral)
		authed.GET("/me/referrals", h.MyReferrals)
	}
}

var (
	corsMethods = []string{"GET", "POST", "OPTIONS"}
	corsHeaders = []string{
		"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
		middleware.HeaderUserID, middleware.HeaderUserEmail, middleware.HeaderUserName,
		middleware.HeaderVisitorID,
	}
	corsExpose = []string{"X-Request-ID", "ETag", "Content-Length"}
)

// corsHandlers allows every origin when none are configured, otherwise only
// the listed ones.
func corsHandlers(origins []string) []gin.HandlerFunc {
	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// ACAO on every response, including ones without an Origin header
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins: true,
				AllowMethods:    corsMethods,
				AllowHeaders:    corsHeaders,
				ExposeHeaders:   corsExpose,
				MaxAge:          12 * time.Hour,
			}),
		}
	}
	return []gin.HandlerFunc{cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  corsMethods,
		AllowHeaders:  corsHeaders,
		ExposeHeaders: corsExpose,
		MaxAge:        12 * time.Hour,
	})}
}

// limitBody caps request bodies at maxBytes; reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
