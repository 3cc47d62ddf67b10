package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/boostgw/boostgw/internal/config"
	"github.com/boostgw/boostgw/internal/filter"
	"github.com/boostgw/boostgw/internal/handler"
	"github.com/boostgw/boostgw/internal/healthcheck"
	"github.com/boostgw/boostgw/internal/middleware"
	"github.com/boostgw/boostgw/internal/ratelimit"
	"github.com/boostgw/boostgw/internal/service"
	"github.com/boostgw/boostgw/internal/storage"
	"github.com/boostgw/boostgw/internal/upstream"
	"github.com/gin-gonic/gin"
)

type Server struct {
	router        *gin.Engine
	config        *config.Config
	redis         *storage.RedisClient
	filter        *filter.Filter
	upstream      *upstream.Client
	prober        *healthcheck.Prober
	authService   *service.AuthService
	boostService  *service.BoostService
	boostHandler  *handler.BoostHandler
	adminHandler  *handler.AdminHandler
	webhook       *handler.WebhookHandler
	throttle      *middleware.ThrottleStore
	httpServer    *http.Server
	janitorCancel context.CancelFunc
}

// New wires the whole gateway. redis may be nil; every store degrades to
// its in-memory implementation.
func New(cfg *config.Config, redis *storage.RedisClient) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	janitorCtx, janitorCancel := context.WithCancel(context.Background())

	// Cooldown stores and catalog cache: redis-backed when configured,
	// in-memory otherwise.
	var cooldownStore ratelimit.Store
	var cache storage.Cache
	if redis != nil {
		cooldownStore = ratelimit.NewRedisStore(redis)
		cache = storage.NewRedisCache(redis)
	} else {
		memStore := ratelimit.NewMemoryStore()
		memStore.StartJanitor(janitorCtx, 2*time.Minute)
		cooldownStore = memStore
		cache = storage.NewMemoryCache()
	}

	var fallback *upstream.Provider
	if cfg.Upstream.Fallback.Enabled {
		fallback = upstream.NewProvider("fallback", cfg.Upstream.Fallback.Endpoint, cfg.Upstream.Fallback.Key, nil)
		fallback.ServiceIDs = cfg.Upstream.Fallback.ServiceIDs
	}

	upstreamClient := upstream.NewClient(upstream.Config{
		Endpoint:   cfg.Upstream.Endpoint,
		Key:        cfg.Upstream.Key,
		Timeout:    cfg.Upstream.Timeout(),
		MaxRetries: cfg.Upstream.MaxRetries,
		Backoff:    cfg.Upstream.Backoff(),
		CacheTTL:   cfg.Upstream.CacheTTL(),
		Fallback:   fallback,
	}, cache)

	abuseFilter := filter.New(filter.Config{
		Threshold:     cfg.Limits.BlockThreshold,
		BlockDuration: cfg.Limits.BlockDuration(),
	})

	var ledger *service.Ledger
	if cfg.Pricing.Mode == config.PricingPoints {
		ledger = service.NewLedger(cfg.Pricing.StartingBalance)
	}

	purchaseCooldown := ratelimit.NewCooldown(cooldownStore, cfg.Limits.PurchaseCooldown(), "purchase:")
	freeCooldown := ratelimit.NewCooldown(cooldownStore, cfg.Limits.FreeCooldown(), "free:")

	boostService := service.NewBoostService(
		cfg.Catalog,
		upstreamClient,
		service.NewOrderStore(),
		ledger,
		purchaseCooldown,
		freeCooldown,
		service.BoostConfig{
			FreeQuantity:   cfg.Limits.FreeQuantity,
			AllowSimulated: cfg.Upstream.AllowSimulated,
		},
	)

	authService := service.NewAuthService(
		cfg.Auth.OperatorEmail,
		cfg.Auth.OperatorPasswordHash,
		cfg.Auth.JWTSecret,
		cfg.Auth.TokenExpiryHours,
	)

	throttle := middleware.NewThrottleStore(cfg.Limits.ThrottleRPS, cfg.Limits.ThrottleBurst)
	throttle.StartJanitor(janitorCtx, 2*time.Minute)

	s := &Server{
		router:        router,
		config:        cfg,
		redis:         redis,
		filter:        abuseFilter,
		upstream:      upstreamClient,
		prober:        healthcheck.NewProber(upstreamClient, healthcheck.Config{}),
		authService:   authService,
		boostService:  boostService,
		boostHandler:  handler.NewBoostHandler(boostService, cfg.Catalog),
		adminHandler:  handler.NewAdminHandler(authService, boostService, abuseFilter, upstreamClient),
		webhook:       handler.NewWebhookHandler(cfg.Webhook.Secret),
		throttle:      throttle,
		janitorCancel: janitorCancel,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.ClientKey("X-Client-ID"))
	s.router.Use(middleware.Throttle(s.throttle))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/pricing", s.boostHandler.Pricing)
		api.GET("/services", s.boostHandler.Pricing)
		api.GET("/order/:id", s.boostHandler.Order)
		api.GET("/status/:id", s.boostHandler.Order)
		api.POST("/gumroad-webhook", s.webhook.Gumroad)

		if s.config.Pricing.Mode == config.PricingPoints {
			api.GET("/points", s.boostHandler.Account)
		}

		// The abuse filter runs before any body binding, so a matching
		// user-agent is rejected even when the payload is invalid.
		boost := api.Group("", middleware.AbuseFilter(s.filter))
		{
			boost.POST("/boost", s.boostHandler.Purchase)
			boost.POST("/boost/purchase", s.boostHandler.Purchase)
			boost.POST("/boost/free", s.boostHandler.Free)
		}
	}

	if s.authService.Enabled() {
		api.GET("/balance", middleware.RequireAuth(s.authService), s.adminHandler.Balance)

		admin := s.router.Group("/admin")
		{
			admin.POST("/login", s.adminHandler.Login)
			admin.GET("/status", middleware.RequireAuth(s.authService), s.adminHandler.Status)
			admin.GET("/blocklist", middleware.RequireAuth(s.authService), s.adminHandler.Blocklist)
		}
	} else {
		log.Println("Operator auth not configured, admin surface disabled")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if s.redis != nil {
		if err := s.redis.Ping(c.Request.Context()); err != nil {
			redisHealthy = false
			log.Printf("Redis health check failed: %v", err)
		}
	}

	upstreamStatus := s.prober.Status()

	status := "healthy"
	statusCode := http.StatusOK
	if !redisHealthy || !upstreamStatus.Reachable {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	checks := gin.H{
		"upstream": upstreamStatus,
	}
	if s.redis != nil {
		checks["redis"] = redisHealthy
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "boostgw",
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // purchases wait for upstream settlement
		IdleTimeout:  15 * time.Second,
	}

	s.prober.Start()

	log.Printf("Starting boost gateway on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	s.prober.Stop()
	s.janitorCancel()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
