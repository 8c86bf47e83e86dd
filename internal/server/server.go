package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"merchpos/internal/config"
	custommiddleware "merchpos/internal/middleware"
	"merchpos/internal/repository"
	"merchpos/internal/service"
	"merchpos/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Redis backs the checkout rate limiter
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Initialize repositories
	staffRepo := repository.NewStaffRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	discountRepo := repository.NewDiscountRepository(db)
	salesRepo := repository.NewSalesRepository(db)

	// Initialize services
	staffService := service.NewStaffService(staffRepo, refreshTokenRepo, cfg.JWT.Secret)
	catalogService := service.NewCatalogService(catalogRepo)
	discountService := service.NewDiscountService(discountRepo)
	salesService := service.NewSalesService(salesRepo)

	sessions := service.NewCartSessions()
	pricer := service.NewPricer(discountRepo)
	cartService := service.NewCartService(sessions, catalogRepo, pricer)
	checkoutService := service.NewCheckoutService(sessions, catalogRepo, salesRepo, pricer)

	// Initialize handlers
	staffHandler := transport.NewStaffHandler(staffService, logger)
	catalogHandler := transport.NewCatalogHandler(catalogService, logger)
	discountHandler := transport.NewDiscountHandler(discountService, logger)
	cartHandler := transport.NewCartHandler(cartService, checkoutService, logger)
	salesHandler := transport.NewSalesHandler(salesService, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)
	checkoutLimiter := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.CheckoutPerMinute,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:checkout",
	}, logger)

	// Register routes
	staffHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)
	catalogHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)
	discountHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)
	cartHandler.RegisterRoutes(router, authMiddleware, checkoutLimiter)
	salesHandler.RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
