package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/nftlend-api/internal/auth"
	"github.com/ksred/nftlend-api/internal/database"
	"github.com/ksred/nftlend-api/internal/liquidation"
	"github.com/ksred/nftlend-api/internal/loans"
	"github.com/ksred/nftlend-api/internal/oracle"
	"github.com/ksred/nftlend-api/internal/pool"
	"github.com/ksred/nftlend-api/internal/settlement"
	"github.com/ksred/nftlend-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Default addresses used when the environment does not configure them.
// The signer has no private key anywhere in this process; only the address
// is needed to verify oracle signatures.
const (
	defaultOracleSigner = "0x4a3f9b5C7D1e8F2a6B0c9D8E7F6a5B4C3d2E1f0A"
	defaultSeaport      = "0x00000000000000ADc04C56Bf30aC9d3c0aAF14dC"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// main initializes and runs the lending API server with graceful shutdown
// support. It sets up all required services, database connections, and API
// routes.
func main() {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(envOr("JWT_SECRET", "nftlend-secret-key"))
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret, auth.TestAddress)

	verifier := oracle.NewVerifier(common.HexToAddress(envOr("ORACLE_SIGNER", defaultOracleSigner)))
	registry := settlement.NewRegistry(settlement.NewSeaportManager(defaultSeaport))

	poolService := pool.NewService(db)
	poolHandlers := pool.NewGinHandlers(poolService)

	loanService := loans.NewService(db, poolService, verifier, registry)
	loanHandlers := loans.NewGinHandlers(loanService)

	liquidationService := liquidation.NewService(db, loanService)
	liquidationHandlers := liquidation.NewGinHandlers(liquidationService)
	loanService.SetLiquidator(liquidationService)

	// Create and start the liquidation keeper
	liquidationProcessor := liquidation.NewProcessor(liquidationService, loanService)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go liquidationProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, poolHandlers, loanHandlers, liquidationHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Pool and loan routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	poolHandlers *pool.GinHandlers,
	loanHandlers *loans.GinHandlers,
	liquidationHandlers *liquidation.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Pool routes: deposit-and-vote, withdrawals and position queries
		pools := v1.Group("/pools")
		pools.Use(middleware.JWTAuth())
		{
			pools.GET("/:pool_id", poolHandlers.GetPoolHandler())
			pools.GET("/:pool_id/position", poolHandlers.GetPositionHandler())
			pools.POST("/:pool_id/deposit", poolHandlers.DepositHandler())
			pools.POST("/:pool_id/withdraw", poolHandlers.WithdrawHandler())
			pools.POST("/:pool_id/redeem", poolHandlers.RedeemHandler())
			pools.POST("/:pool_id/quote", loanHandlers.QuoteHandler())
		}

		// Loan routes: origination, installments and queries
		loanRoutes := v1.Group("/loans")
		loanRoutes.Use(middleware.JWTAuth())
		{
			loanRoutes.POST("/buy", loanHandlers.BuyNFTHandler())
			loanRoutes.POST("/:loan_id/refund", loanHandlers.RefundHandler())
			loanRoutes.GET("/:loan_id", loanHandlers.GetLoanHandler())
			loanRoutes.GET("", loanHandlers.ListLoansHandler())
		}

		// Liquidation routes: auction discovery and buying
		liquidations := v1.Group("/liquidations")
		liquidations.Use(middleware.JWTAuth())
		{
			liquidations.GET("", liquidationHandlers.ListActiveHandler())
			liquidations.GET("/:liquidation_id", liquidationHandlers.GetLiquidationHandler())
			liquidations.POST("/:liquidation_id/buy", liquidationHandlers.BuyHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/pools", poolHandlers.CreatePoolHandler())
			internal.POST("/liquidation/:loan_id", loanHandlers.LiquidateHandler())
		}
	}
}
