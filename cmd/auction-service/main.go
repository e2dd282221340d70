package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/JoniWarrior/Auction-System-Backend/internal/adapters/broadcaster"
	"github.com/JoniWarrior/Auction-System-Backend/internal/adapters/db"
	"github.com/JoniWarrior/Auction-System-Backend/internal/adapters/gateway"
	"github.com/JoniWarrior/Auction-System-Backend/internal/adapters/lock"
	"github.com/JoniWarrior/Auction-System-Backend/internal/adapters/mailer"
	"github.com/JoniWarrior/Auction-System-Backend/internal/adapters/redis"
	"github.com/JoniWarrior/Auction-System-Backend/internal/adapters/scheduler"
	"github.com/JoniWarrior/Auction-System-Backend/internal/adapters/ws"
	"github.com/JoniWarrior/Auction-System-Backend/internal/app"
	"github.com/JoniWarrior/Auction-System-Backend/internal/config"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting Auction Service...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Database connection established")

	// Create repositories
	repoFactory := db.NewRepositoryFactory(dbConn)
	auctionRepo := repoFactory.GetAuctionRepository()
	bidRepo := repoFactory.GetBidRepository()
	holdRepo := repoFactory.GetHoldRepository()
	itemRepo := repoFactory.GetItemRepository()
	userRepo := repoFactory.GetUserRepository()

	log.Info().Msg("Database repositories initialized")

	// Create Redis client
	redisClient := redis.NewClient(cfg)
	if err := redis.PingRedis(redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	// Distributed per-auction lock
	resourceLocker := lock.NewRedisLocker(lock.RedisLockerParams{
		RedisClient: redisClient,
		Config:      cfg,
		Logger:      log.Logger,
	})

	// Payment gateway client
	paymentGateway := gateway.NewClient(gateway.ClientParams{
		Config: cfg,
		Holds:  holdRepo,
		Logger: log.Logger,
	})
	log.Info().Msg("Payment gateway client initialized")

	// Create Redis broadcaster
	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	log.Info().Msg("Redis broadcaster initialized")

	outbidMailer := mailer.NewSMTPMailer(mailer.SMTPMailerParams{
		Config: cfg,
		Logger: log.Logger,
	})

	// Create business services
	biddingHelper := app.NewAuctionBiddingHelper(app.AuctionBiddingHelperParams{
		AuctionRepo: auctionRepo,
		BidRepo:     bidRepo,
		Gateway:     paymentGateway,
		Logger:      log.Logger,
	})
	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		Helper:      biddingHelper,
		AuctionRepo: auctionRepo,
		BidRepo:     bidRepo,
		ItemRepo:    itemRepo,
		Gateway:     paymentGateway,
		Locker:      resourceLocker,
		Broadcaster: redisBroadcaster,
		Config:      cfg,
		Logger:      log.Logger,
	})
	bidService := app.NewBidService(app.BidServiceParams{
		Helper:      biddingHelper,
		BidRepo:     bidRepo,
		UserRepo:    userRepo,
		HoldRepo:    holdRepo,
		ItemRepo:    itemRepo,
		Gateway:     paymentGateway,
		Locker:      resourceLocker,
		Broadcaster: redisBroadcaster,
		Mailer:      outbidMailer,
		Logger:      log.Logger,
	})

	log.Info().Msg("Business services initialized")

	// Safety net behind lazy expiry on the bidding path
	expirySweeper := scheduler.NewExpirySweeper(scheduler.ExpirySweeperParams{
		Settler: auctionService,
		Config:  cfg,
		Logger:  log.Logger,
	})
	expirySweeper.Start()
	log.Info().Msg("Expiry sweeper started")

	wsServer := ws.NewServer(ws.ServerParams{
		Config:         cfg,
		AuctionService: auctionService,
		BidService:     bidService,
		Broadcaster:    redisBroadcaster,
		Users:          userRepo,
		Logger:         log.Logger,
	})

	log.Info().Msg("WebSocket server initialized")

	// Start WebSocket server
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting WebSocket server")
		if err := wsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start WebSocket server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	expirySweeper.Stop()
	log.Info().Msg("Expiry sweeper stopped")

	if err := wsServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping WebSocket server")
	}

	// Drain queued bid side effects before closing the broadcaster
	bidService.Stop()

	if err := redisBroadcaster.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing Redis broadcaster")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		// JSON format (default)
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global logger
	zerolog.DefaultContextLogger = &log.Logger
}
