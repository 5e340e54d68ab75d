package container

import (
	"context"

	"registry-be/internal/config"
	"registry-be/internal/registry"
	"registry-be/internal/repository"
	"registry-be/internal/service"
	"registry-be/internal/service/metadata"
	"registry-be/internal/service/youtube"
	"registry-be/internal/treasury"
	"registry-be/pkg/database"
	"registry-be/pkg/logger"
	"registry-be/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config          *config.Config
	Logger          *logger.Logger
	RedisClient     *redis.Client
	DB              *database.PostgresDB
	Bank            *treasury.Bank
	Registry        *registry.Registry
	CampaignService *service.CampaignService
	MetadataService service.MetadataService
	VideoService    service.VideoService
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Container, error) {
	// Initialize Redis client if Redis URL is configured
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching")
		} else {
			redisClient = client
			logger.Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, proceeding without caching")
	}

	// Initialize Postgres if configured; without it the ledger is memory-only
	var db *database.PostgresDB
	if cfg.DatabaseURL != "" {
		pg, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		db = pg
		logger.Info("Database connection established")
	} else {
		logger.Warn("Database URL not configured, ledger state will not survive restarts")
	}

	// Value transfer: native coin through the bank, external tokens through
	// the token service. Without a token service the bank rejects token
	// transfers, which surfaces as a clean transfer failure.
	bank := treasury.NewBank(logger.Logger)
	var transferer treasury.Transferer
	if cfg.TokenServiceURL != "" {
		tokenClient := treasury.NewTokenClient(cfg.TokenServiceURL, logger.Logger)
		transferer = treasury.NewRouter(bank, tokenClient)
	} else {
		transferer = treasury.NewRouter(bank, bank)
	}

	var store service.CampaignStore
	engineOpts := []registry.Option{}
	if db != nil {
		repo := repository.NewCampaignRepository(db)
		store = repo
		engineOpts = append(engineOpts, registry.WithEventSink(repo))
	}

	engine := registry.New(transferer, logger.Logger, engineOpts...)
	campaignService := service.NewCampaignService(engine, store, redisClient, logger.Logger)

	metadataService := metadata.NewService(cfg.PinAPIURL, cfg.PinAPIToken, cfg.IPFSGateway, redisClient, logger)
	videoService := youtube.NewService(cfg.YouTubeAPIKey, logger)

	return &Container{
		Config:          cfg,
		Logger:          logger,
		RedisClient:     redisClient,
		DB:              db,
		Bank:            bank,
		Registry:        engine,
		CampaignService: campaignService,
		MetadataService: metadataService,
		VideoService:    videoService,
	}, nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// Close releases held connections.
func (c *Container) Close() {
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
