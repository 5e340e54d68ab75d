package service

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"registry-be/internal/domain"
	"registry-be/pkg/redis"

	"go.uber.org/zap"
)

// CacheService layers cache-aside reads over the registry. Every cache
// failure degrades to the in-memory ledger; nothing here may fail an
// operation.
type CacheService struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewCacheService creates a new cache service
func NewCacheService(redisClient *redis.Client, logger *zap.Logger) *CacheService {
	return &CacheService{
		redis:  redisClient,
		logger: logger,
	}
}

// GetCampaignWithCache retrieves one campaign with the cache-aside pattern.
func (c *CacheService) GetCampaignWithCache(ctx context.Context, campaignID uint64, fallback func(id uint64) (*domain.Campaign, error)) (*domain.Campaign, error) {
	if c.redis == nil {
		return fallback(campaignID)
	}
	cacheKey := c.redis.KeyBuilder.KeyCampaignByID(campaignID)

	cachedData, err := c.redis.Get(ctx, cacheKey)
	if err == nil && cachedData != "" {
		var campaign domain.Campaign
		if unmarshalErr := json.Unmarshal([]byte(cachedData), &campaign); unmarshalErr == nil {
			c.logger.Debug("Campaign cache hit", zap.Uint64("campaign_id", campaignID))
			return &campaign, nil
		} else {
			c.logger.Warn("Campaign cache corrupted, falling back to ledger",
				zap.Uint64("campaign_id", campaignID),
				zap.Error(unmarshalErr))
		}
	}

	c.logger.Debug("Campaign cache miss", zap.Uint64("campaign_id", campaignID))
	campaign, err := fallback(campaignID)
	if err != nil {
		return nil, err
	}

	go c.cacheCampaignAsync(campaign)
	return campaign, nil
}

func (c *CacheService) cacheCampaignAsync(campaign *domain.Campaign) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(campaign)
	if err != nil {
		c.logger.Error("Failed to marshal campaign for cache",
			zap.Uint64("campaign_id", campaign.ID),
			zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, c.redis.KeyBuilder.KeyCampaignByID(campaign.ID), data, redis.TTLCampaign); err != nil {
		c.logger.Warn("Failed to cache campaign",
			zap.Uint64("campaign_id", campaign.ID),
			zap.Error(err))
	}
}

// HasParticipatedWithCache answers the participation check cache-first.
// Participation is permanent, so a positive cache entry is always safe.
func (c *CacheService) HasParticipatedWithCache(ctx context.Context, campaignID uint64, address string, fallback func(id uint64, user string) bool) bool {
	if c.redis == nil {
		return fallback(campaignID, address)
	}
	cacheKey := c.redis.KeyBuilder.KeyUserParticipated(campaignID, address)

	exists, err := c.redis.Exists(ctx, cacheKey)
	if err == nil && exists > 0 {
		return true
	}

	participated := fallback(campaignID, address)
	if participated {
		go c.MarkParticipated(campaignID, address)
	}
	return participated
}

// MarkParticipated records a permanent participation flag in the cache.
func (c *CacheService) MarkParticipated(campaignID uint64, address string) {
	if c.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := c.redis.KeyBuilder.KeyUserParticipated(campaignID, address)
	if err := c.redis.Set(ctx, key, "1", redis.TTLParticipated); err != nil {
		c.logger.Warn("Failed to cache participation",
			zap.Uint64("campaign_id", campaignID),
			zap.Error(err))
	}
}

// GetEarningsWithCache retrieves a user's lifetime earnings cache-first.
func (c *CacheService) GetEarningsWithCache(ctx context.Context, address string, fallback func(user string) *big.Int) *big.Int {
	if c.redis == nil {
		return fallback(address)
	}
	cacheKey := c.redis.KeyBuilder.KeyUserEarnings(address)

	cachedData, err := c.redis.Get(ctx, cacheKey)
	if err == nil && cachedData != "" {
		v, parseErr := domain.ParseAmount(cachedData)
		if parseErr == nil {
			return v
		}
		c.logger.Warn("Earnings cache corrupted, falling back to ledger",
			zap.Error(parseErr))
	}

	total := fallback(address)
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.redis.Set(cacheCtx, cacheKey, total.String(), redis.TTLEarnings)
	}()
	return total
}

// InvalidateCampaign drops every cached view a mutation may have changed.
func (c *CacheService) InvalidateCampaign(ctx context.Context, campaignID uint64) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Delete(ctx, c.redis.KeyBuilder.KeyCampaignByID(campaignID)); err != nil {
		c.logger.Warn("Failed to invalidate campaign cache",
			zap.Uint64("campaign_id", campaignID),
			zap.Error(err))
	}
	pattern := c.redis.KeyBuilder.GetPrefix() + ":campaign:page:*"
	if err := c.redis.InvalidatePattern(ctx, pattern); err != nil {
		c.logger.Warn("Failed to invalidate campaign pages",
			zap.Error(err))
	}
}

// InvalidateUser drops a user's cached earnings and completion list.
func (c *CacheService) InvalidateUser(ctx context.Context, address string) {
	if c.redis == nil {
		return
	}
	err := c.redis.Delete(ctx,
		c.redis.KeyBuilder.KeyUserEarnings(address),
		c.redis.KeyBuilder.KeyUserCompleted(address),
	)
	if err != nil {
		c.logger.Warn("Failed to invalidate user cache", zap.Error(err))
	}
}
