package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"registry-be/internal/domain"
	"registry-be/internal/registry"
	"registry-be/pkg/redis"

	"go.uber.org/zap"
)

// CampaignService wraps the ledger with persistence and caching. The ledger
// commits first; snapshot writes that fail afterwards are logged and the
// store catches up on the next mutation, so persistence never rolls back a
// committed operation.
type CampaignService struct {
	engine       *registry.Registry
	store        CampaignStore
	redis        *redis.Client
	cacheService *CacheService
	logger       *zap.Logger
}

func NewCampaignService(engine *registry.Registry, store CampaignStore, redisClient *redis.Client, logger *zap.Logger) *CampaignService {
	cacheService := NewCacheService(redisClient, logger)
	return &CampaignService{
		engine:       engine,
		store:        store,
		redis:        redisClient,
		cacheService: cacheService,
		logger:       logger,
	}
}

// Bootstrap restores the ledger from persistence. Called once before the
// server accepts traffic.
func (s *CampaignService) Bootstrap(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	state, err := s.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ledger state: %w", err)
	}
	s.engine.Restore(state)
	s.logger.Info("Ledger restored",
		zap.Int("campaigns", len(state.Campaigns)),
		zap.Uint64("counter", state.Counter))
	return nil
}

// CreateCampaign registers a campaign and persists its first snapshot.
func (s *CampaignService) CreateCampaign(ctx context.Context, creator string, p domain.CreateCampaignParams) (uint64, error) {
	id, err := s.engine.CreateCampaign(ctx, creator, p)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Campaign created",
		zap.Uint64("campaign_id", id),
		zap.String("creator", creator),
		zap.String("campaign_type", p.CampaignType.String()),
		zap.String("reward_token", p.RewardToken))

	s.persistSnapshot(ctx, id)
	s.cacheService.InvalidateCampaign(ctx, id)
	return id, nil
}

// FundCampaign adds escrow to a campaign.
func (s *CampaignService) FundCampaign(ctx context.Context, caller string, id uint64, amount *big.Int) error {
	if err := s.engine.FundCampaign(ctx, caller, id, amount); err != nil {
		return err
	}

	s.logger.Info("Campaign funded",
		zap.Uint64("campaign_id", id),
		zap.String("funder", caller),
		zap.String("amount", amount.String()))

	s.persistSnapshot(ctx, id)
	s.cacheService.InvalidateCampaign(ctx, id)
	return nil
}

// CompleteCampaign records a participation and pays the reward.
func (s *CampaignService) CompleteCampaign(ctx context.Context, caller string, id uint64) (*big.Int, error) {
	reward, err := s.engine.CompleteCampaign(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Campaign completed",
		zap.Uint64("campaign_id", id),
		zap.String("participant", caller),
		zap.String("reward", reward.String()))

	if s.store != nil {
		campaign, getErr := s.engine.GetCampaign(id)
		if getErr == nil {
			total := s.engine.UserTotalEarnings(caller)
			if persistErr := s.store.SaveCompletion(ctx, campaign, caller, total); persistErr != nil {
				s.logger.Error("Failed to persist completion",
					zap.Uint64("campaign_id", id),
					zap.String("participant", caller),
					zap.Error(persistErr))
			}
		}
	}

	s.cacheService.MarkParticipated(id, caller)
	s.cacheService.InvalidateCampaign(ctx, id)
	s.cacheService.InvalidateUser(ctx, caller)
	return reward, nil
}

// ToggleCampaignStatus flips a campaign between active and paused.
func (s *CampaignService) ToggleCampaignStatus(ctx context.Context, caller string, id uint64) (bool, error) {
	active, err := s.engine.ToggleCampaignStatus(ctx, caller, id)
	if err != nil {
		return false, err
	}

	s.logger.Info("Campaign status toggled",
		zap.Uint64("campaign_id", id),
		zap.Bool("is_active", active))

	s.persistSnapshot(ctx, id)
	s.cacheService.InvalidateCampaign(ctx, id)
	return active, nil
}

// WithdrawUnusedFunds returns the creator's withdrawable escrow net of the
// reserved fee.
func (s *CampaignService) WithdrawUnusedFunds(ctx context.Context, caller string, id uint64) (*big.Int, error) {
	amount, err := s.engine.WithdrawUnusedFunds(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Funds withdrawn",
		zap.Uint64("campaign_id", id),
		zap.String("creator", caller),
		zap.String("amount", amount.String()))

	s.persistSnapshot(ctx, id)
	s.cacheService.InvalidateCampaign(ctx, id)
	return amount, nil
}

// GetCampaign returns one campaign, cache-first.
func (s *CampaignService) GetCampaign(ctx context.Context, id uint64) (*domain.Campaign, error) {
	return s.cacheService.GetCampaignWithCache(ctx, id, s.engine.GetCampaign)
}

// GetCampaigns returns a page of campaigns starting at the given id.
func (s *CampaignService) GetCampaigns(ctx context.Context, start uint64, count int) []*domain.Campaign {
	return s.engine.GetCampaigns(start, count)
}

// HasParticipated reports whether the address already completed the campaign.
func (s *CampaignService) HasParticipated(ctx context.Context, id uint64, address string) bool {
	return s.cacheService.HasParticipatedWithCache(ctx, id, address, s.engine.HasParticipated)
}

// GetUserEarnings returns the address's lifetime reward total.
func (s *CampaignService) GetUserEarnings(ctx context.Context, address string) *big.Int {
	return s.cacheService.GetEarningsWithCache(ctx, address, s.engine.UserTotalEarnings)
}

// GetUserCompletedCampaigns returns the campaign ids the address completed,
// in completion order.
func (s *CampaignService) GetUserCompletedCampaigns(ctx context.Context, address string) []uint64 {
	return s.engine.UserCompletedCampaigns(address)
}

// CampaignCounter returns the id of the most recently created campaign.
func (s *CampaignService) CampaignCounter(ctx context.Context) uint64 {
	return s.engine.CampaignCounter()
}

// GetEvents returns the durable event log for a campaign.
func (s *CampaignService) GetEvents(ctx context.Context, id uint64, limit int) ([]domain.Event, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.GetEvents(ctx, id, limit)
}

// persistSnapshot writes the campaign's current snapshot, logging failures.
func (s *CampaignService) persistSnapshot(ctx context.Context, id uint64) {
	if s.store == nil {
		return
	}
	campaign, err := s.engine.GetCampaign(id)
	if err != nil {
		return
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.SaveCampaign(persistCtx, campaign); err != nil {
		s.logger.Error("Failed to persist campaign snapshot",
			zap.Uint64("campaign_id", id),
			zap.Error(err))
	}
}
