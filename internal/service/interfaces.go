package service

import (
	"context"
	"math/big"

	"registry-be/internal/domain"
	"registry-be/internal/registry"
)

// CampaignStore persists ledger snapshots and the event log. The registry in
// memory stays authoritative; the store exists so state survives restarts.
type CampaignStore interface {
	// SaveCampaign upserts one campaign snapshot.
	SaveCampaign(ctx context.Context, c *domain.Campaign) error

	// SaveCompletion stores a paid completion transactionally: the campaign
	// snapshot, the participation row, and the user's new earnings total.
	SaveCompletion(ctx context.Context, c *domain.Campaign, user string, totalEarnings *big.Int) error

	// LoadState rebuilds the full ledger snapshot for boot-time restore.
	LoadState(ctx context.Context) (*registry.State, error)

	// GetEvents returns the newest events for a campaign, most recent first.
	GetEvents(ctx context.Context, campaignID uint64, limit int) ([]domain.Event, error)
}

// MetadataService pins campaign metadata and resolves it back by URI.
type MetadataService interface {
	// Pin uploads metadata to the pinning service and returns its URI.
	Pin(ctx context.Context, meta *domain.CampaignMetadata) (string, error)

	// Fetch resolves a metadata URI through the gateway.
	Fetch(ctx context.Context, uri string) (*domain.CampaignMetadata, error)
}

// VideoService looks up video details for video-type campaigns.
type VideoService interface {
	// GetVideoInfo fetches title, channel and statistics for a video.
	GetVideoInfo(ctx context.Context, videoID string) (*domain.VideoInfo, error)
}
