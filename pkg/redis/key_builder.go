package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	// Set key prefix based on environment
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// Campaign key builders
func (kb *KeyBuilder) KeyCampaignByID(campaignID uint64) string {
	return kb.BuildKey(fmt.Sprintf(KeyCampaignByID, campaignID))
}

func (kb *KeyBuilder) KeyCampaignPage(start uint64, count int) string {
	return kb.BuildKey(fmt.Sprintf(KeyCampaignPage, start, count))
}

func (kb *KeyBuilder) KeyCampaignCounter() string {
	return kb.BuildKey(KeyCampaignCounter)
}

func (kb *KeyBuilder) KeyUserParticipated(campaignID uint64, address string) string {
	return kb.BuildKey(fmt.Sprintf(KeyUserParticipated, campaignID, address))
}

func (kb *KeyBuilder) KeyUserEarnings(address string) string {
	return kb.BuildKey(fmt.Sprintf(KeyUserEarnings, address))
}

func (kb *KeyBuilder) KeyUserCompleted(address string) string {
	return kb.BuildKey(fmt.Sprintf(KeyUserCompleted, address))
}

// Metadata key builders
func (kb *KeyBuilder) KeyMetadata(uri string) string {
	return kb.BuildKey(fmt.Sprintf(KeyMetadata, uri))
}

// Video key builders
func (kb *KeyBuilder) KeyVideoInfo(videoID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyVideoInfo, videoID))
}

// Generic key builders for custom patterns
func (kb *KeyBuilder) KeyCustom(pattern string, args ...interface{}) string {
	key := fmt.Sprintf(pattern, args...)
	return kb.BuildKey(key)
}
