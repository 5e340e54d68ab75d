package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"registry-be/internal/domain"
	"registry-be/internal/service"
	"registry-be/pkg/errors"
	"registry-be/pkg/logger"
	"registry-be/pkg/redis"

	"golang.org/x/oauth2"
)

const (
	pinPath    = "/pinning/pinJSONToIPFS"
	maxRetries = 3
	retryDelay = 500 * time.Millisecond
)

// Service pins campaign metadata through a Pinata-compatible API and
// resolves it back through a public gateway. Fetched documents are cached
// because a pinned URI never changes content.
type Service struct {
	pinURL     string
	gatewayURL string
	pinClient  *http.Client
	httpClient *http.Client
	redis      *redis.Client
	logger     *logger.Logger
}

// NewService creates a new metadata service. The pin token authenticates
// against the pinning API as a bearer credential.
func NewService(pinURL, pinToken, gatewayURL string, redisClient *redis.Client, log *logger.Logger) service.MetadataService {
	pinClient := &http.Client{Timeout: 15 * time.Second}
	if pinToken != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: pinToken, TokenType: "Bearer"})
		pinClient = oauth2.NewClient(context.Background(), src)
		pinClient.Timeout = 15 * time.Second
	}

	return &Service{
		pinURL:     strings.TrimSuffix(pinURL, "/"),
		gatewayURL: strings.TrimSuffix(gatewayURL, "/"),
		pinClient:  pinClient,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		redis:      redisClient,
		logger:     log,
	}
}

type pinRequest struct {
	PinataContent  *domain.CampaignMetadata `json:"pinataContent"`
	PinataMetadata pinName                  `json:"pinataMetadata"`
}

type pinName struct {
	Name string `json:"name"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Pin uploads the metadata document and returns its ipfs:// URI.
func (s *Service) Pin(ctx context.Context, meta *domain.CampaignMetadata) (string, error) {
	if meta == nil || meta.Title == "" {
		return "", errors.NewValidationError("metadata title is required", nil)
	}

	body, err := json.Marshal(pinRequest{
		PinataContent:  meta,
		PinataMetadata: pinName{Name: fmt.Sprintf("campaign-%s", meta.Title)},
	})
	if err != nil {
		return "", errors.NewInternalError("Failed to encode metadata", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		uri, err := s.pinOnce(ctx, body)
		if err == nil {
			s.logger.WithField("uri", uri).Info("Metadata pinned")
			return uri, nil
		}
		lastErr = err
		s.logger.WithError(err).WithField("attempt", attempt).Warn("Pin attempt failed")

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt)):
			}
		}
	}
	return "", errors.NewExternalError("Failed to pin metadata", lastErr)
}

func (s *Service) pinOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.pinURL+pinPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.pinClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pin API returned %d: %s", resp.StatusCode, msg)
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode pin response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", fmt.Errorf("pin response missing hash")
	}
	return "ipfs://" + out.IpfsHash, nil
}

// Fetch resolves a metadata URI through the gateway, cache-first.
func (s *Service) Fetch(ctx context.Context, uri string) (*domain.CampaignMetadata, error) {
	hash := strings.TrimPrefix(uri, "ipfs://")
	if hash == "" {
		return nil, errors.NewValidationError("metadata URI is required", nil)
	}

	if s.redis != nil {
		cacheKey := s.redis.KeyBuilder.KeyMetadata(hash)
		if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
			var meta domain.CampaignMetadata
			if err := json.Unmarshal([]byte(cached), &meta); err == nil {
				return &meta, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.gatewayURL+"/"+hash, nil)
	if err != nil {
		return nil, errors.NewInternalError("Failed to build gateway request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewExternalError("Gateway request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewExternalError(fmt.Sprintf("Gateway returned %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.NewExternalError("Failed to read gateway response", err)
	}

	var meta domain.CampaignMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, errors.NewExternalError("Gateway returned invalid metadata", err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, s.redis.KeyBuilder.KeyMetadata(hash), raw, redis.TTLMetadata); err != nil {
			s.logger.WithError(err).Warn("Failed to cache metadata")
		}
	}
	return &meta, nil
}
