package youtube

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"registry-be/internal/domain"
	"registry-be/internal/service"
	"registry-be/pkg/errors"
	"registry-be/pkg/logger"

	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"
)

// Service implements the VideoService interface
type Service struct {
	apiKey string
	opts   []option.ClientOption
	logger *logger.Logger
}

// NewService creates a new YouTube lookup service. Extra client options are
// used by tests to point at a fake API endpoint.
func NewService(apiKey string, logger *logger.Logger, extra ...option.ClientOption) service.VideoService {
	return &Service{
		apiKey: apiKey,
		opts:   extra,
		logger: logger,
	}
}

// GetVideoInfo fetches title, channel, duration and view count for a video.
func (s *Service) GetVideoInfo(ctx context.Context, videoID string) (*domain.VideoInfo, error) {
	if videoID == "" {
		return nil, errors.NewValidationError("video id is required", nil)
	}

	s.logger.WithField("video_id", videoID).Debug("Looking up video")

	opts := append([]option.ClientOption{option.WithAPIKey(s.apiKey)}, s.opts...)
	youtubeService, err := youtubeapi.NewService(ctx, opts...)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create YouTube service")
		return nil, errors.NewInternalError("Failed to initialize YouTube service", err)
	}

	call := youtubeService.Videos.List([]string{"snippet", "contentDetails", "statistics"}).Id(videoID)
	response, err := call.Do()
	if err != nil {
		s.logger.WithError(err).Error("Failed to look up video")
		return nil, errors.NewExternalError("Failed to look up video", err)
	}

	if len(response.Items) == 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("Video %s not found", videoID))
	}

	video := response.Items[0]
	info := &domain.VideoInfo{
		VideoID: videoID,
	}
	if video.Snippet != nil {
		info.Title = video.Snippet.Title
		info.Channel = video.Snippet.ChannelTitle
	}
	if video.ContentDetails != nil {
		info.Duration = parseISODuration(video.ContentDetails.Duration)
	}
	if video.Statistics != nil {
		info.ViewCount = video.Statistics.ViewCount
	}
	return info, nil
}

// parseISODuration converts the API's ISO 8601 duration (PT1H2M3S) to
// seconds. Malformed input yields zero rather than an error; duration is
// advisory data.
func parseISODuration(d string) int {
	d = strings.TrimPrefix(d, "PT")
	total := 0
	num := ""
	for _, r := range d {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'H' || r == 'M' || r == 'S':
			v, err := strconv.Atoi(num)
			if err != nil {
				return 0
			}
			switch r {
			case 'H':
				total += v * 3600
			case 'M':
				total += v * 60
			case 'S':
				total += v
			}
			num = ""
		default:
			return 0
		}
	}
	return total
}
