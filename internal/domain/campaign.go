package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// NativeToken is the reward token sentinel for the chain's native coin.
const NativeToken = "0x0000000000000000000000000000000000000000"

// CampaignType enumerates the kinds of completion tasks a campaign can ask
// for. The registry stores the value for clients but never branches on it:
// completion is a single uniform action regardless of type.
type CampaignType int

const (
	CampaignTypeVideo CampaignType = iota
	CampaignTypeSurvey
	CampaignTypeQuiz
	CampaignTypeShare
)

// Valid reports whether t is one of the defined campaign types.
func (t CampaignType) Valid() bool {
	return t >= CampaignTypeVideo && t <= CampaignTypeShare
}

func (t CampaignType) String() string {
	switch t {
	case CampaignTypeVideo:
		return "video"
	case CampaignTypeSurvey:
		return "survey"
	case CampaignTypeQuiz:
		return "quiz"
	case CampaignTypeShare:
		return "share"
	default:
		return "unknown"
	}
}

// ParseCampaignType maps a wire name back to its CampaignType.
func ParseCampaignType(s string) (CampaignType, error) {
	switch s {
	case "video":
		return CampaignTypeVideo, nil
	case "survey":
		return CampaignTypeSurvey, nil
	case "quiz":
		return CampaignTypeQuiz, nil
	case "share":
		return CampaignTypeShare, nil
	default:
		return 0, fmt.Errorf("unknown campaign type %q", s)
	}
}

// Campaign is a funded, time-bounded offer of a fixed reward to up to
// MaxParticipants distinct accounts. Amounts are integers in the reward
// token's smallest unit.
type Campaign struct {
	ID                uint64
	Creator           string
	MetadataURI       string
	CampaignType      CampaignType
	RewardToken       string
	RewardAmount      *big.Int
	MaxParticipants   uint64
	ParticipantsCount uint64
	ExpiresAt         time.Time
	IsActive          bool
	TotalFunded       *big.Int
	TotalPaid         *big.Int
}

// IsNative reports whether the campaign pays out in the native coin.
func (c *Campaign) IsNative() bool {
	return c.RewardToken == NativeToken
}

// IsExpired reports whether completion must be rejected at the given time.
// Expiry is a hard cutoff: a completion at exactly ExpiresAt is rejected.
func (c *Campaign) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsFull reports whether every participant slot has been taken.
func (c *Campaign) IsFull() bool {
	return c.ParticipantsCount >= c.MaxParticipants
}

// RemainingEscrow returns totalFunded - totalPaid, the value still held on
// the campaign's behalf.
func (c *Campaign) RemainingEscrow() *big.Int {
	return new(big.Int).Sub(c.TotalFunded, c.TotalPaid)
}

// Clone returns a deep copy so callers can never mutate ledger state through
// a returned campaign.
func (c *Campaign) Clone() *Campaign {
	cp := *c
	cp.RewardAmount = new(big.Int).Set(c.RewardAmount)
	cp.TotalFunded = new(big.Int).Set(c.TotalFunded)
	cp.TotalPaid = new(big.Int).Set(c.TotalPaid)
	return &cp
}

// campaignJSON is the wire form of a Campaign. Monetary fields travel as
// decimal strings because their values exceed what JSON numbers represent
// losslessly.
type campaignJSON struct {
	ID                uint64 `json:"id"`
	Creator           string `json:"creator"`
	MetadataURI       string `json:"metadata_uri"`
	CampaignType      string `json:"campaign_type"`
	RewardToken       string `json:"reward_token"`
	RewardAmount      string `json:"reward_amount"`
	MaxParticipants   uint64 `json:"max_participants"`
	ParticipantsCount uint64 `json:"participants_count"`
	ExpiresAt         int64  `json:"expires_at"`
	IsActive          bool   `json:"is_active"`
	TotalFunded       string `json:"total_funded"`
	TotalPaid         string `json:"total_paid"`
}

func (c *Campaign) MarshalJSON() ([]byte, error) {
	return json.Marshal(campaignJSON{
		ID:                c.ID,
		Creator:           c.Creator,
		MetadataURI:       c.MetadataURI,
		CampaignType:      c.CampaignType.String(),
		RewardToken:       c.RewardToken,
		RewardAmount:      c.RewardAmount.String(),
		MaxParticipants:   c.MaxParticipants,
		ParticipantsCount: c.ParticipantsCount,
		ExpiresAt:         c.ExpiresAt.Unix(),
		IsActive:          c.IsActive,
		TotalFunded:       c.TotalFunded.String(),
		TotalPaid:         c.TotalPaid.String(),
	})
}

func (c *Campaign) UnmarshalJSON(data []byte) error {
	var in campaignJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	campaignType, err := ParseCampaignType(in.CampaignType)
	if err != nil {
		return err
	}
	reward, err := ParseAmount(in.RewardAmount)
	if err != nil {
		return fmt.Errorf("reward_amount: %w", err)
	}
	funded, err := ParseAmount(in.TotalFunded)
	if err != nil {
		return fmt.Errorf("total_funded: %w", err)
	}
	paid, err := ParseAmount(in.TotalPaid)
	if err != nil {
		return fmt.Errorf("total_paid: %w", err)
	}
	c.ID = in.ID
	c.Creator = in.Creator
	c.MetadataURI = in.MetadataURI
	c.CampaignType = campaignType
	c.RewardToken = in.RewardToken
	c.RewardAmount = reward
	c.MaxParticipants = in.MaxParticipants
	c.ParticipantsCount = in.ParticipantsCount
	c.ExpiresAt = time.Unix(in.ExpiresAt, 0).UTC()
	c.IsActive = in.IsActive
	c.TotalFunded = funded
	c.TotalPaid = paid
	return nil
}

// ParseAmount parses a non-negative decimal string into a big integer amount.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("amount is required")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return v, nil
}

// CreateCampaignParams carries the validated inputs of campaign creation.
type CreateCampaignParams struct {
	MetadataURI     string
	CampaignType    CampaignType
	RewardToken     string
	RewardAmount    *big.Int
	MaxParticipants uint64
	ExpiresAt       time.Time
	// InitialFunding is the value attached at creation. Only native-coin
	// campaigns may attach funding; token campaigns are funded through a
	// separate FundCampaign call before go-live.
	InitialFunding *big.Int
}
