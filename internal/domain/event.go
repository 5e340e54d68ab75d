package domain

import (
	"encoding/json"
	"math/big"
	"time"
)

// EventType names the externally observable ledger mutations.
type EventType string

const (
	EventCampaignCreated       EventType = "campaign_created"
	EventCampaignFunded        EventType = "campaign_funded"
	EventCampaignCompleted     EventType = "campaign_completed"
	EventCampaignStatusToggled EventType = "campaign_status_toggled"
	EventFundsWithdrawn        EventType = "funds_withdrawn"
)

// Event is one entry of the registry's durable log. Clients reconstruct
// campaign state from the event stream without re-scanning the full ledger,
// so every mutation carries at least the identifiers and amounts changed.
type Event struct {
	Type       EventType
	CampaignID uint64
	Actor      string
	Token      string
	// Amount is the value moved by the operation, nil when none moved
	// (status toggles).
	Amount   *big.Int
	IsActive bool
	At       time.Time
}

type eventJSON struct {
	Type       EventType `json:"type"`
	CampaignID uint64    `json:"campaign_id"`
	Actor      string    `json:"actor"`
	Token      string    `json:"token,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	IsActive   bool      `json:"is_active"`
	At         int64     `json:"at"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Type:       e.Type,
		CampaignID: e.CampaignID,
		Actor:      e.Actor,
		Token:      e.Token,
		IsActive:   e.IsActive,
		At:         e.At.Unix(),
	}
	if e.Amount != nil {
		out.Amount = e.Amount.String()
	}
	return json.Marshal(out)
}
