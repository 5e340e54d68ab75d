package repository

import (
	"context"
	"fmt"
	"math/big"

	"registry-be/internal/domain"
	"registry-be/internal/registry"
	"registry-be/pkg/database"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// CampaignRepository persists ledger snapshots and the event log. The
// in-memory registry stays authoritative; rows here exist so the ledger can
// be rebuilt at boot and events can be served to clients.
type CampaignRepository struct {
	db *database.PostgresDB
}

func NewCampaignRepository(db *database.PostgresDB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Record appends one event to the durable log. Implements registry.EventSink.
func (r *CampaignRepository) Record(ctx context.Context, event domain.Event) error {
	query := `
		INSERT INTO registry_events (event_type, campaign_id, actor, token, amount, is_active, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var amount pgtype.Numeric
	if event.Amount != nil {
		amount = numericFromBig(event.Amount)
	}

	_, err := r.db.Pool.Exec(ctx, query,
		string(event.Type),
		event.CampaignID,
		event.Actor,
		event.Token,
		amount,
		event.IsActive,
		event.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// SaveCampaign upserts a campaign snapshot.
func (r *CampaignRepository) SaveCampaign(ctx context.Context, c *domain.Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, creator, metadata_uri, campaign_type, reward_token, reward_amount,
			max_participants, participants_count, expires_at, is_active,
			total_funded, total_paid, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (id) DO UPDATE SET
			participants_count = EXCLUDED.participants_count,
			is_active = EXCLUDED.is_active,
			total_funded = EXCLUDED.total_funded,
			total_paid = EXCLUDED.total_paid,
			updated_at = NOW()
	`

	_, err := r.db.Pool.Exec(ctx, query,
		c.ID,
		c.Creator,
		c.MetadataURI,
		int16(c.CampaignType),
		c.RewardToken,
		numericFromBig(c.RewardAmount),
		c.MaxParticipants,
		c.ParticipantsCount,
		c.ExpiresAt,
		c.IsActive,
		numericFromBig(c.TotalFunded),
		numericFromBig(c.TotalPaid),
	)
	if err != nil {
		return fmt.Errorf("failed to save campaign %d: %w", c.ID, err)
	}
	return nil
}

// SaveCompletion stores the result of a paid completion in one transaction:
// the updated campaign snapshot, the participation row, and the user's new
// earnings total.
func (r *CampaignRepository) SaveCompletion(ctx context.Context, c *domain.Campaign, user string, totalEarnings *big.Int) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE campaigns
			SET participants_count = $2, total_paid = $3, updated_at = NOW()
			WHERE id = $1
		`, c.ID, c.ParticipantsCount, numericFromBig(c.TotalPaid))
		if err != nil {
			return fmt.Errorf("failed to update campaign %d: %w", c.ID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO participations (campaign_id, address, completed_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (campaign_id, address) DO NOTHING
		`, c.ID, user)
		if err != nil {
			return fmt.Errorf("failed to insert participation: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO user_earnings (address, total, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (address) DO UPDATE SET
				total = EXCLUDED.total,
				updated_at = NOW()
		`, user, numericFromBig(totalEarnings))
		if err != nil {
			return fmt.Errorf("failed to upsert earnings: %w", err)
		}
		return nil
	})
}

// LoadState rebuilds the full ledger snapshot from the snapshot tables.
func (r *CampaignRepository) LoadState(ctx context.Context) (*registry.State, error) {
	state := &registry.State{
		Participations: make(map[uint64][]string),
		Completed:      make(map[string][]uint64),
		Earnings:       make(map[string]*big.Int),
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, creator, metadata_uri, campaign_type, reward_token, reward_amount,
		       max_participants, participants_count, expires_at, is_active,
		       total_funded, total_paid
		FROM campaigns
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c            domain.Campaign
			campaignType int16
			reward       pgtype.Numeric
			funded       pgtype.Numeric
			paid         pgtype.Numeric
		)
		if err := rows.Scan(
			&c.ID, &c.Creator, &c.MetadataURI, &campaignType, &c.RewardToken, &reward,
			&c.MaxParticipants, &c.ParticipantsCount, &c.ExpiresAt, &c.IsActive,
			&funded, &paid,
		); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		c.CampaignType = domain.CampaignType(campaignType)
		if c.RewardAmount, err = bigFromNumeric(reward); err != nil {
			return nil, fmt.Errorf("campaign %d reward_amount: %w", c.ID, err)
		}
		if c.TotalFunded, err = bigFromNumeric(funded); err != nil {
			return nil, fmt.Errorf("campaign %d total_funded: %w", c.ID, err)
		}
		if c.TotalPaid, err = bigFromNumeric(paid); err != nil {
			return nil, fmt.Errorf("campaign %d total_paid: %w", c.ID, err)
		}
		state.Campaigns = append(state.Campaigns, &c)
		if c.ID > state.Counter {
			state.Counter = c.ID
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campaigns: %w", err)
	}

	if err := r.loadParticipations(ctx, state); err != nil {
		return nil, err
	}
	if err := r.loadEarnings(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (r *CampaignRepository) loadParticipations(ctx context.Context, state *registry.State) error {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT campaign_id, address
		FROM participations
		ORDER BY completed_at, campaign_id
	`)
	if err != nil {
		return fmt.Errorf("failed to query participations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			campaignID uint64
			address    string
		)
		if err := rows.Scan(&campaignID, &address); err != nil {
			return fmt.Errorf("failed to scan participation: %w", err)
		}
		state.Participations[campaignID] = append(state.Participations[campaignID], address)
		state.Completed[address] = append(state.Completed[address], campaignID)
	}
	return rows.Err()
}

func (r *CampaignRepository) loadEarnings(ctx context.Context, state *registry.State) error {
	rows, err := r.db.Pool.Query(ctx, `SELECT address, total FROM user_earnings`)
	if err != nil {
		return fmt.Errorf("failed to query earnings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			address string
			total   pgtype.Numeric
		)
		if err := rows.Scan(&address, &total); err != nil {
			return fmt.Errorf("failed to scan earnings: %w", err)
		}
		amount, err := bigFromNumeric(total)
		if err != nil {
			return fmt.Errorf("earnings for %s: %w", address, err)
		}
		state.Earnings[address] = amount
	}
	return rows.Err()
}

// GetEvents returns the newest events for a campaign, most recent first.
func (r *CampaignRepository) GetEvents(ctx context.Context, campaignID uint64, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT event_type, campaign_id, actor, token, amount, is_active, occurred_at
		FROM registry_events
		WHERE campaign_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e         domain.Event
			eventType string
			amount    pgtype.Numeric
		)
		if err := rows.Scan(&eventType, &e.CampaignID, &e.Actor, &e.Token, &amount, &e.IsActive, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = domain.EventType(eventType)
		if amount.Valid {
			if e.Amount, err = bigFromNumeric(amount); err != nil {
				return nil, fmt.Errorf("event amount: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// numericFromBig wraps an integer amount as a pgtype.Numeric for a
// NUMERIC(78,0) column.
func numericFromBig(v *big.Int) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).Set(v), Valid: true}
}

// bigFromNumeric converts a scanned NUMERIC(78,0) back into an integer.
// Postgres may deliver trailing zeros through a positive exponent.
func bigFromNumeric(n pgtype.Numeric) (*big.Int, error) {
	if !n.Valid {
		return big.NewInt(0), nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return nil, fmt.Errorf("non-finite numeric")
	}
	v := new(big.Int).Set(n.Int)
	switch {
	case n.Exp > 0:
		mul := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil)
		v.Mul(v, mul)
	case n.Exp < 0:
		return nil, fmt.Errorf("unexpected fractional numeric (exp %d)", n.Exp)
	}
	return v, nil
}
