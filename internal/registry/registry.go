// Package registry implements the campaign-reward ledger: campaign records,
// escrowed funding, one-participation-per-user enforcement, reward payouts
// and creator withdrawals. Every operation runs to completion under a single
// mutex, so two concurrent claims on the last slot can never both succeed.
package registry

import (
	"context"
	"math/big"
	"sync"
	"time"

	"registry-be/internal/domain"
	"registry-be/internal/treasury"

	"go.uber.org/zap"
)

// FeeRateBps is the protocol-wide platform fee, in basis points, reserved
// against unfilled slots when a creator withdraws unused funds.
const FeeRateBps = 250

var bpsDenominator = big.NewInt(10000)

// EventSink receives every committed ledger mutation. Sink failures never
// fail the operation that produced the event; the in-memory ledger is
// authoritative and the sink catches up from it.
type EventSink interface {
	Record(ctx context.Context, event domain.Event) error
}

// State is a full ledger snapshot, used to restore the registry from
// persistence at boot.
type State struct {
	Campaigns []*domain.Campaign
	// Participations maps campaign id to the accounts that completed it.
	Participations map[uint64][]string
	// Completed maps user to the ordered campaign ids they completed.
	Completed map[string][]uint64
	Earnings  map[string]*big.Int
	Counter   uint64
}

// Registry is the single serialized ledger. It depends on nothing above it;
// services wrap it with caching and persistence.
type Registry struct {
	mu       sync.Mutex
	now      func() time.Time
	transfer treasury.Transferer
	sink     EventSink
	log      *zap.Logger

	campaigns    map[uint64]*domain.Campaign
	participants map[uint64]map[string]bool
	completed    map[string][]uint64
	earnings     map[string]*big.Int
	counter      uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source. Used by tests to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithEventSink attaches a sink for committed events.
func WithEventSink(sink EventSink) Option {
	return func(r *Registry) {
		r.sink = sink
	}
}

// New creates an empty registry backed by the given value transferer.
func New(transfer treasury.Transferer, log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		now:          time.Now,
		transfer:     transfer,
		log:          log,
		campaigns:    make(map[uint64]*domain.Campaign),
		participants: make(map[uint64]map[string]bool),
		completed:    make(map[string][]uint64),
		earnings:     make(map[string]*big.Int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore replaces the ledger with a persisted snapshot. Called once at boot
// before the registry serves traffic.
func (r *Registry) Restore(state *State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.campaigns = make(map[uint64]*domain.Campaign, len(state.Campaigns))
	r.participants = make(map[uint64]map[string]bool)
	for _, c := range state.Campaigns {
		r.campaigns[c.ID] = c.Clone()
		r.participants[c.ID] = make(map[string]bool)
	}
	for id, users := range state.Participations {
		set := r.participants[id]
		if set == nil {
			set = make(map[string]bool)
			r.participants[id] = set
		}
		for _, u := range users {
			set[u] = true
		}
	}
	r.completed = make(map[string][]uint64, len(state.Completed))
	for user, ids := range state.Completed {
		r.completed[user] = append([]uint64(nil), ids...)
	}
	r.earnings = make(map[string]*big.Int, len(state.Earnings))
	for user, amount := range state.Earnings {
		r.earnings[user] = new(big.Int).Set(amount)
	}
	r.counter = state.Counter
}

// CreateCampaign validates the parameters, escrows any attached native
// funding, and stores a new campaign under the next sequential id. Token
// campaigns start unfunded and go live only once FundCampaign has supplied
// enough escrow for at least one reward.
func (r *Registry) CreateCampaign(ctx context.Context, creator string, p domain.CreateCampaignParams) (uint64, error) {
	if p.MetadataURI == "" {
		return 0, domain.ErrEmptyMetadataURI
	}
	if !p.CampaignType.Valid() {
		return 0, domain.ErrInvalidCampaignType
	}
	if p.RewardAmount == nil || p.RewardAmount.Sign() <= 0 {
		return 0, domain.ErrZeroReward
	}
	if p.MaxParticipants == 0 {
		return 0, domain.ErrZeroParticipants
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.now().Before(p.ExpiresAt) {
		return 0, domain.ErrExpiryNotFuture
	}

	funding := p.InitialFunding
	if funding == nil {
		funding = new(big.Int)
	}
	if p.RewardToken != domain.NativeToken && funding.Sign() > 0 {
		return 0, domain.ErrTokenInitialFunding
	}
	if funding.Sign() > 0 {
		if err := r.transfer.Collect(ctx, p.RewardToken, creator, funding); err != nil {
			return 0, &domain.TransferError{Err: err}
		}
	}

	r.counter++
	campaign := &domain.Campaign{
		ID:              r.counter,
		Creator:         creator,
		MetadataURI:     p.MetadataURI,
		CampaignType:    p.CampaignType,
		RewardToken:     p.RewardToken,
		RewardAmount:    new(big.Int).Set(p.RewardAmount),
		MaxParticipants: p.MaxParticipants,
		ExpiresAt:       p.ExpiresAt,
		IsActive:        true,
		TotalFunded:     new(big.Int).Set(funding),
		TotalPaid:       new(big.Int),
	}
	r.campaigns[campaign.ID] = campaign
	r.participants[campaign.ID] = make(map[string]bool)

	r.emit(ctx, domain.Event{
		Type:       domain.EventCampaignCreated,
		CampaignID: campaign.ID,
		Actor:      creator,
		Token:      campaign.RewardToken,
		Amount:     new(big.Int).Set(funding),
		IsActive:   true,
		At:         r.now(),
	})
	return campaign.ID, nil
}

// FundCampaign collects an additional amount from the caller into the
// campaign's escrow. Allowed regardless of active state so creators can top
// up a paused campaign before resuming it.
func (r *Registry) FundCampaign(ctx context.Context, caller string, id uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrZeroFunding
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	campaign, ok := r.campaigns[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}

	if err := r.transfer.Collect(ctx, campaign.RewardToken, caller, amount); err != nil {
		return &domain.TransferError{Err: err}
	}
	campaign.TotalFunded.Add(campaign.TotalFunded, amount)

	r.emit(ctx, domain.Event{
		Type:       domain.EventCampaignFunded,
		CampaignID: id,
		Actor:      caller,
		Token:      campaign.RewardToken,
		Amount:     new(big.Int).Set(amount),
		IsActive:   campaign.IsActive,
		At:         r.now(),
	})
	return nil
}

// CompleteCampaign records the caller's participation and pays the fixed
// reward. Preconditions are checked in a fixed order and the first failure
// wins. The whole operation is all-or-nothing: if the payout fails, every
// counter and record reverts to its pre-call value.
func (r *Registry) CompleteCampaign(ctx context.Context, caller string, id uint64) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	campaign, ok := r.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	if !campaign.IsActive {
		return nil, domain.ErrCampaignInactive
	}
	if campaign.IsExpired(r.now()) {
		return nil, domain.ErrCampaignExpired
	}
	if campaign.IsFull() {
		return nil, domain.ErrCampaignFull
	}
	if caller == campaign.Creator {
		return nil, domain.ErrCreatorCannotParticipate
	}
	if r.participants[id][caller] {
		return nil, domain.ErrAlreadyParticipated
	}
	reward := campaign.RewardAmount
	if campaign.RemainingEscrow().Cmp(reward) < 0 {
		return nil, domain.ErrInsufficientFunding
	}

	// Bookkeeping first, then the transfer; unwound in full if it fails.
	r.participants[id][caller] = true
	campaign.ParticipantsCount++
	campaign.TotalPaid.Add(campaign.TotalPaid, reward)
	r.addEarnings(caller, reward)
	r.completed[caller] = append(r.completed[caller], id)

	if err := r.transfer.Payout(ctx, campaign.RewardToken, caller, reward); err != nil {
		delete(r.participants[id], caller)
		campaign.ParticipantsCount--
		campaign.TotalPaid.Sub(campaign.TotalPaid, reward)
		r.subEarnings(caller, reward)
		r.completed[caller] = r.completed[caller][:len(r.completed[caller])-1]
		return nil, &domain.TransferError{Err: err}
	}

	r.emit(ctx, domain.Event{
		Type:       domain.EventCampaignCompleted,
		CampaignID: id,
		Actor:      caller,
		Token:      campaign.RewardToken,
		Amount:     new(big.Int).Set(reward),
		IsActive:   campaign.IsActive,
		At:         r.now(),
	})
	return new(big.Int).Set(reward), nil
}

// ToggleCampaignStatus flips isActive. Creator only. Toggling past expiry is
// permitted but completion still rejects on the expiry check.
func (r *Registry) ToggleCampaignStatus(ctx context.Context, caller string, id uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	campaign, ok := r.campaigns[id]
	if !ok {
		return false, domain.ErrCampaignNotFound
	}
	if caller != campaign.Creator {
		return false, domain.ErrNotCreator
	}

	campaign.IsActive = !campaign.IsActive

	r.emit(ctx, domain.Event{
		Type:       domain.EventCampaignStatusToggled,
		CampaignID: id,
		Actor:      caller,
		IsActive:   campaign.IsActive,
		At:         r.now(),
	})
	return campaign.IsActive, nil
}

// WithdrawUnusedFunds returns unused escrow to the creator, net of the
// platform fee reserved against unfilled slots. Blocked while the campaign
// is both active and unexpired, which forces creators to pause first.
// Withdrawing nothing is a no-op that returns zero, so repeated calls are
// idempotent and cannot double-pay.
func (r *Registry) WithdrawUnusedFunds(ctx context.Context, caller string, id uint64) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	campaign, ok := r.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	if caller != campaign.Creator {
		return nil, domain.ErrNotCreator
	}
	if campaign.IsActive && !campaign.IsExpired(r.now()) {
		return nil, domain.ErrWithdrawLocked
	}

	withdrawable := r.withdrawable(campaign)
	if withdrawable.Sign() <= 0 {
		return new(big.Int), nil
	}

	campaign.TotalPaid.Add(campaign.TotalPaid, withdrawable)
	if err := r.transfer.Payout(ctx, campaign.RewardToken, caller, withdrawable); err != nil {
		campaign.TotalPaid.Sub(campaign.TotalPaid, withdrawable)
		return nil, &domain.TransferError{Err: err}
	}

	r.emit(ctx, domain.Event{
		Type:       domain.EventFundsWithdrawn,
		CampaignID: id,
		Actor:      caller,
		Token:      campaign.RewardToken,
		Amount:     new(big.Int).Set(withdrawable),
		IsActive:   campaign.IsActive,
		At:         r.now(),
	})
	return withdrawable, nil
}

// withdrawable computes max(0, unusedFunds - reservedPlatformFee) from the
// current accounting state. Counting the withdrawal into totalPaid makes the
// next call recompute against the reduced unused balance. The reserved fee
// itself stays locked in escrow; there is no sweep path.
func (r *Registry) withdrawable(c *domain.Campaign) *big.Int {
	unused := c.RemainingEscrow()
	remainingSpots := new(big.Int).SetUint64(c.MaxParticipants - c.ParticipantsCount)

	fee := new(big.Int).Mul(remainingSpots, c.RewardAmount)
	fee.Mul(fee, big.NewInt(FeeRateBps))
	fee.Div(fee, bpsDenominator)

	out := unused.Sub(unused, fee)
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}

// GetCampaign returns a copy of a single campaign.
func (r *Registry) GetCampaign(id uint64) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	campaign, ok := r.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	return campaign.Clone(), nil
}

// GetCampaigns returns up to count campaigns with contiguous ids starting at
// start. Ids past the counter are simply absent from the result.
func (r *Registry) GetCampaigns(start uint64, count int) []*domain.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Campaign, 0, count)
	for id := start; id <= r.counter && len(out) < count; id++ {
		if campaign, ok := r.campaigns[id]; ok {
			out = append(out, campaign.Clone())
		}
	}
	return out
}

// HasParticipated reports whether the user has completed the campaign.
// Unknown campaigns report false, mirroring a mapping lookup.
func (r *Registry) HasParticipated(id uint64, user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participants[id][user]
}

// UserTotalEarnings returns the user's cumulative rewards across all
// campaigns.
func (r *Registry) UserTotalEarnings(user string) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if total, ok := r.earnings[user]; ok {
		return new(big.Int).Set(total)
	}
	return new(big.Int)
}

// UserCompletedCampaigns returns the campaign ids the user completed, in
// completion order.
func (r *Registry) UserCompletedCampaigns(user string) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.completed[user]...)
}

// CampaignCounter returns the number of campaigns ever created, which is
// also the highest assigned id.
func (r *Registry) CampaignCounter() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter
}

func (r *Registry) addEarnings(user string, amount *big.Int) {
	if total, ok := r.earnings[user]; ok {
		total.Add(total, amount)
		return
	}
	r.earnings[user] = new(big.Int).Set(amount)
}

func (r *Registry) subEarnings(user string, amount *big.Int) {
	if total, ok := r.earnings[user]; ok {
		total.Sub(total, amount)
	}
}

// emit hands the committed event to the sink. The ledger has already
// committed, so a sink failure is logged and the operation still succeeds.
func (r *Registry) emit(ctx context.Context, event domain.Event) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Record(ctx, event); err != nil {
		r.log.Warn("failed to record registry event",
			zap.String("event", string(event.Type)),
			zap.Uint64("campaign_id", event.CampaignID),
			zap.Error(err))
	}
}
