package registry

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"registry-be/internal/domain"
	"registry-be/internal/treasury"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	creator = "0xc4ea704000000000000000000000000000000001"
	user1   = "0xa11ce00000000000000000000000000000000002"
	user2   = "0xb0b0000000000000000000000000000000000003"
	erc20   = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

var baseTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// stubTransferer lets tests force transfer failures to exercise rollback.
type stubTransferer struct {
	collectErr error
	payoutErr  error
	payouts    int
}

func (s *stubTransferer) Collect(ctx context.Context, token, from string, amount *big.Int) error {
	return s.collectErr
}

func (s *stubTransferer) Payout(ctx context.Context, token, to string, amount *big.Int) error {
	if s.payoutErr != nil {
		return s.payoutErr
	}
	s.payouts++
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func newTestRegistry(transfer treasury.Transferer) (*Registry, *testClock) {
	clock := &testClock{now: baseTime}
	r := New(transfer, zap.NewNop(), WithClock(clock.Now))
	return r, clock
}

func nativeParams(funding int64) domain.CreateCampaignParams {
	return domain.CreateCampaignParams{
		MetadataURI:     "ipfs://QmTestCampaign",
		CampaignType:    domain.CampaignTypeVideo,
		RewardToken:     domain.NativeToken,
		RewardAmount:    big.NewInt(10),
		MaxParticipants: 3,
		ExpiresAt:       baseTime.Add(24 * time.Hour),
		InitialFunding:  big.NewInt(funding),
	}
}

func TestCreateCampaign_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.CreateCampaignParams)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(p *domain.CreateCampaignParams) {},
		},
		{
			name:    "empty metadata URI",
			mutate:  func(p *domain.CreateCampaignParams) { p.MetadataURI = "" },
			wantErr: domain.ErrEmptyMetadataURI,
		},
		{
			name:    "invalid type",
			mutate:  func(p *domain.CreateCampaignParams) { p.CampaignType = domain.CampaignType(9) },
			wantErr: domain.ErrInvalidCampaignType,
		},
		{
			name:    "zero reward",
			mutate:  func(p *domain.CreateCampaignParams) { p.RewardAmount = big.NewInt(0) },
			wantErr: domain.ErrZeroReward,
		},
		{
			name:    "zero participants",
			mutate:  func(p *domain.CreateCampaignParams) { p.MaxParticipants = 0 },
			wantErr: domain.ErrZeroParticipants,
		},
		{
			name:    "expiry in the past",
			mutate:  func(p *domain.CreateCampaignParams) { p.ExpiresAt = baseTime.Add(-time.Hour) },
			wantErr: domain.ErrExpiryNotFuture,
		},
		{
			name:    "expiry exactly now",
			mutate:  func(p *domain.CreateCampaignParams) { p.ExpiresAt = baseTime },
			wantErr: domain.ErrExpiryNotFuture,
		},
		{
			name: "token campaign with attached funding",
			mutate: func(p *domain.CreateCampaignParams) {
				p.RewardToken = erc20
				p.InitialFunding = big.NewInt(5)
			},
			wantErr: domain.ErrTokenInitialFunding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(&stubTransferer{})
			p := nativeParams(100)
			tt.mutate(&p)

			id, err := r.CreateCampaign(context.Background(), creator, p)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, id)
				assert.Zero(t, r.CampaignCounter())
			} else {
				require.NoError(t, err)
				assert.Equal(t, uint64(1), id)
			}
		})
	}
}

func TestCreateCampaign_SequentialIDs(t *testing.T) {
	r, _ := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	assert.Equal(t, uint64(3), r.CampaignCounter())
}

func TestCompleteCampaign_PaysExactlyOnce(t *testing.T) {
	transfer := &stubTransferer{}
	r, _ := newTestRegistry(transfer)
	ctx := context.Background()

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)

	paid, err := r.CompleteCampaign(ctx, user1, id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10), paid)
	assert.True(t, r.HasParticipated(id, user1))
	assert.Equal(t, big.NewInt(10), r.UserTotalEarnings(user1))
	assert.Equal(t, []uint64{id}, r.UserCompletedCampaigns(user1))

	// Second attempt by the same user fails and changes nothing.
	_, err = r.CompleteCampaign(ctx, user1, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyParticipated)

	campaign, err := r.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), campaign.ParticipantsCount)
	assert.Equal(t, big.NewInt(10), campaign.TotalPaid)
	assert.Equal(t, big.NewInt(10), r.UserTotalEarnings(user1))
	assert.Equal(t, 1, transfer.payouts)
}

func TestCompleteCampaign_CapacityBound(t *testing.T) {
	r, _ := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		user := fmt.Sprintf("0x%040d", i+1)
		_, err := r.CompleteCampaign(ctx, user, id)
		require.NoError(t, err)
	}

	// The (maxParticipants+1)-th distinct user observes CampaignFull.
	_, err = r.CompleteCampaign(ctx, "0x0000000000000000000000000000000000000099", id)
	assert.ErrorIs(t, err, domain.ErrCampaignFull)

	campaign, err := r.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, campaign.MaxParticipants, campaign.ParticipantsCount)
}

func TestAccountingIdentity(t *testing.T) {
	r, _ := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)

	check := func() {
		campaign, err := r.GetCampaign(id)
		require.NoError(t, err)
		wantPaid := new(big.Int).Mul(
			new(big.Int).SetUint64(campaign.ParticipantsCount),
			campaign.RewardAmount,
		)
		assert.Zero(t, campaign.TotalPaid.Cmp(wantPaid), "totalPaid == participantsCount * rewardAmount")
		assert.LessOrEqual(t, campaign.TotalPaid.Cmp(campaign.TotalFunded), 0, "totalPaid <= totalFunded")
	}

	check()
	_, err = r.CompleteCampaign(ctx, user1, id)
	require.NoError(t, err)
	check()
	require.NoError(t, r.FundCampaign(ctx, creator, id, big.NewInt(50)))
	check()
	_, err = r.CompleteCampaign(ctx, user2, id)
	require.NoError(t, err)
	check()
}

func TestCompleteCampaign_CreatorExcluded(t *testing.T) {
	r, _ := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)

	_, err = r.CompleteCampaign(ctx, creator, id)
	assert.ErrorIs(t, err, domain.ErrCreatorCannotParticipate)

	// Still excluded when the campaign is paused and resumed.
	_, err = r.ToggleCampaignStatus(ctx, creator, id)
	require.NoError(t, err)
	_, err = r.ToggleCampaignStatus(ctx, creator, id)
	require.NoError(t, err)
	_, err = r.CompleteCampaign(ctx, creator, id)
	assert.ErrorIs(t, err, domain.ErrCreatorCannotParticipate)
}

func TestCompleteCampaign_ExpiryHardCutoff(t *testing.T) {
	r, clock := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)

	// Exactly at expiresAt is already too late, even with slots and escrow
	// to spare.
	clock.now = baseTime.Add(24 * time.Hour)
	_, err = r.CompleteCampaign(ctx, user1, id)
	assert.ErrorIs(t, err, domain.ErrCampaignExpired)

	clock.now = clock.now.Add(time.Second)
	_, err = r.CompleteCampaign(ctx, user1, id)
	assert.ErrorIs(t, err, domain.ErrCampaignExpired)
}

func TestCompleteCampaign_PreconditionOrder(t *testing.T) {
	r, _ := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	_, err := r.CompleteCampaign(ctx, user1, 42)
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)

	// Inactive wins over every later check, including creator exclusion.
	_, err = r.ToggleCampaignStatus(ctx, creator, id)
	require.NoError(t, err)
	_, err = r.CompleteCampaign(ctx, creator, id)
	assert.ErrorIs(t, err, domain.ErrCampaignInactive)
}

func TestCompleteCampaign_InsufficientFunding(t *testing.T) {
	r, _ := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	// Funded for a single 10-unit reward only.
	p := nativeParams(10)
	id, err := r.CreateCampaign(ctx, creator, p)
	require.NoError(t, err)

	_, err = r.CompleteCampaign(ctx, user1, id)
	require.NoError(t, err)

	_, err = r.CompleteCampaign(ctx, user2, id)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunding)

	// Topping up unblocks the next participant.
	require.NoError(t, r.FundCampaign(ctx, creator, id, big.NewInt(10)))
	_, err = r.CompleteCampaign(ctx, user2, id)
	require.NoError(t, err)
}

func TestTokenCampaign_RequiresSeparateFunding(t *testing.T) {
	r, _ := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	p := nativeParams(0)
	p.RewardToken = erc20
	p.InitialFunding = nil
	id, err := r.CreateCampaign(ctx, creator, p)
	require.NoError(t, err)

	campaign, err := r.GetCampaign(id)
	require.NoError(t, err)
	assert.Zero(t, campaign.TotalFunded.Sign())

	_, err = r.CompleteCampaign(ctx, user1, id)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunding)

	require.NoError(t, r.FundCampaign(ctx, creator, id, big.NewInt(30)))
	_, err = r.CompleteCampaign(ctx, user1, id)
	require.NoError(t, err)
}

func TestFundCampaign_Errors(t *testing.T) {
	r, _ := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	err := r.FundCampaign(ctx, creator, 7, big.NewInt(10))
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)

	err = r.FundCampaign(ctx, creator, id, big.NewInt(0))
	assert.ErrorIs(t, err, domain.ErrZeroFunding)
}

func TestToggleCampaignStatus_Authorization(t *testing.T) {
	r, _ := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)

	_, err = r.ToggleCampaignStatus(ctx, user1, id)
	assert.ErrorIs(t, err, domain.ErrNotCreator)

	active, err := r.ToggleCampaignStatus(ctx, creator, id)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = r.ToggleCampaignStatus(ctx, creator, id)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestWithdraw_FeeReservationAndIdempotence(t *testing.T) {
	bank := treasury.NewBank(zap.NewNop())
	bank.Deposit(creator, big.NewInt(100))
	clock := &testClock{now: baseTime}
	r := New(bank, zap.NewNop(), WithClock(clock.Now))
	ctx := context.Background()

	p := nativeParams(100)
	p.RewardAmount = big.NewInt(1)
	p.MaxParticipants = 100
	id, err := r.CreateCampaign(ctx, creator, p)
	require.NoError(t, err)

	for i := 0; i < 60; i++ {
		user := fmt.Sprintf("0x%040d", i+1)
		_, err := r.CompleteCampaign(ctx, user, id)
		require.NoError(t, err)
	}

	// Active and unexpired: withdrawal is locked until the creator pauses.
	_, err = r.WithdrawUnusedFunds(ctx, creator, id)
	assert.ErrorIs(t, err, domain.ErrWithdrawLocked)

	_, err = r.ToggleCampaignStatus(ctx, creator, id)
	require.NoError(t, err)

	// unused=40, remainingSpots=40, reservedFee=40*1*2.5%=1, withdrawable=39.
	got, err := r.WithdrawUnusedFunds(ctx, creator, id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(39), got)
	assert.Equal(t, big.NewInt(39), bank.Balance(creator))

	// Immediately repeating the call transfers zero.
	got, err = r.WithdrawUnusedFunds(ctx, creator, id)
	require.NoError(t, err)
	assert.Zero(t, got.Sign())
	assert.Equal(t, big.NewInt(39), bank.Balance(creator))

	// The reserved fee stays locked in escrow.
	assert.Equal(t, big.NewInt(1), bank.Escrowed())
}

func TestWithdraw_Authorization(t *testing.T) {
	r, clock := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)

	_, err = r.WithdrawUnusedFunds(ctx, user1, id)
	assert.ErrorIs(t, err, domain.ErrNotCreator)

	_, err = r.WithdrawUnusedFunds(ctx, creator, 42)
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)

	// Expiry unlocks withdrawal without a pause.
	clock.now = baseTime.Add(25 * time.Hour)
	_, err = r.WithdrawUnusedFunds(ctx, creator, id)
	require.NoError(t, err)
}

func TestCompleteCampaign_RollbackOnTransferFailure(t *testing.T) {
	transfer := &stubTransferer{}
	r, _ := newTestRegistry(transfer)
	ctx := context.Background()

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)

	before, err := r.GetCampaign(id)
	require.NoError(t, err)

	transfer.payoutErr = fmt.Errorf("token contract reverted")
	_, err = r.CompleteCampaign(ctx, user1, id)
	require.Error(t, err)
	assert.True(t, domain.IsTransferError(err))

	// State is byte-for-byte what it was before the call.
	after, err := r.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.False(t, r.HasParticipated(id, user1))
	assert.Zero(t, r.UserTotalEarnings(user1).Sign())
	assert.Empty(t, r.UserCompletedCampaigns(user1))

	// Clearing the fault lets the same user complete normally.
	transfer.payoutErr = nil
	_, err = r.CompleteCampaign(ctx, user1, id)
	require.NoError(t, err)
}

func TestWithdraw_RollbackOnTransferFailure(t *testing.T) {
	transfer := &stubTransferer{}
	r, _ := newTestRegistry(transfer)
	ctx := context.Background()

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)
	_, err = r.ToggleCampaignStatus(ctx, creator, id)
	require.NoError(t, err)

	before, err := r.GetCampaign(id)
	require.NoError(t, err)

	transfer.payoutErr = fmt.Errorf("native transfer failed")
	_, err = r.WithdrawUnusedFunds(ctx, creator, id)
	require.Error(t, err)
	assert.True(t, domain.IsTransferError(err))

	after, err := r.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGetCampaigns_Range(t *testing.T) {
	r, _ := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := r.CreateCampaign(ctx, creator, nativeParams(100))
		require.NoError(t, err)
	}

	page := r.GetCampaigns(2, 3)
	require.Len(t, page, 3)
	assert.Equal(t, uint64(2), page[0].ID)
	assert.Equal(t, uint64(4), page[2].ID)

	// Range past the counter truncates.
	page = r.GetCampaigns(5, 10)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(5), page[0].ID)

	assert.Empty(t, r.GetCampaigns(6, 10))
}

func TestRestore_RoundTrip(t *testing.T) {
	r, _ := newTestRegistry(&stubTransferer{})
	ctx := context.Background()

	id, err := r.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)
	_, err = r.CompleteCampaign(ctx, user1, id)
	require.NoError(t, err)

	campaign, err := r.GetCampaign(id)
	require.NoError(t, err)

	restored, _ := newTestRegistry(&stubTransferer{})
	restored.Restore(&State{
		Campaigns:      []*domain.Campaign{campaign},
		Participations: map[uint64][]string{id: {user1}},
		Completed:      map[string][]uint64{user1: {id}},
		Earnings:       map[string]*big.Int{user1: big.NewInt(10)},
		Counter:        1,
	})

	assert.Equal(t, uint64(1), restored.CampaignCounter())
	assert.True(t, restored.HasParticipated(id, user1))
	assert.Equal(t, big.NewInt(10), restored.UserTotalEarnings(user1))

	// A restored ledger keeps enforcing single participation and assigns
	// the next dense id.
	_, err = restored.CompleteCampaign(ctx, user1, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyParticipated)
	next, err := restored.CreateCampaign(ctx, creator, nativeParams(100))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next)
}
