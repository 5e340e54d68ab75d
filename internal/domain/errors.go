package domain

import "errors"

// Each rejected operation maps to a distinct, named condition so clients can
// render a precise message instead of a generic failure. Every rejection
// leaves ledger state unchanged.
var (
	// Creation validation errors.
	ErrEmptyMetadataURI    = errors.New("metadata URI must not be empty")
	ErrInvalidCampaignType = errors.New("invalid campaign type")
	ErrZeroReward          = errors.New("reward amount must be greater than zero")
	ErrZeroParticipants    = errors.New("max participants must be greater than zero")
	ErrExpiryNotFuture     = errors.New("expiry must be strictly in the future")
	ErrTokenInitialFunding = errors.New("token campaigns are funded through a separate funding call")

	// State precondition errors.
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrCampaignInactive         = errors.New("campaign is not active")
	ErrCampaignExpired          = errors.New("campaign has expired")
	ErrCampaignFull             = errors.New("campaign is full")
	ErrCreatorCannotParticipate = errors.New("creator cannot participate in own campaign")
	ErrAlreadyParticipated      = errors.New("user has already participated in this campaign")
	ErrInsufficientFunding      = errors.New("insufficient remaining escrow for reward")
	ErrWithdrawLocked           = errors.New("withdrawal requires the campaign to be paused or expired")
	ErrZeroFunding              = errors.New("funding amount must be greater than zero")

	// Authorization errors.
	ErrNotCreator = errors.New("only the campaign creator may perform this operation")
)

// TransferError wraps the underlying transfer failure; the operation that
// triggered the transfer is rolled back in full.
type TransferError struct {
	Err error
}

func (e *TransferError) Error() string {
	return "value transfer failed: " + e.Err.Error()
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// IsTransferError reports whether err is (or wraps) a transfer failure.
func IsTransferError(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}
