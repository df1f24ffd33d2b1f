package pool

import (
	"time"

	"github.com/ksred/nftlend-api/internal/types"
)

// CreatePoolRequest carries the creation parameters the registry supplies.
type CreatePoolRequest struct {
	CollectionAddress    string       `json:"collection_address" binding:"required"`
	LoanToValueBps       uint64       `json:"loan_to_value_bps" binding:"required"`
	MaxDailyRateBps      uint64       `json:"max_daily_rate_bps" binding:"required"`
	ProtocolFeeBps       uint64       `json:"protocol_fee_bps"`
	FeeCollector         string       `json:"fee_collector" binding:"required"`
	Creator              string       `json:"creator" binding:"required"`
	InitialDeposit       types.BigInt `json:"initial_deposit"`
	DailyInterestRateBps uint64       `json:"daily_interest_rate_bps"`
}

// DepositRequest is the body of depositAndVote.
type DepositRequest struct {
	OnBehalfOf           string       `json:"on_behalf_of"`
	Amount               types.BigInt `json:"amount" binding:"required"`
	DailyInterestRateBps uint64       `json:"daily_interest_rate_bps"`
}

type WithdrawRequest struct {
	Assets types.BigInt `json:"assets" binding:"required"`
}

type RedeemRequest struct {
	Shares types.BigInt `json:"shares" binding:"required"`
}

// DepositResponse reports the outcome of a deposit.
type DepositResponse struct {
	PoolID               string       `json:"pool_id"`
	LenderAddress        string       `json:"lender_address"`
	SharesMinted         types.BigInt `json:"shares_minted"`
	TotalShares          types.BigInt `json:"total_shares"`
	DailyInterestRateBps uint64       `json:"daily_interest_rate_bps"`
	VestingUnlockTime    time.Time    `json:"vesting_unlock_time"`
	Timestamp            time.Time    `json:"timestamp"`
}

// WithdrawResponse reports the outcome of a withdraw or redeem.
type WithdrawResponse struct {
	PoolID               string       `json:"pool_id"`
	LenderAddress        string       `json:"lender_address"`
	SharesBurned         types.BigInt `json:"shares_burned"`
	AssetsReturned       types.BigInt `json:"assets_returned"`
	RemainingShares      types.BigInt `json:"remaining_shares"`
	DailyInterestRateBps uint64       `json:"daily_interest_rate_bps"`
	Timestamp            time.Time    `json:"timestamp"`
}
