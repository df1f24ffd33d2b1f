package types

import "time"

// PoolResponse is the public view of a pool's vault and rate state.
type PoolResponse struct {
	PoolID               string    `json:"pool_id"`
	CollectionAddress    string    `json:"collection_address"`
	LoanToValueBps       uint64    `json:"loan_to_value_bps"`
	DailyInterestRateBps uint64    `json:"daily_interest_rate_bps"`
	MaxDailyRateBps      uint64    `json:"max_daily_rate_bps"`
	TotalShares          BigInt    `json:"total_shares"`
	TotalAssets          BigInt    `json:"total_assets"`
	IdleAssets           BigInt    `json:"idle_assets"`
	CommittedAssets      BigInt    `json:"committed_assets"`
	Timestamp            time.Time `json:"timestamp"`
}

// PositionResponse is a lender's view of their vault position.
type PositionResponse struct {
	PoolID               string    `json:"pool_id"`
	LenderAddress        string    `json:"lender_address"`
	Shares               BigInt    `json:"shares"`
	AssetValue           BigInt    `json:"asset_value"`
	MaxWithdrawAvailable BigInt    `json:"max_withdraw_available"`
	VestingUnlockTime    time.Time `json:"vesting_unlock_time"`
	Timestamp            time.Time `json:"timestamp"`
}

// LoanResponse is the public view of a loan record.
type LoanResponse struct {
	LoanID                 string    `json:"loan_id"`
	PoolID                 string    `json:"pool_id"`
	CollectionAddress      string    `json:"collection_address"`
	TokenID                string    `json:"token_id"`
	Borrower               string    `json:"borrower"`
	Principal              BigInt    `json:"principal"`
	DailyRateBps           uint64    `json:"daily_rate_bps"`
	AmountOwedWithInterest BigInt    `json:"amount_owed_with_interest"`
	InstallmentAmount      BigInt    `json:"installment_amount"`
	NextPaymentDue         time.Time `json:"next_payment_due"`
	Installments           int       `json:"installments"`
	InstallmentsPaid       int       `json:"installments_paid"`
	Status                 string    `json:"status"`
	CustodyHolder          string    `json:"custody_holder"`
	StartAt                time.Time `json:"start_at"`
	Expiry                 time.Time `json:"expiry"`
}

// LoanPriceResponse is the quote returned by calculateLoanPrice.
type LoanPriceResponse struct {
	Principal              BigInt `json:"principal"`
	DurationDays           int64  `json:"duration_days"`
	DailyRateBps           uint64 `json:"daily_rate_bps"`
	TotalRepaymentWithFees BigInt `json:"total_repayment_with_interest"`
	InterestPerPayment     BigInt `json:"interest_per_payment"`
	InstallmentAmount      BigInt `json:"installment_amount"`
	Installments           int    `json:"installments"`
}
