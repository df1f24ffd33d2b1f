package types

import (
	"time"

	"gorm.io/gorm"
)

// Loan states. A closed loan never transitions again.
const (
	LoanStatusOpen             = "OPEN"
	LoanStatusPartiallyRepaid  = "PARTIALLY_REPAID"
	LoanStatusInLiquidation    = "IN_LIQUIDATION"
	LoanStatusClosedRepaid     = "CLOSED_REPAID"
	LoanStatusClosedLiquidated = "CLOSED_LIQUIDATED"
)

// Custody holders for the collateral receipt.
const (
	CustodyPool       = "POOL"
	CustodyLiquidator = "LIQUIDATOR"
	CustodyBorrower   = "BORROWER"
	CustodyBuyer      = "AUCTION_BUYER"
)

type Pool struct {
	gorm.Model        `json:"-"`
	PoolID            string `gorm:"uniqueIndex" json:"pool_id"`
	CollectionAddress string `gorm:"uniqueIndex:idx_pools_collection_ltv" json:"collection_address"`
	LoanToValueBps    uint64 `gorm:"uniqueIndex:idx_pools_collection_ltv" json:"loan_to_value_bps"`
	MaxDailyRateBps   uint64 `json:"max_daily_rate_bps"`
	ProtocolFeeBps    uint64 `json:"protocol_fee_bps"`
	FeeCollector      string `json:"fee_collector"`

	// Aggregate vote state: DailyInterestRateBps is always
	// floor(TotalRateWeight / TotalPrincipalDeposited).
	DailyInterestRateBps    uint64 `json:"daily_interest_rate_bps"`
	TotalRateWeight         BigInt `json:"total_rate_weight"`
	TotalPrincipalDeposited BigInt `json:"total_principal_deposited"`

	// Vault accounting. totalAssets = IdleAssets + CommittedAssets where
	// CommittedAssets is the sum of open loans' amount owed with interest.
	TotalShares     BigInt    `json:"total_shares"`
	IdleAssets      BigInt    `json:"idle_assets"`
	CommittedAssets BigInt    `json:"committed_assets"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type LenderPosition struct {
	gorm.Model    `json:"-"`
	PoolID        string `gorm:"uniqueIndex:idx_positions_pool_lender" json:"pool_id"`
	LenderAddress string `gorm:"uniqueIndex:idx_positions_pool_lender" json:"lender_address"`
	Shares        BigInt `json:"shares"`

	// Rate-vote bookkeeping: the lender's own weighted contribution to the
	// pool aggregate, removed proportionally on withdrawal.
	PrincipalDeposited BigInt `json:"principal_deposited"`
	RateWeight         BigInt `json:"rate_weight"`

	// VestingUnlockTime is monotonically non-decreasing per lender.
	VestingUnlockTime time.Time `json:"vesting_unlock_time"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Loan struct {
	gorm.Model        `json:"-"`
	LoanID            string `gorm:"uniqueIndex" json:"loan_id"`
	PoolID            string `gorm:"index:idx_loans_pool_token" json:"pool_id"`
	CollectionAddress string `json:"collection_address"`
	TokenID           string `gorm:"index:idx_loans_pool_token" json:"token_id"`
	Borrower          string `json:"borrower"`

	Principal    BigInt `json:"principal"`
	DownPayment  BigInt `json:"down_payment"`
	NFTPrice     BigInt `json:"nft_price"`
	DailyRateBps uint64 `json:"daily_rate_bps"` // locked at origination

	StartAt         time.Time `json:"start_at"`
	DurationSeconds int64     `json:"duration_seconds"`

	AmountOwedWithInterest BigInt    `json:"amount_owed_with_interest"`
	TotalInterest          BigInt    `json:"total_interest"`
	InstallmentAmount      BigInt    `json:"installment_amount"`
	InterestPerPayment     BigInt    `json:"interest_per_payment"`
	NextPaymentDue         time.Time `json:"next_payment_due"`
	Installments           int       `json:"installments"`
	InstallmentsPaid       int       `json:"installments_paid"`

	Status        string    `json:"status"`
	CustodyHolder string    `json:"custody_holder"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsClosed reports whether the loan is in a terminal state.
func (l *Loan) IsClosed() bool {
	return l.Status == LoanStatusClosedRepaid || l.Status == LoanStatusClosedLiquidated
}

// Expiry is the absolute deadline after which no further refund is accepted.
func (l *Loan) Expiry() time.Time {
	return l.StartAt.Add(time.Duration(l.DurationSeconds) * time.Second)
}

// Liquidation states.
const (
	LiquidationStatusActive  = "ACTIVE"
	LiquidationStatusSold    = "SOLD"
	LiquidationStatusExpired = "EXPIRED"
)

// Liquidation is a Dutch auction over a defaulted loan's collateral. The
// price decays linearly from the full amount owed to zero over the auction
// window.
type Liquidation struct {
	gorm.Model        `json:"-"`
	LiquidationID     string `gorm:"uniqueIndex" json:"liquidation_id"`
	LoanID            string `gorm:"uniqueIndex" json:"loan_id"`
	PoolID            string `json:"pool_id"`
	CollectionAddress string `json:"collection_address"`
	TokenID           string `json:"token_id"`
	Borrower          string `json:"borrower"`

	StartingPrice BigInt    `json:"starting_price"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `gorm:"index" json:"end_at"`

	Status    string    `gorm:"index" json:"status"`
	Buyer     string    `json:"buyer,omitempty"`
	SalePrice BigInt    `json:"sale_price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OracleNonce records a consumed loan-authorization nonce per borrower so a
// signed quote cannot be replayed.
type OracleNonce struct {
	gorm.Model `json:"-"`
	Borrower   string `gorm:"uniqueIndex:idx_oracle_nonces_borrower_nonce" json:"borrower"`
	Nonce      uint64 `gorm:"uniqueIndex:idx_oracle_nonces_borrower_nonce" json:"nonce"`
}
