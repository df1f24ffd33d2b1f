package loans

import (
	"time"

	"github.com/ksred/nftlend-api/internal/types"
)

// BuyNFTRequest opens a loan: the borrower's down payment plus pool
// principal buys the NFT through a settlement manager, authorized by a
// signed oracle quote.
type BuyNFTRequest struct {
	PoolID            string       `json:"pool_id" binding:"required"`
	CollectionAddress string       `json:"collection_address" binding:"required"`
	TokenID           string       `json:"token_id" binding:"required"`
	NFTPrice          types.BigInt `json:"nft_price" binding:"required"`
	FloorPrice        types.BigInt `json:"floor_price"`
	PriceWithFees     types.BigInt `json:"price_with_fees"`
	DownPayment       types.BigInt `json:"down_payment" binding:"required"`
	DurationSeconds   int64        `json:"duration_seconds" binding:"required"`
	SettlementManager string       `json:"settlement_manager" binding:"required"`
	ExtraData         string       `json:"extra_data"`

	// Oracle authorization fields.
	ChainID         uint64 `json:"chain_id"`
	OracleNonce     uint64 `json:"oracle_nonce"`
	OracleTimestamp int64  `json:"oracle_timestamp" binding:"required"`
	OracleSignature string `json:"oracle_signature" binding:"required"`
}

// RefundRequest pays one installment. The amount must match the quote
// exactly; over and underpayment are both rejected.
type RefundRequest struct {
	Amount types.BigInt `json:"amount" binding:"required"`
}

// QuoteRequest prices a prospective loan against a pool's current rate.
type QuoteRequest struct {
	NFTPrice        types.BigInt `json:"nft_price" binding:"required"`
	DownPayment     types.BigInt `json:"down_payment" binding:"required"`
	DurationSeconds int64        `json:"duration_seconds" binding:"required"`
}

// RefundResponse reports the state of the loan after an installment.
type RefundResponse struct {
	LoanID                 string       `json:"loan_id"`
	AmountPaid             types.BigInt `json:"amount_paid"`
	AmountOwedWithInterest types.BigInt `json:"amount_owed_with_interest"`
	InstallmentsPaid       int          `json:"installments_paid"`
	Installments           int          `json:"installments"`
	NextPaymentDue         time.Time    `json:"next_payment_due,omitempty"`
	Status                 string       `json:"status"`
	CustodyHolder          string       `json:"custody_holder"`
}
