package liquidation

import (
	"time"

	"github.com/ksred/nftlend-api/internal/types"
)

// BuyRequest bids on an active auction. The payment must meet the current
// price; anything above it is accepted and goes to the pool.
type BuyRequest struct {
	Payment types.BigInt `json:"payment" binding:"required"`
}

type BuyResponse struct {
	LiquidationID string       `json:"liquidation_id"`
	LoanID        string       `json:"loan_id"`
	TokenID       string       `json:"token_id"`
	Buyer         string       `json:"buyer"`
	SalePrice     types.BigInt `json:"sale_price"`
	Status        string       `json:"status"`
}

// LiquidationResponse is the public auction view with the live price.
type LiquidationResponse struct {
	LiquidationID     string       `json:"liquidation_id"`
	LoanID            string       `json:"loan_id"`
	PoolID            string       `json:"pool_id"`
	CollectionAddress string       `json:"collection_address"`
	TokenID           string       `json:"token_id"`
	StartingPrice     types.BigInt `json:"starting_price"`
	CurrentPrice      types.BigInt `json:"current_price"`
	StartAt           time.Time    `json:"start_at"`
	EndAt             time.Time    `json:"end_at"`
	Status            string       `json:"status"`
	Buyer             string       `json:"buyer,omitempty"`
	SalePrice         types.BigInt `json:"sale_price"`
}
