package migrations

import (
	"github.com/ksred/nftlend-api/internal/types"
	"gorm.io/gorm"
)

// AddLiquidations creates the liquidation table and the indexes the keeper
// loop queries on.
func AddLiquidations(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Loan{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&types.Liquidation{}); err != nil {
		return err
	}

	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Keeper query: open loans past their payment deadline
		`CREATE INDEX IF NOT EXISTS idx_loans_status_due
		 ON loans(status, next_payment_due)`,

		// Keeper query: active auctions past their end time
		`CREATE INDEX IF NOT EXISTS idx_liquidations_status_end
		 ON liquidations(status, end_at)`,

		// Borrower loan history
		`CREATE INDEX IF NOT EXISTS idx_loans_borrower
		 ON loans(borrower)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
