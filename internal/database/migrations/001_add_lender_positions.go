package migrations

import (
	"github.com/ksred/nftlend-api/internal/types"
	"gorm.io/gorm"
)

// AddLenderPositions creates the pool and lender position tables.
func AddLenderPositions(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Pool{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&types.LenderPosition{}); err != nil {
		return err
	}

	return nil
}
