package liquidation

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ksred/nftlend-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Transaction runs fn inside a single all-or-nothing database transaction.
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.db.Transaction(fn)
}

func (d *Database) GetLiquidation(liquidationID string) (*types.Liquidation, error) {
	return findLiquidation(d.db, liquidationID)
}

// ListActive returns all auctions still open for bidding.
func (d *Database) ListActive() ([]types.Liquidation, error) {
	var out []types.Liquidation
	err := d.db.Where("status = ?", types.LiquidationStatusActive).Order("end_at ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list liquidations: %w", err)
	}
	return out, nil
}

func findLiquidation(tx *gorm.DB, liquidationID string) (*types.Liquidation, error) {
	var l types.Liquidation
	if err := tx.Where("liquidation_id = ?", liquidationID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrLiquidationNotFound
		}
		return nil, fmt.Errorf("failed to fetch liquidation: %w", err)
	}
	return &l, nil
}

func saveLiquidation(tx *gorm.DB, l *types.Liquidation) error {
	if err := tx.Save(l).Error; err != nil {
		return fmt.Errorf("failed to save liquidation: %w", err)
	}
	return nil
}
