package pool

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

func (d *Database) GetPool(poolID string) (*types.Pool, error) {
	return findPool(d.db, poolID)
}

func (d *Database) GetPosition(poolID, lender string) (*types.LenderPosition, error) {
	return findPosition(d.db, poolID, lender)
}

func findPool(tx *gorm.DB, poolID string) (*types.Pool, error) {
	var p types.Pool
	if err := tx.Where("pool_id = ?", poolID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to fetch pool: %w", err)
	}
	return &p, nil
}

func findPoolByCollectionAndLTV(tx *gorm.DB, collection string, ltvBps uint64) (*types.Pool, error) {
	var p types.Pool
	err := tx.Where("collection_address = ? AND loan_to_value_bps = ?", collection, ltvBps).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to fetch pool: %w", err)
	}
	return &p, nil
}

func savePool(tx *gorm.DB, p *types.Pool) error {
	if err := tx.Save(p).Error; err != nil {
		return fmt.Errorf("failed to save pool: %w", err)
	}
	return nil
}

func findPosition(tx *gorm.DB, poolID, lender string) (*types.LenderPosition, error) {
	var pos types.LenderPosition
	err := tx.Where("pool_id = ? AND lender_address = ?", poolID, lender).First(&pos).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch lender position: %w", err)
	}
	return &pos, nil
}

// ensurePosition loads the lender's position or initialises an empty one.
// Position records persist after a full withdrawal so the vesting unlock
// time is retained.
func ensurePosition(tx *gorm.DB, poolID, lender string) (*types.LenderPosition, error) {
	pos, err := findPosition(tx, poolID, lender)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &types.LenderPosition{
			PoolID:        poolID,
			LenderAddress: lender,
		}
	}
	return pos, nil
}

func savePosition(tx *gorm.DB, pos *types.LenderPosition) error {
	if err := tx.Save(pos).Error; err != nil {
		return fmt.Errorf("failed to save lender position: %w", err)
	}
	return nil
}
