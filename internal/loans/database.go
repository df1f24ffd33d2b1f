package loans

import (
	"errors"
	"fmt"
	"time"

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

func (d *Database) GetLoan(loanID string) (*types.Loan, error) {
	return findLoan(d.db, loanID)
}

func (d *Database) GetPool(poolID string) (*types.Pool, error) {
	return findPool(d.db, poolID)
}

// ListLoansByBorrower returns the borrower's loans, newest first.
func (d *Database) ListLoansByBorrower(borrower string) ([]types.Loan, error) {
	var loans []types.Loan
	err := d.db.Where("borrower = ?", borrower).Order("created_at DESC").Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

// ListLateLoans returns open loans whose next payment deadline has passed.
func (d *Database) ListLateLoans(cutoff time.Time) ([]types.Loan, error) {
	var loans []types.Loan
	err := d.db.
		Where("status IN ?", []string{types.LoanStatusOpen, types.LoanStatusPartiallyRepaid}).
		Where("next_payment_due < ?", cutoff).
		Find(&loans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list late loans: %w", err)
	}
	return loans, nil
}

func findLoan(tx *gorm.DB, loanID string) (*types.Loan, error) {
	var l types.Loan
	if err := tx.Where("loan_id = ?", loanID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to fetch loan: %w", err)
	}
	return &l, nil
}

// findOpenLoanByToken enforces loan uniqueness per collateral token.
func findOpenLoanByToken(tx *gorm.DB, poolID, tokenID string) (*types.Loan, error) {
	var l types.Loan
	err := tx.
		Where("pool_id = ? AND token_id = ?", poolID, tokenID).
		Where("status NOT IN ?", []string{types.LoanStatusClosedRepaid, types.LoanStatusClosedLiquidated}).
		First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch loan by token: %w", err)
	}
	return &l, nil
}

func saveLoan(tx *gorm.DB, l *types.Loan) error {
	if err := tx.Save(l).Error; err != nil {
		return fmt.Errorf("failed to save loan: %w", err)
	}
	return nil
}

// findPool duplicates the pool read so loan transactions do not depend on
// the pool package's internals.
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

// consumeNonce marks an oracle nonce as used for the borrower. A nonce may
// be consumed exactly once.
func consumeNonce(tx *gorm.DB, borrower string, nonce uint64) error {
	var count int64
	err := tx.Model(&types.OracleNonce{}).
		Where("borrower = ? AND nonce = ?", borrower, nonce).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check oracle nonce: %w", err)
	}
	if count > 0 {
		return types.ErrOracleNonceUsed
	}
	record := &types.OracleNonce{Borrower: borrower, Nonce: nonce}
	if err := tx.Create(record).Error; err != nil {
		return fmt.Errorf("failed to record oracle nonce: %w", err)
	}
	return nil
}
