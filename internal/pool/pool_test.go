package pool

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/nftlend-api/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Pool{}, &types.LenderPosition{}))
	t.Cleanup(func() {
		db.Exec("DELETE FROM lender_positions")
		db.Exec("DELETE FROM pools")
	})
	return db
}

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(newTestDB(t))
	svc.SetNowFunc(clock.Now)
	return svc, clock
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func createTestPool(t *testing.T, svc *Service, creator string, rateBps uint64) string {
	t.Helper()
	resp, err := svc.Create(CreatePoolRequest{
		CollectionAddress:    "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		LoanToValueBps:       3_500,
		MaxDailyRateBps:      100,
		FeeCollector:         "0xFee0000000000000000000000000000000000001",
		Creator:              creator,
		InitialDeposit:       types.NewBigInt(ether(100)),
		DailyInterestRateBps: rateBps,
	})
	require.NoError(t, err)
	return resp.PoolID
}

func TestCreatePool(t *testing.T) {
	svc, _ := newTestService(t)

	poolID := createTestPool(t, svc, "lender-1", 40)

	p, err := svc.GetPool(poolID)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), p.DailyInterestRateBps)
	assert.Equal(t, 0, p.TotalShares.Cmp(types.NewBigInt(ether(100))))
	assert.Equal(t, 0, p.IdleAssets.Cmp(types.NewBigInt(ether(100))))
	assert.True(t, p.CommittedAssets.IsZero())
}

func TestCreatePoolRejectsDuplicatePair(t *testing.T) {
	svc, _ := newTestService(t)

	createTestPool(t, svc, "lender-1", 40)

	_, err := svc.Create(CreatePoolRequest{
		CollectionAddress:    "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		LoanToValueBps:       3_500,
		MaxDailyRateBps:      100,
		FeeCollector:         "0xFee0000000000000000000000000000000000001",
		Creator:              "lender-2",
		InitialDeposit:       types.NewBigInt(ether(1)),
		DailyInterestRateBps: 10,
	})
	assert.ErrorIs(t, err, types.ErrPoolExists)
}

func TestCreatePoolRejectsDustDeposit(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(CreatePoolRequest{
		CollectionAddress:    "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		LoanToValueBps:       3_500,
		MaxDailyRateBps:      100,
		FeeCollector:         "0xFee0000000000000000000000000000000000001",
		Creator:              "lender-1",
		InitialDeposit:       types.BigIntFromInt64(1_000),
		DailyInterestRateBps: 10,
	})
	assert.ErrorIs(t, err, types.ErrInitialDepositTooLow)
}

func TestDepositAggregatesRateVotes(t *testing.T) {
	svc, _ := newTestService(t)
	poolID := createTestPool(t, svc, "lender-1", 40)

	// 100 ETH at 40 bps + 300 ETH at 80 bps = 70 bps weighted mean.
	resp, err := svc.Deposit(poolID, "lender-2", ether(300), 80)
	require.NoError(t, err)
	assert.Equal(t, uint64(70), resp.DailyInterestRateBps)
}

func TestDepositRejectsRateAboveMax(t *testing.T) {
	svc, _ := newTestService(t)
	poolID := createTestPool(t, svc, "lender-1", 40)

	_, err := svc.Deposit(poolID, "lender-2", ether(10), 101)
	assert.ErrorIs(t, err, types.ErrRateTooHigh)
}

func TestAggregateRateNeverExceedsMaxVote(t *testing.T) {
	svc, _ := newTestService(t)
	poolID := createTestPool(t, svc, "lender-1", 40)

	rates := []uint64{10, 95, 55, 100, 1}
	maxRate := uint64(40)
	for i, r := range rates {
		if r > maxRate {
			maxRate = r
		}
		_, err := svc.Deposit(poolID, "lender-2", ether(int64(7*(i+1))), r)
		require.NoError(t, err)
	}

	p, err := svc.GetPool(poolID)
	require.NoError(t, err)
	assert.LessOrEqual(t, p.DailyInterestRateBps, maxRate)
	assert.GreaterOrEqual(t, p.DailyInterestRateBps, uint64(1))
}

func TestVestingLockScalesWithRate(t *testing.T) {
	svc, clock := newTestService(t)

	// 50 bps locks for 50 * 12h = 25 days.
	poolID := createTestPool(t, svc, "lender-1", 50)

	_, err := svc.Withdraw(poolID, "lender-1", ether(10))
	assert.ErrorIs(t, err, types.ErrNotVested)

	clock.Advance(25*24*time.Hour - time.Second)
	_, err = svc.Withdraw(poolID, "lender-1", ether(10))
	assert.ErrorIs(t, err, types.ErrNotVested)

	clock.Advance(time.Second)
	resp, err := svc.Withdraw(poolID, "lender-1", ether(10))
	require.NoError(t, err)
	assert.Equal(t, 0, resp.AssetsReturned.Cmp(types.NewBigInt(ether(10))))
}

func TestVestingLockNeverShortens(t *testing.T) {
	svc, clock := newTestService(t)
	poolID := createTestPool(t, svc, "lender-1", 50)

	// A later deposit at a lower rate must not bring the unlock forward.
	clock.Advance(24 * time.Hour)
	resp, err := svc.Deposit(poolID, "lender-1", ether(5), 1)
	require.NoError(t, err)

	firstUnlock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Add(50 * 12 * time.Hour)
	assert.Equal(t, firstUnlock, resp.VestingUnlockTime)

	// A higher-rate deposit extends it.
	resp, err = svc.Deposit(poolID, "lender-1", ether(5), 60)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(60*12*time.Hour), resp.VestingUnlockTime)
}

func TestShareRoundTripNeverProfits(t *testing.T) {
	svc, clock := newTestService(t)
	poolID := createTestPool(t, svc, "lender-1", 10)

	// Uneven totals so the share price is not a clean ratio.
	require.NoError(t, svc.db.Transaction(func(tx *gorm.DB) error {
		p, err := findPool(tx, poolID)
		if err != nil {
			return err
		}
		p.IdleAssets = p.IdleAssets.Add(big.NewInt(333_333_333))
		return savePool(tx, p)
	}))

	for _, amount := range []*big.Int{big.NewInt(1), big.NewInt(999_999_937), ether(3)} {
		shares, err := svc.PreviewDeposit(poolID, amount)
		require.NoError(t, err)
		assets, err := svc.PreviewRedeem(poolID, shares)
		require.NoError(t, err)
		assert.LessOrEqual(t, assets.Cmp(amount), 0,
			"deposit of %s must not round-trip to more assets", amount)
	}

	clock.Advance(10 * 12 * time.Hour)
	_, err := svc.Withdraw(poolID, "lender-1", ether(1))
	require.NoError(t, err)
}

func TestWithdrawCappedByIdleLiquidity(t *testing.T) {
	svc, clock := newTestService(t)
	poolID := createTestPool(t, svc, "lender-1", 10)
	clock.Advance(10 * 12 * time.Hour)

	// Lend out 80 of the 100 ETH.
	require.NoError(t, svc.db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.ReservePrincipal(tx, poolID, ether(80), ether(85))
		return err
	}))

	_, err := svc.Withdraw(poolID, "lender-1", ether(30))
	assert.ErrorIs(t, err, types.ErrInsufficientLiquidity)

	max, err := svc.MaxWithdrawAvailable(poolID, "lender-1")
	require.NoError(t, err)
	assert.Equal(t, 0, max.Cmp(ether(20)))

	_, err = svc.Withdraw(poolID, "lender-1", ether(20))
	require.NoError(t, err)
}

func TestReservePrincipalRequiresLiquidity(t *testing.T) {
	svc, _ := newTestService(t)
	poolID := createTestPool(t, svc, "lender-1", 10)

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.ReservePrincipal(tx, poolID, ether(101), ether(110))
		return err
	})
	assert.ErrorIs(t, err, types.ErrInsufficientLiquidity)
}

func TestWithdrawRemovesRateContribution(t *testing.T) {
	svc, clock := newTestService(t)
	poolID := createTestPool(t, svc, "lender-1", 40)

	_, err := svc.Deposit(poolID, "lender-2", ether(100), 80)
	require.NoError(t, err)

	p, err := svc.GetPool(poolID)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), p.DailyInterestRateBps)

	// Fully exit lender-2: the aggregate returns to lender-1's vote.
	clock.Advance(80 * 12 * time.Hour)
	pos, err := svc.GetPosition(poolID, "lender-2")
	require.NoError(t, err)
	_, err = svc.Redeem(poolID, "lender-2", pos.Shares.Int())
	require.NoError(t, err)

	p, err = svc.GetPool(poolID)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), p.DailyInterestRateBps)
}

func TestRedeemRejectsUnknownLender(t *testing.T) {
	svc, _ := newTestService(t)
	poolID := createTestPool(t, svc, "lender-1", 10)

	_, err := svc.Redeem(poolID, "stranger", ether(1))
	assert.ErrorIs(t, err, types.ErrInsufficientShares)
}

func TestCreditRepaymentMintsFeeShares(t *testing.T) {
	svc, _ := newTestService(t)
	poolID := createTestPool(t, svc, "lender-1", 10)

	require.NoError(t, svc.db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.ReservePrincipal(tx, poolID, ether(50), ether(55)); err != nil {
			return err
		}
		// 11 ETH installment of which 1 ETH is interest: 15% fee share.
		return svc.CreditRepayment(tx, poolID, ether(11), ether(1))
	}))

	collector, err := svc.GetPosition(poolID, "0xFee0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, 1, collector.Shares.Sign())

	// Fee shares dilute, so the collector's claim stays close to 0.15 ETH.
	feeValue := collector.AssetValue.Int()
	assert.True(t, feeValue.Cmp(new(big.Int).Div(ether(15), big.NewInt(101))) > 0)
	assert.True(t, feeValue.Cmp(new(big.Int).Div(ether(15), big.NewInt(100))) <= 0)
}

func TestLiquidationOutcomeShiftsSharePrice(t *testing.T) {
	svc, _ := newTestService(t)
	poolID := createTestPool(t, svc, "lender-1", 10)

	priceBefore, err := svc.PreviewRedeem(poolID, ether(1))
	require.NoError(t, err)

	// Auction recovered less than owed: share price must drop.
	require.NoError(t, svc.db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.ReservePrincipal(tx, poolID, ether(50), ether(55)); err != nil {
			return err
		}
		return svc.ApplyLiquidationOutcome(tx, poolID, ether(30), ether(55))
	}))

	priceAfter, err := svc.PreviewRedeem(poolID, ether(1))
	require.NoError(t, err)
	assert.Equal(t, -1, priceAfter.Cmp(priceBefore))
}
