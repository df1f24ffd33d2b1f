package loans

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/nftlend-api/internal/oracle"
	"github.com/ksred/nftlend-api/internal/pool"
	"github.com/ksred/nftlend-api/internal/settlement"
	"github.com/ksred/nftlend-api/internal/types"
)

const (
	testCollection = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	testSeaport    = "0x00000000000000ADc04C56Bf30aC9d3c0aAF14dC"
	testBorrower   = "0x1111111111111111111111111111111111111111"
	testOrderData  = "0xdeadbeef"
)

type loanFixture struct {
	svc     *Service
	pools   *pool.Service
	seaport *settlement.SeaportManager
	clock   *fakeClock
	signer  *ecdsa.PrivateKey
	poolID  string
	nonce   uint64
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeLiquidator struct {
	started []string
	prices  []*big.Int
}

func (f *fakeLiquidator) Start(tx *gorm.DB, loan *types.Loan, startingPrice *big.Int) error {
	f.started = append(f.started, loan.LoanID)
	f.prices = append(f.prices, new(big.Int).Set(startingPrice))
	return nil
}

func newLoanFixture(t *testing.T) *loanFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Pool{}, &types.LenderPosition{}, &types.Loan{}, &types.OracleNonce{}))
	t.Cleanup(func() {
		db.Exec("DELETE FROM oracle_nonces")
		db.Exec("DELETE FROM loans")
		db.Exec("DELETE FROM lender_positions")
		db.Exec("DELETE FROM pools")
	})

	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	pools := pool.NewService(db)
	pools.SetNowFunc(clock.Now)

	verifier := oracle.NewVerifier(crypto.PubkeyToAddress(key.PublicKey))
	verifier.SetNowFunc(clock.Now)

	seaport := settlement.NewSeaportManager(testSeaport)
	svc := NewService(db, pools, verifier, settlement.NewRegistry(seaport))
	svc.SetNowFunc(clock.Now)

	created, err := pools.Create(pool.CreatePoolRequest{
		CollectionAddress:    testCollection,
		LoanToValueBps:       3_500,
		MaxDailyRateBps:      100,
		FeeCollector:         "0xFee0000000000000000000000000000000000001",
		Creator:              "lender-1",
		InitialDeposit:       types.NewBigInt(ether(100)),
		DailyInterestRateBps: 50,
	})
	require.NoError(t, err)

	return &loanFixture{
		svc:     svc,
		pools:   pools,
		seaport: seaport,
		clock:   clock,
		signer:  key,
		poolID:  created.PoolID,
	}
}

// signedBuyRequest builds an origination request with a fresh valid oracle
// signature for the given price and down payment.
func (f *loanFixture) signedBuyRequest(t *testing.T, tokenID string, nftPrice, downPayment *big.Int, durationSeconds int64) BuyNFTRequest {
	t.Helper()
	f.nonce++
	token, ok := new(big.Int).SetString(tokenID, 10)
	require.True(t, ok)

	terms := oracle.LoanTerms{
		ChainID:       1,
		Collection:    common.HexToAddress(testCollection),
		TokenID:       token,
		Price:         nftPrice,
		FloorPrice:    nftPrice,
		PriceWithFees: nftPrice,
		Borrower:      common.HexToAddress(testBorrower),
		Nonce:         f.nonce,
		Timestamp:     f.clock.Now(),
		ExtraData:     hexutil.MustDecode(testOrderData),
	}
	sig, err := crypto.Sign(terms.Digest(), f.signer)
	require.NoError(t, err)

	return BuyNFTRequest{
		PoolID:            f.poolID,
		CollectionAddress: testCollection,
		TokenID:           tokenID,
		NFTPrice:          types.NewBigInt(nftPrice),
		FloorPrice:        types.NewBigInt(nftPrice),
		PriceWithFees:     types.NewBigInt(nftPrice),
		DownPayment:       types.NewBigInt(downPayment),
		DurationSeconds:   durationSeconds,
		SettlementManager: testSeaport,
		ExtraData:         testOrderData,
		ChainID:           1,
		OracleNonce:       f.nonce,
		OracleTimestamp:   f.clock.Now().Unix(),
		OracleSignature:   hexutil.Encode(sig),
	}
}

func TestBuyNFTOriginatesLoan(t *testing.T) {
	f := newLoanFixture(t)

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	loan, err := f.svc.BuyNFT(testBorrower, req)
	require.NoError(t, err)

	assert.Equal(t, types.LoanStatusOpen, loan.Status)
	assert.Equal(t, types.CustodyPool, loan.CustodyHolder)
	assert.Equal(t, 2, loan.Installments)
	assert.Equal(t, 0, loan.Principal.CmpInt(ether(6)))

	expectedOwed, _ := new(big.Int).SetString("7935000000000000000", 10)
	assert.Equal(t, 0, loan.AmountOwedWithInterest.CmpInt(expectedOwed))
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), loan.NextPaymentDue)

	// The marketplace received the full NFT price.
	spent, ok := f.seaport.Purchased(testCollection, "42")
	require.True(t, ok)
	assert.Equal(t, 0, spent.Cmp(ether(10)))

	// Principal left idle liquidity and the full owed amount is committed.
	p, err := f.pools.GetPool(f.poolID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.IdleAssets.CmpInt(ether(94)))
	assert.Equal(t, 0, p.CommittedAssets.CmpInt(expectedOwed))
}

func TestBuyNFTRejectsInsufficientDownPayment(t *testing.T) {
	f := newLoanFixture(t)

	req := f.signedBuyRequest(t, "42", ether(10), ether(3), 60*86_400)
	_, err := f.svc.BuyNFT(testBorrower, req)
	assert.ErrorIs(t, err, types.ErrLTVNotRespected)
}

func TestBuyNFTRejectsWrongOracleSigner(t *testing.T) {
	f := newLoanFixture(t)

	rogue, err := crypto.GenerateKey()
	require.NoError(t, err)
	f.signer = rogue

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	_, err = f.svc.BuyNFT(testBorrower, req)
	assert.ErrorIs(t, err, types.ErrOracleSignature)
}

func TestBuyNFTRejectsReplayedNonce(t *testing.T) {
	f := newLoanFixture(t)

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	_, err := f.svc.BuyNFT(testBorrower, req)
	require.NoError(t, err)

	// A fresh quote for another token reusing the consumed nonce.
	f.nonce--
	replay := f.signedBuyRequest(t, "43", ether(10), ether(4), 60*86_400)
	_, err = f.svc.BuyNFT(testBorrower, replay)
	assert.ErrorIs(t, err, types.ErrOracleNonceUsed)
}

func TestBuyNFTRejectsSecondLoanOnSameToken(t *testing.T) {
	f := newLoanFixture(t)

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	_, err := f.svc.BuyNFT(testBorrower, req)
	require.NoError(t, err)

	// Fresh nonce and signature, same collateral token.
	req = f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	_, err = f.svc.BuyNFT(testBorrower, req)
	assert.ErrorIs(t, err, types.ErrLoanAlreadyOpen)
}

func TestBuyNFTRejectsExpiredOracleQuote(t *testing.T) {
	f := newLoanFixture(t)

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	f.clock.Advance(oracle.SignatureMaxAge + time.Second)

	_, err := f.svc.BuyNFT(testBorrower, req)
	assert.ErrorIs(t, err, types.ErrOracleExpired)
}

func TestBuyNFTRollsBackOnSettlementFailure(t *testing.T) {
	f := newLoanFixture(t)
	f.seaport.FailNext()

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	_, err := f.svc.BuyNFT(testBorrower, req)
	assert.ErrorIs(t, err, types.ErrSettlementFailed)

	// Nothing landed: liquidity intact, no loan, nonce still fresh.
	p, err := f.pools.GetPool(f.poolID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.IdleAssets.CmpInt(ether(100)))
	assert.True(t, p.CommittedAssets.IsZero())

	loans, err := f.svc.ListByBorrower(testBorrower)
	require.NoError(t, err)
	assert.Empty(t, loans)

	// The same signed quote works on retry.
	_, err = f.svc.BuyNFT(testBorrower, req)
	require.NoError(t, err)
}

func TestBuyNFTRejectsUnknownSettlementManager(t *testing.T) {
	f := newLoanFixture(t)

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	req.SettlementManager = "0x2222222222222222222222222222222222222222"
	_, err := f.svc.BuyNFT(testBorrower, req)
	assert.ErrorIs(t, err, types.ErrUnsupportedManager)
}

func TestRefundFullLifecycle(t *testing.T) {
	f := newLoanFixture(t)

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	loan, err := f.svc.BuyNFT(testBorrower, req)
	require.NoError(t, err)

	installment := loan.InstallmentAmount.Int()

	// Underpayment by one wei is rejected.
	under := new(big.Int).Sub(installment, big.NewInt(1))
	_, err = f.svc.Refund(loan.LoanID, testBorrower, under)
	assert.ErrorIs(t, err, types.ErrIncorrectPayment)

	f.clock.Advance(29 * 24 * time.Hour)
	resp, err := f.svc.Refund(loan.LoanID, testBorrower, installment)
	require.NoError(t, err)
	assert.Equal(t, types.LoanStatusPartiallyRepaid, resp.Status)
	assert.Equal(t, 1, resp.InstallmentsPaid)

	// The final installment settles the exact remaining balance.
	f.clock.Advance(29 * 24 * time.Hour)
	final := resp.AmountOwedWithInterest.Int()
	resp, err = f.svc.Refund(loan.LoanID, testBorrower, final)
	require.NoError(t, err)
	assert.Equal(t, types.LoanStatusClosedRepaid, resp.Status)
	assert.Equal(t, types.CustodyBorrower, resp.CustodyHolder)
	assert.True(t, resp.AmountOwedWithInterest.IsZero())

	// Pool made the full interest, minus the 15% protocol fee dilution.
	p, err := f.pools.GetPool(f.poolID)
	require.NoError(t, err)
	expectedIdle, _ := new(big.Int).SetString("101935000000000000000", 10)
	assert.Equal(t, 0, p.IdleAssets.CmpInt(expectedIdle))
	assert.True(t, p.CommittedAssets.IsZero())

	// A closed loan takes no further payments.
	_, err = f.svc.Refund(loan.LoanID, testBorrower, final)
	assert.ErrorIs(t, err, types.ErrLoanClosed)
}

func TestRefundRejectsAfterExpiry(t *testing.T) {
	f := newLoanFixture(t)

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 30*86_400)
	loan, err := f.svc.BuyNFT(testBorrower, req)
	require.NoError(t, err)

	f.clock.Advance(30*24*time.Hour + time.Second)
	_, err = f.svc.Refund(loan.LoanID, testBorrower, loan.InstallmentAmount.Int())
	assert.ErrorIs(t, err, types.ErrLoanExpired)
}

func TestLiquidateRequiresLatePayment(t *testing.T) {
	f := newLoanFixture(t)
	liq := &fakeLiquidator{}
	f.svc.SetLiquidator(liq)

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	loan, err := f.svc.BuyNFT(testBorrower, req)
	require.NoError(t, err)

	_, err = f.svc.Liquidate(loan.LoanID)
	assert.ErrorIs(t, err, types.ErrPaymentNotLate)
	assert.Empty(t, liq.started)

	f.clock.Advance(30*24*time.Hour + time.Second)
	resp, err := f.svc.Liquidate(loan.LoanID)
	require.NoError(t, err)
	assert.Equal(t, types.LoanStatusInLiquidation, resp.Status)
	assert.Equal(t, types.CustodyLiquidator, resp.CustodyHolder)
	require.Len(t, liq.started, 1)
	assert.Equal(t, 0, liq.prices[0].Cmp(loan.AmountOwedWithInterest.Int()))

	// No payments and no second trigger once in liquidation.
	_, err = f.svc.Refund(loan.LoanID, testBorrower, loan.InstallmentAmount.Int())
	assert.ErrorIs(t, err, types.ErrLoanInLiquidation)
	_, err = f.svc.Liquidate(loan.LoanID)
	assert.ErrorIs(t, err, types.ErrLoanInLiquidation)
}

func TestSettleLiquidationClosesLoan(t *testing.T) {
	f := newLoanFixture(t)
	f.svc.SetLiquidator(&fakeLiquidator{})

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	loan, err := f.svc.BuyNFT(testBorrower, req)
	require.NoError(t, err)

	f.clock.Advance(30*24*time.Hour + time.Second)
	_, err = f.svc.Liquidate(loan.LoanID)
	require.NoError(t, err)

	err = f.svc.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.SettleLiquidation(tx, loan.LoanID, types.CustodyBuyer, ether(5))
	})
	require.NoError(t, err)

	settled, err := f.svc.GetLoan(loan.LoanID)
	require.NoError(t, err)
	assert.Equal(t, types.LoanStatusClosedLiquidated, settled.Status)
	assert.Equal(t, types.CustodyBuyer, settled.CustodyHolder)
	assert.True(t, settled.AmountOwedWithInterest.IsZero())

	// Shortfall came out of the vault: 100 - 6 principal + 5 proceeds.
	p, err := f.pools.GetPool(f.poolID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.IdleAssets.CmpInt(ether(99)))
	assert.True(t, p.CommittedAssets.IsZero())

	// Settling twice is rejected.
	err = f.svc.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.SettleLiquidation(tx, loan.LoanID, types.CustodyBuyer, ether(5))
	})
	assert.ErrorIs(t, err, types.ErrLoanClosed)
}

func TestQuoteMatchesOrigination(t *testing.T) {
	f := newLoanFixture(t)

	quote, err := f.svc.Quote(f.poolID, QuoteRequest{
		NFTPrice:        types.NewBigInt(ether(10)),
		DownPayment:     types.NewBigInt(ether(4)),
		DurationSeconds: 60 * 86_400,
	})
	require.NoError(t, err)

	req := f.signedBuyRequest(t, "42", ether(10), ether(4), 60*86_400)
	loan, err := f.svc.BuyNFT(testBorrower, req)
	require.NoError(t, err)

	assert.Equal(t, 0, quote.TotalRepaymentWithFees.Cmp(loan.AmountOwedWithInterest))
	assert.Equal(t, 0, quote.InstallmentAmount.Cmp(loan.InstallmentAmount))
	assert.Equal(t, quote.Installments, loan.Installments)
}
