package loans

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/nftlend-api/internal/types"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func TestCalculateLoanPriceDurationBounds(t *testing.T) {
	_, err := CalculateLoanPrice(ether(1), 23*time.Hour, 50)
	assert.ErrorIs(t, err, types.ErrLoanDurationTooShort)

	_, err = CalculateLoanPrice(ether(1), 91*24*time.Hour, 50)
	assert.ErrorIs(t, err, types.ErrLoanDurationTooLong)

	_, err = CalculateLoanPrice(big.NewInt(0), 30*24*time.Hour, 50)
	assert.ErrorIs(t, err, types.ErrInvalidAmount)
}

func TestCalculateLoanPriceSingleInstallment(t *testing.T) {
	// 6 ETH for 30 days at 50 bps/day: one installment of 6.9 ETH.
	price, err := CalculateLoanPrice(ether(6), 30*24*time.Hour, 50)
	require.NoError(t, err)

	assert.Equal(t, 1, price.Installments)
	expectedInterest := new(big.Int).Mul(big.NewInt(9), big.NewInt(1e17)) // 0.9 ETH
	assert.Equal(t, 0, price.TotalInterest.Cmp(expectedInterest))
	assert.Equal(t, 0, price.TotalOwed.Cmp(new(big.Int).Add(ether(6), expectedInterest)))
	assert.Equal(t, 0, price.InstallmentAmount.Cmp(price.TotalOwed))
}

func TestCalculateLoanPriceCompoundsPerInterval(t *testing.T) {
	// 60 days at 50 bps/day: 15% on 6 ETH, then 15% on 6.9 ETH.
	price, err := CalculateLoanPrice(ether(6), 60*24*time.Hour, 50)
	require.NoError(t, err)

	assert.Equal(t, 2, price.Installments)
	expectedOwed, _ := new(big.Int).SetString("7935000000000000000", 10)
	assert.Equal(t, 0, price.TotalOwed.Cmp(expectedOwed))

	expectedInstallment, _ := new(big.Int).SetString("3967500000000000000", 10)
	assert.Equal(t, 0, price.InstallmentAmount.Cmp(expectedInstallment))
}

func TestCalculateLoanPricePartialFinalInterval(t *testing.T) {
	// 45 days: a 30-day interval then a 15-day one.
	price, err := CalculateLoanPrice(ether(10), 45*24*time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, price.Installments)

	// 10 ETH * 0.1% * 30d = 0.3 ETH, then 10.3 ETH * 0.1% * 15d = 0.15450 ETH.
	expectedInterest, _ := new(big.Int).SetString("454500000000000000", 10)
	assert.Equal(t, 0, price.TotalInterest.Cmp(expectedInterest))
}

func TestInstallmentsSumToTotalOwed(t *testing.T) {
	for _, days := range []int64{1, 29, 30, 31, 59, 60, 61, 90} {
		price, err := CalculateLoanPrice(big.NewInt(1_000_000_007), time.Duration(days)*24*time.Hour, 37)
		require.NoError(t, err)

		loan := &types.Loan{
			AmountOwedWithInterest: types.NewBigInt(price.TotalOwed),
			InstallmentAmount:      types.NewBigInt(price.InstallmentAmount),
			Installments:           price.Installments,
		}
		paid := new(big.Int)
		for i := 0; i < price.Installments; i++ {
			due := InstallmentDue(loan)
			paid.Add(paid, due)
			loan.AmountOwedWithInterest = loan.AmountOwedWithInterest.Sub(due)
			loan.InstallmentsPaid++
		}
		assert.Equal(t, 0, paid.Cmp(price.TotalOwed), "days=%d", days)
		assert.True(t, loan.AmountOwedWithInterest.IsZero(), "days=%d", days)
	}
}

func TestCheckLTV(t *testing.T) {
	// 35% LTV on a 10 ETH price requires a 3.5 ETH down payment.
	require.NoError(t, CheckLTV(ether(4), ether(10), 3_500))

	err := CheckLTV(ether(3), ether(10), 3_500)
	assert.ErrorIs(t, err, types.ErrLTVNotRespected)
}

func TestInterestRoundsUpPerInterval(t *testing.T) {
	// 1 wei principal still accrues at least 1 wei of interest per interval.
	price, err := CalculateLoanPrice(big.NewInt(1), 60*24*time.Hour, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, price.TotalInterest.Cmp(big.NewInt(2)))
}
