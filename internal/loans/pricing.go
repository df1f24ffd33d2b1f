package loans

import (
	"math/big"
	"time"

	"github.com/ksred/nftlend-api/internal/types"
)

const (
	// MinLoanDuration and MaxLoanDuration bound what a pool will underwrite.
	MinLoanDuration = 24 * time.Hour
	MaxLoanDuration = 90 * 24 * time.Hour

	// PaymentInterval is the installment cadence. Loans shorter than one
	// interval are single-installment.
	PaymentInterval = 30 * 24 * time.Hour

	secondsPerDay  = 86_400
	bpsDenominator = 10_000
)

// LoanPrice is the full repayment quote for a prospective loan.
type LoanPrice struct {
	Principal          *big.Int
	TotalOwed          *big.Int
	TotalInterest      *big.Int
	InstallmentAmount  *big.Int
	InterestPerPayment *big.Int
	Installments       int
}

// CalculateLoanPrice quotes the total repayment for borrowing principal over
// the given duration at the pool's current daily rate. Interest compounds
// per 30-day installment interval, with each interval's interest rounded up
// so fractional wei always favor the pool.
func CalculateLoanPrice(principal *big.Int, duration time.Duration, dailyRateBps uint64) (*LoanPrice, error) {
	if principal == nil || principal.Sign() <= 0 {
		return nil, types.ErrInvalidAmount
	}
	if duration < MinLoanDuration {
		return nil, types.ErrLoanDurationTooShort
	}
	if duration > MaxLoanDuration {
		return nil, types.ErrLoanDurationTooLong
	}

	days := ceilDiv64(int64(duration/time.Second), secondsPerDay)
	installments := int(ceilDiv64(days, 30))

	rate := new(big.Int).SetUint64(dailyRateBps)
	balance := new(big.Int).Set(principal)
	remaining := days
	for remaining > 0 {
		d := remaining
		if d > 30 {
			d = 30
		}
		// interest = ceil(balance * rateBps * d / 10000)
		interest := new(big.Int).Mul(balance, rate)
		interest.Mul(interest, big.NewInt(d))
		interest = ceilDivBig(interest, big.NewInt(bpsDenominator))
		balance.Add(balance, interest)
		remaining -= d
	}

	totalInterest := new(big.Int).Sub(balance, principal)
	n := big.NewInt(int64(installments))

	return &LoanPrice{
		Principal:          new(big.Int).Set(principal),
		TotalOwed:          balance,
		TotalInterest:      totalInterest,
		InstallmentAmount:  ceilDivBig(new(big.Int).Set(balance), n),
		InterestPerPayment: new(big.Int).Quo(totalInterest, n),
		Installments:       installments,
	}, nil
}

// CheckLTV validates the borrower's down payment against the pool's
// loan-to-value ceiling: the down payment must cover at least ltvBps of the
// NFT price.
func CheckLTV(downPayment, nftPrice *big.Int, ltvBps uint64) error {
	required := new(big.Int).Mul(nftPrice, new(big.Int).SetUint64(ltvBps))
	required.Quo(required, big.NewInt(bpsDenominator))
	if downPayment.Cmp(required) < 0 {
		return types.ErrLTVNotRespected
	}
	return nil
}

// InstallmentDue returns what the borrower owes for the next installment:
// the fixed installment amount, except the final installment which settles
// whatever remains owed.
func InstallmentDue(loan *types.Loan) *big.Int {
	if loan.InstallmentsPaid >= loan.Installments-1 {
		return loan.AmountOwedWithInterest.Int()
	}
	return loan.InstallmentAmount.Int()
}

func ceilDiv64(a, b int64) int64 {
	return (a + b - 1) / b
}

func ceilDivBig(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
