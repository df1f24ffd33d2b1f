package pool

import "math/big"

// The pool's aggregate daily rate is a deposit-weighted vote. Rather than
// folding each event into a rounded running average, the pool stores the
// exact pair (rate weight, principal) where weight = sum(amount * rateBps)
// over all active principal; the aggregate is recomputed from the pair on
// every principal change, so per-lender withdrawals remove exactly their own
// contribution with no systemic drift.

// AddVote returns the weight/principal pair after depositing amount at rateBps.
func AddVote(weight, principal, amount *big.Int, rateBps uint64) (*big.Int, *big.Int) {
	delta := new(big.Int).Mul(amount, new(big.Int).SetUint64(rateBps))
	return new(big.Int).Add(weight, delta), new(big.Int).Add(principal, amount)
}

// RemoveContribution removes a lender's share of their own recorded vote when
// sharesBurned of their sharesHeld are redeemed. The removed principal and
// weight are proportional to the shares burned, which keeps the pool pair
// equal to the sum of all per-lender pairs.
func RemoveContribution(lenderWeight, lenderPrincipal, sharesBurned, sharesHeld *big.Int) (removedWeight, removedPrincipal *big.Int) {
	if sharesHeld.Sign() == 0 {
		return new(big.Int), new(big.Int)
	}
	if sharesBurned.Cmp(sharesHeld) >= 0 {
		return new(big.Int).Set(lenderWeight), new(big.Int).Set(lenderPrincipal)
	}
	removedWeight = new(big.Int).Mul(lenderWeight, sharesBurned)
	removedWeight.Quo(removedWeight, sharesHeld)
	removedPrincipal = new(big.Int).Mul(lenderPrincipal, sharesBurned)
	removedPrincipal.Quo(removedPrincipal, sharesHeld)
	return removedWeight, removedPrincipal
}

// AggregateRateBps recomputes the pool rate from the stored pair. An empty
// pool has no votes and reports zero; the next deposit then defines the rate
// exactly.
func AggregateRateBps(weight, principal *big.Int) uint64 {
	if principal.Sign() == 0 {
		return 0
	}
	out := new(big.Int).Quo(weight, principal)
	return out.Uint64()
}
