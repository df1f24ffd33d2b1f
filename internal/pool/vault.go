package pool

import "math/big"

// Share conversion helpers. Both directions round down so the pool keeps the
// dust: a deposit mints at most assets*shares/totalAssets, a redemption pays
// at most shares*totalAssets/totalShares. Repeated deposit/redeem cycles can
// therefore never extract value. SharesForWithdraw rounds up for the same
// reason: an exact-asset withdrawal burns the dust-covering share.

// ConvertToShares returns the shares minted for a deposit of assets. The
// first deposit into an empty vault fixes the exchange rate at 1:1.
func ConvertToShares(assets, totalShares, totalAssets *big.Int) *big.Int {
	if totalShares.Sign() == 0 || totalAssets.Sign() == 0 {
		return new(big.Int).Set(assets)
	}
	out := new(big.Int).Mul(assets, totalShares)
	return out.Quo(out, totalAssets)
}

// ConvertToAssets returns the assets redeemed for burning shares.
func ConvertToAssets(shares, totalShares, totalAssets *big.Int) *big.Int {
	if totalShares.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(shares, totalAssets)
	return out.Quo(out, totalShares)
}

// SharesForWithdraw returns the shares that must be burned to withdraw an
// exact asset amount, rounded up.
func SharesForWithdraw(assets, totalShares, totalAssets *big.Int) *big.Int {
	if totalShares.Sign() == 0 || totalAssets.Sign() == 0 {
		return new(big.Int).Set(assets)
	}
	num := new(big.Int).Mul(assets, totalShares)
	out, rem := num.QuoRem(num, totalAssets, new(big.Int))
	if rem.Sign() != 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

// minBig returns the smaller of a and b as a fresh value.
func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
