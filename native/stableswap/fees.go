package stableswap

import "math/big"

// swapFeeAmount charges the pool swap fee on an output amount. amount may be
// in raw or normalized units; the fee shares that base. fee = amount ·
// feeFraction / feeScale.
func swapFeeAmount(amount, feeFraction *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, feeFraction)
	return fee.Quo(fee, feeScale)
}

// adminPortion splits a collected fee into the protocol-retained share:
// fee · adminFeeFraction / feeScale. The remainder stays with the reserves,
// appreciating LP-share value.
func adminPortion(fee, adminFeeFraction *big.Int) *big.Int {
	out := new(big.Int).Mul(fee, adminFeeFraction)
	return out.Quo(out, feeScale)
}

// imbalanceFeeFraction scales the swap fee for non-proportional liquidity
// changes: feeFraction · n / (4·(n-1)). For the two-asset pool this halves
// the swap fee per unit of deviation, equalizing the burden of an imbalanced
// operation with a balanced-deposit-plus-trade sequence.
func imbalanceFeeFraction(feeFraction *big.Int) *big.Int {
	out := new(big.Int).Mul(feeFraction, bigN)
	return out.Quo(out, big.NewInt(4*(nCoins-1)))
}

// imbalanceFees charges each slot for its deviation from the proportional
// ideal target. ideal and actual share a unit base; the fees come back in
// that same base.
func imbalanceFees(ideal, actual [nCoins]*big.Int, feeFraction *big.Int) [nCoins]*big.Int {
	fraction := imbalanceFeeFraction(feeFraction)
	var fees [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		difference := absDiff(ideal[i], actual[i])
		fees[i] = swapFeeAmount(difference, fraction)
	}
	return fees
}
