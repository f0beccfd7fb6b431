package stableswap

import (
	"fmt"
	"math/big"
)

// PriceOracle exposes the latest observed price for an asset symbol at the
// 1e8 priceScale. Implementations are injected at construction so the engine
// can be exercised against deterministic fakes.
type PriceOracle interface {
	Peek(symbol string) (*big.Int, error)
}

// checkPriceDeviation cross-checks a trade's implied execution price against
// the oracle in both directions. dxNorm/dyNorm are the normalized (1e18)
// amounts actually moving; prices are 1e8 scaled. For each side the guard
// computes the amount the oracle ratio implies and the 1e18-relative
// deviation of the actual amount from it, rejecting with a
// PriceDeviationError naming the offending asset when a per-asset threshold
// is exceeded. The oracle read happens here, inside the same atomic unit as
// the trade it gates.
func (e *Engine) checkPriceDeviation(pool *Pool, in, out int, dxNorm, dyNorm *big.Int) error {
	if e.oracle == nil {
		return ErrOracleUnavailable
	}
	priceIn, err := e.oracle.Peek(pool.Assets[in].Symbol)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOracleUnavailable, pool.Assets[in].Symbol, err)
	}
	priceOut, err := e.oracle.Peek(pool.Assets[out].Symbol)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOracleUnavailable, pool.Assets[out].Symbol, err)
	}
	if priceIn == nil || priceIn.Sign() <= 0 || priceOut == nil || priceOut.Sign() <= 0 {
		return ErrOracleUnavailable
	}

	// Output the oracle ratio implies for dxNorm, and the deviation of the
	// actual output from it, charged against the out-asset threshold.
	impliedOut := new(big.Int).Mul(dxNorm, priceIn)
	impliedOut.Quo(impliedOut, priceOut)
	if err := deviationWithin(pool.Assets[out].Symbol, dyNorm, impliedOut, pool.PriceThresholds[out]); err != nil {
		return err
	}

	// The inverse direction: the input the ratio implies for dyNorm, charged
	// against the in-asset threshold.
	impliedIn := new(big.Int).Mul(dyNorm, priceOut)
	impliedIn.Quo(impliedIn, priceIn)
	return deviationWithin(pool.Assets[in].Symbol, dxNorm, impliedIn, pool.PriceThresholds[in])
}

// deviationWithin compares |actual - implied| / implied (1e18 scale) against
// the asset's threshold.
func deviationWithin(symbol string, actual, implied, threshold *big.Int) error {
	if implied.Sign() <= 0 {
		return ErrOracleUnavailable
	}
	deviation := absDiff(actual, implied)
	deviation.Mul(deviation, deviationScale)
	deviation.Quo(deviation, implied)
	if threshold != nil && deviation.Cmp(threshold) > 0 {
		return &PriceDeviationError{Asset: symbol, Deviation: deviation, Threshold: cloneBig(threshold)}
	}
	return nil
}
