package stableswap

import "math/big"

// PoolClass describes how the pool's slots map onto the native currency,
// used by the quoting surface to tell callers which leg needs attached value.
type PoolClass int

const (
	BothToken PoolClass = iota
	Asset0Native
	Asset1Native
)

// Classify reports the pool's native-asset layout.
func (e *Engine) Classify() (PoolClass, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return BothToken, ErrNotInitialized
	}
	switch {
	case e.pool.Assets[0].Native:
		return Asset0Native, nil
	case e.pool.Assets[1].Native:
		return Asset1Native, nil
	default:
		return BothToken, nil
	}
}

// CalcTokenAmount quotes the LP shares a deposit would mint or a withdrawal
// would burn for the given amount vector, using the same fee and rounding
// arithmetic as the mutating operations so quotes match execution exactly.
func (e *Engine) CalcTokenAmount(amounts [nCoins]*big.Int, deposit bool) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return nil, ErrNotInitialized
	}
	pool := e.pool
	amp := currentAmp(pool.Amp, e.now())
	var old, next [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		old[i] = cloneBig(pool.Assets[i].Balance)
		amount := amounts[i]
		if amount == nil {
			amount = bigZero
		}
		if amount.Sign() < 0 {
			return nil, ErrZeroAmount
		}
		if deposit {
			next[i] = new(big.Int).Add(old[i], amount)
		} else {
			next[i] = new(big.Int).Sub(old[i], amount)
			if next[i].Sign() < 0 {
				return nil, ErrInsufficientBalance
			}
		}
	}
	if deposit && pool.LPSupply.Sign() == 0 {
		if next[0].Sign() == 0 || next[1].Sign() == 0 {
			return nil, ErrInitialDeposit
		}
		return computeInvariant(pool.xpFor(next), amp)
	}
	if pool.LPSupply.Sign() == 0 {
		return nil, ErrSupplyEmpty
	}
	d0, err := computeInvariant(pool.xpFor(old), amp)
	if err != nil {
		return nil, err
	}
	d1, err := computeInvariant(pool.xpFor(next), amp)
	if err != nil {
		return nil, err
	}
	if deposit && d1.Cmp(d0) <= 0 {
		return nil, ErrNoDeposit
	}
	var ideal [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		ideal[i] = new(big.Int).Mul(d1, old[i])
		ideal[i].Quo(ideal[i], d0)
	}
	fees := imbalanceFees(ideal, next, pool.Fees.SwapFee)
	var adjusted [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		adjusted[i] = new(big.Int).Sub(next[i], fees[i])
	}
	d2, err := computeInvariant(pool.xpFor(adjusted), amp)
	if err != nil {
		return nil, err
	}
	if deposit {
		mint := new(big.Int).Sub(d2, d0)
		mint.Mul(mint, pool.LPSupply)
		return mint.Quo(mint, d0), nil
	}
	burn := new(big.Int).Sub(d0, d2)
	burn.Mul(burn, pool.LPSupply)
	burn.Quo(burn, d0)
	return burn.Add(burn, bigOne), nil
}

// CalcWithdrawOneCoin quotes the payout of a single-asset withdrawal of
// lpAmount shares into slot i, net of the imbalance fee.
func (e *Engine) CalcWithdrawOneCoin(lpAmount *big.Int, i int) (*big.Int, error) {
	dy, _, err := e.quoteWithdrawOneCoin(lpAmount, i)
	return dy, err
}

// CalcWithdrawOneCoinFee quotes the imbalance fee the same withdrawal would
// pay, in raw out-asset units (gross payout minus net).
func (e *Engine) CalcWithdrawOneCoinFee(lpAmount *big.Int, i int) (*big.Int, error) {
	_, fee, err := e.quoteWithdrawOneCoin(lpAmount, i)
	return fee, err
}

func (e *Engine) quoteWithdrawOneCoin(lpAmount *big.Int, i int) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return nil, nil, ErrNotInitialized
	}
	if i < 0 || i >= nCoins {
		return nil, nil, ErrInvalidAsset
	}
	if lpAmount == nil || lpAmount.Sign() <= 0 {
		return nil, nil, ErrZeroAmount
	}
	if e.pool.LPSupply.Sign() == 0 {
		return nil, nil, ErrSupplyEmpty
	}
	if lpAmount.Cmp(e.pool.LPSupply) > 0 {
		return nil, nil, ErrInsufficientBalance
	}
	return calcWithdrawOneCoin(e.pool, lpAmount, i, e.now())
}

// CalcImbalanceWithdrawFees quotes the per-slot imbalance fee an exact-amount
// withdrawal would pay, using the same deviation-from-proportional arithmetic
// as the mutating operation. Amounts and fees are raw base units.
func (e *Engine) CalcImbalanceWithdrawFees(amounts [nCoins]*big.Int) ([nCoins]*big.Int, error) {
	var out [nCoins]*big.Int
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return out, ErrNotInitialized
	}
	pool := e.pool
	if pool.LPSupply.Sign() == 0 {
		return out, ErrSupplyEmpty
	}
	total := big.NewInt(0)
	var old, next [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		amount := amounts[i]
		if amount == nil {
			amount = bigZero
		}
		if amount.Sign() < 0 {
			return out, ErrZeroAmount
		}
		total.Add(total, amount)
		old[i] = cloneBig(pool.Assets[i].Balance)
		next[i] = new(big.Int).Sub(old[i], amount)
		if next[i].Sign() < 0 {
			return out, ErrInsufficientBalance
		}
	}
	if total.Sign() == 0 {
		return out, ErrZeroAmount
	}
	amp := currentAmp(pool.Amp, e.now())
	d0, err := computeInvariant(pool.xpFor(old), amp)
	if err != nil {
		return out, err
	}
	d1, err := computeInvariant(pool.xpFor(next), amp)
	if err != nil {
		return out, err
	}
	var ideal [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		ideal[i] = new(big.Int).Mul(d1, old[i])
		ideal[i].Quo(ideal[i], d0)
	}
	return imbalanceFees(ideal, next, pool.Fees.SwapFee), nil
}

// VirtualPrice is the 1e18-scaled invariant value of one LP share, a
// monotone measure of fee accrual for a pool of pegged assets.
func (e *Engine) VirtualPrice() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return nil, ErrNotInitialized
	}
	if e.pool.LPSupply.Sign() == 0 {
		return nil, ErrSupplyEmpty
	}
	d, err := computeInvariant(e.pool.xp(), currentAmp(e.pool.Amp, e.now()))
	if err != nil {
		return nil, err
	}
	price := new(big.Int).Mul(d, precisionScale)
	return price.Quo(price, e.pool.LPSupply), nil
}

// calcWithdrawOneCoin prices burning lpAmount shares into slot i: solve the
// reduced invariant D1, charge the imbalance fee on each slot's deviation
// from the proportional path, and resolve the final balance against D1
// again. Returns the raw payout and the raw fee (gross minus net), from
// which the caller takes the admin portion.
func calcWithdrawOneCoin(pool *Pool, lpAmount *big.Int, i int, now uint64) (*big.Int, *big.Int, error) {
	xp := pool.xp()
	amp := currentAmp(pool.Amp, now)
	d0, err := computeInvariant(xp, amp)
	if err != nil {
		return nil, nil, err
	}
	reduction := new(big.Int).Mul(lpAmount, d0)
	reduction.Quo(reduction, pool.LPSupply)
	d1 := new(big.Int).Sub(d0, reduction)
	newY, err := solveBalanceForInvariant(i, xp, amp, d1)
	if err != nil {
		return nil, nil, err
	}

	feeFraction := imbalanceFeeFraction(pool.Fees.SwapFee)
	var reduced [nCoins]*big.Int
	for k := 0; k < nCoins; k++ {
		proportional := new(big.Int).Mul(xp[k], d1)
		proportional.Quo(proportional, d0)
		var expected *big.Int
		if k == i {
			expected = new(big.Int).Sub(proportional, newY)
		} else {
			expected = new(big.Int).Sub(xp[k], proportional)
		}
		reduced[k] = new(big.Int).Sub(xp[k], swapFeeAmount(expected, feeFraction))
	}
	yAfter, err := solveBalanceForInvariant(i, reduced, amp, d1)
	if err != nil {
		return nil, nil, err
	}
	dyNorm := new(big.Int).Sub(reduced[i], yAfter)
	dyNorm.Sub(dyNorm, bigOne)
	if dyNorm.Sign() < 0 {
		dyNorm = big.NewInt(0)
	}
	dyRaw := pool.denormalize(dyNorm, i)
	grossNorm := new(big.Int).Sub(xp[i], newY)
	grossRaw := pool.denormalize(grossNorm, i)
	feeRaw := new(big.Int).Sub(grossRaw, dyRaw)
	if feeRaw.Sign() < 0 {
		feeRaw = big.NewInt(0)
	}
	return dyRaw, feeRaw, nil
}
