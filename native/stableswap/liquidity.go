package stableswap

import (
	"fmt"
	"math/big"

	"pegpool/crypto"
)

// AddLiquidity deposits an arbitrary (possibly one-sided) amount vector and
// mints LP shares for the invariant growth it produces, net of the imbalance
// fee. The very first deposit must fund both slots and mints exactly the
// resulting invariant. attached carries the native value sent with the call.
func (e *Engine) AddLiquidity(caller crypto.Address, amounts [nCoins]*big.Int, minMint, attached *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guardCommon(true); err != nil {
		return nil, err
	}
	if len(caller.Bytes()) == 0 {
		return nil, ErrZeroAddress
	}
	total := big.NewInt(0)
	for i := 0; i < nCoins; i++ {
		if amounts[i] == nil {
			amounts[i] = big.NewInt(0)
		}
		if amounts[i].Sign() < 0 {
			return nil, ErrZeroAmount
		}
		total.Add(total, amounts[i])
	}
	if total.Sign() == 0 {
		return nil, ErrZeroAmount
	}
	pool := e.pool.Clone()
	seeding := pool.LPSupply.Sign() == 0
	if seeding && (amounts[0].Sign() == 0 || amounts[1].Sign() == 0) {
		return nil, ErrInitialDeposit
	}
	if err := checkAttachedAmounts(pool, amounts, attached); err != nil {
		return nil, err
	}

	amp := currentAmp(pool.Amp, e.now())
	var old, next [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		old[i] = cloneBig(pool.Assets[i].Balance)
		next[i] = new(big.Int).Add(old[i], amounts[i])
	}
	d0 := big.NewInt(0)
	if !seeding {
		var err error
		d0, err = computeInvariant(pool.xpFor(old), amp)
		if err != nil {
			return nil, err
		}
	}
	d1, err := computeInvariant(pool.xpFor(next), amp)
	if err != nil {
		return nil, err
	}
	if d1.Cmp(d0) <= 0 {
		return nil, ErrNoDeposit
	}

	var mint *big.Int
	if seeding {
		for i := 0; i < nCoins; i++ {
			pool.Assets[i].Balance = next[i]
		}
		mint = d1
	} else {
		// An imbalanced deposit pays the deviation fee against the
		// proportional ideal; the admin portion leaves the reserves.
		var ideal [nCoins]*big.Int
		for i := 0; i < nCoins; i++ {
			ideal[i] = new(big.Int).Mul(d1, old[i])
			ideal[i].Quo(ideal[i], d0)
		}
		fees := imbalanceFees(ideal, next, pool.Fees.SwapFee)
		var adjusted [nCoins]*big.Int
		for i := 0; i < nCoins; i++ {
			admin := adminPortion(fees[i], pool.Fees.AdminFee)
			pool.Assets[i].Balance = new(big.Int).Sub(next[i], admin)
			pool.AccruedAdminFees[i] = new(big.Int).Add(pool.AccruedAdminFees[i], admin)
			adjusted[i] = new(big.Int).Sub(next[i], fees[i])
		}
		d2, err := computeInvariant(pool.xpFor(adjusted), amp)
		if err != nil {
			return nil, err
		}
		mint = new(big.Int).Sub(d2, d0)
		mint.Mul(mint, pool.LPSupply)
		mint.Quo(mint, d0)
	}
	if mint.Sign() <= 0 {
		return nil, ErrNoDeposit
	}
	if minMint != nil && mint.Cmp(minMint) < 0 {
		return nil, &SlippageError{Op: "add_liquidity", Limit: cloneBig(minMint), Actual: cloneBig(mint)}
	}
	pool.LPSupply = new(big.Int).Add(pool.LPSupply, mint)

	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}
	poolAcc, err := e.loadAccount(e.poolAddress)
	if err != nil {
		return nil, err
	}
	for i := 0; i < nCoins; i++ {
		if err := moveAsset(callerAcc, poolAcc, pool.Assets[i], amounts[i]); err != nil {
			return nil, err
		}
	}
	deltas, err := e.stageAll(map[string]*stagedAccount{
		string(caller.Bytes()):        {addr: caller, acc: callerAcc},
		string(e.poolAddress.Bytes()): {addr: e.poolAddress, acc: poolAcc},
	})
	if err != nil {
		return nil, err
	}
	prevPool := e.pool
	if err := e.commit(pool, deltas); err != nil {
		return nil, err
	}
	if err := e.lp.Mint(caller, mint); err != nil {
		e.rollbackTo(prevPool, deltas)
		return nil, err
	}
	return mint, nil
}

// RemoveLiquidity burns lpAmount shares for a proportional slice of both
// reserves. Proportional withdrawal charges no fee, never consults the
// oracle, and remains available while the pool is paused so holders can
// always exit.
func (e *Engine) RemoveLiquidity(caller crypto.Address, lpAmount *big.Int, minAmounts [nCoins]*big.Int) ([nCoins]*big.Int, error) {
	var out [nCoins]*big.Int
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guardCommon(false); err != nil {
		return out, err
	}
	if len(caller.Bytes()) == 0 {
		return out, ErrZeroAddress
	}
	if lpAmount == nil || lpAmount.Sign() <= 0 {
		return out, ErrZeroAmount
	}
	pool := e.pool.Clone()
	if pool.LPSupply.Sign() == 0 {
		return out, ErrSupplyEmpty
	}
	if lpAmount.Cmp(pool.LPSupply) > 0 {
		return out, ErrInsufficientBalance
	}
	for i := 0; i < nCoins; i++ {
		share := new(big.Int).Mul(pool.Assets[i].Balance, lpAmount)
		share.Quo(share, pool.LPSupply)
		if minAmounts[i] != nil && share.Cmp(minAmounts[i]) < 0 {
			return [nCoins]*big.Int{}, &SlippageError{Op: "remove_liquidity", Limit: cloneBig(minAmounts[i]), Actual: share}
		}
		out[i] = share
	}
	for i := 0; i < nCoins; i++ {
		pool.Assets[i].Balance = new(big.Int).Sub(pool.Assets[i].Balance, out[i])
	}
	pool.LPSupply = new(big.Int).Sub(pool.LPSupply, lpAmount)

	deltas, nativeOut, err := e.stagePayout(caller, pool, out)
	if err != nil {
		return [nCoins]*big.Int{}, err
	}
	prevPool := e.pool
	if err := e.commit(pool, deltas); err != nil {
		return [nCoins]*big.Int{}, err
	}
	if err := e.finishWithdrawal(caller, lpAmount, nativeOut, prevPool, deltas); err != nil {
		return [nCoins]*big.Int{}, err
	}
	return out, nil
}

// RemoveLiquidityImbalance withdraws an exact amount vector and burns
// whatever share count (plus the imbalance fee and a one-unit rounding
// cushion in the pool's favour) that withdrawal costs, bounded by maxBurn.
func (e *Engine) RemoveLiquidityImbalance(caller crypto.Address, amounts [nCoins]*big.Int, maxBurn *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guardCommon(true); err != nil {
		return nil, err
	}
	if len(caller.Bytes()) == 0 {
		return nil, ErrZeroAddress
	}
	total := big.NewInt(0)
	for i := 0; i < nCoins; i++ {
		if amounts[i] == nil {
			amounts[i] = big.NewInt(0)
		}
		if amounts[i].Sign() < 0 {
			return nil, ErrZeroAmount
		}
		total.Add(total, amounts[i])
	}
	if total.Sign() == 0 {
		return nil, ErrZeroAmount
	}
	pool := e.pool.Clone()
	if pool.LPSupply.Sign() == 0 {
		return nil, ErrSupplyEmpty
	}

	amp := currentAmp(pool.Amp, e.now())
	var old, next [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		old[i] = cloneBig(pool.Assets[i].Balance)
		next[i] = new(big.Int).Sub(old[i], amounts[i])
		if next[i].Sign() < 0 {
			return nil, ErrInsufficientBalance
		}
	}
	d0, err := computeInvariant(pool.xpFor(old), amp)
	if err != nil {
		return nil, err
	}
	d1, err := computeInvariant(pool.xpFor(next), amp)
	if err != nil {
		return nil, err
	}
	var ideal [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		ideal[i] = new(big.Int).Mul(d1, old[i])
		ideal[i].Quo(ideal[i], d0)
	}
	fees := imbalanceFees(ideal, next, pool.Fees.SwapFee)
	var adjusted [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		admin := adminPortion(fees[i], pool.Fees.AdminFee)
		pool.Assets[i].Balance = new(big.Int).Sub(next[i], admin)
		pool.AccruedAdminFees[i] = new(big.Int).Add(pool.AccruedAdminFees[i], admin)
		adjusted[i] = new(big.Int).Sub(next[i], fees[i])
	}
	d2, err := computeInvariant(pool.xpFor(adjusted), amp)
	if err != nil {
		return nil, err
	}
	// Round the burn up by one share so rounding never favours the caller.
	burn := new(big.Int).Sub(d0, d2)
	burn.Mul(burn, pool.LPSupply)
	burn.Quo(burn, d0)
	burn.Add(burn, bigOne)
	if burn.Cmp(pool.LPSupply) > 0 {
		return nil, ErrInsufficientBalance
	}
	if maxBurn != nil && burn.Cmp(maxBurn) > 0 {
		return nil, &SlippageError{Op: "remove_liquidity_imbalance", Limit: cloneBig(maxBurn), Actual: cloneBig(burn)}
	}
	pool.LPSupply = new(big.Int).Sub(pool.LPSupply, burn)

	deltas, nativeOut, err := e.stagePayout(caller, pool, amounts)
	if err != nil {
		return nil, err
	}
	prevPool := e.pool
	if err := e.commit(pool, deltas); err != nil {
		return nil, err
	}
	if err := e.finishWithdrawal(caller, burn, nativeOut, prevPool, deltas); err != nil {
		return nil, err
	}
	return burn, nil
}

// RemoveLiquidityOneCoin burns an exact share count for a single asset,
// charging the imbalance fee on the deviation the lopsided exit causes.
func (e *Engine) RemoveLiquidityOneCoin(caller crypto.Address, lpAmount *big.Int, i int, minAmount *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guardCommon(true); err != nil {
		return nil, err
	}
	if len(caller.Bytes()) == 0 {
		return nil, ErrZeroAddress
	}
	if i < 0 || i >= nCoins {
		return nil, ErrInvalidAsset
	}
	if lpAmount == nil || lpAmount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	pool := e.pool.Clone()
	if pool.LPSupply.Sign() == 0 {
		return nil, ErrSupplyEmpty
	}
	if lpAmount.Cmp(pool.LPSupply) > 0 {
		return nil, ErrInsufficientBalance
	}

	dyRaw, feeRaw, err := calcWithdrawOneCoin(pool, lpAmount, i, e.now())
	if err != nil {
		return nil, err
	}
	if minAmount != nil && dyRaw.Cmp(minAmount) < 0 {
		return nil, &SlippageError{Op: "remove_liquidity_one_coin", Limit: cloneBig(minAmount), Actual: dyRaw}
	}
	admin := adminPortion(feeRaw, pool.Fees.AdminFee)
	debit := new(big.Int).Add(dyRaw, admin)
	remaining := new(big.Int).Sub(pool.Assets[i].Balance, debit)
	if remaining.Sign() < 0 {
		return nil, ErrInsufficientBalance
	}
	pool.Assets[i].Balance = remaining
	pool.AccruedAdminFees[i] = new(big.Int).Add(pool.AccruedAdminFees[i], admin)
	pool.LPSupply = new(big.Int).Sub(pool.LPSupply, lpAmount)

	var payout [nCoins]*big.Int
	payout[i] = dyRaw
	deltas, nativeOut, err := e.stagePayout(caller, pool, payout)
	if err != nil {
		return nil, err
	}
	prevPool := e.pool
	if err := e.commit(pool, deltas); err != nil {
		return nil, err
	}
	if err := e.finishWithdrawal(caller, lpAmount, nativeOut, prevPool, deltas); err != nil {
		return nil, err
	}
	return dyRaw, nil
}

// stagePayout credits the caller with the withdrawal amounts from the pool
// custody account and returns the staged deltas plus the native portion that
// still needs receiver acceptance.
func (e *Engine) stagePayout(caller crypto.Address, pool *Pool, amounts [nCoins]*big.Int) ([]accountDelta, *big.Int, error) {
	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return nil, nil, err
	}
	poolAcc, err := e.loadAccount(e.poolAddress)
	if err != nil {
		return nil, nil, err
	}
	nativeOut := big.NewInt(0)
	for i := 0; i < nCoins; i++ {
		if amounts[i] == nil {
			continue
		}
		if err := moveAsset(poolAcc, callerAcc, pool.Assets[i], amounts[i]); err != nil {
			return nil, nil, err
		}
		if pool.Assets[i].Native {
			nativeOut.Add(nativeOut, amounts[i])
		}
	}
	deltas, err := e.stageAll(map[string]*stagedAccount{
		string(caller.Bytes()):        {addr: caller, acc: callerAcc},
		string(e.poolAddress.Bytes()): {addr: e.poolAddress, acc: poolAcc},
	})
	if err != nil {
		return nil, nil, err
	}
	return deltas, nativeOut, nil
}

// finishWithdrawal runs the post-commit effects of a withdrawal: burning the
// caller's shares, then pushing the native portion. A failure at either step
// restores the committed ledger (re-minting the shares if the burn had
// already happened).
func (e *Engine) finishWithdrawal(caller crypto.Address, burn, nativeOut *big.Int, prevPool *Pool, deltas []accountDelta) error {
	if err := e.lp.Burn(caller, burn); err != nil {
		e.rollbackTo(prevPool, deltas)
		return err
	}
	if err := e.payoutNative(caller, nativeOut); err != nil {
		remint := e.lp.Mint(caller, burn)
		e.rollbackTo(prevPool, deltas)
		if remint != nil {
			// The share ledger now diverges from the restored pool state.
			return fmt.Errorf("%w; restoring %s burned shares failed: %v", err, burn, remint)
		}
		return err
	}
	return nil
}
