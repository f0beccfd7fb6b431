package stableswap

import (
	"math/big"

	"pegpool/crypto"
)

// Exchange trades dx units of the slot-in asset for the slot-out asset.
// attached carries the native value sent with the call; it must equal dx when
// the in-asset is native and be zero otherwise. The trade aborts without any
// state change if the realized output violates minDy or the oracle guard.
func (e *Engine) Exchange(caller crypto.Address, in, out int, dx, minDy, attached *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guardCommon(true); err != nil {
		return nil, err
	}
	if in == out {
		return nil, ErrSameAsset
	}
	if in < 0 || in >= nCoins || out < 0 || out >= nCoins {
		return nil, ErrInvalidAsset
	}
	if dx == nil || dx.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if len(caller.Bytes()) == 0 {
		return nil, ErrZeroAddress
	}
	pool := e.pool.Clone()
	if err := checkAttachedValue(pool.Assets[in], dx, attached); err != nil {
		return nil, err
	}

	xp := pool.xp()
	amp := currentAmp(pool.Amp, e.now())
	dxNorm := pool.normalize(dx, in)
	x := new(big.Int).Add(xp[in], dxNorm)
	y, err := solveCounterpartyBalance(in, out, x, xp, amp)
	if err != nil {
		return nil, err
	}
	// Round the raw output against the trader by one normalized unit.
	dyNorm := new(big.Int).Sub(xp[out], y)
	dyNorm.Sub(dyNorm, bigOne)
	if dyNorm.Sign() <= 0 {
		return nil, &SlippageError{Op: "exchange", Limit: cloneBig(minDy), Actual: big.NewInt(0)}
	}
	feeNorm := swapFeeAmount(dyNorm, pool.Fees.SwapFee)
	dyNetNorm := new(big.Int).Sub(dyNorm, feeNorm)
	if err := e.checkPriceDeviation(pool, in, out, dxNorm, dyNetNorm); err != nil {
		return nil, err
	}
	dyRaw := pool.denormalize(dyNetNorm, out)
	if minDy != nil && dyRaw.Cmp(minDy) < 0 {
		return nil, &SlippageError{Op: "exchange", Limit: cloneBig(minDy), Actual: dyRaw}
	}
	adminNorm := adminPortion(feeNorm, pool.Fees.AdminFee)
	adminRaw := pool.denormalize(adminNorm, out)

	// Stage reserves: the admin portion of the fee leaves the tradable
	// balance but stays in custody until withdrawn.
	pool.Assets[in].Balance = new(big.Int).Add(pool.Assets[in].Balance, dx)
	outDebit := new(big.Int).Add(dyRaw, adminRaw)
	remaining := new(big.Int).Sub(pool.Assets[out].Balance, outDebit)
	if remaining.Sign() < 0 {
		return nil, ErrInsufficientBalance
	}
	pool.Assets[out].Balance = remaining
	pool.AccruedAdminFees[out] = new(big.Int).Add(pool.AccruedAdminFees[out], adminRaw)

	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}
	poolAcc, err := e.loadAccount(e.poolAddress)
	if err != nil {
		return nil, err
	}
	if err := moveAsset(callerAcc, poolAcc, pool.Assets[in], dx); err != nil {
		return nil, err
	}
	if err := moveAsset(poolAcc, callerAcc, pool.Assets[out], dyRaw); err != nil {
		return nil, err
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
	if pool.Assets[out].Native {
		if err := e.payoutNative(caller, dyRaw); err != nil {
			e.rollbackTo(prevPool, deltas)
			return nil, err
		}
	}
	return dyRaw, nil
}

// GetDy quotes the net output of an exchange without mutating the pool or
// consulting the oracle guard.
func (e *Engine) GetDy(in, out int, dx *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return nil, ErrNotInitialized
	}
	if in == out {
		return nil, ErrSameAsset
	}
	if in < 0 || in >= nCoins || out < 0 || out >= nCoins {
		return nil, ErrInvalidAsset
	}
	if dx == nil || dx.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	pool := e.pool
	xp := pool.xp()
	amp := currentAmp(pool.Amp, e.now())
	x := new(big.Int).Add(xp[in], pool.normalize(dx, in))
	y, err := solveCounterpartyBalance(in, out, x, xp, amp)
	if err != nil {
		return nil, err
	}
	dyNorm := new(big.Int).Sub(xp[out], y)
	dyNorm.Sub(dyNorm, bigOne)
	if dyNorm.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	dyNorm.Sub(dyNorm, swapFeeAmount(dyNorm, pool.Fees.SwapFee))
	return pool.denormalize(dyNorm, out), nil
}
