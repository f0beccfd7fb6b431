package stableswap

import (
	"math/big"

	"pegpool/crypto"
)

func (e *Engine) requireRole(caller crypto.Address, role string) error {
	members, ok := e.roles[role]
	if !ok {
		return ErrUnauthorized
	}
	if _, ok := members[string(caller.Bytes())]; !ok {
		return ErrUnauthorized
	}
	return nil
}

// HasRole reports whether addr currently holds the role.
func (e *Engine) HasRole(role string, addr crypto.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requireRole(addr, role) == nil
}

// GrantRole adds addr to a role. Admin only.
func (e *Engine) GrantRole(caller crypto.Address, role string, addr crypto.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return ErrNotInitialized
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	if role != RoleAdmin && role != RoleManager && role != RolePauser {
		return ErrUnauthorized
	}
	if len(addr.Bytes()) == 0 {
		return ErrZeroAddress
	}
	if e.roles[role] == nil {
		e.roles[role] = make(map[string]struct{})
	}
	e.roles[role][string(addr.Bytes())] = struct{}{}
	return e.persist(e.pool, e.roles)
}

// RevokeRole removes addr from a role. Admin only. The last admin cannot be
// revoked so the pool never becomes ungovernable.
func (e *Engine) RevokeRole(caller crypto.Address, role string, addr crypto.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return ErrNotInitialized
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	members := e.roles[role]
	if members == nil {
		return nil
	}
	if role == RoleAdmin && len(members) == 1 {
		if _, ok := members[string(addr.Bytes())]; ok {
			return ErrLastAdmin
		}
	}
	delete(members, string(addr.Bytes()))
	return e.persist(e.pool, e.roles)
}

// Pause halts trades and deposits. Proportional withdrawal stays available.
func (e *Engine) Pause(caller crypto.Address) error {
	return e.setPaused(caller, true)
}

// Unpause resumes normal operation.
func (e *Engine) Unpause(caller crypto.Address) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller crypto.Address, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return ErrNotInitialized
	}
	if err := e.requireRole(caller, RolePauser); err != nil {
		return err
	}
	if e.pool.Paused == paused {
		return nil
	}
	pool := e.pool.Clone()
	pool.Paused = paused
	if err := e.persist(pool, e.roles); err != nil {
		return err
	}
	e.pool = pool
	return nil
}

// IsPaused reports the pause gate.
func (e *Engine) IsPaused() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return false, ErrNotInitialized
	}
	return e.pool.Paused, nil
}

// SetFees updates the swap and admin fee fractions within protocol bounds.
// Manager only; the change applies to subsequent operations immediately.
func (e *Engine) SetFees(caller crypto.Address, swapFee, adminFee *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return ErrNotInitialized
	}
	if err := e.requireRole(caller, RoleManager); err != nil {
		return err
	}
	if err := validateFees(swapFee, adminFee); err != nil {
		return err
	}
	pool := e.pool.Clone()
	pool.Fees = FeeConfig{SwapFee: cloneBig(swapFee), AdminFee: cloneBig(adminFee)}
	if err := e.persist(pool, e.roles); err != nil {
		return err
	}
	e.pool = pool
	return nil
}

// SetPriceThreshold updates the per-asset deviation threshold (1e18 scale,
// nil disables the guard for that slot). Manager only.
func (e *Engine) SetPriceThreshold(caller crypto.Address, i int, threshold *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return ErrNotInitialized
	}
	if err := e.requireRole(caller, RoleManager); err != nil {
		return err
	}
	if i < 0 || i >= nCoins {
		return ErrInvalidAsset
	}
	if threshold != nil && threshold.Sign() < 0 {
		return ErrZeroAmount
	}
	pool := e.pool.Clone()
	if threshold == nil {
		pool.PriceThresholds[i] = nil
	} else {
		pool.PriceThresholds[i] = new(big.Int).Set(threshold)
	}
	if err := e.persist(pool, e.roles); err != nil {
		return err
	}
	e.pool = pool
	return nil
}

// RampAmplification schedules a linear move of the amplification coefficient
// to futureAmp (raw, unscaled) ending at rampEnd (unix seconds). The window
// must span at least a day and the move is capped at a factor of ten from
// the current effective value. Manager only.
func (e *Engine) RampAmplification(caller crypto.Address, futureAmp *big.Int, rampEnd uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return ErrNotInitialized
	}
	if err := e.requireRole(caller, RoleManager); err != nil {
		return err
	}
	if futureAmp == nil || futureAmp.Sign() <= 0 || futureAmp.Cmp(maxAmp) >= 0 {
		return ErrAmpOutOfRange
	}
	now := e.now()
	if rampEnd < now+minRampDuration {
		return ErrRampTooShort
	}
	initial := currentAmp(e.pool.Amp, now)
	future := new(big.Int).Mul(futureAmp, bigAPre)
	factor := big.NewInt(maxAmpChangeFactor)
	if future.Cmp(initial) >= 0 {
		if future.Cmp(new(big.Int).Mul(initial, factor)) > 0 {
			return ErrRampTooLarge
		}
	} else {
		if new(big.Int).Mul(future, factor).Cmp(initial) < 0 {
			return ErrRampTooLarge
		}
	}
	pool := e.pool.Clone()
	pool.Amp = AmpSchedule{Initial: initial, Future: future, RampStart: now, RampEnd: rampEnd}
	if err := e.persist(pool, e.roles); err != nil {
		return err
	}
	e.pool = pool
	return nil
}

// StopRamp freezes the amplification at its current effective value. Manager
// only.
func (e *Engine) StopRamp(caller crypto.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return ErrNotInitialized
	}
	if err := e.requireRole(caller, RoleManager); err != nil {
		return err
	}
	now := e.now()
	current := currentAmp(e.pool.Amp, now)
	pool := e.pool.Clone()
	pool.Amp = AmpSchedule{Initial: current, Future: cloneBig(current), RampStart: now, RampEnd: now}
	if err := e.persist(pool, e.roles); err != nil {
		return err
	}
	e.pool = pool
	return nil
}

// WithdrawAdminFees transfers the accrued protocol fees of both slots to the
// recipient and zeroes the accruals. Admin only; works while paused so the
// protocol treasury is never locked out.
func (e *Engine) WithdrawAdminFees(caller, recipient crypto.Address) ([nCoins]*big.Int, error) {
	var out [nCoins]*big.Int
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guardCommon(false); err != nil {
		return out, err
	}
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return out, err
	}
	if len(recipient.Bytes()) == 0 {
		return out, ErrZeroAddress
	}
	pool := e.pool.Clone()
	for i := 0; i < nCoins; i++ {
		out[i] = cloneBig(pool.AccruedAdminFees[i])
		pool.AccruedAdminFees[i] = big.NewInt(0)
	}
	if out[0].Sign() == 0 && out[1].Sign() == 0 {
		return out, nil
	}
	deltas, nativeOut, err := e.stagePayout(recipient, pool, out)
	if err != nil {
		return [nCoins]*big.Int{}, err
	}
	prevPool := e.pool
	if err := e.commit(pool, deltas); err != nil {
		return [nCoins]*big.Int{}, err
	}
	if err := e.payoutNative(recipient, nativeOut); err != nil {
		e.rollbackTo(prevPool, deltas)
		return [nCoins]*big.Int{}, err
	}
	return out, nil
}
