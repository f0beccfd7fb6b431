package stableswap

import "math/big"

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
	bigTwo  = big.NewInt(2)
	bigN    = big.NewInt(nCoins)
	bigNp1  = big.NewInt(nCoins + 1)
	bigAPre = big.NewInt(ampPrecision)
)

// computeInvariant solves the stableswap identity
//
//	A·n^n·S + D = A·n^n·D + D^(n+1) / (n^n·Πx)
//
// for D by Newton iteration. xp entries are 1e18-normalized balances, amp is
// ampPrecision-scaled, and the result shares the 1e18 base. A zero balance
// vector yields D = 0 (unseeded pool); a vector with any single empty slot is
// rejected because the curve is undefined there. The iteration is capped at
// maxIterations rounds and fails closed with ErrConvergence rather than
// returning an inaccurate result.
func computeInvariant(xp [nCoins]*big.Int, amp *big.Int) (*big.Int, error) {
	s := new(big.Int)
	for i := 0; i < nCoins; i++ {
		s.Add(s, xp[i])
	}
	if s.Sign() == 0 {
		return big.NewInt(0), nil
	}

	d := new(big.Int).Set(s)
	ann := new(big.Int).Mul(amp, bigN)
	dPrev := new(big.Int)
	for iter := 0; iter < maxIterations; iter++ {
		dp := new(big.Int).Set(d)
		for i := 0; i < nCoins; i++ {
			if xp[i].Sign() <= 0 {
				return nil, ErrEmptyReserve
			}
			dp.Mul(dp, d)
			dp.Quo(dp, new(big.Int).Mul(xp[i], bigN))
		}
		dPrev.Set(d)

		// D = (Ann·S/A_PRECISION + D_P·n) · D
		//     / ((Ann - A_PRECISION)·D/A_PRECISION + (n+1)·D_P)
		num := new(big.Int).Mul(ann, s)
		num.Quo(num, bigAPre)
		num.Add(num, new(big.Int).Mul(dp, bigN))
		num.Mul(num, d)

		den := new(big.Int).Sub(ann, bigAPre)
		den.Mul(den, d)
		den.Quo(den, bigAPre)
		den.Add(den, new(big.Int).Mul(dp, bigNp1))

		d = num.Quo(num, den)
		if absDiff(d, dPrev).Cmp(bigOne) <= 0 {
			return d, nil
		}
	}
	return nil, ErrConvergence
}

// solveCounterpartyBalance returns the normalized balance the out-slot must
// hold to preserve the invariant of xp after the in-slot moves to x. Used for
// trade pricing: the output amount is xp[out] minus the result.
func solveCounterpartyBalance(in, out int, x *big.Int, xp [nCoins]*big.Int, amp *big.Int) (*big.Int, error) {
	if in == out {
		return nil, ErrSameAsset
	}
	if in < 0 || in >= nCoins || out < 0 || out >= nCoins {
		return nil, ErrInvalidAsset
	}
	d, err := computeInvariant(xp, amp)
	if err != nil {
		return nil, err
	}
	return solveQuadratic(out, x, xp, amp, d, in)
}

// solveBalanceForInvariant returns the normalized balance slot i must hold
// for the remaining balances to satisfy a target invariant d. Used to size
// single-asset withdrawals against a reduced D.
func solveBalanceForInvariant(i int, xp [nCoins]*big.Int, amp, d *big.Int) (*big.Int, error) {
	if i < 0 || i >= nCoins {
		return nil, ErrInvalidAsset
	}
	return solveQuadratic(i, nil, xp, amp, d, -1)
}

// solveQuadratic runs the single-variable Newton solve
//
//	y_{k+1} = (y_k² + c) / (2·y_k + b - D)
//
// shared by both counterparty solves. When in >= 0 the in-slot contributes
// the overriding balance x; slot "missing" is the one being solved for.
func solveQuadratic(missing int, x *big.Int, xp [nCoins]*big.Int, amp, d *big.Int, in int) (*big.Int, error) {
	ann := new(big.Int).Mul(amp, bigN)
	c := new(big.Int).Set(d)
	s := new(big.Int)
	for k := 0; k < nCoins; k++ {
		var xk *big.Int
		switch {
		case k == missing:
			continue
		case k == in:
			xk = x
		default:
			xk = xp[k]
		}
		if xk == nil || xk.Sign() <= 0 {
			return nil, ErrEmptyReserve
		}
		s.Add(s, xk)
		c.Mul(c, d)
		c.Quo(c, new(big.Int).Mul(xk, bigN))
	}
	// c = c·D·A_PRECISION / (Ann·n);  b = S + D·A_PRECISION/Ann
	c.Mul(c, d)
	c.Mul(c, bigAPre)
	c.Quo(c, new(big.Int).Mul(ann, bigN))
	b := new(big.Int).Quo(new(big.Int).Mul(d, bigAPre), ann)
	b.Add(b, s)

	y := new(big.Int).Set(d)
	yPrev := new(big.Int)
	for iter := 0; iter < maxIterations; iter++ {
		yPrev.Set(y)
		num := new(big.Int).Mul(y, y)
		num.Add(num, c)
		den := new(big.Int).Mul(y, bigTwo)
		den.Add(den, b)
		den.Sub(den, d)
		y = num.Quo(num, den)
		if absDiff(y, yPrev).Cmp(bigOne) <= 0 {
			return y, nil
		}
	}
	return nil, ErrConvergence
}

// currentAmp interpolates the ampPrecision-scaled amplification coefficient
// linearly over the ramp window; outside [RampStart, RampEnd] it equals the
// boundary value. Pure function of the schedule and the supplied timestamp.
func currentAmp(s AmpSchedule, now uint64) *big.Int {
	if s.Future == nil {
		return cloneBig(s.Initial)
	}
	if now >= s.RampEnd || s.RampEnd <= s.RampStart {
		return cloneBig(s.Future)
	}
	if now <= s.RampStart {
		return cloneBig(s.Initial)
	}
	elapsed := new(big.Int).SetUint64(now - s.RampStart)
	window := new(big.Int).SetUint64(s.RampEnd - s.RampStart)
	delta := new(big.Int).Sub(s.Future, s.Initial)
	delta.Mul(delta, elapsed)
	delta.Quo(delta, window)
	return delta.Add(delta, s.Initial)
}

func absDiff(a, b *big.Int) *big.Int {
	diff := new(big.Int).Sub(a, b)
	return diff.Abs(diff)
}
