package stableswap

import "math/big"

// Rate normalization converts each asset's raw balance into the common 1e18
// precision via its per-asset rate multiplier (itself 1e18-scaled, so a
// one-to-one asset uses precisionScale and a liquid-staking token carries its
// exchange rate). normalize rounds down; denormalize also rounds down so the
// pool never pays out more than the normalized amount represents, keeping the
// pair bijective up to that deliberate rounding loss.

// normalize converts raw units of slot i to the 1e18 precision:
// raw · rate / 1e18.
func (p *Pool) normalize(raw *big.Int, i int) *big.Int {
	out := new(big.Int).Mul(raw, p.Assets[i].RateMultiplier)
	return out.Quo(out, precisionScale)
}

// denormalize converts a 1e18-precision amount back to raw units of slot i,
// rounding down: norm · 1e18 / rate.
func (p *Pool) denormalize(norm *big.Int, i int) *big.Int {
	out := new(big.Int).Mul(norm, precisionScale)
	return out.Quo(out, p.Assets[i].RateMultiplier)
}

// xp returns the normalized tradable balances of both slots.
func (p *Pool) xp() [nCoins]*big.Int {
	var out [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		out[i] = p.normalize(p.Assets[i].Balance, i)
	}
	return out
}

// xpFor normalizes an arbitrary raw balance vector with the pool's rates.
func (p *Pool) xpFor(raw [nCoins]*big.Int) [nCoins]*big.Int {
	var out [nCoins]*big.Int
	for i := 0; i < nCoins; i++ {
		out[i] = p.normalize(raw[i], i)
	}
	return out
}
