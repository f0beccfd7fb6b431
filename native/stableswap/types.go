package stableswap

import (
	"math/big"
	"strings"
)

const moduleName = "stableswap"

// Fixed-point scales used throughout the pool. Every arithmetic helper in
// this package documents its operand and result scales against these bases.
var (
	// precisionScale is the common 1e18 base all balances are normalized to.
	precisionScale = big.NewInt(1_000_000_000_000_000_000)
	// feeScale is the 1e10 denominator for swap/admin fee fractions.
	feeScale = big.NewInt(10_000_000_000)
	// priceScale is the 1e8 base oracle prices are quoted in.
	priceScale = big.NewInt(100_000_000)
	// deviationScale is the 1e18 base for relative price deviations.
	deviationScale = big.NewInt(1_000_000_000_000_000_000)
)

const (
	// nCoins is fixed: the pool always pairs exactly two pegged assets.
	nCoins = 2
	// ampPrecision scales the amplification coefficient for integer ramping.
	ampPrecision = 100
	// maxIterations caps the Newton solves; exceeding it fails closed.
	maxIterations = 255
	// minRampDuration is the shortest allowed amplification ramp window.
	minRampDuration = 86_400
	// maxAmpChangeFactor bounds a single ramp to a 10x move either way.
	maxAmpChangeFactor = 10
)

var (
	// maxFeeFraction caps the swap fee at 50% of feeScale.
	maxFeeFraction = big.NewInt(5_000_000_000)
	// maxAdminFeeFraction allows routing up to the whole swap fee to admin.
	maxAdminFeeFraction = big.NewInt(10_000_000_000)
	// maxAmp bounds the raw (unscaled) amplification coefficient.
	maxAmp = big.NewInt(1_000_000)
)

// Roles gate the lifecycle operations. ADMIN governs role grants and admin
// fee withdrawal, MANAGER governs fee and ramp parameters, PAUSER the pause
// gate.
const (
	RoleAdmin   = "ROLE_ADMIN"
	RoleManager = "ROLE_MANAGER"
	RolePauser  = "ROLE_PAUSER"
)

// Asset describes one side of the pool: its symbol, raw custody balance, the
// 1e18-scaled multiplier converting raw units into the normalized precision,
// and whether it is the chain's native currency.
type Asset struct {
	Symbol         string
	Balance        *big.Int
	RateMultiplier *big.Int
	Native         bool
}

// AmpSchedule holds the amplification ramp. Initial and Future are scaled by
// ampPrecision; the effective value interpolates linearly over
// [RampStart, RampEnd] (unix seconds) and equals the boundary value outside
// the window.
type AmpSchedule struct {
	Initial   *big.Int
	Future    *big.Int
	RampStart uint64
	RampEnd   uint64
}

// FeeConfig carries the pool fee fractions, both at feeScale.
type FeeConfig struct {
	SwapFee  *big.Int
	AdminFee *big.Int
}

// Pool is the complete mutable state of a deployment. Balances always
// reflect actual custody; AccruedAdminFees are retained in-pool but excluded
// from the tradable reserves.
type Pool struct {
	Assets           [nCoins]Asset
	Amp              AmpSchedule
	Fees             FeeConfig
	PriceThresholds  [nCoins]*big.Int
	AccruedAdminFees [nCoins]*big.Int
	LPSupply         *big.Int
	Paused           bool
}

// Clone produces a deep copy so operations can stage mutations and commit or
// discard them atomically.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	out := &Pool{Paused: p.Paused}
	for i := 0; i < nCoins; i++ {
		out.Assets[i] = Asset{
			Symbol:         p.Assets[i].Symbol,
			Balance:        cloneBig(p.Assets[i].Balance),
			RateMultiplier: cloneBig(p.Assets[i].RateMultiplier),
			Native:         p.Assets[i].Native,
		}
		out.PriceThresholds[i] = cloneBig(p.PriceThresholds[i])
		out.AccruedAdminFees[i] = cloneBig(p.AccruedAdminFees[i])
	}
	out.Amp = AmpSchedule{
		Initial:   cloneBig(p.Amp.Initial),
		Future:    cloneBig(p.Amp.Future),
		RampStart: p.Amp.RampStart,
		RampEnd:   p.Amp.RampEnd,
	}
	out.Fees = FeeConfig{SwapFee: cloneBig(p.Fees.SwapFee), AdminFee: cloneBig(p.Fees.AdminFee)}
	out.LPSupply = cloneBig(p.LPSupply)
	return out
}

// AssetIndex resolves a symbol to its slot, or -1 when unknown.
func (p *Pool) AssetIndex(symbol string) int {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	for i := 0; i < nCoins; i++ {
		if strings.ToUpper(p.Assets[i].Symbol) == trimmed {
			return i
		}
	}
	return -1
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
