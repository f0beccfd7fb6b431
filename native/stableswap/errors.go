package stableswap

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrNotInitialized      = errors.New("stableswap: pool not initialised")
	ErrAlreadyInitialized  = errors.New("stableswap: pool already initialised")
	ErrNilState            = errors.New("stableswap: state not configured")
	ErrInvalidAsset        = errors.New("stableswap: invalid asset index")
	ErrSameAsset           = errors.New("stableswap: cannot trade an asset against itself")
	ErrZeroAmount          = errors.New("stableswap: amount must be positive")
	ErrZeroAddress         = errors.New("stableswap: address must not be empty")
	ErrInitialDeposit      = errors.New("stableswap: first deposit requires both assets")
	ErrNoDeposit           = errors.New("stableswap: deposit does not grow the invariant")
	ErrEmptyReserve        = errors.New("stableswap: reserve must be positive")
	ErrSupplyEmpty         = errors.New("stableswap: no liquidity shares outstanding")
	ErrInsufficientBalance = errors.New("stableswap: insufficient balance")
	ErrNativeValueMismatch = errors.New("stableswap: attached value must equal the declared native amount")
	ErrUnexpectedValue     = errors.New("stableswap: attached value on a token-only operation")
	ErrTransferRejected    = errors.New("stableswap: native transfer rejected by receiver")
	ErrPaused              = errors.New("stableswap: pool paused")
	ErrUnauthorized        = errors.New("stableswap: caller lacks required role")
	ErrLastAdmin           = errors.New("stableswap: cannot revoke the last admin")
	ErrConvergence         = errors.New("stableswap: solver exceeded iteration cap")
	ErrFeeTooHigh          = errors.New("stableswap: fee fraction above protocol maximum")
	ErrAmpOutOfRange       = errors.New("stableswap: amplification out of range")
	ErrRampTooShort        = errors.New("stableswap: ramp window below minimum duration")
	ErrRampTooLarge        = errors.New("stableswap: ramp change factor too large")
	ErrOracleUnavailable   = errors.New("stableswap: oracle price unavailable")
)

// SlippageError reports that a caller-specified bound was violated. Limit is
// the caller's bound and Actual the computed amount, both in raw units.
type SlippageError struct {
	Op     string
	Limit  *big.Int
	Actual *big.Int
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("stableswap: %s slippage: limit %s, actual %s", e.Op, e.Limit, e.Actual)
}

// PriceDeviationError reports the asset whose implied execution price moved
// beyond its oracle-relative threshold. Deviation and Threshold are 1e18
// scaled relative fractions.
type PriceDeviationError struct {
	Asset     string
	Deviation *big.Int
	Threshold *big.Int
}

func (e *PriceDeviationError) Error() string {
	return fmt.Sprintf("stableswap: %s price deviates %s/1e18 from oracle, threshold %s/1e18",
		e.Asset, e.Deviation, e.Threshold)
}
