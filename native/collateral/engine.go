package collateral

import (
	"errors"
	"math/big"
	"sync"

	"pegpool/crypto"
	nativecommon "pegpool/native/common"
	"pegpool/native/lptoken"
)

var (
	errNilToken      = errors.New("collateral engine: token not configured")
	errInvalidAmount = errors.New("collateral engine: amount must be positive")
	errZeroAddress   = errors.New("collateral engine: address must not be empty")
)

const moduleName = "collateral"

// Engine wraps pool shares one-to-one into a transferable collateral token.
// Shares are escrowed at the module address while the wrapped supply is
// outstanding, so the wrapped supply always equals the escrowed share
// balance.
type Engine struct {
	mu            sync.Mutex
	shares        *lptoken.Token
	wrapped       *lptoken.Token
	moduleAddress crypto.Address
	pauses        nativecommon.PauseView
}

// NewEngine binds the wrapper to the underlying share token, the wrapped
// token it mints, and the escrow address.
func NewEngine(shares, wrapped *lptoken.Token, moduleAddress crypto.Address) *Engine {
	return &Engine{shares: shares, wrapped: wrapped, moduleAddress: moduleAddress}
}

// SetPauses wires the module pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Wrap escrows amount pool shares and mints the same amount of wrapped
// collateral to the caller.
func (e *Engine) Wrap(caller crypto.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.shares == nil || e.wrapped == nil {
		return errNilToken
	}
	if len(caller.Bytes()) == 0 {
		return errZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := e.shares.Transfer(caller, e.moduleAddress, amount); err != nil {
		return err
	}
	if err := e.wrapped.Mint(caller, amount); err != nil {
		// Release the escrowed shares so a failed mint cannot strand them.
		_ = e.shares.Transfer(e.moduleAddress, caller, amount)
		return err
	}
	return nil
}

// Unwrap burns amount wrapped collateral and releases the escrowed shares.
// Available while paused so collateral holders can always exit.
func (e *Engine) Unwrap(caller crypto.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shares == nil || e.wrapped == nil {
		return errNilToken
	}
	if len(caller.Bytes()) == 0 {
		return errZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if err := e.wrapped.Burn(caller, amount); err != nil {
		return err
	}
	if err := e.shares.Transfer(e.moduleAddress, caller, amount); err != nil {
		_ = e.wrapped.Mint(caller, amount)
		return err
	}
	return nil
}

// Escrowed returns the share balance currently held against wrapped supply.
func (e *Engine) Escrowed() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shares == nil {
		return nil, errNilToken
	}
	return e.shares.BalanceOf(e.moduleAddress)
}
