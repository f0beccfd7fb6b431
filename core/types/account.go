package types

import "math/big"

// Account captures the balances tracked for every address participating in
// the pool: the native PEG currency and the SPEG liquid-staking token.
type Account struct {
	Nonce       uint64   `json:"nonce"`
	BalancePEG  *big.Int `json:"balancePEG"`
	BalanceSPEG *big.Int `json:"balanceSPEG"`
}

// EnsureDefaults initialises nil balances so callers can mutate in place.
func (a *Account) EnsureDefaults() {
	if a == nil {
		return
	}
	if a.BalancePEG == nil {
		a.BalancePEG = big.NewInt(0)
	}
	if a.BalanceSPEG == nil {
		a.BalanceSPEG = big.NewInt(0)
	}
}
