package stableswap

import (
	"fmt"
	"math/big"

	"pegpool/core/types"
	"pegpool/crypto"
)

// stagedAccount pairs an address with its mutated in-memory copy before the
// commit step writes it back.
type stagedAccount struct {
	addr crypto.Address
	acc  *types.Account
}

// stageAll captures pre-images for every touched account so a rejected
// outbound transfer can restore the ledger. Duplicate addresses collapse to
// their last staged copy.
func (e *Engine) stageAll(entries map[string]*stagedAccount) ([]accountDelta, error) {
	deltas := make([]accountDelta, 0, len(entries))
	for _, entry := range entries {
		delta, err := e.stage(entry.addr, entry.acc)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, delta)
	}
	return deltas, nil
}

// checkAttachedValue enforces the native-value contract of a call: the
// attached value must equal the declared amount when the asset is native and
// must be absent otherwise.
func checkAttachedValue(a Asset, declared, attached *big.Int) error {
	if attached == nil {
		attached = big.NewInt(0)
	}
	if a.Native {
		if attached.Cmp(declared) != 0 {
			return ErrNativeValueMismatch
		}
		return nil
	}
	if attached.Sign() != 0 {
		return ErrUnexpectedValue
	}
	return nil
}

// checkAttachedAmounts is the deposit variant: the attached value must equal
// the declared amount of the native slot, or zero when no slot is native.
func checkAttachedAmounts(pool *Pool, amounts [nCoins]*big.Int, attached *big.Int) error {
	if attached == nil {
		attached = big.NewInt(0)
	}
	expected := big.NewInt(0)
	for i := 0; i < nCoins; i++ {
		if pool.Assets[i].Native && amounts[i] != nil {
			expected = amounts[i]
		}
	}
	if attached.Cmp(expected) != 0 {
		if expected.Sign() == 0 {
			return ErrUnexpectedValue
		}
		return ErrNativeValueMismatch
	}
	return nil
}

// moveAsset transfers amount of the given pool asset between two staged
// accounts, failing on insufficient funds.
func moveAsset(from, to *types.Account, a Asset, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	src := assetBalance(from, a)
	if src.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	setAssetBalance(from, a, new(big.Int).Sub(src, amount))
	setAssetBalance(to, a, new(big.Int).Add(assetBalance(to, a), amount))
	return nil
}

// payoutNative notifies the receiver hook of an outbound native transfer.
// The ledger has already committed when this runs; callers roll back on
// rejection.
func (e *Engine) payoutNative(to crypto.Address, amount *big.Int) error {
	if e.receiver == nil || amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.receiver.ReceiveNative(to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferRejected, err)
	}
	return nil
}
