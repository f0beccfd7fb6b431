package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"pegpool/core/types"
	"pegpool/crypto"
	"pegpool/storage"
)

// Manager persists the account ledger the pool engine settles against. Each
// account is stored under its raw address bytes as an RLP record.
type Manager struct {
	db storage.Database
}

// NewManager binds the ledger to a key-value backend.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type storedAccount struct {
	Nonce       uint64
	BalancePEG  *uint256.Int
	BalanceSPEG *uint256.Int
}

// GetAccount reconstructs the account stored under the address. Unknown
// addresses yield a defaulted zero-balance account.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	if len(addr.Bytes()) == 0 {
		return nil, fmt.Errorf("state: address must not be empty")
	}
	account := &types.Account{}
	account.EnsureDefaults()
	encoded, err := m.db.Get(accountKey(addr))
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
		return account, nil
	case err != nil:
		return nil, fmt.Errorf("state: load account: %w", err)
	case len(encoded) == 0:
		return account, nil
	}
	var record storedAccount
	if err := rlp.DecodeBytes(encoded, &record); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	account.Nonce = record.Nonce
	if record.BalancePEG != nil {
		account.BalancePEG = record.BalancePEG.ToBig()
	}
	if record.BalanceSPEG != nil {
		account.BalanceSPEG = record.BalanceSPEG.ToBig()
	}
	return account, nil
}

// PutAccount persists the account under the address.
func (m *Manager) PutAccount(addr crypto.Address, account *types.Account) error {
	if len(addr.Bytes()) == 0 {
		return fmt.Errorf("state: address must not be empty")
	}
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	account.EnsureDefaults()
	peg, overflow := uint256.FromBig(account.BalancePEG)
	if overflow || account.BalancePEG.Sign() < 0 {
		return fmt.Errorf("state: PEG balance out of range")
	}
	speg, overflow := uint256.FromBig(account.BalanceSPEG)
	if overflow || account.BalanceSPEG.Sign() < 0 {
		return fmt.Errorf("state: SPEG balance out of range")
	}
	record := storedAccount{Nonce: account.Nonce, BalancePEG: peg, BalanceSPEG: speg}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return m.db.Put(accountKey(addr), encoded)
}

func accountKey(addr crypto.Address) []byte {
	return append([]byte("state/account/"), addr.Bytes()...)
}
