package lptoken

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"pegpool/crypto"
	"pegpool/storage"
)

var (
	errInvalidSymbol       = errors.New("lptoken: symbol must not be empty")
	errZeroAddress         = errors.New("lptoken: address must not be empty")
	errInvalidAmount       = errors.New("lptoken: amount must be positive")
	errInsufficientBalance = errors.New("lptoken: insufficient balance")
)

// Token is the fungible share ledger for pool liquidity. The pool engine is
// constructed with the handle and is the sole party able to mint and burn;
// everyone else interacts through Transfer and the read accessors.
type Token struct {
	mu     sync.Mutex
	symbol string
	db     storage.Database
	supply *big.Int
	// balances caches holder balances by raw address bytes; the database is
	// the durable copy.
	balances map[string]*big.Int
}

// NewToken creates a share ledger persisting through db. A nil db keeps the
// ledger in memory only.
func NewToken(symbol string, db storage.Database) (*Token, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errInvalidSymbol
	}
	t := &Token{
		symbol:   symbol,
		db:       db,
		supply:   big.NewInt(0),
		balances: make(map[string]*big.Int),
	}
	if db != nil {
		if err := t.loadSupply(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Symbol returns the share symbol.
func (t *Token) Symbol() string { return t.symbol }

// TotalSupply returns the outstanding share count.
func (t *Token) TotalSupply() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.supply)
}

// BalanceOf returns the holder's share balance.
func (t *Token) BalanceOf(addr crypto.Address) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	balance, err := t.balance(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(balance), nil
}

// Mint issues amount shares to the holder.
func (t *Token) Mint(to crypto.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(to.Bytes()) == 0 {
		return errZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	balance, err := t.balance(to)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(balance, amount)
	supply := new(big.Int).Add(t.supply, amount)
	if err := t.persist(to, next, supply); err != nil {
		return err
	}
	t.balances[string(to.Bytes())] = next
	t.supply = supply
	return nil
}

// Burn destroys amount shares held by the holder.
func (t *Token) Burn(from crypto.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(from.Bytes()) == 0 {
		return errZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	balance, err := t.balance(from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	next := new(big.Int).Sub(balance, amount)
	supply := new(big.Int).Sub(t.supply, amount)
	if err := t.persist(from, next, supply); err != nil {
		return err
	}
	t.balances[string(from.Bytes())] = next
	t.supply = supply
	return nil
}

// Transfer moves shares between holders.
func (t *Token) Transfer(from, to crypto.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(from.Bytes()) == 0 || len(to.Bytes()) == 0 {
		return errZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	src, err := t.balance(from)
	if err != nil {
		return err
	}
	if src.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	dst, err := t.balance(to)
	if err != nil {
		return err
	}
	nextSrc := new(big.Int).Sub(src, amount)
	nextDst := new(big.Int).Add(dst, amount)
	if t.db != nil {
		if err := t.writeBalance(from, nextSrc); err != nil {
			return err
		}
		if err := t.writeBalance(to, nextDst); err != nil {
			return err
		}
	}
	t.balances[string(from.Bytes())] = nextSrc
	t.balances[string(to.Bytes())] = nextDst
	return nil
}

func (t *Token) balance(addr crypto.Address) (*big.Int, error) {
	key := string(addr.Bytes())
	if cached, ok := t.balances[key]; ok {
		return cached, nil
	}
	if t.db == nil {
		return big.NewInt(0), nil
	}
	encoded, err := t.db.Get(t.balanceKey(addr))
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
		return big.NewInt(0), nil
	case err != nil:
		return nil, fmt.Errorf("lptoken: load balance: %w", err)
	case len(encoded) == 0:
		return big.NewInt(0), nil
	}
	var stored uint256.Int
	if err := rlp.DecodeBytes(encoded, &stored); err != nil {
		return nil, fmt.Errorf("lptoken: decode balance: %w", err)
	}
	loaded := stored.ToBig()
	t.balances[key] = loaded
	return loaded, nil
}

func (t *Token) persist(addr crypto.Address, balance, supply *big.Int) error {
	if t.db == nil {
		return nil
	}
	if err := t.writeBalance(addr, balance); err != nil {
		return err
	}
	return t.writeAmount(t.supplyKey(), supply, "supply")
}

func (t *Token) writeBalance(addr crypto.Address, balance *big.Int) error {
	return t.writeAmount(t.balanceKey(addr), balance, "balance")
}

func (t *Token) writeAmount(key []byte, amount *big.Int, label string) error {
	value, overflow := uint256.FromBig(amount)
	if overflow || amount.Sign() < 0 {
		return fmt.Errorf("lptoken: %s out of range", label)
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("lptoken: encode %s: %w", label, err)
	}
	return t.db.Put(key, encoded)
}

func (t *Token) loadSupply() error {
	encoded, err := t.db.Get(t.supplyKey())
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lptoken: load supply: %w", err)
	case len(encoded) == 0:
		return nil
	}
	var stored uint256.Int
	if err := rlp.DecodeBytes(encoded, &stored); err != nil {
		return fmt.Errorf("lptoken: decode supply: %w", err)
	}
	t.supply = stored.ToBig()
	return nil
}

func (t *Token) balanceKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("lptoken/%s/balance/%x", t.symbol, addr.Bytes()))
}

func (t *Token) supplyKey() []byte {
	return []byte(fmt.Sprintf("lptoken/%s/supply", t.symbol))
}
