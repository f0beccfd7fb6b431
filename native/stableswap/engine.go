package stableswap

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"pegpool/core/types"
	"pegpool/crypto"
)

// engineState exposes the account persistence the engine requires.
type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

// LPToken is the external fungible-share collaborator. The pool is its sole
// authorized minter; holder balances and allowances live with the token.
type LPToken interface {
	Mint(to crypto.Address, amount *big.Int) error
	Burn(from crypto.Address, amount *big.Int) error
}

// NativeReceiver models the push-send acceptance of an outbound native
// transfer. A rejection aborts (and rolls back) the whole operation. A nil
// receiver accepts every send.
type NativeReceiver interface {
	ReceiveNative(to crypto.Address, amount *big.Int) error
}

// Engine orchestrates every state transition of the pool: trades, liquidity
// changes, and lifecycle updates. Public operations serialize on an internal
// lock and commit their staged mutations atomically.
type Engine struct {
	mu          sync.Mutex
	state       engineState
	store       *PoolStore
	pool        *Pool
	roles       map[string]map[string]struct{}
	oracle      PriceOracle
	lp          LPToken
	receiver    NativeReceiver
	poolAddress crypto.Address
	clock       func() time.Time
}

// NewEngine constructs an engine bound to the pool custody address and its
// external collaborators.
func NewEngine(poolAddress crypto.Address, oracle PriceOracle, lp LPToken) *Engine {
	return &Engine{
		poolAddress: poolAddress,
		oracle:      oracle,
		lp:          lp,
		roles:       make(map[string]map[string]struct{}),
		clock:       time.Now,
	}
}

// SetState wires the engine to the external account persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetStore wires pool-state persistence; nil keeps the pool in memory only.
func (e *Engine) SetStore(store *PoolStore) { e.store = store }

// SetReceiver installs the outbound native transfer hook.
func (e *Engine) SetReceiver(r NativeReceiver) { e.receiver = r }

// SetClock overrides the engine clock, primarily for deterministic testing.
func (e *Engine) SetClock(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.clock = now
}

func (e *Engine) now() uint64 {
	return uint64(e.clock().Unix())
}

// AssetConfig declares one pool slot at initialization.
type AssetConfig struct {
	Symbol         string
	RateMultiplier *big.Int
	Native         bool
}

// InitConfig carries the one-time pool configuration.
type InitConfig struct {
	Assets          [nCoins]AssetConfig
	Amplification   *big.Int         // raw, unscaled
	SwapFee         *big.Int         // feeScale fraction
	AdminFee        *big.Int         // feeScale fraction of the swap fee
	PriceThresholds [nCoins]*big.Int // 1e18 relative deviations
	Admin           crypto.Address
	Manager         crypto.Address
	Pauser          crypto.Address
}

// Initialize establishes the pool configuration exactly once. There is no
// re-initialization path: a second call fails regardless of parameters.
func (e *Engine) Initialize(cfg InitConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool != nil {
		return ErrAlreadyInitialized
	}
	if cfg.Amplification == nil || cfg.Amplification.Sign() <= 0 || cfg.Amplification.Cmp(maxAmp) >= 0 {
		return ErrAmpOutOfRange
	}
	if err := validateFees(cfg.SwapFee, cfg.AdminFee); err != nil {
		return err
	}
	for _, addr := range []crypto.Address{cfg.Admin, cfg.Manager, cfg.Pauser} {
		if len(addr.Bytes()) == 0 {
			return ErrZeroAddress
		}
	}
	pool := &Pool{LPSupply: big.NewInt(0)}
	for i := 0; i < nCoins; i++ {
		symbol := strings.ToUpper(strings.TrimSpace(cfg.Assets[i].Symbol))
		if symbol == "" {
			return ErrInvalidAsset
		}
		if cfg.Assets[i].RateMultiplier == nil || cfg.Assets[i].RateMultiplier.Sign() <= 0 {
			return ErrInvalidAsset
		}
		pool.Assets[i] = Asset{
			Symbol:         symbol,
			Balance:        big.NewInt(0),
			RateMultiplier: new(big.Int).Set(cfg.Assets[i].RateMultiplier),
			Native:         cfg.Assets[i].Native,
		}
		pool.PriceThresholds[i] = cloneBig(cfg.PriceThresholds[i])
		pool.AccruedAdminFees[i] = big.NewInt(0)
	}
	if pool.Assets[0].Symbol == pool.Assets[1].Symbol {
		return ErrSameAsset
	}
	if pool.Assets[0].Native && pool.Assets[1].Native {
		return ErrInvalidAsset
	}
	precise := new(big.Int).Mul(cfg.Amplification, bigAPre)
	pool.Amp = AmpSchedule{Initial: precise, Future: new(big.Int).Set(precise)}
	pool.Fees = FeeConfig{SwapFee: cloneBig(cfg.SwapFee), AdminFee: cloneBig(cfg.AdminFee)}

	roles := map[string]map[string]struct{}{
		RoleAdmin:   {string(cfg.Admin.Bytes()): {}},
		RoleManager: {string(cfg.Manager.Bytes()): {}},
		RolePauser:  {string(cfg.Pauser.Bytes()): {}},
	}
	if err := e.persist(pool, roles); err != nil {
		return err
	}
	e.pool = pool
	e.roles = roles
	return nil
}

// Restore loads a previously persisted pool from the configured store so a
// restarted service resumes where it left off.
func (e *Engine) Restore() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return ErrNilState
	}
	pool, roles, ok, err := e.store.Load()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialized
	}
	e.pool = pool
	e.roles = roles
	return nil
}

func validateFees(swapFee, adminFee *big.Int) error {
	if swapFee == nil || swapFee.Sign() < 0 || swapFee.Cmp(maxFeeFraction) > 0 {
		return ErrFeeTooHigh
	}
	if adminFee == nil || adminFee.Sign() < 0 || adminFee.Cmp(maxAdminFeeFraction) > 0 {
		return ErrFeeTooHigh
	}
	return nil
}

// --- account plumbing ---

// loadAccount returns a defaulted copy of the stored account; mutations only
// take effect when the operation commits.
func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{}
	}
	copied := &types.Account{
		Nonce:       acc.Nonce,
		BalancePEG:  cloneBig(acc.BalancePEG),
		BalanceSPEG: cloneBig(acc.BalanceSPEG),
	}
	copied.EnsureDefaults()
	return copied, nil
}

// assetBalance returns the account balance pointer for a pool slot. The
// native slot maps to the PEG balance, the token slot to SPEG.
func assetBalance(acc *types.Account, a Asset) *big.Int {
	if a.Native {
		return acc.BalancePEG
	}
	return acc.BalanceSPEG
}

func setAssetBalance(acc *types.Account, a Asset, v *big.Int) {
	if a.Native {
		acc.BalancePEG = v
	} else {
		acc.BalanceSPEG = v
	}
}

// accountDelta pairs a staged account mutation with its pre-image so a failed
// post-commit effect can restore the prior ledger in full.
type accountDelta struct {
	addr crypto.Address
	next *types.Account
	prev *types.Account
}

func (e *Engine) stage(addr crypto.Address, next *types.Account) (accountDelta, error) {
	prev, err := e.loadAccount(addr)
	if err != nil {
		return accountDelta{}, err
	}
	return accountDelta{addr: addr, next: next, prev: prev}, nil
}

// commit persists the staged pool and accounts. Internal ledger state is
// fully written before any external transfer hook runs.
func (e *Engine) commit(pool *Pool, touched []accountDelta) error {
	for _, t := range touched {
		if err := e.state.PutAccount(t.addr, t.next); err != nil {
			return err
		}
	}
	if err := e.persist(pool, e.roles); err != nil {
		return err
	}
	e.pool = pool
	return nil
}

// rollbackTo restores the pre-operation pool and account images after a
// rejected external transfer, keeping the operation atomic.
func (e *Engine) rollbackTo(prevPool *Pool, touched []accountDelta) {
	for _, t := range touched {
		_ = e.state.PutAccount(t.addr, t.prev)
	}
	_ = e.persist(prevPool, e.roles)
	e.pool = prevPool
}

func (e *Engine) persist(pool *Pool, roles map[string]map[string]struct{}) error {
	if e.store == nil {
		return nil
	}
	return e.store.Save(pool, roles)
}

// guardCommon runs the checks shared by every mutating operation.
func (e *Engine) guardCommon(requireActive bool) error {
	if e.pool == nil {
		return ErrNotInitialized
	}
	if e.state == nil {
		return ErrNilState
	}
	if requireActive && e.pool.Paused {
		return ErrPaused
	}
	return nil
}

// --- read accessors ---

// Balances returns the tradable reserve of slot i in raw units.
func (e *Engine) Balances(i int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return nil, ErrNotInitialized
	}
	if i < 0 || i >= nCoins {
		return nil, ErrInvalidAsset
	}
	return cloneBig(e.pool.Assets[i].Balance), nil
}

// Coins returns the symbol occupying slot i.
func (e *Engine) Coins(i int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return "", ErrNotInitialized
	}
	if i < 0 || i >= nCoins {
		return "", ErrInvalidAsset
	}
	return e.pool.Assets[i].Symbol, nil
}

// Amplification returns the current effective coefficient, unscaled.
func (e *Engine) Amplification() (*big.Int, error) {
	precise, err := e.AmplificationPrecise()
	if err != nil {
		return nil, err
	}
	return precise.Quo(precise, bigAPre), nil
}

// AmplificationPrecise returns the ampPrecision-scaled effective coefficient.
func (e *Engine) AmplificationPrecise() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return nil, ErrNotInitialized
	}
	return currentAmp(e.pool.Amp, e.now()), nil
}

// LPSupply returns the outstanding share count.
func (e *Engine) LPSupply() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return nil, ErrNotInitialized
	}
	return cloneBig(e.pool.LPSupply), nil
}

// AdminFeeBalance returns the accrued admin fees for slot i in raw units.
func (e *Engine) AdminFeeBalance(i int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return nil, ErrNotInitialized
	}
	if i < 0 || i >= nCoins {
		return nil, ErrInvalidAsset
	}
	return cloneBig(e.pool.AccruedAdminFees[i]), nil
}

// Snapshot returns a deep copy of the pool for read-only collaborators such
// as the pool-info quoting service.
func (e *Engine) Snapshot() (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return nil, ErrNotInitialized
	}
	return e.pool.Clone(), nil
}
