package stableswap

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"pegpool/storage"
)

var poolStateKey = []byte("stableswap/pool")

// PoolStore persists the pool configuration, reserves, and role assignments
// so a restarted service resumes from its last committed state.
type PoolStore struct {
	db storage.Database
}

func NewPoolStore(db storage.Database) *PoolStore {
	return &PoolStore{db: db}
}

type storedAsset struct {
	Symbol         string
	Balance        *uint256.Int
	RateMultiplier *uint256.Int
	Native         bool
}

type storedThreshold struct {
	Set   bool
	Value *uint256.Int
}

type storedRole struct {
	Role    string
	Members [][]byte
}

type storedPool struct {
	Assets     []storedAsset
	AmpInitial *big.Int
	AmpFuture  *big.Int
	RampStart  uint64
	RampEnd    uint64
	SwapFee    *big.Int
	AdminFee   *big.Int
	Thresholds []storedThreshold
	AdminFees  []*uint256.Int
	LPSupply   *uint256.Int
	Paused     bool
	Roles      []storedRole
}

func toStoredAmount(label string, v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return uint256.NewInt(0), nil
	}
	out, overflow := uint256.FromBig(v)
	if overflow || v.Sign() < 0 {
		return nil, fmt.Errorf("stableswap: %s out of range", label)
	}
	return out, nil
}

// Save writes the complete pool state under a single key.
func (s *PoolStore) Save(pool *Pool, roles map[string]map[string]struct{}) error {
	if s == nil || s.db == nil {
		return ErrNilState
	}
	record := storedPool{
		AmpInitial: cloneBig(pool.Amp.Initial),
		AmpFuture:  cloneBig(pool.Amp.Future),
		RampStart:  pool.Amp.RampStart,
		RampEnd:    pool.Amp.RampEnd,
		SwapFee:    cloneBig(pool.Fees.SwapFee),
		AdminFee:   cloneBig(pool.Fees.AdminFee),
		Paused:     pool.Paused,
	}
	supply, err := toStoredAmount("lp supply", pool.LPSupply)
	if err != nil {
		return err
	}
	record.LPSupply = supply
	for i := 0; i < nCoins; i++ {
		balance, err := toStoredAmount(pool.Assets[i].Symbol+" balance", pool.Assets[i].Balance)
		if err != nil {
			return err
		}
		rate, err := toStoredAmount(pool.Assets[i].Symbol+" rate", pool.Assets[i].RateMultiplier)
		if err != nil {
			return err
		}
		record.Assets = append(record.Assets, storedAsset{
			Symbol:         pool.Assets[i].Symbol,
			Balance:        balance,
			RateMultiplier: rate,
			Native:         pool.Assets[i].Native,
		})
		threshold := storedThreshold{Value: uint256.NewInt(0)}
		if pool.PriceThresholds[i] != nil {
			value, err := toStoredAmount(pool.Assets[i].Symbol+" threshold", pool.PriceThresholds[i])
			if err != nil {
				return err
			}
			threshold = storedThreshold{Set: true, Value: value}
		}
		record.Thresholds = append(record.Thresholds, threshold)
		adminFee, err := toStoredAmount(pool.Assets[i].Symbol+" admin fees", pool.AccruedAdminFees[i])
		if err != nil {
			return err
		}
		record.AdminFees = append(record.AdminFees, adminFee)
	}
	roleNames := make([]string, 0, len(roles))
	for role := range roles {
		roleNames = append(roleNames, role)
	}
	sort.Strings(roleNames)
	for _, role := range roleNames {
		members := make([]string, 0, len(roles[role]))
		for member := range roles[role] {
			members = append(members, member)
		}
		sort.Strings(members)
		entry := storedRole{Role: role}
		for _, member := range members {
			entry.Members = append(entry.Members, []byte(member))
		}
		record.Roles = append(record.Roles, entry)
	}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return fmt.Errorf("stableswap: encode pool: %w", err)
	}
	return s.db.Put(poolStateKey, encoded)
}

// Load reads the persisted pool state. The boolean is false when nothing has
// been stored yet.
func (s *PoolStore) Load() (*Pool, map[string]map[string]struct{}, bool, error) {
	if s == nil || s.db == nil {
		return nil, nil, false, ErrNilState
	}
	encoded, err := s.db.Get(poolStateKey)
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
		return nil, nil, false, nil
	case err != nil:
		return nil, nil, false, fmt.Errorf("stableswap: load pool: %w", err)
	case len(encoded) == 0:
		return nil, nil, false, nil
	}
	var record storedPool
	if err := rlp.DecodeBytes(encoded, &record); err != nil {
		return nil, nil, false, fmt.Errorf("stableswap: decode pool: %w", err)
	}
	if len(record.Assets) != nCoins || len(record.Thresholds) != nCoins || len(record.AdminFees) != nCoins {
		return nil, nil, false, fmt.Errorf("stableswap: decode pool: unexpected slot count")
	}
	pool := &Pool{
		Amp: AmpSchedule{
			Initial:   cloneBig(record.AmpInitial),
			Future:    cloneBig(record.AmpFuture),
			RampStart: record.RampStart,
			RampEnd:   record.RampEnd,
		},
		Fees:     FeeConfig{SwapFee: cloneBig(record.SwapFee), AdminFee: cloneBig(record.AdminFee)},
		LPSupply: record.LPSupply.ToBig(),
		Paused:   record.Paused,
	}
	for i := 0; i < nCoins; i++ {
		pool.Assets[i] = Asset{
			Symbol:         record.Assets[i].Symbol,
			Balance:        record.Assets[i].Balance.ToBig(),
			RateMultiplier: record.Assets[i].RateMultiplier.ToBig(),
			Native:         record.Assets[i].Native,
		}
		if record.Thresholds[i].Set {
			pool.PriceThresholds[i] = record.Thresholds[i].Value.ToBig()
		}
		pool.AccruedAdminFees[i] = record.AdminFees[i].ToBig()
	}
	roles := make(map[string]map[string]struct{}, len(record.Roles))
	for _, entry := range record.Roles {
		members := make(map[string]struct{}, len(entry.Members))
		for _, member := range entry.Members {
			members[string(member)] = struct{}{}
		}
		roles[entry.Role] = members
	}
	return pool, roles, true, nil
}
