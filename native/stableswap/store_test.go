package stableswap

import (
	"errors"
	"math/big"
	"testing"

	"pegpool/storage"
)

func TestPoolStoreRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	store := NewPoolStore(db)

	if _, _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("empty store must report not-found: ok=%v err=%v", ok, err)
	}

	f := newFixture(t)
	f.engine.SetStore(store)
	mint := f.seed(t)
	dx := scaled(t, 100)
	if _, err := f.engine.Exchange(f.alice, 0, 1, dx, nil, dx); err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	pool, roles, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if pool.LPSupply.Cmp(mint) != 0 {
		t.Fatalf("supply mismatch: got %s want %s", pool.LPSupply, mint)
	}
	wantReserve0 := new(big.Int).Add(seedPEG(t), dx)
	if pool.Assets[0].Balance.Cmp(wantReserve0) != 0 {
		t.Fatalf("reserve 0 mismatch: %s", pool.Assets[0].Balance)
	}
	if pool.Assets[0].Symbol != "PEG" || !pool.Assets[0].Native || pool.Assets[1].Symbol != "SPEG" {
		t.Fatalf("asset metadata mismatch: %+v", pool.Assets)
	}
	if pool.AccruedAdminFees[1].Cmp(mustBig(t, "4999896122127135")) != 0 {
		t.Fatalf("accrued admin fee mismatch: %s", pool.AccruedAdminFees[1])
	}
	if pool.Fees.SwapFee.Cmp(big.NewInt(1_000_000)) != 0 || pool.Fees.AdminFee.Cmp(big.NewInt(5_000_000_000)) != 0 {
		t.Fatalf("fee config mismatch: %+v", pool.Fees)
	}
	if pool.PriceThresholds[0].Cmp(big.NewInt(20_000_000_000_000_000)) != 0 {
		t.Fatalf("threshold mismatch: %s", pool.PriceThresholds[0])
	}
	if _, ok := roles[RoleAdmin][string(f.admin.Bytes())]; !ok {
		t.Fatal("admin role not persisted")
	}
	if _, ok := roles[RolePauser][string(f.pauser.Bytes())]; !ok {
		t.Fatal("pauser role not persisted")
	}
}

func TestPoolStorePersistsAmpSchedule(t *testing.T) {
	db := storage.NewMemDB()
	f := newFixture(t)
	f.engine.SetStore(NewPoolStore(db))
	f.seed(t)
	end := uint64(1_700_000_000) + minRampDuration
	if err := f.engine.RampAmplification(f.manager, big.NewInt(2000), end); err != nil {
		t.Fatalf("RampAmplification: %v", err)
	}

	pool, _, ok, err := NewPoolStore(db).Load()
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if pool.Amp.Future.Cmp(big.NewInt(200_000)) != 0 {
		t.Fatalf("future amp mismatch: %s", pool.Amp.Future)
	}
	if pool.Amp.RampStart != 1_700_000_000 || pool.Amp.RampEnd != end {
		t.Fatalf("ramp window mismatch: %d..%d", pool.Amp.RampStart, pool.Amp.RampEnd)
	}
}

func TestEngineRestore(t *testing.T) {
	db := storage.NewMemDB()
	store := NewPoolStore(db)
	f := newFixture(t)
	f.engine.SetStore(store)
	mint := f.seed(t)

	restored := NewEngine(f.custody, f.oracle, f.lp)
	restored.SetState(f.state)
	restored.SetStore(store)
	if err := restored.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	supply, err := restored.LPSupply()
	if err != nil {
		t.Fatalf("LPSupply: %v", err)
	}
	if supply.Cmp(mint) != 0 {
		t.Fatalf("restored supply mismatch: got %s want %s", supply, mint)
	}
	if !restored.HasRole(RolePauser, f.pauser) {
		t.Fatal("restored engine lost the pauser role")
	}
	// The restored engine keeps trading with identical quotes.
	dx := scaled(t, 100)
	dy, err := restored.GetDy(0, 1, dx)
	if err != nil {
		t.Fatalf("GetDy: %v", err)
	}
	if dy.Cmp(mustBig(t, "99987922650298457707")) != 0 {
		t.Fatalf("restored quote mismatch: %s", dy)
	}
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	engine := NewEngine(testAddr(0x09), nil, nil)
	engine.SetStore(NewPoolStore(storage.NewMemDB()))
	if err := engine.Restore(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

// failingDB simulates a backend whose reads break, as opposed to one that
// has never stored the key.
type failingDB struct {
	err error
}

func (f *failingDB) Put([]byte, []byte) error   { return f.err }
func (f *failingDB) Get([]byte) ([]byte, error) { return nil, f.err }
func (f *failingDB) Close()                     {}

func TestPoolStoreLoadSurfacesBackendErrors(t *testing.T) {
	broken := errors.New("disk offline")
	store := NewPoolStore(&failingDB{err: broken})
	_, _, ok, err := store.Load()
	if ok {
		t.Fatal("broken backend must not report a snapshot")
	}
	if !errors.Is(err, broken) {
		t.Fatalf("backend error swallowed: %v", err)
	}

	empty := NewPoolStore(storage.NewMemDB())
	if _, _, ok, err := empty.Load(); err != nil || ok {
		t.Fatalf("missing key must stay a clean miss: ok=%v err=%v", ok, err)
	}
}
