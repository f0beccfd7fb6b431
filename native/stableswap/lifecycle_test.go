package stableswap

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestPauseGatesMutatingOps(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	if err := f.engine.Pause(f.pauser); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	paused, err := f.engine.IsPaused()
	if err != nil || !paused {
		t.Fatalf("IsPaused: %v paused=%v", err, paused)
	}

	dx := scaled(t, 100)
	if _, err := f.engine.Exchange(f.alice, 0, 1, dx, nil, dx); !errors.Is(err, ErrPaused) {
		t.Fatalf("Exchange while paused: %v", err)
	}
	if _, err := f.engine.AddLiquidity(f.alice, [nCoins]*big.Int{dx, dx}, nil, dx); !errors.Is(err, ErrPaused) {
		t.Fatalf("AddLiquidity while paused: %v", err)
	}
	if _, err := f.engine.RemoveLiquidityImbalance(f.alice, [nCoins]*big.Int{dx, dx}, nil); !errors.Is(err, ErrPaused) {
		t.Fatalf("RemoveLiquidityImbalance while paused: %v", err)
	}
	if _, err := f.engine.RemoveLiquidityOneCoin(f.alice, dx, 1, nil); !errors.Is(err, ErrPaused) {
		t.Fatalf("RemoveLiquidityOneCoin while paused: %v", err)
	}
	// Proportional withdrawal stays open so providers can always exit.
	if _, err := f.engine.RemoveLiquidity(f.alice, dx, [nCoins]*big.Int{}); err != nil {
		t.Fatalf("RemoveLiquidity while paused: %v", err)
	}

	if err := f.engine.Unpause(f.pauser); err != nil {
		t.Fatalf("Unpause: %v", err)
	}
	if _, err := f.engine.Exchange(f.alice, 0, 1, dx, nil, dx); err != nil {
		t.Fatalf("Exchange after unpause: %v", err)
	}
}

func TestPauseRequiresRole(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Pause(f.alice); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.Pause(f.manager); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("manager must not pause: %v", err)
	}
}

func TestSetFees(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetFees(f.manager, big.NewInt(2_000_000), big.NewInt(1_000_000_000)); err != nil {
		t.Fatalf("SetFees: %v", err)
	}
	snapshot, err := f.engine.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.Fees.SwapFee.Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf("swap fee not applied: %s", snapshot.Fees.SwapFee)
	}
	if err := f.engine.SetFees(f.manager, new(big.Int).Add(maxFeeFraction, bigOne), big.NewInt(0)); !errors.Is(err, ErrFeeTooHigh) {
		t.Fatalf("expected ErrFeeTooHigh, got %v", err)
	}
	if err := f.engine.SetFees(f.manager, big.NewInt(0), new(big.Int).Add(maxAdminFeeFraction, bigOne)); !errors.Is(err, ErrFeeTooHigh) {
		t.Fatalf("expected ErrFeeTooHigh for admin fraction, got %v", err)
	}
	if err := f.engine.SetFees(f.alice, big.NewInt(1), big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSetPriceThreshold(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < nCoins; i++ {
		if err := f.engine.SetPriceThreshold(f.manager, i, nil); err != nil {
			t.Fatalf("SetPriceThreshold(%d): %v", i, err)
		}
	}
	f.seed(t)
	// With both guards disabled a trade that would normally trip goes through.
	dx := scaled(t, 100000)
	if _, err := f.engine.Exchange(f.alice, 0, 1, dx, nil, dx); err != nil {
		t.Fatalf("Exchange with guard disabled: %v", err)
	}
	if err := f.engine.SetPriceThreshold(f.alice, 0, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.SetPriceThreshold(f.manager, 2, big.NewInt(1)); !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected ErrInvalidAsset, got %v", err)
	}
	if err := f.engine.SetPriceThreshold(f.manager, 0, big.NewInt(-1)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount for negative threshold, got %v", err)
	}
}

func TestRampAmplification(t *testing.T) {
	f := newFixture(t)
	start := uint64(1_700_000_000)

	if err := f.engine.RampAmplification(f.manager, big.NewInt(2000), start+minRampDuration-1); !errors.Is(err, ErrRampTooShort) {
		t.Fatalf("expected ErrRampTooShort, got %v", err)
	}
	if err := f.engine.RampAmplification(f.manager, big.NewInt(10001), start+minRampDuration); !errors.Is(err, ErrRampTooLarge) {
		t.Fatalf("expected ErrRampTooLarge, got %v", err)
	}
	if err := f.engine.RampAmplification(f.manager, big.NewInt(99), start+minRampDuration); !errors.Is(err, ErrRampTooLarge) {
		t.Fatalf("expected ErrRampTooLarge for shrink, got %v", err)
	}
	if err := f.engine.RampAmplification(f.manager, big.NewInt(0), start+minRampDuration); !errors.Is(err, ErrAmpOutOfRange) {
		t.Fatalf("expected ErrAmpOutOfRange, got %v", err)
	}
	if err := f.engine.RampAmplification(f.alice, big.NewInt(2000), start+minRampDuration); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if err := f.engine.RampAmplification(f.manager, big.NewInt(2000), start+minRampDuration); err != nil {
		t.Fatalf("RampAmplification: %v", err)
	}
	f.engine.SetClock(func() time.Time { return time.Unix(int64(start+minRampDuration/2), 0) })
	precise, err := f.engine.AmplificationPrecise()
	if err != nil {
		t.Fatalf("AmplificationPrecise: %v", err)
	}
	if precise.Cmp(big.NewInt(150_000)) != 0 {
		t.Fatalf("midpoint amp mismatch: got %s want 150000", precise)
	}
	amp, err := f.engine.Amplification()
	if err != nil {
		t.Fatalf("Amplification: %v", err)
	}
	if amp.Cmp(big.NewInt(1500)) != 0 {
		t.Fatalf("amp mismatch: got %s want 1500", amp)
	}

	if err := f.engine.StopRamp(f.manager); err != nil {
		t.Fatalf("StopRamp: %v", err)
	}
	f.engine.SetClock(func() time.Time { return time.Unix(int64(start+minRampDuration), 0) })
	frozen, err := f.engine.AmplificationPrecise()
	if err != nil {
		t.Fatalf("AmplificationPrecise after stop: %v", err)
	}
	if frozen.Cmp(big.NewInt(150_000)) != 0 {
		t.Fatalf("StopRamp must freeze the effective value, got %s", frozen)
	}
}

func TestRoleAdministration(t *testing.T) {
	f := newFixture(t)
	bob := testAddr(0x06)

	if err := f.engine.GrantRole(f.alice, RolePauser, bob); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.GrantRole(f.admin, RolePauser, bob); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	if !f.engine.HasRole(RolePauser, bob) {
		t.Fatal("grant did not stick")
	}
	if err := f.engine.Pause(bob); err != nil {
		t.Fatalf("new pauser rejected: %v", err)
	}
	if err := f.engine.RevokeRole(f.admin, RolePauser, bob); err != nil {
		t.Fatalf("RevokeRole: %v", err)
	}
	if f.engine.HasRole(RolePauser, bob) {
		t.Fatal("revoke did not stick")
	}

	// The last admin can never revoke itself.
	if err := f.engine.RevokeRole(f.admin, RoleAdmin, f.admin); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
	if err := f.engine.GrantRole(f.admin, RoleAdmin, bob); err != nil {
		t.Fatalf("GrantRole admin: %v", err)
	}
	if err := f.engine.RevokeRole(bob, RoleAdmin, f.admin); err != nil {
		t.Fatalf("RevokeRole original admin: %v", err)
	}
}

func TestWithdrawAdminFees(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	dx := scaled(t, 100)
	if _, err := f.engine.Exchange(f.alice, 0, 1, dx, nil, dx); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	treasury := testAddr(0x07)

	if _, err := f.engine.WithdrawAdminFees(f.manager, treasury); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// Collection stays available while paused.
	if err := f.engine.Pause(f.pauser); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	out, err := f.engine.WithdrawAdminFees(f.admin, treasury)
	if err != nil {
		t.Fatalf("WithdrawAdminFees: %v", err)
	}
	wantAdmin := mustBig(t, "4999896122127135")
	if out[0].Sign() != 0 || out[1].Cmp(wantAdmin) != 0 {
		t.Fatalf("payout mismatch: %s / %s", out[0], out[1])
	}
	acc := f.account(treasury)
	if acc.BalanceSPEG.Cmp(wantAdmin) != 0 {
		t.Fatalf("treasury balance mismatch: %s", acc.BalanceSPEG)
	}
	for i := 0; i < nCoins; i++ {
		accrued, _ := f.engine.AdminFeeBalance(i)
		if accrued.Sign() != 0 {
			t.Fatalf("accrual %d not zeroed: %s", i, accrued)
		}
	}
}
