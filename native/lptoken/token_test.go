package lptoken

import (
	"errors"
	"math/big"
	"testing"

	"pegpool/crypto"
	"pegpool/storage"
)

func testAddr(seed byte) crypto.Address {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = seed
	}
	return crypto.NewAddress(crypto.PegPrefix, raw)
}

func TestMintBurnTransfer(t *testing.T) {
	db := storage.NewMemDB()
	token, err := NewToken("PLP", db)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	alice := testAddr(0x01)
	bob := testAddr(0x02)

	if err := token.Mint(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if got := token.TotalSupply(); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("supply mismatch: %s", got)
	}
	if err := token.Transfer(alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	balance, err := token.BalanceOf(bob)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("bob balance mismatch: %s", balance)
	}
	if err := token.Burn(alice, big.NewInt(600)); err != nil {
		t.Fatalf("Burn: %v", err)
	}
	if got := token.TotalSupply(); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("supply after burn mismatch: %s", got)
	}
	balance, _ = token.BalanceOf(alice)
	if balance.Sign() != 0 {
		t.Fatalf("alice must be empty, got %s", balance)
	}
}

func TestInsufficientBalance(t *testing.T) {
	token, err := NewToken("PLP", storage.NewMemDB())
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	alice := testAddr(0x01)
	if err := token.Mint(alice, big.NewInt(10)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := token.Burn(alice, big.NewInt(11)); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("expected errInsufficientBalance, got %v", err)
	}
	if err := token.Transfer(alice, testAddr(0x02), big.NewInt(11)); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("expected errInsufficientBalance, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	if _, err := NewToken("", storage.NewMemDB()); !errors.Is(err, errInvalidSymbol) {
		t.Fatalf("expected errInvalidSymbol, got %v", err)
	}
	token, err := NewToken("PLP", storage.NewMemDB())
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if err := token.Mint(crypto.Address{}, big.NewInt(1)); !errors.Is(err, errZeroAddress) {
		t.Fatalf("expected errZeroAddress, got %v", err)
	}
	if err := token.Mint(testAddr(0x01), big.NewInt(0)); !errors.Is(err, errInvalidAmount) {
		t.Fatalf("expected errInvalidAmount, got %v", err)
	}
	if err := token.Mint(testAddr(0x01), big.NewInt(-1)); !errors.Is(err, errInvalidAmount) {
		t.Fatalf("expected errInvalidAmount, got %v", err)
	}
}

func TestPersistenceAcrossReload(t *testing.T) {
	db := storage.NewMemDB()
	alice := testAddr(0x01)

	token, err := NewToken("PLP", db)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if err := token.Mint(alice, big.NewInt(12345)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	reloaded, err := NewToken("PLP", db)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.TotalSupply(); got.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("reloaded supply mismatch: %s", got)
	}
	balance, err := reloaded.BalanceOf(alice)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("reloaded balance mismatch: %s", balance)
	}
}

func TestTokensIsolatedBySymbol(t *testing.T) {
	db := storage.NewMemDB()
	alice := testAddr(0x01)

	shares, err := NewToken("PLP", db)
	if err != nil {
		t.Fatalf("NewToken PLP: %v", err)
	}
	wrapped, err := NewToken("WPLP", db)
	if err != nil {
		t.Fatalf("NewToken WPLP: %v", err)
	}
	if err := shares.Mint(alice, big.NewInt(7)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if got := wrapped.TotalSupply(); got.Sign() != 0 {
		t.Fatalf("wrapped supply leaked: %s", got)
	}
	balance, _ := wrapped.BalanceOf(alice)
	if balance.Sign() != 0 {
		t.Fatalf("wrapped balance leaked: %s", balance)
	}
}
