package funds_test

import (
	"errors"
	"testing"

	"PerpShare/internal/funds"
	"PerpShare/internal/testutil"
)

// ============================================================================
// Test: TokenVault
// ============================================================================

func TestTokenVault_BalanceChecked(t *testing.T) {
	v := funds.NewTokenVault("Test Collateral", "TCOL")
	v.Credit("alice", testutil.Wad(100))

	if err := v.TransferIn("alice", testutil.Wad(150)); !errors.Is(err, funds.ErrInsufficientFunds) {
		t.Errorf("overdraw in: got %v, want ErrInsufficientFunds", err)
	}
	if err := v.TransferIn("alice", testutil.Wad(60)); err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if v.BalanceOf("alice").Cmp(testutil.Wad(40)) != 0 {
		t.Errorf("holder balance: got %s, want %s", v.BalanceOf("alice"), testutil.Wad(40))
	}
	if v.VaultBalance().Cmp(testutil.Wad(60)) != 0 {
		t.Errorf("vault balance: got %s, want %s", v.VaultBalance(), testutil.Wad(60))
	}

	if err := v.TransferOut("alice", testutil.Wad(100)); !errors.Is(err, funds.ErrInsufficientFunds) {
		t.Errorf("overdraw out: got %v, want ErrInsufficientFunds", err)
	}
	if err := v.TransferOut("alice", testutil.Wad(60)); err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	if v.BalanceOf("alice").Cmp(testutil.Wad(100)) != 0 {
		t.Errorf("holder balance after round-trip: got %s, want %s", v.BalanceOf("alice"), testutil.Wad(100))
	}
}

func TestTokenVault_ZeroAddress(t *testing.T) {
	v := funds.NewTokenVault("Test Collateral", "TCOL")

	if err := v.TransferIn("", testutil.Wad(1)); !errors.Is(err, funds.ErrZeroAddress) {
		t.Errorf("in: got %v, want ErrZeroAddress", err)
	}
	if err := v.TransferOut("", testutil.Wad(1)); !errors.Is(err, funds.ErrZeroAddress) {
		t.Errorf("out: got %v, want ErrZeroAddress", err)
	}
}

// ============================================================================
// Test: NativeVault
// ============================================================================

func TestNativeVault_TracksPayouts(t *testing.T) {
	v := funds.NewNativeVault()

	if err := v.TransferIn("alice", testutil.Wad(100)); err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if err := v.TransferOut("bob", testutil.Wad(150)); !errors.Is(err, funds.ErrInsufficientFunds) {
		t.Errorf("overdraw: got %v, want ErrInsufficientFunds", err)
	}
	if err := v.TransferOut("bob", testutil.Wad(30)); err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	if err := v.TransferOut("bob", testutil.Wad(20)); err != nil {
		t.Fatalf("transfer out: %v", err)
	}

	if v.PaidTo("bob").Cmp(testutil.Wad(50)) != 0 {
		t.Errorf("paid: got %s, want %s", v.PaidTo("bob"), testutil.Wad(50))
	}
	if v.VaultBalance().Cmp(testutil.Wad(50)) != 0 {
		t.Errorf("vault: got %s, want %s", v.VaultBalance(), testutil.Wad(50))
	}
	if v.PaidTo("nobody").Sign() != 0 {
		t.Errorf("unknown payee: got %s, want 0", v.PaidTo("nobody"))
	}
}
