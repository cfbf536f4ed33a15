package tokenizer_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"

	"PerpShare/internal/funds"
	"PerpShare/internal/perpetual"
	"PerpShare/internal/testutil"
	"PerpShare/internal/tokenizer"
)

const (
	owner   = "admin"
	tokAddr = "tokenizer"
	dev     = "dev"
)

// stubPrice feeds a settable mark price and funding index to both the ledger
// and the tokenizer.
type stubPrice struct {
	mark  *big.Int
	index *big.Int
}

func (s *stubPrice) MarkPrice() (*big.Int, error) {
	return new(big.Int).Set(s.mark), nil
}

func (s *stubPrice) AccumulatedFunding() (*big.Int, error) {
	return new(big.Int).Set(s.index), nil
}

type fixture struct {
	ledger *perpetual.Ledger
	tok    *tokenizer.Tokenizer
	price  *stubPrice
	vault  *funds.NativeVault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	vault := funds.NewNativeVault()
	l := perpetual.New(owner, vault, perpetual.DefaultGovParams(), zerolog.Nop(), nil)
	price := &stubPrice{mark: testutil.Wad(7000), index: new(big.Int)}
	if err := l.SetFundingSource(owner, price); err != nil {
		t.Fatalf("set funding source: %v", err)
	}
	lcap, err := l.Grant(owner, tokAddr)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	tok := tokenizer.New(owner, tokAddr, lcap, price, zerolog.Nop(), nil)
	if err := tok.Initialize(owner, "Perp Share", "PPS", 18, dev, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return &fixture{ledger: l, tok: tok, price: price, vault: vault}
}

// mintOne deposits 14000 for the trader and mints one share at mark 7000.
func (f *fixture) mintOne(t *testing.T, trader string) {
	t.Helper()
	if err := f.ledger.Deposit(trader, testutil.Wad(14000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.tok.Mint(trader, testutil.Wad(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}
}

// ============================================================================
// Test: Gate
// ============================================================================

func TestGate(t *testing.T) {
	cases := []struct {
		name    string
		status  perpetual.Status
		paused  bool
		stopped bool
		op      tokenizer.Operation
		want    error
	}{
		{"mint normal", perpetual.StatusNormal, false, false, tokenizer.OpMint, nil},
		{"mint paused", perpetual.StatusNormal, true, false, tokenizer.OpMint, tokenizer.ErrPaused},
		{"mint stopped", perpetual.StatusNormal, false, true, tokenizer.OpMint, tokenizer.ErrStopped},
		{"mint emergency", perpetual.StatusEmergency, false, false, tokenizer.OpMint, perpetual.ErrWrongStatus},
		{"mint settled", perpetual.StatusSettled, false, false, tokenizer.OpMint, perpetual.ErrWrongStatus},
		{"redeem normal", perpetual.StatusNormal, false, false, tokenizer.OpRedeem, nil},
		{"redeem stopped", perpetual.StatusNormal, false, true, tokenizer.OpRedeem, nil},
		{"redeem paused", perpetual.StatusNormal, true, false, tokenizer.OpRedeem, tokenizer.ErrPaused},
		{"redeem emergency", perpetual.StatusEmergency, false, false, tokenizer.OpRedeem, perpetual.ErrWrongStatus},
		{"redeem settled", perpetual.StatusSettled, false, false, tokenizer.OpRedeem, perpetual.ErrWrongStatus},
		{"transfer normal", perpetual.StatusNormal, false, false, tokenizer.OpTransfer, nil},
		{"transfer emergency", perpetual.StatusEmergency, false, false, tokenizer.OpTransfer, nil},
		{"transfer settled", perpetual.StatusSettled, false, false, tokenizer.OpTransfer, nil},
		{"transfer paused", perpetual.StatusNormal, true, false, tokenizer.OpTransfer, tokenizer.ErrPaused},
		{"settle normal", perpetual.StatusNormal, false, false, tokenizer.OpSettle, perpetual.ErrWrongStatus},
		{"settle stopped", perpetual.StatusNormal, false, true, tokenizer.OpSettle, nil},
		{"settle emergency", perpetual.StatusEmergency, false, false, tokenizer.OpSettle, perpetual.ErrWrongStatus},
		{"settle stopped emergency", perpetual.StatusEmergency, false, true, tokenizer.OpSettle, perpetual.ErrWrongStatus},
		{"settle settled", perpetual.StatusSettled, false, false, tokenizer.OpSettle, nil},
		{"settle stopped settled", perpetual.StatusSettled, false, true, tokenizer.OpSettle, nil},
		{"settle paused", perpetual.StatusSettled, true, false, tokenizer.OpSettle, tokenizer.ErrPaused},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tokenizer.Gate(tc.status, tc.paused, tc.stopped, tc.op)
			if !errors.Is(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

// ============================================================================
// Test: Initialize
// ============================================================================

func TestInitialize(t *testing.T) {
	vault := funds.NewNativeVault()
	l := perpetual.New(owner, vault, perpetual.DefaultGovParams(), zerolog.Nop(), nil)
	price := &stubPrice{mark: testutil.Wad(7000), index: new(big.Int)}
	if err := l.SetFundingSource(owner, price); err != nil {
		t.Fatalf("set funding source: %v", err)
	}
	lcap, err := l.Grant(owner, tokAddr)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	tok := tokenizer.New(owner, tokAddr, lcap, price, zerolog.Nop(), nil)

	if _, err := tok.Mint("alice", testutil.Wad(1)); !errors.Is(err, tokenizer.ErrNotInitialized) {
		t.Errorf("mint before init: got %v, want ErrNotInitialized", err)
	}
	if err := tok.Initialize("mallory", "X", "X", 18, dev, nil); !errors.Is(err, perpetual.ErrNotOwner) {
		t.Errorf("non-owner init: got %v, want ErrNotOwner", err)
	}
	if err := tok.Initialize(owner, "X", "X", 19, dev, nil); !errors.Is(err, perpetual.ErrInvalidAmount) {
		t.Errorf("19 decimals: got %v, want ErrInvalidAmount", err)
	}
	if err := tok.Initialize(owner, "Perp Share", "PPS", 18, dev, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := tok.Initialize(owner, "Again", "AGN", 18, dev, nil); !errors.Is(err, tokenizer.ErrAlreadyInitialized) {
		t.Errorf("second init: got %v, want ErrAlreadyInitialized", err)
	}
	if tok.Name() != "Perp Share" || tok.Symbol() != "PPS" || tok.Decimals() != 18 {
		t.Errorf("metadata: %s %s %d", tok.Name(), tok.Symbol(), tok.Decimals())
	}
}

// ============================================================================
// Test: Mint
// ============================================================================

func TestMint_OpensBackedPosition(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	alice, _ := f.ledger.GetMarginAccount("alice")
	if alice.Side != perpetual.SideShort || alice.Size.Cmp(testutil.Wad(1)) != 0 {
		t.Errorf("trader position: side=%s size=%s", alice.Side, alice.Size)
	}
	if alice.CashBalance.Cmp(testutil.Wad(7000)) != 0 {
		t.Errorf("trader cash: got %s, want %s", alice.CashBalance, testutil.Wad(7000))
	}

	tok, _ := f.ledger.GetMarginAccount(tokAddr)
	if tok.Side != perpetual.SideLong || tok.Size.Cmp(testutil.Wad(1)) != 0 {
		t.Errorf("tokenizer position: side=%s size=%s", tok.Side, tok.Size)
	}
	if tok.CashBalance.Cmp(testutil.Wad(7000)) != 0 {
		t.Errorf("tokenizer cash: got %s, want %s", tok.CashBalance, testutil.Wad(7000))
	}

	if f.tok.BalanceOf("alice").Cmp(testutil.Wad(1)) != 0 {
		t.Errorf("shares: got %s, want %s", f.tok.BalanceOf("alice"), testutil.Wad(1))
	}
	if f.tok.TotalSupply().Cmp(testutil.Wad(1)) != 0 {
		t.Errorf("supply: got %s, want %s", f.tok.TotalSupply(), testutil.Wad(1))
	}
}

func TestMint_FeeRoutedToDev(t *testing.T) {
	f := newFixture(t)
	if err := f.tok.SetMintFeeRate(owner, testutil.WadFrac(1, 100)); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	f.mintOne(t, "alice")

	devAcct, _ := f.ledger.GetMarginAccount(dev)
	if devAcct.CashBalance.Cmp(testutil.Wad(70)) != 0 {
		t.Errorf("dev fee: got %s, want %s", devAcct.CashBalance, testutil.Wad(70))
	}
	alice, _ := f.ledger.GetMarginAccount("alice")
	if alice.CashBalance.Cmp(testutil.Wad(6930)) != 0 {
		t.Errorf("trader cash: got %s, want %s", alice.CashBalance, testutil.Wad(6930))
	}
}

func TestMint_ReceiptReportsTradedTerms(t *testing.T) {
	f := newFixture(t)
	if err := f.tok.SetMintFeeRate(owner, testutil.WadFrac(1, 100)); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if err := f.ledger.Deposit("alice", testutil.Wad(14000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	receipt, err := f.tok.Mint("alice", testutil.Wad(1))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if receipt.Amount.Cmp(testutil.Wad(1)) != 0 {
		t.Errorf("amount: got %s, want %s", receipt.Amount, testutil.Wad(1))
	}
	if receipt.Price.Cmp(testutil.Wad(7000)) != 0 {
		t.Errorf("price: got %s, want %s", receipt.Price, testutil.Wad(7000))
	}
	if receipt.Fee.Cmp(testutil.Wad(70)) != 0 {
		t.Errorf("fee: got %s, want %s", receipt.Fee, testutil.Wad(70))
	}
}

func TestMint_CapExceeded(t *testing.T) {
	f := newFixture(t)
	if err := f.tok.SetCap(owner, testutil.Wad(1)); err != nil {
		t.Fatalf("set cap: %v", err)
	}
	f.mintOne(t, "alice")

	if err := f.ledger.Deposit("bob", testutil.Wad(14000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.tok.Mint("bob", testutil.Wad(1)); !errors.Is(err, tokenizer.ErrCapExceeded) {
		t.Errorf("got %v, want ErrCapExceeded", err)
	}
}

func TestMint_UnsafeTraderRollsBack(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Deposit("alice", testutil.Wad(700)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := f.tok.Mint("alice", testutil.Wad(1)); !errors.Is(err, perpetual.ErrUnsafe) {
		t.Fatalf("got %v, want ErrUnsafe", err)
	}
	alice, _ := f.ledger.GetMarginAccount("alice")
	if alice.Side != perpetual.SideFlat || alice.CashBalance.Cmp(testutil.Wad(700)) != 0 {
		t.Errorf("trader not restored: side=%s cash=%s", alice.Side, alice.CashBalance)
	}
	if f.tok.TotalSupply().Sign() != 0 {
		t.Errorf("supply after failed mint: got %s, want 0", f.tok.TotalSupply())
	}
}

func TestMint_InconsistentBacking(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	// An out-of-band position change (a liquidation in production) shrinks
	// the aggregated position without touching the share supply.
	rogue, err := f.ledger.Grant(owner, "keeper")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := rogue.Trade(tokAddr, perpetual.SideShort, testutil.WadFrac(1, 2), testutil.Wad(7000)); err != nil {
		t.Fatalf("distort: %v", err)
	}

	if err := f.ledger.Deposit("bob", testutil.Wad(14000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.tok.Mint("bob", testutil.Wad(1)); !errors.Is(err, tokenizer.ErrInconsistent) {
		t.Errorf("mint on distorted backing: got %v, want ErrInconsistent", err)
	}

	// Redemption is proportional and keeps working on a distorted backing.
	if _, err := f.tok.Redeem("alice", testutil.WadFrac(1, 2)); err != nil {
		t.Errorf("redeem on distorted backing: %v", err)
	}
}

// ============================================================================
// Test: Redeem
// ============================================================================

func TestRedeem_ProportionalEntitlement(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	entitlement, err := f.tok.Redeem("alice", testutil.WadFrac(1, 2))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if entitlement.Cmp(testutil.Wad(3500)) != 0 {
		t.Errorf("entitlement: got %s, want %s", entitlement, testutil.Wad(3500))
	}

	alice, _ := f.ledger.GetMarginAccount("alice")
	if alice.Side != perpetual.SideShort || alice.Size.Cmp(testutil.WadFrac(1, 2)) != 0 {
		t.Errorf("trader position: side=%s size=%s", alice.Side, alice.Size)
	}
	if alice.CashBalance.Cmp(testutil.Wad(10500)) != 0 {
		t.Errorf("trader cash: got %s, want %s", alice.CashBalance, testutil.Wad(10500))
	}

	tok, _ := f.ledger.GetMarginAccount(tokAddr)
	if tok.Size.Cmp(testutil.WadFrac(1, 2)) != 0 {
		t.Errorf("tokenizer size: got %s, want %s", tok.Size, testutil.WadFrac(1, 2))
	}
	if tok.CashBalance.Cmp(testutil.Wad(3500)) != 0 {
		t.Errorf("tokenizer cash: got %s, want %s", tok.CashBalance, testutil.Wad(3500))
	}
	if f.tok.TotalSupply().Cmp(testutil.WadFrac(1, 2)) != 0 {
		t.Errorf("supply: got %s, want %s", f.tok.TotalSupply(), testutil.WadFrac(1, 2))
	}
}

func TestRedeem_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	if _, err := f.tok.Redeem("alice", testutil.Wad(2)); !errors.Is(err, tokenizer.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
	if _, err := f.tok.Redeem("alice", new(big.Int)); !errors.Is(err, perpetual.ErrInvalidAmount) {
		t.Errorf("zero shares: got %v, want ErrInvalidAmount", err)
	}
}

func TestRedeem_ZeroMarginBalance(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	// A full liquidation flattens the aggregated position and strips its
	// cash, leaving the outstanding supply with nothing behind it.
	rogue, err := f.ledger.Grant(owner, "keeper")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := rogue.Trade(tokAddr, perpetual.SideShort, testutil.Wad(1), testutil.Wad(7000)); err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if err := rogue.TransferCash(tokAddr, "keeper", testutil.Wad(7000)); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if _, err := f.tok.Redeem("alice", testutil.WadFrac(1, 2)); !errors.Is(err, tokenizer.ErrZeroMarginBalance) {
		t.Errorf("redeem: got %v, want ErrZeroMarginBalance", err)
	}
	// Secondary transfers stay open: the shares themselves are still valid.
	if err := f.tok.Transfer("alice", "bob", testutil.WadFrac(1, 2)); err != nil {
		t.Errorf("transfer: %v", err)
	}
}

// ============================================================================
// Test: Composite operations
// ============================================================================

func TestDepositAndMint(t *testing.T) {
	f := newFixture(t)

	if _, err := f.tok.DepositAndMint("alice", testutil.Wad(14000), testutil.Wad(1)); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}
	if f.tok.BalanceOf("alice").Cmp(testutil.Wad(1)) != 0 {
		t.Errorf("shares: got %s, want %s", f.tok.BalanceOf("alice"), testutil.Wad(1))
	}
}

func TestDepositAndMint_RefundsOnFailure(t *testing.T) {
	f := newFixture(t)

	// 1000 cannot fund the 7000 notional: the mint leg fails and the
	// deposit leg must be returned.
	_, err := f.tok.DepositAndMint("bob", testutil.Wad(1000), testutil.Wad(1))
	if !errors.Is(err, perpetual.ErrUnsafe) {
		t.Fatalf("got %v, want ErrUnsafe", err)
	}
	if _, ok := f.ledger.GetMarginAccount("bob"); ok {
		t.Error("margin account from the failed composite should be gone")
	}
	if f.vault.PaidTo("bob").Cmp(testutil.Wad(1000)) != 0 {
		t.Errorf("refund: got %s, want %s", f.vault.PaidTo("bob"), testutil.Wad(1000))
	}
}

func TestRedeemAndWithdraw(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	entitlement, err := f.tok.RedeemAndWithdraw("alice", testutil.WadFrac(1, 2))
	if err != nil {
		t.Fatalf("redeem and withdraw: %v", err)
	}
	if entitlement.Cmp(testutil.Wad(3500)) != 0 {
		t.Errorf("entitlement: got %s, want %s", entitlement, testutil.Wad(3500))
	}
	if f.vault.PaidTo("alice").Cmp(testutil.Wad(3500)) != 0 {
		t.Errorf("paid: got %s, want %s", f.vault.PaidTo("alice"), testutil.Wad(3500))
	}
	alice, _ := f.ledger.GetMarginAccount("alice")
	if alice.CashBalance.Cmp(testutil.Wad(7000)) != 0 {
		t.Errorf("trader cash: got %s, want %s", alice.CashBalance, testutil.Wad(7000))
	}
	if f.tok.BalanceOf("alice").Cmp(testutil.WadFrac(1, 2)) != 0 {
		t.Errorf("shares: got %s, want %s", f.tok.BalanceOf("alice"), testutil.WadFrac(1, 2))
	}
}

// ============================================================================
// Test: Share ledger
// ============================================================================

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	if err := f.tok.Transfer("alice", "bob", testutil.WadFrac(2, 5)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if f.tok.BalanceOf("alice").Cmp(testutil.WadFrac(3, 5)) != 0 {
		t.Errorf("alice: got %s, want %s", f.tok.BalanceOf("alice"), testutil.WadFrac(3, 5))
	}
	if f.tok.BalanceOf("bob").Cmp(testutil.WadFrac(2, 5)) != 0 {
		t.Errorf("bob: got %s, want %s", f.tok.BalanceOf("bob"), testutil.WadFrac(2, 5))
	}
	if err := f.tok.Transfer("bob", "carol", testutil.Wad(1)); !errors.Is(err, tokenizer.ErrInsufficientBalance) {
		t.Errorf("overdraw: got %v, want ErrInsufficientBalance", err)
	}
}

func TestApproveTransferFrom(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	if err := f.tok.Approve("alice", "carol", testutil.WadFrac(3, 10)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.tok.TransferFrom("carol", "alice", "bob", testutil.WadFrac(2, 10)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if f.tok.Allowance("alice", "carol").Cmp(testutil.WadFrac(1, 10)) != 0 {
		t.Errorf("allowance: got %s, want %s", f.tok.Allowance("alice", "carol"), testutil.WadFrac(1, 10))
	}
	if err := f.tok.TransferFrom("carol", "alice", "bob", testutil.WadFrac(2, 10)); !errors.Is(err, tokenizer.ErrInsufficientAllowance) {
		t.Errorf("exceeding allowance: got %v, want ErrInsufficientAllowance", err)
	}
	if err := f.tok.TransferFrom("carol", "alice", "bob", nil); !errors.Is(err, perpetual.ErrInvalidAmount) {
		t.Errorf("nil amount: got %v, want ErrInvalidAmount", err)
	}
}

func TestTransfer_WorksDuringSettlement(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	if err := f.ledger.BeginGlobalSettlement(owner, testutil.Wad(7000)); err != nil {
		t.Fatalf("begin settlement: %v", err)
	}
	if err := f.tok.Transfer("alice", "bob", testutil.WadFrac(1, 2)); err != nil {
		t.Errorf("transfer in emergency: %v", err)
	}
}

// ============================================================================
// Test: Pause / Shutdown
// ============================================================================

func TestPause_BlocksEverything(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	if err := f.tok.Pause("mallory"); !errors.Is(err, perpetual.ErrUnauthorized) {
		t.Errorf("non-owner pause: got %v, want ErrUnauthorized", err)
	}
	if err := f.tok.Pause(owner); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if _, err := f.tok.Mint("alice", testutil.Wad(1)); !errors.Is(err, tokenizer.ErrPaused) {
		t.Errorf("mint: got %v, want ErrPaused", err)
	}
	if _, err := f.tok.Redeem("alice", testutil.WadFrac(1, 2)); !errors.Is(err, tokenizer.ErrPaused) {
		t.Errorf("redeem: got %v, want ErrPaused", err)
	}
	if err := f.tok.Transfer("alice", "bob", testutil.WadFrac(1, 2)); !errors.Is(err, tokenizer.ErrPaused) {
		t.Errorf("transfer: got %v, want ErrPaused", err)
	}
	if _, err := f.tok.Settle("alice"); !errors.Is(err, tokenizer.ErrPaused) {
		t.Errorf("settle: got %v, want ErrPaused", err)
	}

	if err := f.tok.Unpause(owner); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := f.tok.Transfer("alice", "bob", testutil.WadFrac(1, 2)); err != nil {
		t.Errorf("transfer after unpause: %v", err)
	}
}

func TestShutdown_StopsMintingOnly(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	if err := f.tok.Shutdown("mallory"); !errors.Is(err, perpetual.ErrNotOwner) {
		t.Errorf("non-owner shutdown: got %v, want ErrNotOwner", err)
	}
	if err := f.tok.Shutdown(owner); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if err := f.ledger.Deposit("bob", testutil.Wad(14000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.tok.Mint("bob", testutil.Wad(1)); !errors.Is(err, tokenizer.ErrStopped) {
		t.Errorf("mint: got %v, want ErrStopped", err)
	}
	if err := f.tok.Transfer("alice", "bob", testutil.WadFrac(1, 10)); err != nil {
		t.Errorf("transfer while stopped: %v", err)
	}
	if _, err := f.tok.Redeem("bob", testutil.WadFrac(1, 10)); err != nil {
		t.Errorf("redeem while stopped: %v", err)
	}
}

// ============================================================================
// Test: Settle
// ============================================================================

func TestSettle_StoppedRedeemsIntoMargin(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")
	if err := f.tok.Shutdown(owner); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	entitlement, err := f.tok.Settle("alice")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if entitlement.Cmp(testutil.Wad(7000)) != 0 {
		t.Errorf("entitlement: got %s, want %s", entitlement, testutil.Wad(7000))
	}
	alice, _ := f.ledger.GetMarginAccount("alice")
	if alice.Side != perpetual.SideFlat || alice.CashBalance.Cmp(testutil.Wad(14000)) != 0 {
		t.Errorf("trader: side=%s cash=%s", alice.Side, alice.CashBalance)
	}
	if f.tok.TotalSupply().Sign() != 0 {
		t.Errorf("supply: got %s, want 0", f.tok.TotalSupply())
	}
}

func TestSettle_SettledPaysOutDirectly(t *testing.T) {
	f := newFixture(t)
	f.mintOne(t, "alice")

	if err := f.ledger.BeginGlobalSettlement(owner, testutil.Wad(7000)); err != nil {
		t.Fatalf("begin settlement: %v", err)
	}
	if _, err := f.tok.Settle("alice"); !errors.Is(err, perpetual.ErrWrongStatus) {
		t.Errorf("settle in emergency: got %v, want ErrWrongStatus", err)
	}
	if err := f.ledger.EndGlobalSettlement(owner); err != nil {
		t.Fatalf("end settlement: %v", err)
	}

	entitlement, err := f.tok.Settle("alice")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if entitlement.Cmp(testutil.Wad(7000)) != 0 {
		t.Errorf("entitlement: got %s, want %s", entitlement, testutil.Wad(7000))
	}
	if f.vault.PaidTo("alice").Cmp(testutil.Wad(7000)) != 0 {
		t.Errorf("paid: got %s, want %s", f.vault.PaidTo("alice"), testutil.Wad(7000))
	}
	if f.tok.TotalSupply().Sign() != 0 {
		t.Errorf("supply: got %s, want 0", f.tok.TotalSupply())
	}

	if _, err := f.tok.Settle("alice"); !errors.Is(err, perpetual.ErrInvalidAmount) {
		t.Errorf("second settle: got %v, want ErrInvalidAmount", err)
	}
}

// ============================================================================
// Test: Governance
// ============================================================================

func TestGovernance(t *testing.T) {
	f := newFixture(t)

	if err := f.tok.SetMintFeeRate("mallory", testutil.WadFrac(1, 100)); !errors.Is(err, perpetual.ErrNotOwner) {
		t.Errorf("non-owner fee: got %v, want ErrNotOwner", err)
	}
	if err := f.tok.SetMintFeeRate(owner, testutil.Wad(-1)); !errors.Is(err, perpetual.ErrInvalidAmount) {
		t.Errorf("negative fee: got %v, want ErrInvalidAmount", err)
	}
	if err := f.tok.SetDevAddress(owner, ""); !errors.Is(err, tokenizer.ErrZeroAddress) {
		t.Errorf("zero dev: got %v, want ErrZeroAddress", err)
	}
	if err := f.tok.SetDevAddress(owner, "treasury"); err != nil {
		t.Fatalf("set dev: %v", err)
	}
	if err := f.tok.SetCap(owner, testutil.Wad(100)); err != nil {
		t.Fatalf("set cap: %v", err)
	}
	if err := f.tok.SetConsistencyTolerance(owner, testutil.WadFrac(1, 100)); err != nil {
		t.Fatalf("set tolerance: %v", err)
	}

	gov := f.tok.DumpGov()
	if gov.DevAddress != "treasury" {
		t.Errorf("dev: got %q, want treasury", gov.DevAddress)
	}
	if gov.Cap == nil || gov.Cap.Cmp(testutil.Wad(100)) != 0 {
		t.Errorf("cap: got %v, want %s", gov.Cap, testutil.Wad(100))
	}
	if gov.ConsistencyTolerance.Cmp(testutil.WadFrac(1, 100)) != 0 {
		t.Errorf("tolerance: got %s, want %s", gov.ConsistencyTolerance, testutil.WadFrac(1, 100))
	}
	if gov.Paused || gov.Stopped {
		t.Errorf("switches: paused=%v stopped=%v", gov.Paused, gov.Stopped)
	}
}
