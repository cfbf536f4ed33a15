package core_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"PerpShare/internal/amm"
	"PerpShare/internal/core"
	"PerpShare/internal/funds"
	"PerpShare/internal/perpetual"
	"PerpShare/internal/testutil"
)

func newCore(t *testing.T) (*core.Core, func() time.Time, func(time.Duration)) {
	t.Helper()
	clock, advance := testutil.FixedClock(time.Unix(1_700_000_000, 0))
	c, err := core.New(core.Config{
		Owner:            "admin",
		PoolAddress:      "pool",
		TokenizerAddress: "tokenizer",
		DevAddress:       "dev",
		LedgerParams:     perpetual.DefaultGovParams(),
		PoolParams:       amm.DefaultParams(),
		Clock:            clock,
	}, funds.NewNativeVault(), nil, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("new core: %v", err)
	}
	return c, clock, advance
}

// seed stands up the pool and the tokenizer and runs one share mint, the
// minimum state every end-to-end scenario starts from.
func seed(t *testing.T, c *core.Core, now func() time.Time) {
	t.Helper()
	if err := c.SetIndexPrice(testutil.Wad(7000), now()); err != nil {
		t.Fatalf("set index price: %v", err)
	}
	if err := c.Deposit("lp", testutil.Wad(21000)); err != nil {
		t.Fatalf("deposit lp: %v", err)
	}
	if err := c.CreatePool("lp", testutil.Wad(1)); err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if err := c.InitializeTokenizer("admin", "Perp Share", "PPS", 18, "dev", nil); err != nil {
		t.Fatalf("initialize tokenizer: %v", err)
	}
}

// ============================================================================
// Test: End-to-end flow
// ============================================================================

func TestCore_EndToEnd(t *testing.T) {
	c, now, advance := newCore(t)
	seed(t, c, now)

	deadline := now().Unix() + 60
	if err := c.DepositAndBuy("bob", testutil.Wad(3000), testutil.WadFrac(1, 10), testutil.Wad(8000), deadline); err != nil {
		t.Fatalf("deposit and buy: %v", err)
	}
	bob, ok := c.GetMarginAccount("bob")
	if !ok || bob.Side != perpetual.SideLong || bob.Size.Cmp(testutil.WadFrac(1, 10)) != 0 {
		t.Fatalf("trader position: ok=%v side=%s size=%s", ok, bob.Side, bob.Size)
	}

	if err := c.DepositAndMint("carol", testutil.Wad(25000), testutil.Wad(1)); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}
	if c.BalanceOf("carol").Cmp(testutil.Wad(1)) != 0 {
		t.Errorf("shares: got %s, want %s", c.BalanceOf("carol"), testutil.Wad(1))
	}
	if c.TotalSupply().Cmp(testutil.Wad(1)) != 0 {
		t.Errorf("supply: got %s, want %s", c.TotalSupply(), testutil.Wad(1))
	}

	st, err := c.GetPoolState()
	if err != nil {
		t.Fatalf("pool state: %v", err)
	}
	if st.IndexPrice.Cmp(testutil.Wad(7000)) != 0 {
		t.Errorf("index: got %s, want %s", st.IndexPrice, testutil.Wad(7000))
	}
	if st.PoolSize.Cmp(testutil.WadFrac(9, 10)) != 0 {
		t.Errorf("pool size: got %s, want %s", st.PoolSize, testutil.WadFrac(9, 10))
	}

	advance(600 * time.Second)
	if err := c.SetIndexPrice(testutil.Wad(6900), now()); err != nil {
		t.Fatalf("set index price: %v", err)
	}
	accrual, err := c.AccrueFunding()
	if err != nil {
		t.Fatalf("accrue funding: %v", err)
	}
	if accrual.FundingRate == "" || accrual.MarkPrice == "" {
		t.Errorf("accrual not populated: %+v", accrual)
	}

	if c.Status() != perpetual.StatusNormal {
		t.Errorf("status: got %s, want normal", c.Status())
	}
}

func TestCore_SetIndexPriceRejectsNonPositive(t *testing.T) {
	c, now, _ := newCore(t)

	if err := c.SetIndexPrice(nil, now()); !errors.Is(err, perpetual.ErrInvalidAmount) {
		t.Errorf("nil: got %v, want ErrInvalidAmount", err)
	}
	if err := c.SetIndexPrice(testutil.Wad(0), now()); !errors.Is(err, perpetual.ErrInvalidAmount) {
		t.Errorf("zero: got %v, want ErrInvalidAmount", err)
	}
}

func TestCore_GovernanceRouting(t *testing.T) {
	c, _, _ := newCore(t)

	if err := c.SetLedgerParameter("mallory", "initialMarginRate", testutil.WadFrac(1, 5)); !errors.Is(err, perpetual.ErrNotOwner) {
		t.Errorf("ledger param: got %v, want ErrNotOwner", err)
	}
	if err := c.SetLedgerParameter("admin", "initialMarginRate", testutil.WadFrac(1, 5)); err != nil {
		t.Errorf("ledger param: %v", err)
	}
	if err := c.SetPoolParameter("admin", "poolFeeRate", testutil.WadFrac(1, 50)); err != nil {
		t.Errorf("pool param: %v", err)
	}
	if err := c.SetPoolParameter("admin", "noSuchKnob", testutil.Wad(1)); err == nil {
		t.Error("unknown pool parameter should fail")
	}
}

// ============================================================================
// Test: Settlement through the facade
// ============================================================================

func TestCore_SettlementFlow(t *testing.T) {
	c, now, _ := newCore(t)
	seed(t, c, now)

	if err := c.BeginGlobalSettlement("admin", testutil.Wad(7000)); err != nil {
		t.Fatalf("begin settlement: %v", err)
	}
	if c.Status() != perpetual.StatusEmergency {
		t.Errorf("status: got %s, want emergency", c.Status())
	}
	if err := c.EndGlobalSettlement("admin"); err != nil {
		t.Fatalf("end settlement: %v", err)
	}

	snap, err := c.Dump()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if snap.SettlementPrice != testutil.Wad(7000).String() {
		t.Errorf("snapshot settlement price: got %q, want %s", snap.SettlementPrice, testutil.Wad(7000))
	}

	// lp: 7000 cash, short 1 at entry 7000, frozen price 7000.
	paid, err := c.SettleAccount("lp")
	if err != nil {
		t.Fatalf("settle account: %v", err)
	}
	if paid.Cmp(testutil.Wad(7000)) != 0 {
		t.Errorf("payout: got %s, want %s", paid, testutil.Wad(7000))
	}
}

// ============================================================================
// Test: Snapshot round-trip
// ============================================================================

func TestCore_DumpRestoreRoundTrip(t *testing.T) {
	c1, now, advance := newCore(t)
	seed(t, c1, now)

	deadline := now().Unix() + 60
	if err := c1.DepositAndBuy("bob", testutil.Wad(3000), testutil.WadFrac(1, 10), testutil.Wad(8000), deadline); err != nil {
		t.Fatalf("deposit and buy: %v", err)
	}
	if err := c1.DepositAndMint("carol", testutil.Wad(25000), testutil.Wad(1)); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}
	if err := c1.Approve("carol", "dan", testutil.WadFrac(1, 2)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	advance(600 * time.Second)
	if err := c1.SetIndexPrice(testutil.Wad(6900), now()); err != nil {
		t.Fatalf("set index price: %v", err)
	}
	if _, err := c1.AccrueFunding(); err != nil {
		t.Fatalf("accrue funding: %v", err)
	}

	snap1, err := c1.Dump()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	// No settlement has begun, so the snapshot must not carry a price.
	if snap1.SettlementPrice != "" {
		t.Errorf("settlement price in normal snapshot: got %q, want empty", snap1.SettlementPrice)
	}

	c2, _, _ := newCore(t)
	if err := c2.InitializeTokenizer("admin", "Perp Share", "PPS", 18, "dev", nil); err != nil {
		t.Fatalf("initialize tokenizer: %v", err)
	}
	if err := c2.Restore(snap1); err != nil {
		t.Fatalf("restore: %v", err)
	}

	snap2, err := c2.Dump()
	if err != nil {
		t.Fatalf("dump restored: %v", err)
	}
	snap1.CreatedAt = time.Time{}
	snap2.CreatedAt = time.Time{}
	if !reflect.DeepEqual(snap1, snap2) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", snap2, snap1)
	}

	bob1, _ := c1.GetMarginAccount("bob")
	bob2, ok := c2.GetMarginAccount("bob")
	if !ok || bob2.CashBalance.Cmp(bob1.CashBalance) != 0 || bob2.Size.Cmp(bob1.Size) != 0 {
		t.Errorf("restored account mismatch: %+v vs %+v", bob2, bob1)
	}
	if c2.BalanceOf("carol").Cmp(testutil.Wad(1)) != 0 {
		t.Errorf("restored shares: got %s, want %s", c2.BalanceOf("carol"), testutil.Wad(1))
	}
	if c2.Allowance("carol", "dan").Cmp(testutil.WadFrac(1, 2)) != 0 {
		t.Errorf("restored allowance: got %s, want %s", c2.Allowance("carol", "dan"), testutil.WadFrac(1, 2))
	}
}
