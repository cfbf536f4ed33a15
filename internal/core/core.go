// Package core wires the margin ledger, the liquidity pool and the tokenizer
// into one serialized facade. Every state-changing call takes the core mutex,
// so callers observe strict sequential consistency: the second of two calls
// touching the same account sees all effects of the first. Components
// themselves hold no locks.
package core

import (
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"PerpShare/internal/amm"
	"PerpShare/internal/event"
	"PerpShare/internal/fixmath"
	"PerpShare/internal/funds"
	"PerpShare/internal/observability"
	"PerpShare/internal/perpetual"
	"PerpShare/internal/persistence"
	"PerpShare/internal/publish"
	"PerpShare/internal/tokenizer"
)

// Config carries the identities and parameters the core is built with.
type Config struct {
	Owner            string
	PoolAddress      string
	TokenizerAddress string
	DevAddress       string

	LedgerParams perpetual.GovParams
	PoolParams   amm.Params

	// Clock defaults to time.Now.
	Clock amm.Clock
}

// Core owns all component state and serializes access to it.
type Core struct {
	mu sync.Mutex

	cfg    Config
	ledger *perpetual.Ledger
	pool   *amm.AMM
	shares *tokenizer.Tokenizer
	feeder *amm.ManualFeeder

	recorder *publish.Recorder
	seq      int64

	log     zerolog.Logger
	metrics *observability.Metrics
}

// New builds and wires the full component graph. The ledger grants one
// capability each to the pool and the tokenizer; the pool doubles as the
// ledger's funding source and the tokenizer's trade price source.
func New(cfg Config, collateral funds.Collateral, recorder *publish.Recorder, log zerolog.Logger, metrics *observability.Metrics) (*Core, error) {
	ledger := perpetual.New(cfg.Owner, collateral, cfg.LedgerParams, log.With().Str("component", "ledger").Logger(), metrics)

	poolCap, err := ledger.Grant(cfg.Owner, cfg.PoolAddress)
	if err != nil {
		return nil, err
	}
	feeder := amm.NewManualFeeder()
	pool := amm.New(amm.Config{
		Address: cfg.PoolAddress,
		Owner:   cfg.Owner,
		Dev:     cfg.DevAddress,
		Params:  cfg.PoolParams,
		Clock:   cfg.Clock,
	}, poolCap, feeder, log.With().Str("component", "amm").Logger(), metrics)

	if err := ledger.SetFundingSource(cfg.Owner, pool); err != nil {
		return nil, err
	}

	tokCap, err := ledger.Grant(cfg.Owner, cfg.TokenizerAddress)
	if err != nil {
		return nil, err
	}
	shares := tokenizer.New(cfg.Owner, cfg.TokenizerAddress, tokCap, pool,
		log.With().Str("component", "tokenizer").Logger(), metrics)

	return &Core{
		cfg:      cfg,
		ledger:   ledger,
		pool:     pool,
		shares:   shares,
		feeder:   feeder,
		recorder: recorder,
		log:      log,
		metrics:  metrics,
	}, nil
}

// Ledger exposes the ledger for package-internal wiring and tests. External
// callers go through the Core methods, which serialize.
func (c *Core) Ledger() *perpetual.Ledger { return c.ledger }

func (c *Core) Pool() *amm.AMM { return c.pool }

func (c *Core) Tokenizer() *tokenizer.Tokenizer { return c.shares }

func (c *Core) emit(ev event.Event) {
	c.seq++
	c.recorder.Emit(ev)
}

// SetIndexPrice feeds a fresh index observation.
func (c *Core) SetIndexPrice(price *big.Int, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if price == nil || price.Sign() <= 0 {
		return perpetual.ErrInvalidAmount
	}
	c.feeder.SetPrice(price, ts)
	mark, err := c.pool.MarkPrice()
	if err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.IndexPriceWad.Set(wadFloat(price))
		c.metrics.MarkPriceWad.Set(wadFloat(mark))
	}
	c.emit(&event.MarkPriceUpdate{
		IndexPrice:     price.String(),
		MarkPrice:      mark.String(),
		IndexTimestamp: ts.Unix(),
	})
	return nil
}

// --- margin ledger operations ---

func (c *Core) Deposit(trader string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ledger.Deposit(trader, amount); err != nil {
		return err
	}
	c.emit(&event.Deposit{Trader: trader, Amount: amount.String()})
	return nil
}

func (c *Core) Withdraw(trader string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ledger.Withdraw(trader, amount); err != nil {
		return err
	}
	c.emit(&event.Withdrawal{Trader: trader, Amount: amount.String()})
	return nil
}

func (c *Core) DepositToInsuranceFund(from string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.DepositToInsuranceFund(from, amount)
}

func (c *Core) WithdrawFromInsuranceFund(caller, to string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.WithdrawFromInsuranceFund(caller, to, amount)
}

// Liquidate force-closes an unsafe position with the caller as keeper.
func (c *Core) Liquidate(keeper, trader string, price *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	amount, err := c.ledger.Liquidate(keeper, trader, price)
	if err != nil {
		return nil, err
	}

	kind := "partial"
	if acct, ok := c.ledger.GetMarginAccount(trader); !ok || acct.IsFlat() {
		kind = "full"
	}
	penalty := new(big.Int)
	if value, err := fixmath.Mul(price, amount); err == nil {
		if p, err := fixmath.Mul(value, c.ledger.Params().LiquidationPenaltyRate); err == nil {
			penalty = p
		}
	}
	c.emit(&event.Liquidation{
		Keeper:  keeper,
		Trader:  trader,
		Amount:  amount.String(),
		Price:   price.String(),
		Penalty: penalty.String(),
		Kind:    kind,
	})
	return amount, nil
}

func (c *Core) BeginGlobalSettlement(caller string, price *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ledger.BeginGlobalSettlement(caller, price); err != nil {
		return err
	}
	c.emit(&event.StatusChange{
		From:            perpetual.StatusNormal.String(),
		To:              perpetual.StatusEmergency.String(),
		SettlementPrice: price.String(),
	})
	return nil
}

func (c *Core) EndGlobalSettlement(caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ledger.EndGlobalSettlement(caller); err != nil {
		return err
	}
	c.emit(&event.StatusChange{
		From: perpetual.StatusEmergency.String(),
		To:   perpetual.StatusSettled.String(),
	})
	return nil
}

// SettleAccount pays out a trader's settled margin balance after global
// settlement ended.
func (c *Core) SettleAccount(trader string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payout, err := c.ledger.SettleAccount(trader)
	if err != nil {
		return nil, err
	}
	c.emit(&event.Withdrawal{Trader: trader, Amount: payout.String(), Settlement: true})
	return payout, nil
}

// --- pool operations ---

func (c *Core) CreatePool(creator string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool.CreatePool(creator, amount)
}

func (c *Core) Buy(trader string, amount, limitPrice *big.Int, deadline int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, err := c.pool.Buy(trader, amount, limitPrice, deadline)
	if err != nil {
		return err
	}
	c.emitPoolTrade(trader, receipt)
	return nil
}

func (c *Core) Sell(trader string, amount, limitPrice *big.Int, deadline int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, err := c.pool.Sell(trader, amount, limitPrice, deadline)
	if err != nil {
		return err
	}
	c.emitPoolTrade(trader, receipt)
	return nil
}

func (c *Core) DepositAndBuy(trader string, depositAmount, amount, limitPrice *big.Int, deadline int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, err := c.pool.DepositAndBuy(trader, depositAmount, amount, limitPrice, deadline)
	if err != nil {
		return err
	}
	if depositAmount != nil && depositAmount.Sign() > 0 {
		c.emit(&event.Deposit{Trader: trader, Amount: depositAmount.String()})
	}
	c.emitPoolTrade(trader, receipt)
	return nil
}

func (c *Core) DepositAndSell(trader string, depositAmount, amount, limitPrice *big.Int, deadline int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, err := c.pool.DepositAndSell(trader, depositAmount, amount, limitPrice, deadline)
	if err != nil {
		return err
	}
	if depositAmount != nil && depositAmount.Sign() > 0 {
		c.emit(&event.Deposit{Trader: trader, Amount: depositAmount.String()})
	}
	c.emitPoolTrade(trader, receipt)
	return nil
}

func (c *Core) emitPoolTrade(trader string, r *amm.Receipt) {
	c.emit(&event.PoolTrade{
		Trader: trader,
		Side:   r.Side.String(),
		Amount: r.Amount.String(),
		Price:  r.Price.String(),
		Fee:    r.PoolFee.String(),
		DevFee: r.DevFee.String(),
	})
}

// AccrueFunding settles the funding accumulator up to now and reports the
// state. Driven by the funding ticker; trades accrue lazily on their own.
func (c *Core) AccrueFunding() (*event.FundingAccrual, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	acc, err := c.pool.AccumulatedFunding()
	if err != nil {
		return nil, err
	}
	rate, err := c.pool.FundingRate()
	if err != nil {
		return nil, err
	}
	mark, err := c.pool.MarkPrice()
	if err != nil {
		return nil, err
	}
	index, _, err := c.pool.IndexPrice()
	if err != nil {
		return nil, err
	}
	last, _, ema, _, _ := c.pool.FundingState()

	ev := &event.FundingAccrual{
		FundingRate:        rate.String(),
		AccumulatedFunding: acc.String(),
		EmaPremium:         ema.String(),
		MarkPrice:          mark.String(),
		IndexPrice:         index.String(),
		LastFundingTime:    last.Unix(),
	}
	c.emit(ev)
	if c.metrics != nil {
		c.metrics.FundingAccruals.Inc()
		c.metrics.FundingRateWad.Set(wadFloat(rate))
	}
	return ev, nil
}

// --- tokenizer operations ---

func (c *Core) Mint(trader string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, err := c.shares.Mint(trader, amount)
	if err != nil {
		return err
	}
	c.emitMint(trader, receipt)
	return nil
}

func (c *Core) DepositAndMint(trader string, depositAmount, mintAmount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, err := c.shares.DepositAndMint(trader, depositAmount, mintAmount)
	if err != nil {
		return err
	}
	if depositAmount != nil && depositAmount.Sign() > 0 {
		c.emit(&event.Deposit{Trader: trader, Amount: depositAmount.String()})
	}
	c.emitMint(trader, receipt)
	return nil
}

func (c *Core) emitMint(trader string, r *tokenizer.MintReceipt) {
	c.emit(&event.SharesMinted{
		Trader: trader,
		Amount: r.Amount.String(),
		Price:  r.Price.String(),
		Fee:    r.Fee.String(),
	})
}

func (c *Core) Redeem(trader string, sharesAmount *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entitlement, err := c.shares.Redeem(trader, sharesAmount)
	if err != nil {
		return nil, err
	}
	c.emit(&event.SharesRedeemed{
		Trader:      trader,
		Shares:      sharesAmount.String(),
		Entitlement: entitlement.String(),
	})
	return entitlement, nil
}

func (c *Core) RedeemAndWithdraw(trader string, sharesAmount *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entitlement, err := c.shares.RedeemAndWithdraw(trader, sharesAmount)
	if err != nil {
		return nil, err
	}
	c.emit(&event.SharesRedeemed{
		Trader:      trader,
		Shares:      sharesAmount.String(),
		Entitlement: entitlement.String(),
	})
	c.emit(&event.Withdrawal{Trader: trader, Amount: entitlement.String()})
	return entitlement, nil
}

func (c *Core) SettleShares(trader string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	burned := c.shares.BalanceOf(trader)
	entitlement, err := c.shares.Settle(trader)
	if err != nil {
		return nil, err
	}
	c.emit(&event.SharesSettled{
		Trader:      trader,
		Shares:      burned.String(),
		Entitlement: entitlement.String(),
	})
	return entitlement, nil
}

func (c *Core) Transfer(from, to string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shares.Transfer(from, to, amount)
}

func (c *Core) TransferFrom(spender, from, to string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shares.TransferFrom(spender, from, to, amount)
}

func (c *Core) Approve(owner, spender string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shares.Approve(owner, spender, amount)
}

// --- governance ---

func (c *Core) SetLedgerParameter(caller, name string, value *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ledger.SetParameter(caller, name, value); err != nil {
		return err
	}
	c.emit(&event.ParamUpdate{Component: "ledger", Name: name, Value: value.String(), Caller: caller})
	return nil
}

func (c *Core) SetPoolParameter(caller, name string, value *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.pool.SetParameter(caller, name, value); err != nil {
		return err
	}
	c.emit(&event.ParamUpdate{Component: "amm", Name: name, Value: value.String(), Caller: caller})
	return nil
}

func (c *Core) InitializeTokenizer(caller, name, symbol string, decimals uint8, dev string, cap *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shares.Initialize(caller, name, symbol, decimals, dev, cap)
}

func (c *Core) PauseTokenizer(caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shares.Pause(caller)
}

func (c *Core) UnpauseTokenizer(caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shares.Unpause(caller)
}

func (c *Core) ShutdownTokenizer(caller string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shares.Shutdown(caller)
}

func (c *Core) SetMintFeeRate(caller string, rate *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.shares.SetMintFeeRate(caller, rate); err != nil {
		return err
	}
	c.emit(&event.ParamUpdate{Component: "tokenizer", Name: "mintFeeRate", Value: rate.String(), Caller: caller})
	return nil
}

func (c *Core) SetCap(caller string, cap *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.shares.SetCap(caller, cap); err != nil {
		return err
	}
	c.emit(&event.ParamUpdate{Component: "tokenizer", Name: "cap", Value: cap.String(), Caller: caller})
	return nil
}

// --- reads ---

func (c *Core) Status() perpetual.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Status()
}

func (c *Core) MarginBalance(trader string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.MarginBalance(trader)
}

func (c *Core) IsSafe(trader string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.IsSafe(trader)
}

func (c *Core) IsBankrupt(trader string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.IsBankrupt(trader)
}

func (c *Core) GetMarginAccount(trader string) (*perpetual.MarginAccount, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.GetMarginAccount(trader)
}

func (c *Core) InsuranceFund() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.InsuranceFund()
}

// PoolState is a consistent read of the pool's pricing and funding state.
type PoolState struct {
	FairPrice          *big.Int
	MarkPrice          *big.Int
	IndexPrice         *big.Int
	FundingRate        *big.Int
	AccumulatedFunding *big.Int
	PoolSize           *big.Int
	PoolCash           *big.Int
}

func (c *Core) GetPoolState() (*PoolState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fair, err := c.pool.CurrentFairPrice()
	if err != nil {
		return nil, err
	}
	mark, err := c.pool.MarkPrice()
	if err != nil {
		return nil, err
	}
	index, _, err := c.pool.IndexPrice()
	if err != nil {
		return nil, err
	}
	rate, err := c.pool.FundingRate()
	if err != nil {
		return nil, err
	}
	acc, err := c.pool.AccumulatedFunding()
	if err != nil {
		return nil, err
	}

	st := &PoolState{
		FairPrice:          fair,
		MarkPrice:          mark,
		IndexPrice:         index,
		FundingRate:        rate,
		AccumulatedFunding: acc,
		PoolSize:           new(big.Int),
		PoolCash:           new(big.Int),
	}
	if acct, ok := c.ledger.GetMarginAccount(c.cfg.PoolAddress); ok {
		st.PoolSize = acct.Size
		st.PoolCash = acct.CashBalance
	}
	return st, nil
}

func (c *Core) BalanceOf(holder string) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shares.BalanceOf(holder)
}

func (c *Core) TotalSupply() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shares.TotalSupply()
}

func (c *Core) Allowance(owner, spender string) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shares.Allowance(owner, spender)
}

func (c *Core) DumpGov() tokenizer.Gov {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shares.DumpGov()
}

// --- snapshot plumbing ---

// Dump captures the full serializable state under the core mutex.
func (c *Core) Dump() (*persistence.SnapshotData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	accounts := make(map[string]persistence.AccountSnap)
	for addr, acct := range c.ledger.Accounts() {
		accounts[addr] = persistence.SnapAccount(acct)
	}

	lastTime, lastIndex, ema, acc, initialized := c.pool.FundingState()

	// Defined only outside normal status; serialized as empty until then.
	settlementPrice := ""
	if sp := c.ledger.SettlementPrice(); sp != nil {
		settlementPrice = sp.String()
	}

	balances := make(map[string]string)
	for holder, b := range c.shares.Balances() {
		balances[holder] = b.String()
	}
	allowances := make(map[string]map[string]string)
	for owner, m := range c.shares.Allowances() {
		inner := make(map[string]string, len(m))
		for spender, a := range m {
			inner[spender] = a.String()
		}
		allowances[owner] = inner
	}

	return &persistence.SnapshotData{
		Sequence:        c.seq,
		Status:          int32(c.ledger.Status()),
		SettlementPrice: settlementPrice,
		InsuranceFund:   c.ledger.InsuranceFund().String(),
		Accounts:        accounts,
		Funding: persistence.FundingSnap{
			Initialized:        initialized,
			LastFundingTime:    lastTime.Unix(),
			LastIndexPrice:     lastIndex.String(),
			EmaPremium:         ema.String(),
			AccumulatedFunding: acc.String(),
		},
		Shares: persistence.ShareSnap{
			TotalSupply: c.shares.TotalSupply().String(),
			Balances:    balances,
			Allowances:  allowances,
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Restore rebuilds in-memory state from a snapshot. Called once at startup
// before the core serves traffic.
func (c *Core) Restore(snap *persistence.SnapshotData) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq = snap.Sequence
	c.recorder.Seed(snap.Sequence)

	var settlementPrice *big.Int
	if snap.SettlementPrice != "" {
		var err error
		settlementPrice, err = persistence.ParseWad(snap.SettlementPrice)
		if err != nil {
			return err
		}
	}
	insurance, err := persistence.ParseWad(snap.InsuranceFund)
	if err != nil {
		return err
	}
	c.ledger.RestoreLifecycle(perpetual.Status(snap.Status), settlementPrice, insurance)

	for addr, as := range snap.Accounts {
		acct, err := persistence.RestoreAccount(as)
		if err != nil {
			return err
		}
		c.ledger.RestoreAccount(addr, acct)
	}

	lastIndex, err := persistence.ParseWad(snap.Funding.LastIndexPrice)
	if err != nil {
		return err
	}
	ema, err := persistence.ParseWad(snap.Funding.EmaPremium)
	if err != nil {
		return err
	}
	acc, err := persistence.ParseWad(snap.Funding.AccumulatedFunding)
	if err != nil {
		return err
	}
	c.pool.RestoreFundingState(
		time.Unix(snap.Funding.LastFundingTime, 0).UTC(),
		lastIndex, ema, acc,
		snap.Funding.Initialized,
	)

	supply, err := persistence.ParseWad(snap.Shares.TotalSupply)
	if err != nil {
		return err
	}
	balances := make(map[string]*big.Int, len(snap.Shares.Balances))
	for holder, s := range snap.Shares.Balances {
		b, err := persistence.ParseWad(s)
		if err != nil {
			return err
		}
		balances[holder] = b
	}
	allowances := make(map[string]map[string]*big.Int, len(snap.Shares.Allowances))
	for owner, m := range snap.Shares.Allowances {
		inner := make(map[string]*big.Int, len(m))
		for spender, s := range m {
			a, err := persistence.ParseWad(s)
			if err != nil {
				return err
			}
			inner[spender] = a
		}
		allowances[owner] = inner
	}
	c.shares.RestoreShares(supply, balances, allowances)

	c.log.Info().Int64("sequence", snap.Sequence).Msg("state restored from snapshot")
	return nil
}

func wadFloat(x *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(x), big.NewFloat(1e18)).Float64()
	return f
}
