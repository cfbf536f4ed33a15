package perpetual

import (
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"PerpShare/internal/funds"
	"PerpShare/internal/observability"
)

// Ledger owns every margin account, the insurance fund, and the global
// lifecycle flag. All state-changing calls are atomic: they either commit all
// effects or leave the ledger untouched. Callers serialize access externally;
// the ledger itself holds no locks (single-writer model).
type Ledger struct {
	owner           string
	status          Status
	settlementPrice *big.Int
	params          GovParams
	insuranceFund   *big.Int
	accounts        map[string]*MarginAccount
	collateral      funds.Collateral
	funding         FundingSource

	log     zerolog.Logger
	metrics *observability.Metrics
}

func New(owner string, collateral funds.Collateral, params GovParams, log zerolog.Logger, metrics *observability.Metrics) *Ledger {
	return &Ledger{
		owner:         owner,
		status:        StatusNormal,
		params:        params,
		insuranceFund: new(big.Int),
		accounts:      make(map[string]*MarginAccount),
		collateral:    collateral,
		log:           log,
		metrics:       metrics,
	}
}

// SetFundingSource attaches the AMM-side collaborator. Owner-only, wired once
// at construction time.
func (l *Ledger) SetFundingSource(caller string, fs FundingSource) error {
	if caller != l.owner {
		return ErrNotOwner
	}
	l.funding = fs
	return nil
}

func (l *Ledger) Owner() string  { return l.owner }
func (l *Ledger) Status() Status { return l.status }

// SettlementPrice is defined iff status != normal.
func (l *Ledger) SettlementPrice() *big.Int {
	if l.settlementPrice == nil {
		return nil
	}
	return new(big.Int).Set(l.settlementPrice)
}

func (l *Ledger) Params() GovParams { return l.params }

func (l *Ledger) InsuranceFund() *big.Int {
	return new(big.Int).Set(l.insuranceFund)
}

func (l *Ledger) getAccount(trader string) *MarginAccount {
	acct, ok := l.accounts[trader]
	if !ok {
		acct = newMarginAccount()
		l.accounts[trader] = acct
		if l.metrics != nil {
			l.metrics.AccountsTotal.Set(float64(len(l.accounts)))
		}
	}
	return acct
}

// GetMarginAccount returns a copy of the account record, or false when the
// address never deposited.
func (l *Ledger) GetMarginAccount(trader string) (*MarginAccount, bool) {
	acct, ok := l.accounts[trader]
	if !ok {
		return nil, false
	}
	return acct.Clone(), true
}

// Accounts returns a copy of the account map for snapshotting.
func (l *Ledger) Accounts() map[string]*MarginAccount {
	out := make(map[string]*MarginAccount, len(l.accounts))
	for addr, acct := range l.accounts {
		out[addr] = acct.Clone()
	}
	return out
}

// RestoreAccount installs an account record during snapshot recovery.
func (l *Ledger) RestoreAccount(trader string, acct *MarginAccount) {
	l.accounts[trader] = acct.Clone()
}

// RestoreLifecycle installs lifecycle state during snapshot recovery.
func (l *Ledger) RestoreLifecycle(status Status, settlementPrice, insuranceFund *big.Int) {
	l.status = status
	if settlementPrice != nil {
		l.settlementPrice = new(big.Int).Set(settlementPrice)
	}
	if insuranceFund != nil {
		l.insuranceFund = new(big.Int).Set(insuranceFund)
	}
}

// Deposit moves collateral from the trader into their margin cash balance.
func (l *Ledger) Deposit(trader string, amount *big.Int) error {
	if l.status != StatusNormal {
		return ErrWrongStatus
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	acct := l.getAccount(trader)
	if err := l.applyFunding(acct); err != nil {
		return err
	}
	if err := l.collateral.TransferIn(trader, amount); err != nil {
		return fmt.Errorf("deposit transfer: %w", err)
	}
	acct.CashBalance.Add(acct.CashBalance, amount)

	l.log.Info().Str("trader", trader).Str("amount", amount.String()).Msg("deposit")
	if l.metrics != nil {
		l.metrics.Deposits.Inc()
	}
	return nil
}

// Withdraw pays collateral out of the trader's margin cash balance. The
// remaining account must keep a non-negative margin balance and stay safe.
func (l *Ledger) Withdraw(trader string, amount *big.Int) error {
	if l.status != StatusNormal {
		return ErrWrongStatus
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	acct, ok := l.accounts[trader]
	if !ok {
		return ErrInsufficientMargin
	}
	if err := l.applyFunding(acct); err != nil {
		return err
	}

	remaining := new(big.Int).Sub(acct.CashBalance, amount)
	saved := acct.CashBalance
	acct.CashBalance = remaining

	mb, err := l.accountMarginBalance(acct)
	if err == nil && mb.Sign() < 0 {
		err = ErrInsufficientMargin
	}
	if err == nil {
		var safe bool
		safe, err = l.accountIsSafe(acct)
		if err == nil && !safe {
			err = ErrInsufficientMargin
		}
	}
	if err != nil {
		acct.CashBalance = saved
		return err
	}

	if err := l.collateral.TransferOut(trader, amount); err != nil {
		acct.CashBalance = saved
		return fmt.Errorf("withdraw transfer: %w", err)
	}

	l.log.Info().Str("trader", trader).Str("amount", amount.String()).Msg("withdraw")
	if l.metrics != nil {
		l.metrics.Withdrawals.Inc()
	}
	return nil
}

// DepositToInsuranceFund moves collateral from the depositor into the fund.
func (l *Ledger) DepositToInsuranceFund(from string, amount *big.Int) error {
	if l.status != StatusNormal {
		return ErrWrongStatus
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := l.collateral.TransferIn(from, amount); err != nil {
		return fmt.Errorf("insurance deposit transfer: %w", err)
	}
	l.insuranceFund.Add(l.insuranceFund, amount)
	l.observeInsurance()
	return nil
}

// WithdrawFromInsuranceFund pays fund collateral to the given address.
// Owner-only.
func (l *Ledger) WithdrawFromInsuranceFund(caller, to string, amount *big.Int) error {
	if caller != l.owner {
		return ErrNotOwner
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if l.insuranceFund.Cmp(amount) < 0 {
		return ErrInsufficientMargin
	}
	if err := l.collateral.TransferOut(to, amount); err != nil {
		return fmt.Errorf("insurance withdraw transfer: %w", err)
	}
	l.insuranceFund.Sub(l.insuranceFund, amount)
	l.observeInsurance()
	return nil
}

// RefundCollateral returns collateral pulled in by a deposit leg whose
// composite operation failed after the margin account was already rolled
// back. Only composite owners (AMM, tokenizer) call this, and only with the
// exact amount of the undone deposit.
func (l *Ledger) RefundCollateral(trader string, amount *big.Int) error {
	return l.collateral.TransferOut(trader, amount)
}

// BeginGlobalSettlement freezes the settlement price and moves the ledger to
// emergency. Deposits, withdrawals and trades are blocked from here on.
func (l *Ledger) BeginGlobalSettlement(caller string, price *big.Int) error {
	if caller != l.owner {
		return ErrNotOwner
	}
	if l.status != StatusNormal {
		return ErrWrongStatus
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.status = StatusEmergency
	l.settlementPrice = new(big.Int).Set(price)

	l.log.Warn().Str("settlement_price", price.String()).Msg("global settlement began")
	l.observeStatus()
	return nil
}

// EndGlobalSettlement moves emergency to settled. From this point every
// account's entitlement is its margin balance at the frozen price, payable
// via SettleAccount.
func (l *Ledger) EndGlobalSettlement(caller string) error {
	if caller != l.owner {
		return ErrNotOwner
	}
	if l.status != StatusEmergency {
		return ErrWrongStatus
	}
	l.status = StatusSettled

	l.log.Warn().Msg("global settlement ended")
	l.observeStatus()
	return nil
}

// SettleAccount pays out the trader's margin balance at the frozen settlement
// price, flattens the position and zeroes the cash balance. This is the
// settlement withdrawal exempt from the normal-only restriction.
func (l *Ledger) SettleAccount(trader string) (*big.Int, error) {
	if l.status != StatusSettled {
		return nil, ErrWrongStatus
	}
	acct, ok := l.accounts[trader]
	if !ok {
		return new(big.Int), nil
	}
	mb, err := l.accountMarginBalance(acct)
	if err != nil {
		return nil, err
	}

	// Pay out before touching the account: a failed transfer must leave the
	// entitlement intact for a retry.
	if mb.Sign() > 0 {
		if err := l.collateral.TransferOut(trader, mb); err != nil {
			return nil, fmt.Errorf("settlement transfer: %w", err)
		}
	} else {
		mb = new(big.Int)
	}

	acct.Side = SideFlat
	acct.Size = new(big.Int)
	acct.EntryValue = new(big.Int)
	acct.CashBalance = new(big.Int)

	l.log.Info().Str("trader", trader).Str("payout", mb.String()).Msg("account settled")
	if l.metrics != nil {
		l.metrics.SettlementPayouts.Inc()
	}
	return mb, nil
}

// SetParameter updates one governance parameter by name. Owner-only.
func (l *Ledger) SetParameter(caller, name string, value *big.Int) error {
	if caller != l.owner {
		return ErrNotOwner
	}
	if value == nil || value.Sign() < 0 {
		return ErrInvalidAmount
	}
	v := new(big.Int).Set(value)
	switch name {
	case "initialMarginRate":
		l.params.InitialMarginRate = v
	case "maintenanceMarginRate":
		l.params.MaintenanceMarginRate = v
	case "liquidationPenaltyRate":
		l.params.LiquidationPenaltyRate = v
	case "penaltyFundRate":
		l.params.PenaltyFundRate = v
	case "lotSize":
		if v.Sign() == 0 {
			return ErrInvalidAmount
		}
		l.params.LotSize = v
	case "tradingLotSize":
		if v.Sign() == 0 {
			return ErrInvalidAmount
		}
		l.params.TradingLotSize = v
	default:
		return fmt.Errorf("unknown ledger parameter %q", name)
	}
	l.log.Info().Str("parameter", name).Str("value", v.String()).Msg("governance parameter updated")
	return nil
}

func (l *Ledger) observeInsurance() {
	if l.metrics != nil {
		l.metrics.InsuranceFundWad.Set(wadFloat(l.insuranceFund))
	}
}

func (l *Ledger) observeStatus() {
	if l.metrics != nil {
		l.metrics.LedgerStatus.Set(float64(l.status))
	}
}

func wadFloat(x *big.Int) float64 {
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}
