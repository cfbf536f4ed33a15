package perpetual

import (
	"math/big"

	"PerpShare/internal/fixmath"
)

// markPrice resolves the price used for margin and pnl computation: the
// funding source's mark price while normal, the frozen settlement price once
// emergency begins.
func (l *Ledger) markPrice() (*big.Int, error) {
	if l.status != StatusNormal {
		return new(big.Int).Set(l.settlementPrice), nil
	}
	if l.funding == nil {
		return nil, ErrNoFundingSource
	}
	return l.funding.MarkPrice()
}

// applyFunding settles the account up to the current global funding index.
// The account stores a LastFundingIndex snapshot; on touch the delta times
// signed size lands in cash and the snapshot advances. Skipped outside
// normal status, where funding is frozen.
func (l *Ledger) applyFunding(acct *MarginAccount) error {
	if l.status != StatusNormal || l.funding == nil {
		return nil
	}
	idx, err := l.funding.AccumulatedFunding()
	if err != nil {
		return err
	}
	if acct.IsFlat() {
		acct.LastFundingIndex = new(big.Int).Set(idx)
		return nil
	}
	delta := new(big.Int).Sub(idx, acct.LastFundingIndex)
	if delta.Sign() != 0 {
		adj, err := fixmath.Mul(delta, acct.Size)
		if err != nil {
			return err
		}
		// Index accumulates the credit per long lot: longs receive the
		// delta, shorts pay it.
		if acct.Side == SideShort {
			adj.Neg(adj)
		}
		acct.CashBalance, err = fixmath.Add(acct.CashBalance, adj)
		if err != nil {
			return err
		}
	}
	acct.LastFundingIndex = new(big.Int).Set(idx)
	return nil
}

// fundingAdjustedCash is the read-side equivalent of applyFunding: cash plus
// the pending funding delta, without mutating the account. Reads must never
// trust a stale cash balance (liquidation and funding accrue between calls).
func (l *Ledger) fundingAdjustedCash(acct *MarginAccount) (*big.Int, error) {
	cash := new(big.Int).Set(acct.CashBalance)
	if l.status != StatusNormal || l.funding == nil || acct.IsFlat() {
		return cash, nil
	}
	idx, err := l.funding.AccumulatedFunding()
	if err != nil {
		return nil, err
	}
	delta := new(big.Int).Sub(idx, acct.LastFundingIndex)
	if delta.Sign() == 0 {
		return cash, nil
	}
	adj, err := fixmath.Mul(delta, acct.Size)
	if err != nil {
		return nil, err
	}
	if acct.Side == SideShort {
		adj.Neg(adj)
	}
	return fixmath.Add(cash, adj)
}

// pnlAtPrice is the unrealized profit or loss of the position marked at the
// given price: long pays off price*size - entryValue, short the negation.
func pnlAtPrice(acct *MarginAccount, price *big.Int) (*big.Int, error) {
	if acct.IsFlat() {
		return new(big.Int), nil
	}
	value, err := fixmath.Mul(price, acct.Size)
	if err != nil {
		return nil, err
	}
	if acct.Side == SideLong {
		return fixmath.Sub(value, acct.EntryValue)
	}
	return fixmath.Sub(acct.EntryValue, value)
}

func (l *Ledger) accountMarginBalance(acct *MarginAccount) (*big.Int, error) {
	cash, err := l.fundingAdjustedCash(acct)
	if err != nil {
		return nil, err
	}
	if acct.IsFlat() {
		return cash, nil
	}
	price, err := l.markPrice()
	if err != nil {
		return nil, err
	}
	pnl, err := pnlAtPrice(acct, price)
	if err != nil {
		return nil, err
	}
	return fixmath.Add(cash, pnl)
}

// MarginBalance is cash plus unrealized pnl at the current mark price,
// including any funding accrued since the account's last touch.
func (l *Ledger) MarginBalance(trader string) (*big.Int, error) {
	acct, ok := l.accounts[trader]
	if !ok {
		return new(big.Int), nil
	}
	return l.accountMarginBalance(acct)
}

func (l *Ledger) accountSafeWithRate(acct *MarginAccount, price, rate *big.Int) (bool, error) {
	if acct.IsFlat() {
		cash, err := l.fundingAdjustedCash(acct)
		if err != nil {
			return false, err
		}
		return cash.Sign() >= 0, nil
	}
	cash, err := l.fundingAdjustedCash(acct)
	if err != nil {
		return false, err
	}
	pnl, err := pnlAtPrice(acct, price)
	if err != nil {
		return false, err
	}
	mb, err := fixmath.Add(cash, pnl)
	if err != nil {
		return false, err
	}
	notional, err := fixmath.Mul(price, acct.Size)
	if err != nil {
		return false, err
	}
	required, err := fixmath.Mul(notional, rate)
	if err != nil {
		return false, err
	}
	return mb.Cmp(required) >= 0, nil
}

func (l *Ledger) accountIsSafe(acct *MarginAccount) (bool, error) {
	price, err := l.markPrice()
	if err != nil {
		return false, err
	}
	return l.accountSafeWithRate(acct, price, l.params.InitialMarginRate)
}

// IsSafe reports whether the account's margin balance covers the initial
// margin requirement at the current mark price. Gates new exposure.
func (l *Ledger) IsSafe(trader string) (bool, error) {
	acct, ok := l.accounts[trader]
	if !ok {
		return true, nil
	}
	return l.accountIsSafe(acct)
}

// IsSafeWithPrice is IsSafe evaluated at a caller-supplied price.
func (l *Ledger) IsSafeWithPrice(trader string, price *big.Int) (bool, error) {
	acct, ok := l.accounts[trader]
	if !ok {
		return true, nil
	}
	return l.accountSafeWithRate(acct, price, l.params.InitialMarginRate)
}

// IsMaintenanceSafe checks the weaker maintenance margin requirement.
func (l *Ledger) IsMaintenanceSafe(trader string, price *big.Int) (bool, error) {
	acct, ok := l.accounts[trader]
	if !ok {
		return true, nil
	}
	return l.accountSafeWithRate(acct, price, l.params.MaintenanceMarginRate)
}

// IsBankrupt reports margin balance <= 0. A bankrupt account is eligible for
// full rather than partial liquidation.
func (l *Ledger) IsBankrupt(trader string) (bool, error) {
	acct, ok := l.accounts[trader]
	if !ok {
		return false, nil
	}
	mb, err := l.accountMarginBalance(acct)
	if err != nil {
		return false, err
	}
	return mb.Sign() <= 0, nil
}

func (l *Ledger) bankruptAtPrice(acct *MarginAccount, price *big.Int) (bool, error) {
	cash, err := l.fundingAdjustedCash(acct)
	if err != nil {
		return false, err
	}
	pnl, err := pnlAtPrice(acct, price)
	if err != nil {
		return false, err
	}
	mb, err := fixmath.Add(cash, pnl)
	if err != nil {
		return false, err
	}
	return mb.Sign() <= 0, nil
}
