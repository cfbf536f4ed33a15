package perpetual

import (
	"math/big"

	"PerpShare/internal/fixmath"
)

// Capability is the handle a registered component (the AMM, the tokenizer)
// uses for operations that move other accounts' positions and cash. Granted
// by the owner at wiring time; there is no ambient registry to mutate later.
type Capability struct {
	l         *Ledger
	component string
}

// Grant issues a trade capability for a component address. Owner-only.
func (l *Ledger) Grant(caller, component string) (*Capability, error) {
	if caller != l.owner {
		return nil, ErrNotOwner
	}
	if component == "" {
		return nil, ErrInvalidAmount
	}
	l.log.Info().Str("address", component).Msg("component granted trade capability")
	return &Capability{l: l, component: component}, nil
}

// Component returns the address the capability was granted to.
func (c *Capability) Component() string { return c.component }

// Ledger exposes the underlying ledger for reads.
func (c *Capability) Ledger() *Ledger { return c.l }

// Begin captures the named accounts and the insurance fund and returns a
// restore func. Composite operations snapshot every account they may touch
// and restore on failure so no partial effect ever commits.
func (c *Capability) Begin(addrs ...string) func() {
	l := c.l
	saved := make(map[string]*MarginAccount, len(addrs))
	existed := make(map[string]bool, len(addrs))
	for _, addr := range addrs {
		if acct, ok := l.accounts[addr]; ok {
			saved[addr] = acct.Clone()
			existed[addr] = true
		}
	}
	fund := new(big.Int).Set(l.insuranceFund)
	return func() {
		for _, addr := range addrs {
			if existed[addr] {
				*l.accounts[addr] = *saved[addr]
			} else {
				delete(l.accounts, addr)
			}
		}
		l.insuranceFund = fund
	}
}

// Trade applies a position change for the trader at the given price,
// following the standard netting rules: same-side trades open, opposite-side
// trades close first and flip with any remainder. Entry value tracks the
// notional proportionally through partial closes.
func (c *Capability) Trade(trader string, side Side, amount, price *big.Int) error {
	l := c.l
	if l.status != StatusNormal {
		return ErrWrongStatus
	}
	if side != SideLong && side != SideShort {
		return ErrInvalidAmount
	}
	if amount == nil || amount.Sign() <= 0 || price == nil || price.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if new(big.Int).Mod(amount, l.params.TradingLotSize).Sign() != 0 {
		return ErrInvalidAmount
	}

	acct := l.getAccount(trader)
	if err := l.applyFunding(acct); err != nil {
		return err
	}

	saved := acct.Clone()
	if err := applyTrade(acct, side, amount, price); err != nil {
		*acct = *saved
		return err
	}

	l.log.Debug().
		Str("component", c.component).
		Str("trader", trader).
		Str("side", side.String()).
		Str("amount", amount.String()).
		Str("price", price.String()).
		Msg("trade applied")
	if l.metrics != nil {
		l.metrics.TradesExecuted.WithLabelValues(side.String()).Inc()
	}
	return nil
}

// TransferCash moves margin cash between two accounts (fee routing). The
// component re-checks safety of the debited account after the full trade
// sequence; the transfer itself is unconditional to keep composite
// operations atomic.
func (c *Capability) TransferCash(from, to string, amount *big.Int) error {
	l := c.l
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	src := l.getAccount(from)
	dst := l.getAccount(to)
	if err := l.applyFunding(src); err != nil {
		return err
	}
	if err := l.applyFunding(dst); err != nil {
		return err
	}
	src.CashBalance.Sub(src.CashBalance, amount)
	dst.CashBalance.Add(dst.CashBalance, amount)
	return nil
}

// SettleWithdraw pays amount of the component's own settled margin out to
// the holder. Valid only once global settlement has ended. On first use the
// component's position is flattened into cash at the frozen settlement
// price; later calls draw the remaining cash down. This is the settlement
// withdrawal path exempt from the normal-only restriction.
func (c *Capability) SettleWithdraw(to string, amount *big.Int) error {
	l := c.l
	if l.status != StatusSettled {
		return ErrWrongStatus
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	acct := l.getAccount(c.component)
	saved := acct.Clone()
	if !acct.IsFlat() {
		if err := closePosition(acct, new(big.Int).Set(acct.Size), l.settlementPrice); err != nil {
			*acct = *saved
			return err
		}
	}
	if acct.CashBalance.Cmp(amount) < 0 {
		*acct = *saved
		return ErrInsufficientMargin
	}
	if amount.Sign() > 0 {
		acct.CashBalance.Sub(acct.CashBalance, amount)
		if err := l.collateral.TransferOut(to, amount); err != nil {
			*acct = *saved
			return err
		}
	}
	if l.metrics != nil {
		l.metrics.SettlementPayouts.Inc()
	}
	return nil
}

func applyTrade(acct *MarginAccount, side Side, amount, price *big.Int) error {
	remaining := new(big.Int).Set(amount)

	if !acct.IsFlat() && acct.Side != side {
		closing := fixmath.Min(acct.Size, remaining)
		if err := closePosition(acct, closing, price); err != nil {
			return err
		}
		remaining = new(big.Int).Sub(remaining, closing)
	}

	if remaining.Sign() > 0 {
		if err := openPosition(acct, side, remaining, price); err != nil {
			return err
		}
	}
	return nil
}

func openPosition(acct *MarginAccount, side Side, amount, price *big.Int) error {
	value, err := fixmath.Mul(price, amount)
	if err != nil {
		return err
	}
	newEntry, err := fixmath.Add(acct.EntryValue, value)
	if err != nil {
		return err
	}
	newSize, err := fixmath.Add(acct.Size, amount)
	if err != nil {
		return err
	}
	acct.Side = side
	acct.Size = newSize
	acct.EntryValue = newEntry
	return nil
}

func closePosition(acct *MarginAccount, amount, price *big.Int) error {
	if amount.Cmp(acct.Size) > 0 {
		return ErrInvalidAmount
	}
	value, err := fixmath.Mul(price, amount)
	if err != nil {
		return err
	}
	entryPortion, err := fixmath.Frac(acct.EntryValue, amount, acct.Size)
	if err != nil {
		return err
	}
	var pnl *big.Int
	if acct.Side == SideLong {
		pnl, err = fixmath.Sub(value, entryPortion)
	} else {
		pnl, err = fixmath.Sub(entryPortion, value)
	}
	if err != nil {
		return err
	}
	newCash, err := fixmath.Add(acct.CashBalance, pnl)
	if err != nil {
		return err
	}

	acct.CashBalance = newCash
	acct.EntryValue = new(big.Int).Sub(acct.EntryValue, entryPortion)
	acct.Size = new(big.Int).Sub(acct.Size, amount)
	if acct.Size.Sign() == 0 {
		acct.Side = SideFlat
		acct.EntryValue = new(big.Int)
	}
	return nil
}
