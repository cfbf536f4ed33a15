package perpetual

import (
	"math/big"

	"PerpShare/internal/fixmath"
)

// Liquidate force-closes part or all of an unsafe position at the given
// price, with the keeper taking over the closed chunk. Callable by anyone;
// liquidating a safe account fails loudly rather than no-opping, since the
// caller relies on the failure to know the account needed no action.
//
// A bankrupt account (margin balance <= 0) is closed entirely. Otherwise the
// smallest lot-aligned amount restoring maintenance safety is closed. The
// penalty comes out of the liquidated account and is split between the keeper
// and the insurance fund; the fund covers any resulting cash deficit up to
// its balance.
func (l *Ledger) Liquidate(keeper, trader string, price *big.Int) (*big.Int, error) {
	if l.status != StatusNormal {
		return nil, ErrWrongStatus
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	acct, ok := l.accounts[trader]
	if !ok || acct.IsFlat() {
		return nil, ErrAccountSafe
	}

	if err := l.applyFunding(acct); err != nil {
		return nil, err
	}
	keeperAcct := l.getAccount(keeper)
	if err := l.applyFunding(keeperAcct); err != nil {
		return nil, err
	}

	safe, err := l.accountSafeWithRate(acct, price, l.params.MaintenanceMarginRate)
	if err != nil {
		return nil, err
	}
	if safe {
		return nil, ErrAccountSafe
	}

	bankrupt, err := l.bankruptAtPrice(acct, price)
	if err != nil {
		return nil, err
	}

	var amount *big.Int
	if bankrupt {
		amount = new(big.Int).Set(acct.Size)
	} else {
		amount, err = l.liquidatableAmount(acct, price)
		if err != nil {
			return nil, err
		}
	}

	savedTrader := acct.Clone()
	savedKeeper := keeperAcct.Clone()
	savedFund := new(big.Int).Set(l.insuranceFund)
	rollback := func() {
		*acct = *savedTrader
		*keeperAcct = *savedKeeper
		l.insuranceFund = savedFund
	}

	liquidatedSide := acct.Side
	if err := closePosition(acct, amount, price); err != nil {
		rollback()
		return nil, err
	}
	// Keeper inherits the closed chunk at the liquidation price so global
	// positions stay zero-sum.
	if err := applyTrade(keeperAcct, liquidatedSide, amount, price); err != nil {
		rollback()
		return nil, err
	}

	value, err := fixmath.Mul(price, amount)
	if err != nil {
		rollback()
		return nil, err
	}
	keeperPenalty, err := fixmath.Mul(value, l.params.LiquidationPenaltyRate)
	if err != nil {
		rollback()
		return nil, err
	}
	fundPenalty, err := fixmath.Mul(value, l.params.PenaltyFundRate)
	if err != nil {
		rollback()
		return nil, err
	}

	acct.CashBalance.Sub(acct.CashBalance, keeperPenalty)
	acct.CashBalance.Sub(acct.CashBalance, fundPenalty)
	keeperAcct.CashBalance.Add(keeperAcct.CashBalance, keeperPenalty)
	l.insuranceFund.Add(l.insuranceFund, fundPenalty)

	// Insurance covers a post-penalty deficit up to the fund balance.
	if acct.CashBalance.Sign() < 0 && acct.IsFlat() {
		deficit := new(big.Int).Neg(acct.CashBalance)
		cover := fixmath.Min(deficit, l.insuranceFund)
		acct.CashBalance.Add(acct.CashBalance, cover)
		l.insuranceFund.Sub(l.insuranceFund, cover)
		if acct.CashBalance.Sign() < 0 {
			l.log.Error().
				Str("trader", trader).
				Str("bad_debt", new(big.Int).Neg(acct.CashBalance).String()).
				Msg("insurance fund exhausted, bad debt remains")
		}
	}

	keeperSafe, err := l.accountSafeWithRate(keeperAcct, price, l.params.InitialMarginRate)
	if err != nil {
		rollback()
		return nil, err
	}
	if !keeperSafe {
		rollback()
		return nil, ErrUnsafe
	}

	kind := "partial"
	if bankrupt {
		kind = "full"
	}
	l.log.Warn().
		Str("trader", trader).
		Str("keeper", keeper).
		Str("amount", amount.String()).
		Str("price", price.String()).
		Str("kind", kind).
		Msg("position liquidated")
	if l.metrics != nil {
		l.metrics.LiquidationsTotal.WithLabelValues(kind).Inc()
	}
	l.observeInsurance()
	return amount, nil
}

// liquidatableAmount solves for the smallest close amount L restoring
// maintenance safety after penalties:
//
//	mb - pr*p*L >= (size-L)*p*mm   =>   L >= (size*p*mm - mb) / (p*(mm-pr))
//
// where pr is the combined penalty rate. Rounded up to a lot multiple and
// capped at the position size; a penalty rate at or above the maintenance
// rate degenerates to a full close.
func (l *Ledger) liquidatableAmount(acct *MarginAccount, price *big.Int) (*big.Int, error) {
	mb, err := l.accountMarginBalanceAt(acct, price)
	if err != nil {
		return nil, err
	}
	penaltyRate := new(big.Int).Add(l.params.LiquidationPenaltyRate, l.params.PenaltyFundRate)
	rateGap := new(big.Int).Sub(l.params.MaintenanceMarginRate, penaltyRate)
	if rateGap.Sign() <= 0 {
		return new(big.Int).Set(acct.Size), nil
	}

	notional, err := fixmath.Mul(price, acct.Size)
	if err != nil {
		return nil, err
	}
	required, err := fixmath.Mul(notional, l.params.MaintenanceMarginRate)
	if err != nil {
		return nil, err
	}
	shortfall := new(big.Int).Sub(required, mb)
	if shortfall.Sign() <= 0 {
		return new(big.Int).Set(l.params.LotSize), nil
	}

	denom, err := fixmath.Mul(price, rateGap)
	if err != nil {
		return nil, err
	}
	amount, err := fixmath.DivCeil(shortfall, denom)
	if err != nil {
		return nil, err
	}

	// Round up to the lot grid.
	lots, err := fixmath.CeilQuo(amount, l.params.LotSize)
	if err != nil {
		return nil, err
	}
	amount = new(big.Int).Mul(lots, l.params.LotSize)
	return fixmath.Min(amount, new(big.Int).Set(acct.Size)), nil
}

func (l *Ledger) accountMarginBalanceAt(acct *MarginAccount, price *big.Int) (*big.Int, error) {
	cash, err := l.fundingAdjustedCash(acct)
	if err != nil {
		return nil, err
	}
	pnl, err := pnlAtPrice(acct, price)
	if err != nil {
		return nil, err
	}
	return fixmath.Add(cash, pnl)
}
