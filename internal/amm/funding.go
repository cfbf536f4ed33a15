package amm

import (
	"math/big"
	"time"

	"PerpShare/internal/fixmath"
	"PerpShare/internal/perpetual"
)

// IndexPrice returns the externally supplied index price and its timestamp.
// The AMM's clock must not be behind the index timestamp.
func (a *AMM) IndexPrice() (*big.Int, time.Time, error) {
	price, ts, err := a.feeder.GetIndexPrice()
	if err != nil {
		return nil, time.Time{}, err
	}
	if a.now().Before(ts) {
		return nil, time.Time{}, ErrStaleIndex
	}
	if a.metrics != nil {
		a.metrics.IndexPriceWad.Set(wadFloat(price))
	}
	return price, ts, nil
}

// accrue settles the EMA premium and the funding accumulator up to now. It
// runs lazily at the start of every price-dependent call; before the pool is
// created there is nothing to accrue.
func (a *AMM) accrue() error {
	index, _, err := a.IndexPrice()
	if err != nil {
		return err
	}
	now := a.now()

	if !a.funding.initialized {
		a.funding.lastIndexPrice = new(big.Int).Set(index)
		return nil
	}

	elapsed := int64(now.Sub(a.funding.lastFundingTime) / time.Second)
	if elapsed <= 0 {
		a.funding.lastIndexPrice = new(big.Int).Set(index)
		return nil
	}

	premium := new(big.Int)
	fair, err := a.poolFairPrice()
	if err == nil {
		premium = new(big.Int).Sub(fair, index)
	} else if err != ErrPoolEmpty {
		return err
	}

	// Closed-form EMA over elapsed seconds:
	// ema' = premium + (1-alpha)^elapsed * (ema - premium)
	oneMinusAlpha := new(big.Int).Sub(fixmath.Wad(), a.params.EMAAlpha)
	decay, err := fixmath.PowWad(oneMinusAlpha, elapsed)
	if err != nil {
		return err
	}
	gap := new(big.Int).Sub(a.funding.emaPremium, premium)
	carried, err := fixmath.Mul(decay, gap)
	if err != nil {
		return err
	}
	a.funding.emaPremium = new(big.Int).Add(premium, carried)

	markPremium, err := a.clampedPremium(index)
	if err != nil {
		return err
	}
	premiumRate, err := fixmath.Div(markPremium, index)
	if err != nil {
		return err
	}
	rate := dampen(premiumRate, a.params.FundingDampener)
	a.funding.lastFundingRate = rate

	if rate.Sign() != 0 {
		perPeriod, err := fixmath.Mul(rate, index)
		if err != nil {
			return err
		}
		delta := new(big.Int).Mul(perPeriod, big.NewInt(elapsed))
		delta.Quo(delta, big.NewInt(a.params.FundingPeriod))
		// A positive rate means longs pay: the per-long-lot credit falls.
		a.funding.accumulatedFunding = new(big.Int).Sub(a.funding.accumulatedFunding, delta)
	}

	a.funding.lastFundingTime = now
	a.funding.lastIndexPrice = new(big.Int).Set(index)

	if a.metrics != nil {
		a.metrics.FundingAccruals.Inc()
		a.metrics.FundingRateWad.Set(wadFloat(rate))
	}
	return nil
}

// clampedPremium bounds the EMA premium so the mark price cannot diverge from
// the index beyond the configured limit.
func (a *AMM) clampedPremium(index *big.Int) (*big.Int, error) {
	limit, err := fixmath.Mul(index, a.params.MarkPremiumLimit)
	if err != nil {
		return nil, err
	}
	p := new(big.Int).Set(a.funding.emaPremium)
	negLimit := new(big.Int).Neg(limit)
	if p.Cmp(limit) > 0 {
		return limit, nil
	}
	if p.Cmp(negLimit) < 0 {
		return negLimit, nil
	}
	return p, nil
}

// dampen applies the dead band: rates inside +-dampener collapse to zero,
// rates outside shrink toward zero by the dampener.
func dampen(rate, dampener *big.Int) *big.Int {
	neg := new(big.Int).Neg(dampener)
	switch {
	case rate.Cmp(dampener) > 0:
		return new(big.Int).Sub(rate, dampener)
	case rate.Cmp(neg) < 0:
		return new(big.Int).Add(rate, dampener)
	default:
		return new(big.Int)
	}
}

// MarkPrice is the index price plus the clamped smoothed premium. Before the
// pool exists the mark price equals the index price.
func (a *AMM) MarkPrice() (*big.Int, error) {
	if err := a.accrue(); err != nil {
		return nil, err
	}
	index := new(big.Int).Set(a.funding.lastIndexPrice)
	if !a.funding.initialized {
		return index, nil
	}
	premium, err := a.clampedPremium(index)
	if err != nil {
		return nil, err
	}
	mark := new(big.Int).Add(index, premium)
	if a.metrics != nil {
		a.metrics.MarkPriceWad.Set(wadFloat(mark))
	}
	return mark, nil
}

// AccumulatedFunding returns the global funding index after settling up to
// now. Implements perpetual.FundingSource.
func (a *AMM) AccumulatedFunding() (*big.Int, error) {
	if err := a.accrue(); err != nil {
		return nil, err
	}
	return new(big.Int).Set(a.funding.accumulatedFunding), nil
}

// FundingRate is the dampened, clamped premium rate per funding period.
func (a *AMM) FundingRate() (*big.Int, error) {
	if err := a.accrue(); err != nil {
		return nil, err
	}
	return new(big.Int).Set(a.funding.lastFundingRate), nil
}

// poolFairPrice computes x/y from the pool account without consulting the
// funding source (which would recurse into this AMM). The pool's pending
// funding delta is applied locally from the accumulator as of the last tick.
func (a *AMM) poolFairPrice() (*big.Int, error) {
	acct, ok := a.ledger.GetMarginAccount(a.address)
	if !ok || acct.IsFlat() {
		return nil, ErrPoolEmpty
	}
	x, err := a.poolAvailableMargin(acct)
	if err != nil {
		return nil, err
	}
	return fixmath.Div(x, acct.Size)
}

func (a *AMM) poolAvailableMargin(acct *perpetual.MarginAccount) (*big.Int, error) {
	cash := new(big.Int).Set(acct.CashBalance)
	pending := new(big.Int).Sub(a.funding.accumulatedFunding, acct.LastFundingIndex)
	if pending.Sign() != 0 && acct.Size.Sign() > 0 {
		adj, err := fixmath.Mul(pending, acct.Size)
		if err != nil {
			return nil, err
		}
		if acct.Side == perpetual.SideShort {
			adj.Neg(adj)
		}
		cash.Add(cash, adj)
	}
	return cash.Sub(cash, acct.EntryValue), nil
}

func wadFloat(x *big.Int) float64 {
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}
