package amm

import (
	"fmt"
	"math/big"

	"PerpShare/internal/fixmath"
	"PerpShare/internal/perpetual"
)

// CurrentFairPrice is x/y after settling funding up to now.
func (a *AMM) CurrentFairPrice() (*big.Int, error) {
	if err := a.accrue(); err != nil {
		return nil, err
	}
	return a.poolFairPrice()
}

// getBuyPrice deals delta lots out of the pool: x / (y - delta). The pool
// cannot sell out its whole depth.
func (a *AMM) getBuyPrice(delta *big.Int) (*big.Int, error) {
	acct, ok := a.ledger.GetMarginAccount(a.address)
	if !ok || acct.IsFlat() {
		return nil, ErrPoolEmpty
	}
	if delta.Cmp(acct.Size) >= 0 {
		return nil, ErrPoolEmpty
	}
	x, err := a.poolAvailableMargin(acct)
	if err != nil {
		return nil, err
	}
	depth := new(big.Int).Sub(acct.Size, delta)
	return fixmath.Div(x, depth)
}

// getSellPrice deals delta lots into the pool: x / (y + delta).
func (a *AMM) getSellPrice(delta *big.Int) (*big.Int, error) {
	acct, ok := a.ledger.GetMarginAccount(a.address)
	if !ok || acct.IsFlat() {
		return nil, ErrPoolEmpty
	}
	x, err := a.poolAvailableMargin(acct)
	if err != nil {
		return nil, err
	}
	depth := new(big.Int).Add(acct.Size, delta)
	return fixmath.Div(x, depth)
}

// CreatePool establishes the pool's initial position: the pool goes long
// amount lots at the mark price against the creator's short, funded by
// 2*amount*price of the creator's margin cash. Fails once the pool holds any
// size.
func (a *AMM) CreatePool(creator string, amount *big.Int) error {
	if a.ledger.Status() != perpetual.StatusNormal {
		return perpetual.ErrWrongStatus
	}
	if amount == nil || amount.Sign() <= 0 {
		return perpetual.ErrInvalidAmount
	}
	if acct, ok := a.ledger.GetMarginAccount(a.address); ok && !acct.IsFlat() {
		return ErrPoolExists
	}

	index, _, err := a.IndexPrice()
	if err != nil {
		return err
	}
	now := a.now()

	restore := a.cap.Begin(creator, a.address)
	commit := func() {
		a.funding.initialized = true
		a.funding.lastFundingTime = now
		a.funding.lastIndexPrice = new(big.Int).Set(index)
		a.funding.emaPremium = new(big.Int)
		a.funding.accumulatedFunding = new(big.Int)
	}

	if err := a.cap.Trade(creator, perpetual.SideShort, amount, index); err != nil {
		restore()
		return err
	}
	if err := a.cap.Trade(a.address, perpetual.SideLong, amount, index); err != nil {
		restore()
		return err
	}
	value, err := fixmath.Mul(index, amount)
	if err != nil {
		restore()
		return err
	}
	poolCash := new(big.Int).Lsh(value, 1)
	if err := a.cap.TransferCash(creator, a.address, poolCash); err != nil {
		restore()
		return err
	}

	safe, err := a.ledger.IsSafeWithPrice(creator, index)
	if err != nil {
		restore()
		return err
	}
	if !safe {
		restore()
		return perpetual.ErrUnsafe
	}

	commit()
	a.log.Info().
		Str("creator", creator).
		Str("amount", amount.String()).
		Str("price", index.String()).
		Msg("pool created")
	a.observePool()
	return nil
}

// Receipt reports the terms a pool trade executed at.
type Receipt struct {
	Side    perpetual.Side
	Amount  *big.Int
	Price   *big.Int
	Value   *big.Int
	PoolFee *big.Int
	DevFee  *big.Int
}

// Buy takes amount lots long from the pool at the depth-impacted price.
// Fails SlippageExceeded when the dealt price breaches limitPrice, Expired
// when the deadline (unix seconds) has passed.
func (a *AMM) Buy(trader string, amount, limitPrice *big.Int, deadline int64) (*Receipt, error) {
	return a.trade(trader, perpetual.SideLong, amount, limitPrice, deadline)
}

// Sell puts amount lots into the pool at the depth-impacted price.
func (a *AMM) Sell(trader string, amount, limitPrice *big.Int, deadline int64) (*Receipt, error) {
	return a.trade(trader, perpetual.SideShort, amount, limitPrice, deadline)
}

func (a *AMM) trade(trader string, side perpetual.Side, amount, limitPrice *big.Int, deadline int64) (*Receipt, error) {
	if a.ledger.Status() != perpetual.StatusNormal {
		return nil, perpetual.ErrWrongStatus
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, perpetual.ErrInvalidAmount
	}
	if a.now().Unix() > deadline {
		a.reject("expired")
		return nil, ErrExpired
	}
	if err := a.accrue(); err != nil {
		a.reject("stale_index")
		return nil, err
	}

	var price *big.Int
	var err error
	direction := "buy"
	if side == perpetual.SideLong {
		price, err = a.getBuyPrice(amount)
	} else {
		direction = "sell"
		price, err = a.getSellPrice(amount)
	}
	if err != nil {
		return nil, err
	}

	if side == perpetual.SideLong && price.Cmp(limitPrice) > 0 {
		a.reject("slippage")
		return nil, ErrSlippageExceeded
	}
	if side == perpetual.SideShort && price.Cmp(limitPrice) < 0 {
		a.reject("slippage")
		return nil, ErrSlippageExceeded
	}

	value, err := fixmath.Mul(price, amount)
	if err != nil {
		return nil, err
	}
	poolFee, err := fixmath.Mul(value, a.params.PoolFeeRate)
	if err != nil {
		return nil, err
	}
	devFee, err := fixmath.Mul(value, a.params.PoolDevFeeRate)
	if err != nil {
		return nil, err
	}

	restore := a.cap.Begin(trader, a.address, a.dev)

	if err := a.cap.Trade(trader, side, amount, price); err != nil {
		restore()
		return nil, err
	}
	if err := a.cap.Trade(a.address, side.Opposite(), amount, price); err != nil {
		restore()
		return nil, err
	}
	if err := a.cap.TransferCash(trader, a.address, poolFee); err != nil {
		restore()
		return nil, err
	}
	if err := a.cap.TransferCash(trader, a.dev, devFee); err != nil {
		restore()
		return nil, err
	}

	safe, err := a.ledger.IsSafe(trader)
	if err != nil {
		restore()
		return nil, err
	}
	if !safe {
		restore()
		a.reject("unsafe")
		return nil, perpetual.ErrUnsafe
	}

	a.log.Info().
		Str("trader", trader).
		Str("direction", direction).
		Str("amount", amount.String()).
		Str("price", price.String()).
		Msg("pool trade executed")
	if a.metrics != nil {
		a.metrics.PoolTrades.WithLabelValues(direction).Inc()
	}
	a.observePool()
	return &Receipt{
		Side:    side,
		Amount:  new(big.Int).Set(amount),
		Price:   price,
		Value:   value,
		PoolFee: poolFee,
		DevFee:  devFee,
	}, nil
}

// DepositAndBuy composes a margin deposit with a buy; both legs commit or
// neither does.
func (a *AMM) DepositAndBuy(trader string, depositAmount, amount, limitPrice *big.Int, deadline int64) (*Receipt, error) {
	return a.depositAndTrade(trader, depositAmount, func() (*Receipt, error) {
		return a.Buy(trader, amount, limitPrice, deadline)
	})
}

// DepositAndSell composes a margin deposit with a sell.
func (a *AMM) DepositAndSell(trader string, depositAmount, amount, limitPrice *big.Int, deadline int64) (*Receipt, error) {
	return a.depositAndTrade(trader, depositAmount, func() (*Receipt, error) {
		return a.Sell(trader, amount, limitPrice, deadline)
	})
}

func (a *AMM) depositAndTrade(trader string, depositAmount *big.Int, trade func() (*Receipt, error)) (*Receipt, error) {
	restore := a.cap.Begin(trader)
	deposited := false
	if depositAmount != nil && depositAmount.Sign() > 0 {
		if err := a.ledger.Deposit(trader, depositAmount); err != nil {
			return nil, err
		}
		deposited = true
	}
	receipt, err := trade()
	if err != nil {
		restore()
		if deposited {
			// The margin account is already rolled back; return the
			// collateral pulled in by the deposit leg.
			if terr := a.ledger.RefundCollateral(trader, depositAmount); terr != nil {
				return nil, fmt.Errorf("refund after failed trade: %v: %w", terr, err)
			}
		}
		return nil, err
	}
	return receipt, nil
}

func (a *AMM) observePool() {
	if a.metrics == nil {
		return
	}
	if acct, ok := a.ledger.GetMarginAccount(a.address); ok {
		a.metrics.PoolSizeLots.Set(wadFloat(acct.Size))
	}
}

func (a *AMM) reject(reason string) {
	if a.metrics != nil {
		a.metrics.TradeRejections.WithLabelValues(reason).Inc()
	}
}
