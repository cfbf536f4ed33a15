package tokenizer

import (
	"math/big"

	"PerpShare/internal/fixmath"
	"PerpShare/internal/perpetual"
)

// MintReceipt reports the terms a committed mint actually traded at.
type MintReceipt struct {
	Amount *big.Int
	Price  *big.Int
	Fee    *big.Int
}

// Mint opens amount lots of new exposure for the trader against the
// tokenizer's aggregated position and credits amount new shares. Both legs
// trade at the current mark price, the trader funds the notional in margin
// cash, and a mint fee on the notional goes to the dev beneficiary.
func (t *Tokenizer) Mint(trader string, amount *big.Int) (*MintReceipt, error) {
	if err := t.gate(OpMint); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, perpetual.ErrInvalidAmount
	}
	if t.cap != nil {
		next := new(big.Int).Add(t.totalSupply, amount)
		if next.Cmp(t.cap) > 0 {
			return nil, ErrCapExceeded
		}
	}
	if err := t.checkConsistent(); err != nil {
		return nil, err
	}

	price, err := t.price.MarkPrice()
	if err != nil {
		return nil, err
	}
	notional, err := fixmath.Mul(price, amount)
	if err != nil {
		return nil, err
	}
	fee, err := fixmath.Mul(notional, t.mintFeeRate)
	if err != nil {
		return nil, err
	}

	restore := t.lcap.Begin(trader, t.address, t.dev)
	fail := func(err error) (*MintReceipt, error) {
		restore()
		return nil, err
	}
	if err := t.lcap.Trade(trader, perpetual.SideShort, amount, price); err != nil {
		return fail(err)
	}
	if err := t.lcap.Trade(t.address, perpetual.SideLong, amount, price); err != nil {
		return fail(err)
	}
	if err := t.lcap.TransferCash(trader, t.address, notional); err != nil {
		return fail(err)
	}
	if fee.Sign() > 0 {
		if err := t.lcap.TransferCash(trader, t.dev, fee); err != nil {
			return fail(err)
		}
	}
	if err := t.requireSafe(trader); err != nil {
		return fail(err)
	}
	if err := t.requireSafe(t.address); err != nil {
		return fail(err)
	}

	t.mintShares(trader, amount)
	t.log.Info().
		Str("trader", trader).
		Str("amount", amount.String()).
		Str("price", price.String()).
		Str("fee", fee.String()).
		Msg("shares minted")
	if t.metrics != nil {
		t.metrics.SharesMinted.Inc()
		t.metrics.MintFeesPaidWad.Add(wadFloat(fee))
	}
	return &MintReceipt{
		Amount: new(big.Int).Set(amount),
		Price:  price,
		Fee:    fee,
	}, nil
}

// Redeem burns shares and returns the holder's proportional slice of the
// aggregated position: entitlement cash plus the matching slice of the
// position itself, both at the current mark price. The proportional formula
// stays correct after a liquidation has shrunk the backing, which is why no
// fixed per-share rate is ever assumed. Returns the cash entitlement, which
// is credited to the trader's margin balance.
func (t *Tokenizer) Redeem(trader string, shares *big.Int) (*big.Int, error) {
	if err := t.gate(OpRedeem); err != nil {
		return nil, err
	}
	entitlement, err := t.redeemInto(trader, shares)
	if err != nil {
		return nil, err
	}
	t.log.Info().
		Str("trader", trader).
		Str("shares", shares.String()).
		Str("entitlement", entitlement.String()).
		Msg("shares redeemed")
	if t.metrics != nil {
		t.metrics.SharesRedeemed.Inc()
	}
	return entitlement, nil
}

// redeemInto trades the proportional position slice back to the trader and
// moves the cash entitlement into their margin account. Shared by Redeem and
// the stopped-mode Settle path.
func (t *Tokenizer) redeemInto(trader string, shares *big.Int) (*big.Int, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, perpetual.ErrInvalidAmount
	}
	if t.BalanceOf(trader).Cmp(shares) < 0 {
		return nil, ErrInsufficientBalance
	}

	ledger := t.lcap.Ledger()
	mb, err := ledger.MarginBalance(t.address)
	if err != nil {
		return nil, err
	}
	if mb.Sign() == 0 {
		return nil, ErrZeroMarginBalance
	}
	entitlement, err := fixmath.Frac(mb, shares, t.totalSupply)
	if err != nil {
		return nil, err
	}

	price, err := t.price.MarkPrice()
	if err != nil {
		return nil, err
	}

	acct, _ := ledger.GetMarginAccount(t.address)
	restore := t.lcap.Begin(trader, t.address)
	fail := func(err error) (*big.Int, error) {
		restore()
		return nil, err
	}
	if acct != nil && !acct.IsFlat() {
		chunk, err := fixmath.Frac(acct.Size, shares, t.totalSupply)
		if err != nil {
			return fail(err)
		}
		if chunk.Sign() > 0 {
			// The trader takes over the slice; the aggregated position
			// sheds it. Opposite legs at the same price keep the ledger
			// zero-sum.
			if err := t.lcap.Trade(trader, acct.Side, chunk, price); err != nil {
				return fail(err)
			}
			if err := t.lcap.Trade(t.address, acct.Side.Opposite(), chunk, price); err != nil {
				return fail(err)
			}
		}
	}
	if err := t.lcap.TransferCash(t.address, trader, entitlement); err != nil {
		return fail(err)
	}
	if err := t.requireSafe(trader); err != nil {
		return fail(err)
	}
	if err := t.requireSafe(t.address); err != nil {
		return fail(err)
	}
	if err := t.burnShares(trader, shares); err != nil {
		return fail(err)
	}
	return entitlement, nil
}

// Settle pays out the caller's full proportional entitlement during
// wind-down. Once the ledger is SETTLED the payout leaves through the
// settlement withdrawal path straight to the caller's wallet; while only the
// stop switch is set the payout lands in the caller's margin account like a
// redeem. Burns the caller's entire share balance.
func (t *Tokenizer) Settle(trader string) (*big.Int, error) {
	if err := t.gate(OpSettle); err != nil {
		return nil, err
	}
	shares := t.BalanceOf(trader)
	if shares.Sign() == 0 {
		return nil, perpetual.ErrInvalidAmount
	}

	ledger := t.lcap.Ledger()
	var entitlement *big.Int
	if ledger.Status() == perpetual.StatusSettled {
		mb, err := ledger.MarginBalance(t.address)
		if err != nil {
			return nil, err
		}
		entitlement, err = fixmath.Frac(mb, shares, t.totalSupply)
		if err != nil {
			return nil, err
		}
		if err := t.lcap.SettleWithdraw(trader, entitlement); err != nil {
			return nil, err
		}
		if err := t.burnShares(trader, shares); err != nil {
			return nil, err
		}
	} else {
		var err error
		entitlement, err = t.redeemInto(trader, shares)
		if err != nil {
			return nil, err
		}
	}

	t.log.Info().
		Str("trader", trader).
		Str("shares", shares.String()).
		Str("entitlement", entitlement.String()).
		Msg("shares settled")
	if t.metrics != nil {
		t.metrics.SharesSettled.Inc()
	}
	return entitlement, nil
}

// DepositAndMint composes a collateral deposit with a mint. Either both legs
// commit or neither does; a failed mint refunds the freshly deposited
// collateral.
func (t *Tokenizer) DepositAndMint(trader string, depositAmount, mintAmount *big.Int) (*MintReceipt, error) {
	if err := t.gate(OpMint); err != nil {
		return nil, err
	}
	ledger := t.lcap.Ledger()
	restore := t.lcap.Begin(trader, t.address, t.dev)
	deposited := false
	if depositAmount != nil && depositAmount.Sign() > 0 {
		if err := ledger.Deposit(trader, depositAmount); err != nil {
			restore()
			return nil, err
		}
		deposited = true
	}
	receipt, err := t.Mint(trader, mintAmount)
	if err != nil {
		restore()
		if deposited {
			if rerr := ledger.RefundCollateral(trader, depositAmount); rerr != nil {
				t.log.Error().Err(rerr).
					Str("trader", trader).
					Str("amount", depositAmount.String()).
					Msg("deposit refund failed after mint rollback")
			}
		}
		return nil, err
	}
	return receipt, nil
}

// RedeemAndWithdraw composes a redeem with a withdrawal of the returned
// entitlement. Either both legs commit or neither does.
func (t *Tokenizer) RedeemAndWithdraw(trader string, shares *big.Int) (*big.Int, error) {
	if err := t.gate(OpRedeem); err != nil {
		return nil, err
	}
	ledger := t.lcap.Ledger()
	restore := t.lcap.Begin(trader, t.address)
	savedSupply := new(big.Int).Set(t.totalSupply)
	savedBalance := t.BalanceOf(trader)

	entitlement, err := t.redeemInto(trader, shares)
	if err != nil {
		return nil, err
	}
	if entitlement.Sign() > 0 {
		if err := ledger.Withdraw(trader, entitlement); err != nil {
			restore()
			t.totalSupply = savedSupply
			t.balances[trader] = savedBalance
			t.observeSupply()
			return nil, err
		}
	}
	if t.metrics != nil {
		t.metrics.SharesRedeemed.Inc()
	}
	return entitlement, nil
}

// checkConsistent verifies the canonical 1 lot : 1 share backing ratio
// within the configured tolerance. An external liquidation shrinks the
// aggregated position without touching the share supply, so minting on top
// of a distorted backing would dilute existing holders.
func (t *Tokenizer) checkConsistent() error {
	var size *big.Int
	if acct, ok := t.lcap.Ledger().GetMarginAccount(t.address); ok {
		size = acct.Size
	} else {
		size = new(big.Int)
	}
	if t.totalSupply.Sign() == 0 {
		if size.Sign() != 0 {
			return ErrInconsistent
		}
		return nil
	}
	drift := new(big.Int).Sub(size, t.totalSupply)
	drift.Abs(drift)
	band, err := fixmath.Mul(t.totalSupply, t.consistencyTolerance)
	if err != nil {
		return err
	}
	if drift.Cmp(band) > 0 {
		return ErrInconsistent
	}
	return nil
}

func (t *Tokenizer) requireSafe(addr string) error {
	safe, err := t.lcap.Ledger().IsSafe(addr)
	if err != nil {
		return err
	}
	if !safe {
		return perpetual.ErrUnsafe
	}
	return nil
}

func wadFloat(x *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(x), big.NewFloat(1e18)).Float64()
	return f
}
