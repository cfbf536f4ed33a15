// Package perpetual implements the margin ledger: per-account position and
// cash bookkeeping, safety and bankruptcy predicates, liquidation, and the
// three-state global settlement lifecycle.
package perpetual

import (
	"errors"
	"math/big"
)

// Side is the direction of an open position.
type Side int32

const (
	SideFlat Side = iota
	SideShort
	SideLong
)

func (s Side) String() string {
	switch s {
	case SideFlat:
		return "flat"
	case SideShort:
		return "short"
	case SideLong:
		return "long"
	default:
		return "unknown"
	}
}

// Opposite returns the counter-leg side. Flat has no opposite.
func (s Side) Opposite() Side {
	switch s {
	case SideShort:
		return SideLong
	case SideLong:
		return SideShort
	default:
		return SideFlat
	}
}

// Status is the global lifecycle flag. It only moves forward:
// normal -> emergency -> settled.
type Status int32

const (
	StatusNormal Status = iota
	StatusEmergency
	StatusSettled
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusEmergency:
		return "emergency"
	case StatusSettled:
		return "settled"
	default:
		return "unknown"
	}
}

var (
	ErrWrongStatus        = errors.New("wrong perpetual status")
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrUnsafe             = errors.New("account unsafe")
	ErrAccountSafe        = errors.New("account is safe, nothing to liquidate")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNotOwner           = errors.New("not owner")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNoFundingSource    = errors.New("no funding source attached")
)

// MarginAccount is the per-address position and cash record. Accounts are
// created implicitly on first deposit and never deleted.
// Invariant: Side == SideFlat iff Size == 0.
type MarginAccount struct {
	Side             Side
	Size             *big.Int // lots, WAD, never negative
	EntryValue       *big.Int // notional at entry, WAD, never negative
	CashBalance      *big.Int // WAD, signed
	LastFundingIndex *big.Int // global funding index snapshot at last touch
}

func newMarginAccount() *MarginAccount {
	return &MarginAccount{
		Side:             SideFlat,
		Size:             new(big.Int),
		EntryValue:       new(big.Int),
		CashBalance:      new(big.Int),
		LastFundingIndex: new(big.Int),
	}
}

// Clone returns a deep copy safe to hand out across the read API.
func (a *MarginAccount) Clone() *MarginAccount {
	return &MarginAccount{
		Side:             a.Side,
		Size:             new(big.Int).Set(a.Size),
		EntryValue:       new(big.Int).Set(a.EntryValue),
		CashBalance:      new(big.Int).Set(a.CashBalance),
		LastFundingIndex: new(big.Int).Set(a.LastFundingIndex),
	}
}

// IsFlat reports whether the account has no exposure.
func (a *MarginAccount) IsFlat() bool {
	return a.Side == SideFlat || a.Size.Sign() == 0
}

// GovParams are the owner-set ledger parameters, all WAD rates except the
// lot sizes which are WAD lots.
type GovParams struct {
	InitialMarginRate      *big.Int
	MaintenanceMarginRate  *big.Int
	LiquidationPenaltyRate *big.Int
	PenaltyFundRate        *big.Int
	LotSize                *big.Int
	TradingLotSize         *big.Int
}

// DefaultGovParams mirrors the production defaults: 10% initial margin,
// 5% maintenance margin, 0.5% keeper penalty, 0.5% fund penalty, 1-wei lots.
func DefaultGovParams() GovParams {
	wad := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	rate := func(num, den int64) *big.Int {
		v := new(big.Int).Mul(wad, big.NewInt(num))
		return v.Quo(v, big.NewInt(den))
	}
	return GovParams{
		InitialMarginRate:      rate(1, 10),
		MaintenanceMarginRate:  rate(1, 20),
		LiquidationPenaltyRate: rate(1, 200),
		PenaltyFundRate:        rate(1, 200),
		LotSize:                big.NewInt(1),
		TradingLotSize:         big.NewInt(1),
	}
}

// FundingSource is the AMM-side collaborator consulted for mark price and the
// accumulated funding index. Both calls accrue lazily inside the source.
type FundingSource interface {
	// MarkPrice is the index price adjusted by the smoothed premium.
	MarkPrice() (*big.Int, error)
	// AccumulatedFunding is the global funding index: the cumulative cash
	// credit per long lot since inception (negative when longs have paid).
	AccumulatedFunding() (*big.Int, error)
}
