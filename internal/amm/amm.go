// Package amm prices trades against a single pooled position and accrues the
// funding rate. Pricing is constant-product against pool depth: with
// x = pool cash - pool entry value and y = pool size, the fair price is x/y,
// a buy of delta lots deals at x/(y-delta) and a sell at x/(y+delta).
package amm

import (
	"errors"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"PerpShare/internal/observability"
	"PerpShare/internal/perpetual"
)

var (
	ErrSlippageExceeded = errors.New("price limit exceeded")
	ErrExpired          = errors.New("deadline expired")
	ErrStaleIndex       = errors.New("index price is stale")
	ErrPoolExists       = errors.New("pool already created")
	ErrPoolEmpty        = errors.New("pool has no liquidity")
)

// PriceFeeder supplies the externally delivered index price. Polled, never
// pushed.
type PriceFeeder interface {
	GetIndexPrice() (price *big.Int, timestamp time.Time, err error)
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// Params are the owner-set pool parameters. Rates are WAD; FundingPeriod is
// seconds of elapsed time over which the full funding rate applies once.
type Params struct {
	PoolFeeRate      *big.Int
	PoolDevFeeRate   *big.Int
	EMAAlpha         *big.Int // per-second smoothing constant
	MarkPremiumLimit *big.Int // premium cap as a rate of index price
	FundingDampener  *big.Int // dead band applied to the premium rate
	FundingPeriod    int64
}

// DefaultParams mirrors the production defaults: 1% pool fee, 0.5% dev fee,
// alpha = 2/(600+1), 0.5% premium limit, 0.05% dampener, 8h funding period.
func DefaultParams() Params {
	return Params{
		PoolFeeRate:      ratWad(1, 100),
		PoolDevFeeRate:   ratWad(5, 1000),
		EMAAlpha:         big.NewInt(3327787021630616),
		MarkPremiumLimit: ratWad(5, 1000),
		FundingDampener:  ratWad(5, 10000),
		FundingPeriod:    28800,
	}
}

func ratWad(num, den int64) *big.Int {
	wad := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	v := new(big.Int).Mul(wad, big.NewInt(num))
	return v.Quo(v, big.NewInt(den))
}

// fundingState is the EMA/funding accumulator. accumulatedFunding is the
// cumulative cash credit per long lot since inception (negative once longs
// have paid more than they received).
type fundingState struct {
	initialized        bool
	lastFundingTime    time.Time
	lastIndexPrice     *big.Int
	emaPremium         *big.Int
	lastFundingRate    *big.Int
	accumulatedFunding *big.Int
}

// AMM owns one margin account inside the ledger (the pool's own position,
// addressed by the pool identity) and a capability to trade both legs.
type AMM struct {
	address string
	owner   string
	dev     string

	cap    *perpetual.Capability
	ledger *perpetual.Ledger
	feeder PriceFeeder
	params Params

	funding fundingState
	now     Clock

	log     zerolog.Logger
	metrics *observability.Metrics
}

type Config struct {
	Address string // the pool's account identity inside the ledger
	Owner   string
	Dev     string
	Params  Params
	Clock   Clock
}

func New(cfg Config, cap *perpetual.Capability, feeder PriceFeeder, log zerolog.Logger, metrics *observability.Metrics) *AMM {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AMM{
		address: cfg.Address,
		owner:   cfg.Owner,
		dev:     cfg.Dev,
		cap:     cap,
		ledger:  cap.Ledger(),
		feeder:  feeder,
		params:  cfg.Params,
		now:     clock,
		funding: fundingState{
			lastIndexPrice:     new(big.Int),
			emaPremium:         new(big.Int),
			lastFundingRate:    new(big.Int),
			accumulatedFunding: new(big.Int),
		},
		log:     log,
		metrics: metrics,
	}
}

// Address is the pool's account identity in the ledger.
func (a *AMM) Address() string { return a.address }

func (a *AMM) Params() Params { return a.params }

// SetParameter updates one pool governance parameter by name. Owner-only.
func (a *AMM) SetParameter(caller, name string, value *big.Int) error {
	if caller != a.owner {
		return perpetual.ErrNotOwner
	}
	if value == nil || value.Sign() < 0 {
		return perpetual.ErrInvalidAmount
	}
	v := new(big.Int).Set(value)
	switch name {
	case "poolFeeRate":
		a.params.PoolFeeRate = v
	case "poolDevFeeRate":
		a.params.PoolDevFeeRate = v
	case "emaAlpha":
		a.params.EMAAlpha = v
	case "markPremiumLimit":
		a.params.MarkPremiumLimit = v
	case "fundingDampener":
		a.params.FundingDampener = v
	case "fundingPeriod":
		if !v.IsInt64() || v.Int64() <= 0 {
			return perpetual.ErrInvalidAmount
		}
		a.params.FundingPeriod = v.Int64()
	default:
		return errors.New("unknown amm parameter " + name)
	}
	a.log.Info().Str("parameter", name).Str("value", v.String()).Msg("pool parameter updated")
	return nil
}

// SetDevAddress changes the fee beneficiary. Owner-only.
func (a *AMM) SetDevAddress(caller, dev string) error {
	if caller != a.owner {
		return perpetual.ErrNotOwner
	}
	a.dev = dev
	return nil
}

// FundingState reports the accumulator for snapshots.
func (a *AMM) FundingState() (lastFundingTime time.Time, lastIndexPrice, emaPremium, accumulated *big.Int, initialized bool) {
	return a.funding.lastFundingTime,
		new(big.Int).Set(a.funding.lastIndexPrice),
		new(big.Int).Set(a.funding.emaPremium),
		new(big.Int).Set(a.funding.accumulatedFunding),
		a.funding.initialized
}

// RestoreFundingState installs the accumulator during snapshot recovery.
func (a *AMM) RestoreFundingState(lastFundingTime time.Time, lastIndexPrice, emaPremium, accumulated *big.Int, initialized bool) {
	a.funding.initialized = initialized
	a.funding.lastFundingTime = lastFundingTime
	a.funding.lastIndexPrice = new(big.Int).Set(lastIndexPrice)
	a.funding.emaPremium = new(big.Int).Set(emaPremium)
	a.funding.accumulatedFunding = new(big.Int).Set(accumulated)
}
