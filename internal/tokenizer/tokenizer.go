// Package tokenizer wraps a single aggregated margin position as a fungible,
// transferable share. Shares are minted and redeemed 1 share : 1 WAD lot
// against the tokenizer's own margin account; redemption value is always
// recomputed proportionally from the current margin balance, never assumed to
// be a fixed ratio, because an external liquidation can shrink the backing
// position between calls.
package tokenizer

import (
	"errors"
	"math/big"

	"github.com/rs/zerolog"

	"PerpShare/internal/observability"
	"PerpShare/internal/perpetual"
)

var (
	ErrPaused                = errors.New("paused")
	ErrStopped               = errors.New("stopped")
	ErrInconsistent          = errors.New("inconsistent position backing")
	ErrZeroMarginBalance     = errors.New("zero margin balance")
	ErrZeroAddress           = errors.New("zero address")
	ErrInsufficientBalance   = errors.New("insufficient share balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrAlreadyInitialized    = errors.New("already initialized")
	ErrCapExceeded           = errors.New("supply cap exceeded")
	ErrNotInitialized        = errors.New("not initialized")
)

// PriceSource supplies the trade price for mint and redeem legs.
type PriceSource interface {
	MarkPrice() (*big.Int, error)
}

// Gov is the tokenizer's governance record, reported by DumpGov.
type Gov struct {
	LedgerOwner          string
	DevAddress           string
	MintFeeRate          *big.Int
	Cap                  *big.Int
	ConsistencyTolerance *big.Int
	Paused               bool
	Stopped              bool
}

// Tokenizer holds the share ledger and one margin account inside the ledger
// (the aggregated position backing all outstanding shares).
type Tokenizer struct {
	initialized bool
	name        string
	symbol      string
	decimals    uint8

	address string // the tokenizer's margin identity
	owner   string
	dev     string

	mintFeeRate          *big.Int
	cap                  *big.Int // nil means uncapped
	consistencyTolerance *big.Int
	paused               bool
	stopped              bool

	totalSupply *big.Int
	balances    map[string]*big.Int
	allowances  map[string]map[string]*big.Int

	ledger *perpetual.Ledger
	lcap   *perpetual.Capability
	price  PriceSource

	log     zerolog.Logger
	metrics *observability.Metrics
}

func New(owner, address string, lcap *perpetual.Capability, price PriceSource, log zerolog.Logger, metrics *observability.Metrics) *Tokenizer {
	return &Tokenizer{
		address:              address,
		owner:                owner,
		mintFeeRate:          new(big.Int),
		consistencyTolerance: defaultConsistencyTolerance(),
		totalSupply:          new(big.Int),
		balances:             make(map[string]*big.Int),
		allowances:           make(map[string]map[string]*big.Int),
		ledger:               lcap.Ledger(),
		lcap:                 lcap,
		price:                price,
		log:                  log,
		metrics:              metrics,
	}
}

// 0.1% deviation from the canonical 1 lot : 1 share ratio.
func defaultConsistencyTolerance() *big.Int {
	wad := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return wad.Quo(wad, big.NewInt(1000))
}

// Initialize sets the share metadata and optional governance overrides.
// One-shot: a second call fails.
func (t *Tokenizer) Initialize(caller, name, symbol string, decimals uint8, dev string, cap *big.Int) error {
	if caller != t.owner {
		return perpetual.ErrNotOwner
	}
	if t.initialized {
		return ErrAlreadyInitialized
	}
	if decimals > 18 {
		return perpetual.ErrInvalidAmount
	}
	t.name = name
	t.symbol = symbol
	t.decimals = decimals
	t.dev = dev
	if cap != nil {
		t.cap = new(big.Int).Set(cap)
	}
	t.initialized = true
	t.log.Info().Str("name", name).Str("symbol", symbol).Msg("tokenizer initialized")
	return nil
}

func (t *Tokenizer) Name() string    { return t.name }
func (t *Tokenizer) Symbol() string  { return t.symbol }
func (t *Tokenizer) Decimals() uint8 { return t.decimals }

// Address is the tokenizer's margin identity in the ledger.
func (t *Tokenizer) Address() string { return t.address }

func (t *Tokenizer) DevAddress() string { return t.dev }

func (t *Tokenizer) MintFeeRate() *big.Int { return new(big.Int).Set(t.mintFeeRate) }

func (t *Tokenizer) Paused() bool  { return t.paused }
func (t *Tokenizer) Stopped() bool { return t.stopped }

// DumpGov reports the full governance state in one read.
func (t *Tokenizer) DumpGov() Gov {
	g := Gov{
		LedgerOwner:          t.ledger.Owner(),
		DevAddress:           t.dev,
		MintFeeRate:          new(big.Int).Set(t.mintFeeRate),
		ConsistencyTolerance: new(big.Int).Set(t.consistencyTolerance),
		Paused:               t.paused,
		Stopped:              t.stopped,
	}
	if t.cap != nil {
		g.Cap = new(big.Int).Set(t.cap)
	}
	return g
}

// Pause blocks every state-changing operation, transfers included. Owner acts
// as the pauser role.
func (t *Tokenizer) Pause(caller string) error {
	if caller != t.owner {
		return perpetual.ErrUnauthorized
	}
	t.paused = true
	t.log.Warn().Msg("tokenizer paused")
	return nil
}

func (t *Tokenizer) Unpause(caller string) error {
	if caller != t.owner {
		return perpetual.ErrUnauthorized
	}
	t.paused = false
	t.log.Warn().Msg("tokenizer unpaused")
	return nil
}

// Shutdown sets the one-way stop switch: minting ends permanently, holders
// can still redeem, transfer and settle.
func (t *Tokenizer) Shutdown(caller string) error {
	if caller != t.owner {
		return perpetual.ErrNotOwner
	}
	t.stopped = true
	t.log.Warn().Msg("tokenizer stopped")
	return nil
}

func (t *Tokenizer) SetDevAddress(caller, dev string) error {
	if caller != t.owner {
		return perpetual.ErrNotOwner
	}
	if dev == "" {
		return ErrZeroAddress
	}
	t.dev = dev
	return nil
}

func (t *Tokenizer) SetMintFeeRate(caller string, rate *big.Int) error {
	if caller != t.owner {
		return perpetual.ErrNotOwner
	}
	if rate == nil || rate.Sign() < 0 {
		return perpetual.ErrInvalidAmount
	}
	t.mintFeeRate = new(big.Int).Set(rate)
	return nil
}

func (t *Tokenizer) SetCap(caller string, cap *big.Int) error {
	if caller != t.owner {
		return perpetual.ErrNotOwner
	}
	if cap == nil || cap.Sign() < 0 {
		return perpetual.ErrInvalidAmount
	}
	t.cap = new(big.Int).Set(cap)
	return nil
}

func (t *Tokenizer) SetConsistencyTolerance(caller string, tol *big.Int) error {
	if caller != t.owner {
		return perpetual.ErrNotOwner
	}
	if tol == nil || tol.Sign() < 0 {
		return perpetual.ErrInvalidAmount
	}
	t.consistencyTolerance = new(big.Int).Set(tol)
	return nil
}

func (t *Tokenizer) gate(op Operation) error {
	if !t.initialized {
		return ErrNotInitialized
	}
	return Gate(t.ledger.Status(), t.paused, t.stopped, op)
}
