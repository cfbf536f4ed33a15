package amm

import (
	"errors"
	"math/big"
	"time"
)

// ErrNoIndexPrice is returned before the first price observation lands.
var ErrNoIndexPrice = errors.New("no index price observed yet")

// ManualFeeder is a settable index price source: the daemon's admin surface
// pushes observations into it, tests drive it directly.
type ManualFeeder struct {
	price     *big.Int
	timestamp time.Time
	set       bool
}

func NewManualFeeder() *ManualFeeder {
	return &ManualFeeder{}
}

// SetPrice records a new index observation.
func (f *ManualFeeder) SetPrice(price *big.Int, timestamp time.Time) {
	f.price = new(big.Int).Set(price)
	f.timestamp = timestamp
	f.set = true
}

func (f *ManualFeeder) GetIndexPrice() (*big.Int, time.Time, error) {
	if !f.set {
		return nil, time.Time{}, ErrNoIndexPrice
	}
	return new(big.Int).Set(f.price), f.timestamp, nil
}
