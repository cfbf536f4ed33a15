package tokenizer

import "PerpShare/internal/perpetual"

// Operation classifies the state-changing entry points for gating.
type Operation int

const (
	OpMint Operation = iota
	OpRedeem
	OpTransfer
	OpSettle
)

func (op Operation) String() string {
	switch op {
	case OpMint:
		return "mint"
	case OpRedeem:
		return "redeem"
	case OpTransfer:
		return "transfer"
	case OpSettle:
		return "settle"
	default:
		return "unknown"
	}
}

// Gate decides whether an operation is allowed under the ledger lifecycle
// status crossed with the tokenizer's own switches. Pause dominates: a paused
// tokenizer rejects everything. The stop switch is one-way and blocks only
// new exposure (mint); redemption and transfer keep working so holders can
// always exit. Settle is the inverse: it is only available once the wind-down
// has begun, through either the stop switch or global settlement.
func Gate(status perpetual.Status, paused, stopped bool, op Operation) error {
	if paused {
		return ErrPaused
	}
	switch op {
	case OpMint:
		if stopped {
			return ErrStopped
		}
		if status != perpetual.StatusNormal {
			return perpetual.ErrWrongStatus
		}
	case OpRedeem:
		if status != perpetual.StatusNormal {
			return perpetual.ErrWrongStatus
		}
	case OpTransfer:
		// Allowed in every state while unpaused.
	case OpSettle:
		if !stopped && status != perpetual.StatusSettled {
			return perpetual.ErrWrongStatus
		}
		if status == perpetual.StatusEmergency {
			return perpetual.ErrWrongStatus
		}
	}
	return nil
}
