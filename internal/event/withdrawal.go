package event

// Withdrawal records collateral paid out of a margin account. Settlement
// payouts after global settlement use the same event with Settlement set.
type Withdrawal struct {
	Trader     string `json:"trader"`
	Amount     string `json:"amount"` // WAD integer string
	Settlement bool   `json:"settlement,omitempty"`
}

func (w *Withdrawal) EventType() EventType {
	return EventTypeWithdrawal
}
