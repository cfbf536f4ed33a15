package event

// Deposit records collateral moved into a margin account
type Deposit struct {
	Trader string `json:"trader"`
	Amount string `json:"amount"` // WAD integer string
}

func (d *Deposit) EventType() EventType {
	return EventTypeDeposit
}
