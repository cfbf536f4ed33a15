package event

// Liquidation records a forced close of an unsafe account. Kind is "partial"
// when only enough of the position was closed to restore safety, "full" when
// the whole position went.
type Liquidation struct {
	Keeper  string `json:"keeper"`
	Trader  string `json:"trader"`
	Amount  string `json:"amount"` // lots closed, WAD integer string
	Price   string `json:"price"`
	Penalty string `json:"penalty"` // keeper's share of the penalty
	Kind    string `json:"kind"`
}

func (l *Liquidation) EventType() EventType {
	return EventTypeLiquidation
}
