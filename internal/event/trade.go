package event

// PoolTrade records a trade executed against the liquidity pool. Side is the
// trader's side; the pool always takes the opposite leg at the same size and
// price.
type PoolTrade struct {
	Trader string `json:"trader"`
	Side   string `json:"side"`
	Amount string `json:"amount"` // lots, WAD integer string
	Price  string `json:"price"`
	Fee    string `json:"fee"`     // pool fee retained by the pool
	DevFee string `json:"dev_fee"` // fee paid to the dev beneficiary
}

func (t *PoolTrade) EventType() EventType {
	return EventTypePoolTrade
}
