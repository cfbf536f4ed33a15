package event

// FundingAccrual records the funding state after the lazy accumulator
// advanced. Emitted by the funding ticker, not on every trade, so consumers
// see a bounded event rate.
type FundingAccrual struct {
	FundingRate        string `json:"funding_rate"` // WAD integer string, signed
	AccumulatedFunding string `json:"accumulated_funding"`
	EmaPremium         string `json:"ema_premium"`
	MarkPrice          string `json:"mark_price"`
	IndexPrice         string `json:"index_price"`
	LastFundingTime    int64  `json:"last_funding_time"` // unix seconds
}

func (f *FundingAccrual) EventType() EventType {
	return EventTypeFundingAccrual
}
