package event

// SharesMinted records new shares issued against the aggregated position
type SharesMinted struct {
	Trader string `json:"trader"`
	Amount string `json:"amount"` // shares, WAD integer string
	Price  string `json:"price"`
	Fee    string `json:"fee"`
}

func (s *SharesMinted) EventType() EventType {
	return EventTypeSharesMinted
}

// SharesRedeemed records shares burned for a proportional payout
type SharesRedeemed struct {
	Trader      string `json:"trader"`
	Shares      string `json:"shares"`
	Entitlement string `json:"entitlement"` // margin cash returned, WAD integer string
}

func (s *SharesRedeemed) EventType() EventType {
	return EventTypeSharesRedeemed
}

// SharesSettled records a wind-down payout against the full share balance
type SharesSettled struct {
	Trader      string `json:"trader"`
	Shares      string `json:"shares"`
	Entitlement string `json:"entitlement"`
}

func (s *SharesSettled) EventType() EventType {
	return EventTypeSharesSettled
}
